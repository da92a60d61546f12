package payment

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database/dbtest"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
)

var now = time.Date(2026, time.October, 18, 9, 30, 5, 0, time.UTC)

func existsRows(v bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(v)
}

func TestNewCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		c := NewCode()
		require.Len(t, c, 8)
		assert.Regexp(t, `^[0-9A-F]{8}$`, c)
	}
}

func TestIssueCodeRejectsAmountBeforeStore(t *testing.T) {
	mgr, mock := dbtest.NewManager(t)
	svc := NewService(mgr)

	for _, amount := range []int64{0, -5} {
		_, err := svc.IssueCode(context.Background(), IssueInput{CitizenKey: "C1", Amount: amount})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueCodeRequiresIdentity(t *testing.T) {
	mgr, mock := dbtest.NewManager(t)
	svc := NewService(mgr)
	mock.ExpectQuery(`FROM identities WHERE citizen_key`).WithArgs("C2").WillReturnRows(existsRows(false))

	_, err := svc.IssueCode(context.Background(), IssueInput{CitizenKey: "C2", Amount: 100})
	assert.ErrorIs(t, err, identity.ErrNoIdentity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueCodeRegeneratesOnCollision(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)
	mgr, mock := dbtest.NewManager(t)
	svc := NewService(mgr,
		WithClock(clockwork.NewFakeClockAt(now)),
		WithMetrics(mt),
		WithCodeSource(dbtest.Sequence("AAAA0001", "AAAA0002", "AAAA0003")),
	)

	mock.ExpectQuery(`FROM identities WHERE citizen_key`).WithArgs("C1").WillReturnRows(existsRows(true))
	mock.ExpectQuery(`FROM payment_codes WHERE code`).WithArgs("AAAA0001").WillReturnRows(existsRows(true))
	mock.ExpectQuery(`FROM payment_codes WHERE code`).WithArgs("AAAA0002").WillReturnRows(existsRows(false))
	mock.ExpectExec(`INSERT INTO payment_codes`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: repo.ConstraintPrimaryKey})
	mock.ExpectQuery(`FROM payment_codes WHERE code`).WithArgs("AAAA0003").WillReturnRows(existsRows(false))
	mock.ExpectExec(`INSERT INTO payment_codes`).
		WithArgs("AAAA0003", "C1", int64(50000), "Registro vehicular", false, "18/10/2026 09:30:05", "", "op-7").
		WillReturnResult(sqlmock.NewResult(0, 1))

	pc, err := svc.IssueCode(context.Background(), IssueInput{
		CitizenKey:  "C1",
		Amount:      50000,
		Description: " Registro vehicular ",
		IssuerID:    "op-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "AAAA0003", pc.Code)
	assert.False(t, pc.Used)
	assert.Equal(t, "18/10/2026 09:30:05", pc.CreatedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(mt.CodesIssued))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueCodeGenerationExhausted(t *testing.T) {
	mgr, mock := dbtest.NewManager(t)
	svc := NewService(mgr, WithCodeSource(dbtest.Sequence("DEADBEEF")))

	mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(existsRows(true))
	for i := 0; i < identity.MaxGenerationAttempts; i++ {
		mock.ExpectQuery(`FROM payment_codes WHERE code`).WillReturnRows(existsRows(true))
	}

	_, err := svc.IssueCode(context.Background(), IssueInput{CitizenKey: "C1", Amount: 1})
	assert.ErrorIs(t, err, identity.ErrGenerationExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCodeNotFound(t *testing.T) {
	mgr, mock := dbtest.NewManager(t)
	svc := NewService(mgr)
	mock.ExpectQuery(`FROM payment_codes WHERE code`).WithArgs("ABCD1234").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	_, err := svc.GetCode(context.Background(), " abcd1234")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestRedeemerCheck(t *testing.T) {
	cols := []string{"code", "citizen_key", "amount", "description", "used", "created_at", "used_at", "issuer_id"}
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr error
	}{
		{"unused", sqlmock.NewRows(cols).AddRow("XYZ", "C1", 10, "", false, "", "", ""), nil},
		{"used", sqlmock.NewRows(cols).AddRow("XYZ", "C1", 10, "", true, "", "", ""), ErrCodeAlreadyUsed},
		{"other owner", sqlmock.NewRows(cols).AddRow("XYZ", "C2", 10, "", false, "", "", ""), ErrCodeNotFound},
		{"missing", sqlmock.NewRows(cols), ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, mock := dbtest.NewManager(t)
			mock.ExpectQuery(`FROM payment_codes WHERE code`).WithArgs("XYZ").WillReturnRows(tt.rows)

			r := NewRedeemer()
			err := mgr.WithConnection(context.Background(), func(ctx context.Context, q database.Queryer) error {
				return r.Check(ctx, q, "XYZ", "C1")
			})
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDeleteCodesUnblocksExpunge(t *testing.T) {
	mgr, mock := dbtest.NewManager(t)
	codes := NewService(mgr)
	identities := identity.NewService(mgr)
	cols := []string{"code", "citizen_key", "amount", "description", "used", "created_at", "used_at", "issuer_id"}

	mock.ExpectQuery(`DELETE FROM identities`).WithArgs("C1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "fk_payment_codes_identity"})
	mock.ExpectQuery(`DELETE FROM payment_codes pc\s+WHERE pc.citizen_key=\$1\s+AND NOT EXISTS \(SELECT 1 FROM vehicles`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("AB12CD34", "C1", 50000, "", false, "18/10/2026 09:30:05", "", "op-1").
			AddRow("EF56AB78", "C1", 900, "", false, "18/10/2026 09:31:00", "", "op-1"))
	mock.ExpectQuery(`DELETE FROM identities`).WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"citizen_key", "identifier_number"}).AddRow("C1", "12345678-5"))

	_, err := identities.ExpungeIdentity(context.Background(), "C1")
	require.ErrorIs(t, err, identity.ErrHasDependents)

	deleted, err := codes.DeleteCodes(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, deleted, 2)
	assert.Equal(t, "AB12CD34", deleted[0].Code)

	row, err := identities.ExpungeIdentity(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "12345678-5", row.IdentifierNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCodesNothingToDelete(t *testing.T) {
	mgr, mock := dbtest.NewManager(t)
	svc := NewService(mgr)
	mock.ExpectQuery(`DELETE FROM payment_codes`).WithArgs("C2").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	deleted, err := svc.DeleteCodes(context.Background(), "C2")
	require.NoError(t, err)
	assert.Empty(t, deleted)
}
