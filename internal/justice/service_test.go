package justice

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/justice/entity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database/dbtest"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

var (
	arrestCols = []string{"id", "citizen_key", "identifier_number", "reason", "sentence", "fine_amount", "evidence_url", "occurred_at", "officer_id", "status"}
	fineCols   = []string{"id", "citizen_key", "identifier_number", "reason", "amount", "evidence_url", "occurred_at", "officer_id", "status"}
)

func identityRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"citizen_key", "identifier_number"}).AddRow("C1", "12345678-5")
}

func newService(t *testing.T, opts ...Option) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	mgr, mock := dbtest.NewManager(t)
	opts = append([]Option{
		WithClock(clockwork.NewFakeClockAt(time.Date(2026, 10, 18, 21, 30, 5, 0, time.UTC))),
		WithIDGenerator(utilities.NewIDGenerator(2)),
	}, opts...)
	return NewService(mgr, opts...), mock
}

func TestRecordArrest(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery(`FROM identities WHERE citizen_key`).WithArgs("C1").WillReturnRows(identityRow())
	mock.ExpectExec(`INSERT INTO arrests`).
		WithArgs(sqlmock.AnyArg(), "C1", "12345678-5", "Robo", "3 meses", int64(0), "", "2026-10-18 21:30:05", "op-7", "Active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	a, err := svc.RecordArrest(context.Background(), ArrestInput{
		CitizenKey: "C1", Reason: "Robo", Sentence: "3 meses", OfficerID: "op-7",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusActive, a.Status)
	assert.Equal(t, "12345678-5", a.IdentifierNumber)
	assert.NotEmpty(t, a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordArrestRejections(t *testing.T) {
	tests := []struct {
		name    string
		in      ArrestInput
		wantErr error
	}{
		{"no reason", ArrestInput{CitizenKey: "C1", Sentence: "1 año"}, ErrMissingReason},
		{"no sentence", ArrestInput{CitizenKey: "C1", Reason: "Robo", Sentence: " "}, ErrInvalidSentence},
		{"negative fine", ArrestInput{CitizenKey: "C1", Reason: "Robo", Sentence: "1 año", FineAmount: -1}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newService(t)
			_, err := svc.RecordArrest(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("no identity", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnError(sql.ErrNoRows)
		_, err := svc.RecordArrest(context.Background(), ArrestInput{CitizenKey: "C9", Reason: "Robo", Sentence: "1 año"})
		assert.ErrorIs(t, err, identity.ErrNoIdentity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecordFine(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(identityRow())
	mock.ExpectExec(`INSERT INTO fines`).
		WithArgs(sqlmock.AnyArg(), "C1", "12345678-5", "Exceso de velocidad", int64(75000), "https://img/1.png", "2026-10-18 21:30:05", "op-7", "Pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f, err := svc.RecordFine(context.Background(), FineInput{
		CitizenKey: "C1", Reason: "Exceso de velocidad", Amount: 75000, EvidenceURL: "https://img/1.png", OfficerID: "op-7",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, f.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFineRequiresPositiveAmount(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.RecordFine(context.Background(), FineInput{CitizenKey: "C1", Reason: "x", Amount: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)
}

func TestListRecordsFiltersByStatus(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery(`FROM arrests WHERE citizen_key`).WithArgs("C1", "Active").
		WillReturnRows(sqlmock.NewRows(arrestCols).AddRow("1", "C1", "12345678-5", "Robo", "3 meses", 0, "", "2026-10-01 10:00:00", "op", "Active"))
	mock.ExpectQuery(`FROM fines WHERE citizen_key`).WithArgs("C1", "Pending").
		WillReturnRows(sqlmock.NewRows(fineCols))

	recs, err := svc.ListRecords(context.Background(), "C1")
	require.NoError(t, err)
	assert.Len(t, recs.Arrests, 1)
	assert.Empty(t, recs.Fines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpungeAllTwice(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	svc, mock := newService(t, WithMetrics(m))

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM arrests WHERE citizen_key`).WithArgs("C1").
		WillReturnRows(sqlmock.NewRows(arrestCols).
			AddRow("1", "C1", "12345678-5", "Robo", "3 meses", 0, "", "2026-10-01 10:00:00", "op", "Active").
			AddRow("2", "C1", "12345678-5", "Hurto", "1 mes", 1000, "", "2026-10-02 10:00:00", "op", "Active"))
	mock.ExpectQuery(`DELETE FROM fines WHERE citizen_key`).WithArgs("C1").
		WillReturnRows(sqlmock.NewRows(fineCols).
			AddRow("3", "C1", "12345678-5", "Ruido", 20000, "", "2026-10-03 10:00:00", "op", "Pending"))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM arrests WHERE citizen_key`).WithArgs("C1").WillReturnRows(sqlmock.NewRows(arrestCols))
	mock.ExpectQuery(`DELETE FROM fines WHERE citizen_key`).WithArgs("C1").WillReturnRows(sqlmock.NewRows(fineCols))
	mock.ExpectCommit()

	first, err := svc.ExpungeAll(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.ArrestCount)
	assert.Equal(t, 1, first.FineCount)
	assert.Equal(t, "Hurto", first.Arrests[1].Reason)

	second, err := svc.ExpungeAll(context.Background(), "C1")
	require.NoError(t, err)
	assert.Zero(t, second.ArrestCount)
	assert.Zero(t, second.FineCount)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsExpunged.WithLabelValues("arrest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsExpunged.WithLabelValues("fine")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpungeAllRollsBackOnFailure(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM arrests`).WillReturnRows(sqlmock.NewRows(arrestCols))
	mock.ExpectQuery(`DELETE FROM fines`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := svc.ExpungeAll(context.Background(), "C1")
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
