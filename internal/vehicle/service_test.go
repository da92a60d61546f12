package vehicle

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment"
	"github.com/ovaphlow/pitchfork/service-registry/internal/vehicle/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database/dbtest"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

var now = time.Date(2026, time.October, 18, 15, 4, 5, 0, time.UTC)

var codeCols = []string{"code", "citizen_key", "amount", "description", "used", "created_at", "used_at", "issuer_id"}

func newService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	mgr, mock := dbtest.NewManager(t)
	return NewService(mgr,
		WithClock(clockwork.NewFakeClockAt(now)),
		WithIDGenerator(utilities.NewIDGenerator(3)),
	), mock
}

func input() RegisterInput {
	return RegisterInput{
		CitizenKey:       "C1",
		Plate:            "XYZ-789",
		Make:             "Toyota",
		Model:            "Corolla",
		Category:         "Media",
		Year:             2020,
		Color:            "Rojo",
		InspectionStatus: "Aprobada",
		PermitStatus:     "Vigente",
		PaymentCode:      "a1b2c3d4",
		RegistrarID:      "op-1",
	}
}

func exists(v bool) *sqlmock.Rows { return sqlmock.NewRows([]string{"exists"}).AddRow(v) }

func expectPrecheck(mock sqlmock.Sqlmock, codeUsed bool) {
	mock.ExpectQuery(`FROM identities WHERE citizen_key`).WithArgs("C1").WillReturnRows(exists(true))
	mock.ExpectQuery(`FROM vehicles WHERE plate`).WithArgs("XYZ-789").WillReturnRows(exists(false))
	mock.ExpectQuery(`FROM payment_codes WHERE code`).WithArgs("A1B2C3D4").
		WillReturnRows(sqlmock.NewRows(codeCols).AddRow("A1B2C3D4", "C1", 50000, "", codeUsed, "", "", ""))
}

func TestValidPlate(t *testing.T) {
	for _, p := range []string{"ABC-123", "ZZZ-000"} {
		assert.True(t, ValidPlate(p), p)
	}
	for _, p := range []string{"AB-123", "ABC123", "abc-123", "ABC-1234", "ABCD-123", " ABC-123", "ÁBC-123", "ABC-12a", ""} {
		assert.False(t, ValidPlate(p), p)
	}
}

func TestValidPlateGenerated(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 500; i++ {
		b := []byte{
			byte('A' + r.IntN(26)), byte('A' + r.IntN(26)), byte('A' + r.IntN(26)), '-',
			byte('0' + r.IntN(10)), byte('0' + r.IntN(10)), byte('0' + r.IntN(10)),
		}
		require.True(t, ValidPlate(string(b)), string(b))

		lower := append([]byte(nil), b...)
		lower[r.IntN(3)] += 'a' - 'A'
		require.False(t, ValidPlate(string(lower)), string(lower))

		noDash := append(append([]byte(nil), b[:3]...), b[4:]...)
		require.False(t, ValidPlate(string(noDash)), string(noDash))
	}
}

func TestRegisterVehicleCommitsInsertAndConsume(t *testing.T) {
	svc, mock := newService(t)
	expectPrecheck(mock, false)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicles`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payment_codes SET used=TRUE`).
		WithArgs("18/10/2026 15:04:05", "A1B2C3D4", "C1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := svc.RegisterVehicle(context.Background(), input())
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "A1B2C3D4", v.PaymentCode)
	assert.Equal(t, "18/10/2026", v.RegisteredOn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterVehicleRollsBackWhenCodeUpdateFails(t *testing.T) {
	svc, mock := newService(t)
	boom := errors.New("connection reset mid-statement")
	expectPrecheck(mock, false)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicles`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payment_codes SET used=TRUE`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := svc.RegisterVehicle(context.Background(), input())
	require.ErrorIs(t, err, payment.ErrRegistrationFailed)
	assert.ErrorIs(t, err, boom)
	// no commit was issued: ExpectationsWereMet fails on any unexpected call
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterVehicleLosesCodeRace(t *testing.T) {
	svc, mock := newService(t)
	expectPrecheck(mock, false)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicles`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payment_codes SET used=TRUE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.RegisterVehicle(context.Background(), input())
	assert.ErrorIs(t, err, payment.ErrCodeAlreadyUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterVehiclePlateRace(t *testing.T) {
	svc, mock := newService(t)
	expectPrecheck(mock, false)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicles`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: repo.ConstraintPlate})
	mock.ExpectRollback()

	_, err := svc.RegisterVehicle(context.Background(), input())
	assert.ErrorIs(t, err, ErrDuplicatePlate)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterVehicleReferenceRemovedMidway(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		wantErr    error
		wantKind   apperr.Kind
	}{
		{"identity expunged", repo.ConstraintIdentity, identity.ErrNoIdentity, apperr.KindNotFound},
		{"code deleted", repo.ConstraintPaymentCode, payment.ErrCodeNotFound, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newService(t)
			expectPrecheck(mock, false)
			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO vehicles`).
				WillReturnError(&pq.Error{Code: "23503", Constraint: tt.constraint})
			mock.ExpectRollback()

			_, err := svc.RegisterVehicle(context.Background(), input())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, payment.ErrRegistrationFailed)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRegisterVehicleCodeReuse(t *testing.T) {
	svc, mock := newService(t)
	expectPrecheck(mock, true)

	_, err := svc.RegisterVehicle(context.Background(), input())
	assert.ErrorIs(t, err, payment.ErrCodeAlreadyUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterVehiclePreconditionOrder(t *testing.T) {
	t.Run("identity first", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(false))
		in := input()
		in.Plate = "bad"
		_, err := svc.RegisterVehicle(context.Background(), in)
		assert.ErrorIs(t, err, identity.ErrNoIdentity)
	})

	t.Run("plate format before lookup", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(true))
		in := input()
		in.Plate = "xyz-789"
		_, err := svc.RegisterVehicle(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidPlate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate plate", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(true))
		mock.ExpectQuery(`FROM vehicles WHERE plate`).WillReturnRows(exists(true))
		_, err := svc.RegisterVehicle(context.Background(), input())
		assert.ErrorIs(t, err, ErrDuplicatePlate)
	})
}

func TestRegisterVehicleYearAndAttributes(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr error
	}{
		{"too old", func(in *RegisterInput) { in.Year = 1899 }, ErrInvalidYear},
		{"too new", func(in *RegisterInput) { in.Year = 2028 }, ErrInvalidYear},
		{"unknown color", func(in *RegisterInput) { in.Color = "Fucsia" }, ErrInvalidAttribute},
		{"unknown permit", func(in *RegisterInput) { in.PermitStatus = "Quizás" }, ErrInvalidAttribute},
		{"missing make", func(in *RegisterInput) { in.Make = " " }, ErrInvalidAttribute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newService(t)
			mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(true))
			mock.ExpectQuery(`FROM vehicles WHERE plate`).WillReturnRows(exists(false))
			in := input()
			tt.mutate(&in)
			_, err := svc.RegisterVehicle(context.Background(), in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRegisterVehicleNextModelYearAllowed(t *testing.T) {
	svc, mock := newService(t)
	expectPrecheck(mock, false)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vehicles`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payment_codes`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	in := input()
	in.Year = 2027
	_, err := svc.RegisterVehicle(context.Background(), in)
	assert.NoError(t, err)
}

func TestDeleteVehicleNotFound(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery(`DELETE FROM vehicles`).WithArgs("XYZ-789").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.DeleteVehicle(context.Background(), "XYZ-789")
	assert.ErrorIs(t, err, ErrNotFound)
}
