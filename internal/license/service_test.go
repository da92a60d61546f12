package license

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/license/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database/dbtest"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

func exists(v bool) *sqlmock.Rows { return sqlmock.NewRows([]string{"exists"}).AddRow(v) }

func newService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	mgr, mock := dbtest.NewManager(t)
	return NewService(mgr,
		WithClock(clockwork.NewFakeClockAt(time.Date(2026, time.February, 28, 10, 0, 0, 0, time.UTC))),
		WithIDGenerator(utilities.NewIDGenerator(9)),
	), mock
}

func TestRegisterLicense(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery(`FROM identities WHERE citizen_key`).WithArgs("C1").WillReturnRows(exists(true))
	mock.ExpectQuery(`FROM licenses WHERE citizen_key`).WithArgs("C1", "A1").WillReturnRows(exists(false))
	mock.ExpectExec(`INSERT INTO licenses`).
		WithArgs(sqlmock.AnyArg(), "C1", "A1", "Clase A1 - Maquinaria agrícola", "28/02/2026", "28/02/2028", "op-3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	l, err := svc.RegisterLicense(context.Background(), "C1", " a1 ", "op-3")
	require.NoError(t, err)
	assert.Equal(t, "A1", l.ClassCode)
	assert.Equal(t, "28/02/2028", l.ExpiresOn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterLicenseRejections(t *testing.T) {
	t.Run("no identity", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(false))
		_, err := svc.RegisterLicense(context.Background(), "C1", "B", "op")
		assert.ErrorIs(t, err, identity.ErrNoIdentity)
	})

	t.Run("unknown class", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(true))
		_, err := svc.RegisterLicense(context.Background(), "C1", "Z9", "op")
		assert.ErrorIs(t, err, ErrInvalidClass)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already held", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(true))
		mock.ExpectQuery(`FROM licenses WHERE citizen_key`).WillReturnRows(exists(true))
		_, err := svc.RegisterLicense(context.Background(), "C1", "B", "op")
		assert.ErrorIs(t, err, ErrAlreadyHeld)
	})

	t.Run("held by concurrent grant", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(true))
		mock.ExpectQuery(`FROM licenses WHERE citizen_key`).WillReturnRows(exists(false))
		mock.ExpectExec(`INSERT INTO licenses`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: repo.ConstraintCitizenClass})
		_, err := svc.RegisterLicense(context.Background(), "C1", "B", "op")
		assert.ErrorIs(t, err, ErrAlreadyHeld)
	})

	t.Run("identity expunged before insert", func(t *testing.T) {
		svc, mock := newService(t)
		mock.ExpectQuery(`FROM identities WHERE citizen_key`).WillReturnRows(exists(true))
		mock.ExpectQuery(`FROM licenses WHERE citizen_key`).WillReturnRows(exists(false))
		mock.ExpectExec(`INSERT INTO licenses`).
			WillReturnError(&pq.Error{Code: "23503", Constraint: repo.ConstraintIdentity})
		_, err := svc.RegisterLicense(context.Background(), "C1", "B", "op")
		assert.ErrorIs(t, err, identity.ErrNoIdentity)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRevokeLicense(t *testing.T) {
	svc, mock := newService(t)
	mock.ExpectQuery(`DELETE FROM licenses`).WithArgs("C1", "B").
		WillReturnRows(sqlmock.NewRows([]string{"id", "citizen_key", "class_code"}).AddRow("1", "C1", "B"))
	mock.ExpectQuery(`DELETE FROM licenses`).WithArgs("C1", "B").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	l, err := svc.RevokeLicense(context.Background(), "C1", "b")
	require.NoError(t, err)
	assert.Equal(t, "B", l.ClassCode)

	_, err = svc.RevokeLicense(context.Background(), "C1", "B")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClasses(t *testing.T) {
	svc, _ := newService(t)
	assert.Len(t, svc.Classes(), 11)
}
