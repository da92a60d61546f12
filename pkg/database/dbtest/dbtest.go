// Package dbtest builds connection managers over go-sqlmock for service tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

// NewManager returns a Manager backed by sqlmock with a millisecond retry delay.
// The mock is closed when the test ends.
func NewManager(t testing.TB, opts ...database.Option) (*database.Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	opts = append([]database.Option{
		database.WithRetryPolicy(database.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}),
	}, opts...)
	return database.NewManager(sqlx.NewDb(db, "postgres"), opts...), mock
}

// Sequence returns a generator yielding values in order, repeating the last one.
func Sequence(values ...string) func() string {
	i := 0
	return func() string {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}
