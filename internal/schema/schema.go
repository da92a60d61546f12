// Package schema creates the registry tables.
package schema

import (
	"context"
	"fmt"

	emergencyrepo "github.com/ovaphlow/pitchfork/service-registry/internal/emergency/repo"
	identityrepo "github.com/ovaphlow/pitchfork/service-registry/internal/identity/repo"
	justicerepo "github.com/ovaphlow/pitchfork/service-registry/internal/justice/repo"
	licenserepo "github.com/ovaphlow/pitchfork/service-registry/internal/license/repo"
	paymentrepo "github.com/ovaphlow/pitchfork/service-registry/internal/payment/repo"
	propertyrepo "github.com/ovaphlow/pitchfork/service-registry/internal/property/repo"
	vehiclerepo "github.com/ovaphlow/pitchfork/service-registry/internal/vehicle/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

type tableOwner interface {
	EnsureTable(ctx context.Context, q database.Queryer) error
}

// owners is ordered so referenced tables exist before their referrers.
var owners = []struct {
	name string
	repo tableOwner
}{
	{"identities", identityrepo.NewRepo()},
	{"licenses", licenserepo.NewRepo()},
	{"payment_codes", paymentrepo.NewRepo()},
	{"vehicles", vehiclerepo.NewRepo()},
	{"properties", propertyrepo.NewRepo()},
	{"justice", justicerepo.NewRepo()},
	{"emergencies", emergencyrepo.NewRepo()},
}

// LockKey is the advisory lock held while the schema is created. Concurrent
// CREATE TABLE IF NOT EXISTS on the same name can still collide in pg_type.
const LockKey int64 = 0x72656769737472 // "registr"

// Ensure creates every missing table and index in one transaction.
// It is idempotent and serialised across processes.
func Ensure(ctx context.Context, mgr *database.Manager) error {
	return mgr.WithTransaction(ctx, func(ctx context.Context, tx database.Queryer) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, LockKey); err != nil {
			return fmt.Errorf("schema lock: %w", err)
		}
		for _, o := range owners {
			if err := o.repo.EnsureTable(ctx, tx); err != nil {
				return fmt.Errorf("ensure %s: %w", o.name, err)
			}
		}
		return nil
	})
}
