package payment

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/ovaphlow/pitchfork/service-registry/internal/payment/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

// Redeemer checks and consumes payment codes on behalf of asset registries.
// Consumption only happens inside the caller's transaction.
type Redeemer struct {
	repo *repo.Repo
}

func NewRedeemer() *Redeemer { return &Redeemer{repo: repo.NewRepo()} }

// NormalizeCode upper-cases and trims a code typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check verifies code exists, belongs to citizenKey and is unused.
func (r *Redeemer) Check(ctx context.Context, q database.Queryer, code, citizenKey string) error {
	pc, err := r.repo.Get(ctx, q, code)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCodeNotFound.WithValue(code)
	}
	if err != nil {
		return err
	}
	if pc.CitizenKey != citizenKey {
		return ErrCodeNotFound.WithValue(code)
	}
	if pc.Used {
		return ErrCodeAlreadyUsed.WithValue(code)
	}
	return nil
}

// Consume marks code used within tx. Losing a race to another registration
// yields ErrCodeAlreadyUsed, which rolls the caller's transaction back.
func (r *Redeemer) Consume(ctx context.Context, tx database.Queryer, code, citizenKey, usedAt string) error {
	n, err := r.repo.Consume(ctx, tx, code, citizenKey, usedAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCodeAlreadyUsed.WithValue(code)
	}
	return nil
}
