package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry/internal/payment/entity"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

// ConstraintPrimaryKey guards code uniqueness.
const ConstraintPrimaryKey = "pk_payment_codes"

const columns = `code, citizen_key, amount, description, used, created_at, used_at, issuer_id`

// Repo provides data access for the payment_codes table.
type Repo struct{}

func NewRepo() *Repo { return &Repo{} }

// EnsureTable creates payment_codes and its citizen index if not exists.
// Requires identities.
func (r *Repo) EnsureTable(ctx context.Context, q database.Queryer) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS payment_codes (
  code varchar(8) NOT NULL,
  citizen_key varchar(64) NOT NULL,
  amount BIGINT NOT NULL CHECK (amount > 0),
  description TEXT NOT NULL DEFAULT '',
  used BOOLEAN NOT NULL DEFAULT false,
  created_at varchar(19) NOT NULL,
  used_at varchar(19) NOT NULL DEFAULT '',
  issuer_id varchar(64) NOT NULL DEFAULT '',
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT pk_payment_codes PRIMARY KEY (code),
  CONSTRAINT fk_payment_codes_identity FOREIGN KEY (citizen_key) REFERENCES identities (citizen_key)
);
CREATE INDEX IF NOT EXISTS idx_payment_codes_citizen_key ON payment_codes (citizen_key);`
	_, err := q.ExecContext(ctx, ddl)
	return err
}

// Exists reports whether code has ever been issued.
func (r *Repo) Exists(ctx context.Context, q database.Queryer, code string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `SELECT EXISTS (SELECT 1 FROM payment_codes WHERE code=$1)`, code)
	return ok, err
}

func (r *Repo) Insert(ctx context.Context, q database.Queryer, pc *entity.PaymentCode) error {
	const stmt = `INSERT INTO payment_codes (` + columns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := q.ExecContext(ctx, stmt,
		pc.Code, pc.CitizenKey, pc.Amount, pc.Description, pc.Used, pc.CreatedAt, pc.UsedAt, pc.IssuerID)
	if err != nil {
		return fmt.Errorf("insert payment code: %w", err)
	}
	return nil
}

// Get returns the code or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, q database.Queryer, code string) (*entity.PaymentCode, error) {
	var pc entity.PaymentCode
	if err := sqlx.GetContext(ctx, q, &pc, `SELECT `+columns+` FROM payment_codes WHERE code=$1`, code); err != nil {
		return nil, err
	}
	return &pc, nil
}

// ListByCitizen returns the citizen's codes, newest first.
func (r *Repo) ListByCitizen(ctx context.Context, q database.Queryer, citizenKey string) ([]*entity.PaymentCode, error) {
	out := []*entity.PaymentCode{}
	err := sqlx.SelectContext(ctx, q, &out,
		`SELECT `+columns+` FROM payment_codes WHERE citizen_key=$1 ORDER BY recorded_at DESC, code`, citizenKey)
	return out, err
}

// Consume flips an unused code owned by citizenKey to used. It must run in the
// same transaction as the asset insert it pays for. The returned count is 0
// when the code was already used (or does not belong to citizenKey).
func (r *Repo) Consume(ctx context.Context, tx database.Queryer, code, citizenKey, usedAt string) (int64, error) {
	const stmt = `UPDATE payment_codes SET used=TRUE, used_at=$1 WHERE code=$2 AND citizen_key=$3 AND used=FALSE`
	res, err := tx.ExecContext(ctx, stmt, usedAt, code, citizenKey)
	if err != nil {
		return 0, fmt.Errorf("consume payment code: %w", err)
	}
	return res.RowsAffected()
}

// DeleteUnreferenced removes the citizen's codes that no vehicle or property
// points at and returns them. Codes backing a registered asset stay.
func (r *Repo) DeleteUnreferenced(ctx context.Context, q database.Queryer, citizenKey string) ([]*entity.PaymentCode, error) {
	const stmt = `
DELETE FROM payment_codes pc
WHERE pc.citizen_key=$1
  AND NOT EXISTS (SELECT 1 FROM vehicles v WHERE v.payment_code=pc.code)
  AND NOT EXISTS (SELECT 1 FROM properties p WHERE p.payment_code=pc.code)
RETURNING ` + columns
	out := []*entity.PaymentCode{}
	if err := sqlx.SelectContext(ctx, q, &out, stmt, citizenKey); err != nil {
		return nil, fmt.Errorf("delete payment codes: %w", err)
	}
	return out, nil
}
