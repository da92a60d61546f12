package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry/internal/license/entity"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

// ConstraintCitizenClass allows one license per class per citizen.
const ConstraintCitizenClass = "uq_licenses_citizen_class"

// ConstraintIdentity ties a license to its holder.
const ConstraintIdentity = "fk_licenses_identity"

const columns = `id, citizen_key, class_code, label, issued_on, expires_on, issuer_id`

// Repo provides data access for the licenses table.
type Repo struct{}

func NewRepo() *Repo { return &Repo{} }

// EnsureTable creates licenses if not exists. Requires identities.
func (r *Repo) EnsureTable(ctx context.Context, q database.Queryer) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS licenses (
  id varchar(32) NOT NULL,
  citizen_key varchar(64) NOT NULL,
  class_code varchar(8) NOT NULL,
  label TEXT NOT NULL,
  issued_on varchar(10) NOT NULL,
  expires_on varchar(10) NOT NULL,
  issuer_id varchar(64) NOT NULL DEFAULT '',
  CONSTRAINT pk_licenses PRIMARY KEY (id),
  CONSTRAINT uq_licenses_citizen_class UNIQUE (citizen_key, class_code),
  CONSTRAINT fk_licenses_identity FOREIGN KEY (citizen_key) REFERENCES identities (citizen_key)
);`
	_, err := q.ExecContext(ctx, ddl)
	return err
}

// Held reports whether citizenKey already holds classCode.
func (r *Repo) Held(ctx context.Context, q database.Queryer, citizenKey, classCode string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok,
		`SELECT EXISTS (SELECT 1 FROM licenses WHERE citizen_key=$1 AND class_code=$2)`, citizenKey, classCode)
	return ok, err
}

func (r *Repo) Insert(ctx context.Context, q database.Queryer, l *entity.License) error {
	const stmt = `INSERT INTO licenses (` + columns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := q.ExecContext(ctx, stmt, l.ID, l.CitizenKey, l.ClassCode, l.Label, l.IssuedOn, l.ExpiresOn, l.IssuerID)
	if err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (r *Repo) ListByCitizen(ctx context.Context, q database.Queryer, citizenKey string) ([]*entity.License, error) {
	out := []*entity.License{}
	err := sqlx.SelectContext(ctx, q, &out,
		`SELECT `+columns+` FROM licenses WHERE citizen_key=$1 ORDER BY class_code`, citizenKey)
	return out, err
}

// Delete removes one license and returns it, or sql.ErrNoRows.
func (r *Repo) Delete(ctx context.Context, q database.Queryer, citizenKey, classCode string) (*entity.License, error) {
	var l entity.License
	err := sqlx.GetContext(ctx, q, &l,
		`DELETE FROM licenses WHERE citizen_key=$1 AND class_code=$2 RETURNING `+columns, citizenKey, classCode)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
