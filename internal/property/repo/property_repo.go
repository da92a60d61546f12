package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry/internal/property/entity"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

// ConstraintAddress guards address uniqueness.
const ConstraintAddress = "uq_properties_address"

const (
	ConstraintIdentity    = "fk_properties_identity"
	ConstraintPaymentCode = "fk_properties_payment_code"
)

const columns = `id, citizen_key, address, zone, color, floors, payment_code, image_url, registered_on, registrar_id`

// Repo provides data access for the properties table.
type Repo struct{}

func NewRepo() *Repo { return &Repo{} }

// EnsureTable creates properties if not exists. Requires identities and payment_codes.
func (r *Repo) EnsureTable(ctx context.Context, q database.Queryer) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS properties (
  id varchar(32) NOT NULL,
  citizen_key varchar(64) NOT NULL,
  address TEXT NOT NULL,
  zone TEXT NOT NULL,
  color TEXT NOT NULL,
  floors INTEGER NOT NULL CHECK (floors > 0),
  payment_code varchar(8) NOT NULL,
  image_url TEXT NOT NULL DEFAULT '',
  registered_on varchar(10) NOT NULL,
  registrar_id varchar(64) NOT NULL DEFAULT '',
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT pk_properties PRIMARY KEY (id),
  CONSTRAINT uq_properties_address UNIQUE (address),
  CONSTRAINT fk_properties_identity FOREIGN KEY (citizen_key) REFERENCES identities (citizen_key),
  CONSTRAINT fk_properties_payment_code FOREIGN KEY (payment_code) REFERENCES payment_codes (code)
);
CREATE INDEX IF NOT EXISTS idx_properties_citizen_key ON properties (citizen_key);`
	_, err := q.ExecContext(ctx, ddl)
	return err
}

func (r *Repo) AddressExists(ctx context.Context, q database.Queryer, address string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `SELECT EXISTS (SELECT 1 FROM properties WHERE address=$1)`, address)
	return ok, err
}

func (r *Repo) Insert(ctx context.Context, q database.Queryer, p *entity.Property) error {
	const stmt = `INSERT INTO properties (` + columns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := q.ExecContext(ctx, stmt,
		p.ID, p.CitizenKey, p.Address, p.Zone, p.Color, p.Floors, p.PaymentCode, p.ImageURL, p.RegisteredOn, p.RegistrarID)
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

// Get returns the property at address or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, q database.Queryer, address string) (*entity.Property, error) {
	var p entity.Property
	if err := sqlx.GetContext(ctx, q, &p, `SELECT `+columns+` FROM properties WHERE address=$1`, address); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ListByCitizen(ctx context.Context, q database.Queryer, citizenKey string) ([]*entity.Property, error) {
	out := []*entity.Property{}
	err := sqlx.SelectContext(ctx, q, &out,
		`SELECT `+columns+` FROM properties WHERE citizen_key=$1 ORDER BY recorded_at, address`, citizenKey)
	return out, err
}

// Delete removes the property at address and returns it, or sql.ErrNoRows.
func (r *Repo) Delete(ctx context.Context, q database.Queryer, address string) (*entity.Property, error) {
	var p entity.Property
	if err := sqlx.GetContext(ctx, q, &p, `DELETE FROM properties WHERE address=$1 RETURNING `+columns, address); err != nil {
		return nil, err
	}
	return &p, nil
}
