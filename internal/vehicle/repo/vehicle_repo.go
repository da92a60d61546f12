package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry/internal/vehicle/entity"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

const (
	// ConstraintPlate guards plate uniqueness.
	ConstraintPlate       = "uq_vehicles_plate"
	ConstraintIdentity    = "fk_vehicles_identity"
	ConstraintPaymentCode = "fk_vehicles_payment_code"
)

const columns = `id, citizen_key, plate, make, model, category, year, color,
	inspection_status, permit_status, payment_code, image_url, registered_on, registrar_id`

// Repo provides data access for the vehicles table.
type Repo struct{}

func NewRepo() *Repo { return &Repo{} }

// EnsureTable creates vehicles if not exists. Requires identities and payment_codes.
func (r *Repo) EnsureTable(ctx context.Context, q database.Queryer) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS vehicles (
  id varchar(32) NOT NULL,
  citizen_key varchar(64) NOT NULL,
  plate varchar(7) NOT NULL,
  make TEXT NOT NULL,
  model TEXT NOT NULL,
  category TEXT NOT NULL,
  year INTEGER NOT NULL,
  color TEXT NOT NULL,
  inspection_status TEXT NOT NULL,
  permit_status TEXT NOT NULL,
  payment_code varchar(8) NOT NULL,
  image_url TEXT NOT NULL DEFAULT '',
  registered_on varchar(10) NOT NULL,
  registrar_id varchar(64) NOT NULL DEFAULT '',
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT pk_vehicles PRIMARY KEY (id),
  CONSTRAINT uq_vehicles_plate UNIQUE (plate),
  CONSTRAINT fk_vehicles_identity FOREIGN KEY (citizen_key) REFERENCES identities (citizen_key),
  CONSTRAINT fk_vehicles_payment_code FOREIGN KEY (payment_code) REFERENCES payment_codes (code)
);
CREATE INDEX IF NOT EXISTS idx_vehicles_citizen_key ON vehicles (citizen_key);`
	_, err := q.ExecContext(ctx, ddl)
	return err
}

func (r *Repo) PlateExists(ctx context.Context, q database.Queryer, plate string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `SELECT EXISTS (SELECT 1 FROM vehicles WHERE plate=$1)`, plate)
	return ok, err
}

func (r *Repo) Insert(ctx context.Context, q database.Queryer, v *entity.Vehicle) error {
	const stmt = `INSERT INTO vehicles (` + columns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := q.ExecContext(ctx, stmt,
		v.ID, v.CitizenKey, v.Plate, v.Make, v.Model, v.Category, v.Year, v.Color,
		v.InspectionStatus, v.PermitStatus, v.PaymentCode, v.ImageURL, v.RegisteredOn, v.RegistrarID,
	)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

// Get returns the vehicle with plate or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, q database.Queryer, plate string) (*entity.Vehicle, error) {
	var v entity.Vehicle
	if err := sqlx.GetContext(ctx, q, &v, `SELECT `+columns+` FROM vehicles WHERE plate=$1`, plate); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) ListByCitizen(ctx context.Context, q database.Queryer, citizenKey string) ([]*entity.Vehicle, error) {
	out := []*entity.Vehicle{}
	err := sqlx.SelectContext(ctx, q, &out,
		`SELECT `+columns+` FROM vehicles WHERE citizen_key=$1 ORDER BY recorded_at, plate`, citizenKey)
	return out, err
}

// Delete removes the vehicle with plate and returns it, or sql.ErrNoRows.
func (r *Repo) Delete(ctx context.Context, q database.Queryer, plate string) (*entity.Vehicle, error) {
	var v entity.Vehicle
	if err := sqlx.GetContext(ctx, q, &v, `DELETE FROM vehicles WHERE plate=$1 RETURNING `+columns, plate); err != nil {
		return nil, err
	}
	return &v, nil
}
