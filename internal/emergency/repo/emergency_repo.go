package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry/internal/emergency/entity"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

const columns = `id, citizen_key, reason, service, location, reported_at, notified_services`

type Repo struct{}

func NewRepo() *Repo { return &Repo{} }

func (r *Repo) EnsureTable(ctx context.Context, q database.Queryer) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS emergencies (
  id varchar(32) NOT NULL,
  citizen_key varchar(64) NOT NULL,
  reason TEXT NOT NULL,
  service TEXT NOT NULL,
  location TEXT NOT NULL,
  reported_at varchar(19) NOT NULL,
  notified_services TEXT NOT NULL,
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT pk_emergencies PRIMARY KEY (id)
);
CREATE INDEX IF NOT EXISTS idx_emergencies_recorded_at ON emergencies (recorded_at);`
	_, err := q.ExecContext(ctx, ddl)
	return err
}

func (r *Repo) Insert(ctx context.Context, q database.Queryer, e *entity.Emergency) error {
	const stmt = `INSERT INTO emergencies (` + columns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := q.ExecContext(ctx, stmt, e.ID, e.CitizenKey, e.Reason, e.Service, e.Location, e.ReportedAt, e.NotifiedServices)
	if err != nil {
		return fmt.Errorf("insert emergency: %w", err)
	}
	return nil
}

// Recent returns up to limit alerts, newest first.
func (r *Repo) Recent(ctx context.Context, q database.Queryer, limit int) ([]*entity.Emergency, error) {
	out := []*entity.Emergency{}
	err := sqlx.SelectContext(ctx, q, &out,
		`SELECT `+columns+` FROM emergencies ORDER BY recorded_at DESC, id DESC LIMIT $1`, limit)
	return out, err
}
