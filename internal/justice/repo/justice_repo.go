package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry/internal/justice/entity"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

const (
	arrestColumns = `id, citizen_key, identifier_number, reason, sentence, fine_amount, evidence_url, occurred_at, officer_id, status`
	fineColumns   = `id, citizen_key, identifier_number, reason, amount, evidence_url, occurred_at, officer_id, status`
)

// Repo provides data access for the arrests and fines tables.
type Repo struct{}

func NewRepo() *Repo { return &Repo{} }

// EnsureTable creates arrests and fines if not exists. Neither table has a
// foreign key to identities.
func (r *Repo) EnsureTable(ctx context.Context, q database.Queryer) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS arrests (
  id varchar(32) NOT NULL,
  citizen_key varchar(64) NOT NULL,
  identifier_number varchar(16) NOT NULL,
  reason TEXT NOT NULL,
  sentence TEXT NOT NULL,
  fine_amount BIGINT NOT NULL CHECK (fine_amount >= 0),
  evidence_url TEXT NOT NULL DEFAULT '',
  occurred_at varchar(19) NOT NULL,
  officer_id varchar(64) NOT NULL,
  status varchar(16) NOT NULL DEFAULT 'Active',
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT pk_arrests PRIMARY KEY (id)
);
CREATE INDEX IF NOT EXISTS idx_arrests_citizen_key ON arrests (citizen_key);
CREATE TABLE IF NOT EXISTS fines (
  id varchar(32) NOT NULL,
  citizen_key varchar(64) NOT NULL,
  identifier_number varchar(16) NOT NULL,
  reason TEXT NOT NULL,
  amount BIGINT NOT NULL CHECK (amount > 0),
  evidence_url TEXT NOT NULL DEFAULT '',
  occurred_at varchar(19) NOT NULL,
  officer_id varchar(64) NOT NULL,
  status varchar(16) NOT NULL DEFAULT 'Pending',
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT pk_fines PRIMARY KEY (id)
);
CREATE INDEX IF NOT EXISTS idx_fines_citizen_key ON fines (citizen_key);`
	_, err := q.ExecContext(ctx, ddl)
	return err
}

func (r *Repo) InsertArrest(ctx context.Context, q database.Queryer, a *entity.Arrest) error {
	const stmt = `INSERT INTO arrests (` + arrestColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := q.ExecContext(ctx, stmt,
		a.ID, a.CitizenKey, a.IdentifierNumber, a.Reason, a.Sentence, a.FineAmount, a.EvidenceURL, a.OccurredAt, a.OfficerID, a.Status)
	if err != nil {
		return fmt.Errorf("insert arrest: %w", err)
	}
	return nil
}

func (r *Repo) InsertFine(ctx context.Context, q database.Queryer, f *entity.Fine) error {
	const stmt = `INSERT INTO fines (` + fineColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := q.ExecContext(ctx, stmt,
		f.ID, f.CitizenKey, f.IdentifierNumber, f.Reason, f.Amount, f.EvidenceURL, f.OccurredAt, f.OfficerID, f.Status)
	if err != nil {
		return fmt.Errorf("insert fine: %w", err)
	}
	return nil
}

// ArrestsByStatus lists the citizen's arrests in status, oldest first.
func (r *Repo) ArrestsByStatus(ctx context.Context, q database.Queryer, citizenKey, status string) ([]*entity.Arrest, error) {
	out := []*entity.Arrest{}
	err := sqlx.SelectContext(ctx, q, &out,
		`SELECT `+arrestColumns+` FROM arrests WHERE citizen_key=$1 AND status=$2 ORDER BY recorded_at`, citizenKey, status)
	return out, err
}

// FinesByStatus lists the citizen's fines in status, oldest first.
func (r *Repo) FinesByStatus(ctx context.Context, q database.Queryer, citizenKey, status string) ([]*entity.Fine, error) {
	out := []*entity.Fine{}
	err := sqlx.SelectContext(ctx, q, &out,
		`SELECT `+fineColumns+` FROM fines WHERE citizen_key=$1 AND status=$2 ORDER BY recorded_at`, citizenKey, status)
	return out, err
}

// DeleteArrests removes every arrest of citizenKey and returns the deleted rows.
func (r *Repo) DeleteArrests(ctx context.Context, q database.Queryer, citizenKey string) ([]*entity.Arrest, error) {
	out := []*entity.Arrest{}
	err := sqlx.SelectContext(ctx, q, &out, `DELETE FROM arrests WHERE citizen_key=$1 RETURNING `+arrestColumns, citizenKey)
	return out, err
}

// DeleteFines removes every fine of citizenKey and returns the deleted rows.
func (r *Repo) DeleteFines(ctx context.Context, q database.Queryer, citizenKey string) ([]*entity.Fine, error) {
	out := []*entity.Fine{}
	err := sqlx.SelectContext(ctx, q, &out, `DELETE FROM fines WHERE citizen_key=$1 RETURNING `+fineColumns, citizenKey)
	return out, err
}
