package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-registry/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
)

const (
	// ConstraintPrimaryKey guards one identity per citizen key.
	ConstraintPrimaryKey = "pk_identities"
	// ConstraintIdentifier guards identifier number uniqueness.
	ConstraintIdentifier = "uq_identities_identifier"
)

const columns = `citizen_key, identifier_number, first_name, second_name, paternal_surname,
	maternal_surname, birth_date, age, nationality, sex, profile_handle, avatar_url,
	issued_on, expires_on`

// Repo provides data access for the identities table. It is stateless; every
// method runs on the session or transaction it is handed.
type Repo struct{}

func NewRepo() *Repo { return &Repo{} }

// EnsureTable creates the identities table if not exists (idempotent).
func (r *Repo) EnsureTable(ctx context.Context, q database.Queryer) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS identities (
  citizen_key varchar(64) NOT NULL,
  identifier_number varchar(16) NOT NULL,
  first_name TEXT NOT NULL,
  second_name TEXT NOT NULL,
  paternal_surname TEXT NOT NULL,
  maternal_surname TEXT NOT NULL,
  birth_date varchar(10) NOT NULL,
  age INTEGER NOT NULL,
  nationality TEXT NOT NULL,
  sex char(1) NOT NULL,
  profile_handle TEXT NOT NULL,
  avatar_url TEXT NOT NULL DEFAULT '',
  issued_on varchar(10) NOT NULL,
  expires_on varchar(10) NOT NULL,
  CONSTRAINT pk_identities PRIMARY KEY (citizen_key),
  CONSTRAINT uq_identities_identifier UNIQUE (identifier_number)
);`
	_, err := q.ExecContext(ctx, ddl)
	return err
}

// Exists reports whether citizenKey has an identity.
func (r *Repo) Exists(ctx context.Context, q database.Queryer, citizenKey string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `SELECT EXISTS (SELECT 1 FROM identities WHERE citizen_key=$1)`, citizenKey)
	return ok, err
}

// IdentifierExists reports whether an identifier number is already assigned.
func (r *Repo) IdentifierExists(ctx context.Context, q database.Queryer, identifier string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `SELECT EXISTS (SELECT 1 FROM identities WHERE identifier_number=$1)`, identifier)
	return ok, err
}

// Get returns the identity for citizenKey or sql.ErrNoRows.
func (r *Repo) Get(ctx context.Context, q database.Queryer, citizenKey string) (*entity.Identity, error) {
	var row entity.Identity
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+columns+` FROM identities WHERE citizen_key=$1`, citizenKey); err != nil {
		return nil, err
	}
	return &row, nil
}

// Insert stores a new identity row.
func (r *Repo) Insert(ctx context.Context, q database.Queryer, in *entity.Identity) error {
	const stmt = `INSERT INTO identities (` + columns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := q.ExecContext(ctx, stmt,
		in.CitizenKey, in.IdentifierNumber, in.FirstName, in.SecondName, in.PaternalSurname,
		in.MaternalSurname, in.BirthDate, in.Age, in.Nationality, in.Sex, in.ProfileHandle, in.AvatarURL,
		in.IssuedOn, in.ExpiresOn,
	)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// Delete removes the identity and returns the deleted row, or sql.ErrNoRows.
func (r *Repo) Delete(ctx context.Context, q database.Queryer, citizenKey string) (*entity.Identity, error) {
	var row entity.Identity
	if err := sqlx.GetContext(ctx, q, &row, `DELETE FROM identities WHERE citizen_key=$1 RETURNING `+columns, citizenKey); err != nil {
		return nil, err
	}
	return &row, nil
}
