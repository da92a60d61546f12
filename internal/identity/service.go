package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
)

const (
	// DateLayout is DD-MM-YYYY, used for birth, issue and expiry dates.
	DateLayout = "02-01-2006"

	MinAge        = 18
	MaxAge        = 80
	validityYears = 5
)

var (
	ErrNoIdentity          = apperr.New(apperr.KindNotFound, "no_identity", "citizen_key", "citizen has no identity")
	ErrNotFound            = apperr.New(apperr.KindNotFound, "identity_not_found", "citizen_key", "identity not found")
	ErrAlreadyExists       = apperr.New(apperr.KindConflict, "identity_exists", "citizen_key", "identity already exists")
	ErrHasDependents       = apperr.New(apperr.KindConflict, "identity_has_dependents", "citizen_key", "identity still has licenses, assets or codes")
	ErrMissingField        = apperr.New(apperr.KindValidation, "missing_field", "", "required field is empty")
	ErrInvalidBirthDate    = apperr.New(apperr.KindValidation, "invalid_birth_date", "birth_date", "birth date must be DD-MM-YYYY with age between 18 and 80")
	ErrInvalidSex          = apperr.New(apperr.KindValidation, "invalid_sex", "sex", "sex must be M or F")
	ErrGenerationExhausted = apperr.New(apperr.KindInternal, "generation_exhausted", "", "could not generate a unique value")
)

// CreateInput carries the caller-supplied identity fields.
type CreateInput struct {
	CitizenKey      string
	FirstName       string
	SecondName      string
	PaternalSurname string
	MaternalSurname string
	BirthDate       string
	Nationality     string
	Sex             string
	ProfileHandle   string
	AvatarURL       string
}

// Service is the identity registry. It is safe for concurrent use.
type Service struct {
	db          *database.Manager
	repo        *repo.Repo
	clock       clockwork.Clock
	logger      *zap.SugaredLogger
	metrics     *metrics.Metrics
	identifiers IdentifierSource
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithIdentifierSource replaces the random identifier generator.
func WithIdentifierSource(src IdentifierSource) Option {
	return func(s *Service) { s.identifiers = src }
}

func NewService(db *database.Manager, opts ...Option) *Service {
	s := &Service{
		db:          db,
		repo:        repo.NewRepo(),
		clock:       clockwork.NewRealClock(),
		logger:      zap.NewNop().Sugar(),
		identifiers: RandomIdentifiers(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasIdentity reports whether citizenKey holds an identity.
func (s *Service) HasIdentity(ctx context.Context, citizenKey string) (bool, error) {
	var ok bool
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		ok, err = s.repo.Exists(ctx, q, citizenKey)
		return err
	})
	return ok, err
}

// Get returns the identity of citizenKey.
func (s *Service) Get(ctx context.Context, citizenKey string) (*entity.Identity, error) {
	var out *entity.Identity
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Get(ctx, q, citizenKey)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound.WithValue(citizenKey)
		}
		return nil, err
	}
	return out, nil
}

// CreateIdentity validates in, assigns a fresh identifier number and stores
// the identity. A caller can hold at most one identity; concurrent creations
// for the same key resolve to one success and ErrAlreadyExists.
func (s *Service) CreateIdentity(ctx context.Context, in CreateInput) (*entity.Identity, error) {
	row, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	err = s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		exists, err := s.repo.Exists(ctx, q, row.CitizenKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyExists.WithValue(row.CitizenKey)
		}
		for attempt := 1; attempt <= MaxGenerationAttempts; attempt++ {
			row.IdentifierNumber = s.identifiers()
			taken, err := s.repo.IdentifierExists(ctx, q, row.IdentifierNumber)
			if err != nil {
				return err
			}
			if taken {
				continue
			}
			err = s.repo.Insert(ctx, q, row)
			if err == nil {
				return nil
			}
			constraint, dup := database.UniqueViolation(err)
			switch {
			case dup && constraint == repo.ConstraintPrimaryKey:
				return ErrAlreadyExists.WithValue(row.CitizenKey)
			case dup && constraint == repo.ConstraintIdentifier:
				s.logger.Debugw("identifier collided on insert, regenerating", "identifier", row.IdentifierNumber, "attempt", attempt)
				continue
			default:
				return err
			}
		}
		return ErrGenerationExhausted.WithValue("identifier_number")
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.metrics.IncConflict(ErrAlreadyExists.Code)
		}
		return nil, err
	}

	s.metrics.IncRegistration("identity")
	s.logger.Infow("identity created", "citizen_key", row.CitizenKey, "identifier", row.IdentifierNumber)
	return row, nil
}

// ExpungeIdentity deletes the identity of citizenKey and returns the removed
// row. Licenses, assets and codes are not cascaded; while any still
// reference the identity the delete is refused with ErrHasDependents.
func (s *Service) ExpungeIdentity(ctx context.Context, citizenKey string) (*entity.Identity, error) {
	var out *entity.Identity
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Delete(ctx, q, citizenKey)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound.WithValue(citizenKey)
	default:
		if _, fk := database.ForeignKeyViolation(err); fk {
			s.metrics.IncConflict(ErrHasDependents.Code)
			return nil, ErrHasDependents.WithValue(citizenKey).Wrap(err)
		}
		return nil, err
	}
	s.logger.Infow("identity expunged", "citizen_key", citizenKey, "identifier", out.IdentifierNumber)
	return out, nil
}

func (s *Service) validate(in CreateInput) (*entity.Identity, error) {
	required := []struct{ name, value string }{
		{"citizen_key", in.CitizenKey},
		{"first_name", in.FirstName},
		{"second_name", in.SecondName},
		{"paternal_surname", in.PaternalSurname},
		{"maternal_surname", in.MaternalSurname},
		{"birth_date", in.BirthDate},
		{"nationality", in.Nationality},
		{"sex", in.Sex},
		{"profile_handle", in.ProfileHandle},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return nil, ErrMissingField.WithField(f.name)
		}
	}

	now := s.clock.Now()
	birth, err := time.ParseInLocation(DateLayout, strings.TrimSpace(in.BirthDate), now.Location())
	if err != nil {
		return nil, ErrInvalidBirthDate.WithValue(in.BirthDate).Wrap(err)
	}
	age := AgeAt(birth, now)
	if age < MinAge || age > MaxAge {
		return nil, ErrInvalidBirthDate.WithValue(in.BirthDate)
	}

	sex := strings.ToUpper(strings.TrimSpace(in.Sex))
	if sex != "M" && sex != "F" {
		return nil, ErrInvalidSex.WithValue(in.Sex)
	}

	return &entity.Identity{
		CitizenKey:      strings.TrimSpace(in.CitizenKey),
		FirstName:       strings.TrimSpace(in.FirstName),
		SecondName:      strings.TrimSpace(in.SecondName),
		PaternalSurname: strings.TrimSpace(in.PaternalSurname),
		MaternalSurname: strings.TrimSpace(in.MaternalSurname),
		BirthDate:       birth.Format(DateLayout),
		Age:             age,
		Nationality:     strings.TrimSpace(in.Nationality),
		Sex:             sex,
		ProfileHandle:   strings.TrimSpace(in.ProfileHandle),
		AvatarURL:       strings.TrimSpace(in.AvatarURL),
		IssuedOn:        now.Format(DateLayout),
		ExpiresOn:       now.AddDate(validityYears, 0, 0).Format(DateLayout),
	}, nil
}

// AgeAt returns completed years between birth and now.
func AgeAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}
