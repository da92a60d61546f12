package license

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	identityrepo "github.com/ovaphlow/pitchfork/service-registry/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-registry/internal/license/entity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/license/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

const (
	// DateLayout is DD/MM/YYYY.
	DateLayout    = "02/01/2006"
	validityYears = 2
)

var (
	ErrInvalidClass = apperr.New(apperr.KindValidation, "invalid_class", "class_code", "unknown license class")
	ErrAlreadyHeld  = apperr.New(apperr.KindConflict, "license_already_held", "class_code", "citizen already holds this license")
	ErrNotFound     = apperr.New(apperr.KindNotFound, "license_not_found", "class_code", "license not found")
)

// Service is the license registry.
type Service struct {
	db         *database.Manager
	repo       *repo.Repo
	identities *identityrepo.Repo
	catalog    *catalog.Catalog
	ids        *utilities.IDGenerator
	clock      clockwork.Clock
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
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

func WithCatalog(c *catalog.Catalog) Option { return func(s *Service) { s.catalog = c } }

func WithIDGenerator(g *utilities.IDGenerator) Option { return func(s *Service) { s.ids = g } }

func NewService(db *database.Manager, opts ...Option) *Service {
	s := &Service{
		db:         db,
		repo:       repo.NewRepo(),
		identities: identityrepo.NewRepo(),
		catalog:    catalog.Default(),
		ids:        utilities.DefaultIDGenerator(),
		clock:      clockwork.NewRealClock(),
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classes lists the license catalog.
func (s *Service) Classes() []catalog.LicenseClass { return s.catalog.Licenses() }

// RegisterLicense grants classCode to citizenKey, valid for two years.
func (s *Service) RegisterLicense(ctx context.Context, citizenKey, classCode, issuerID string) (*entity.License, error) {
	classCode = strings.ToUpper(strings.TrimSpace(classCode))
	now := s.clock.Now()
	l := &entity.License{
		CitizenKey: citizenKey,
		ClassCode:  classCode,
		IssuedOn:   now.Format(DateLayout),
		ExpiresOn:  now.AddDate(validityYears, 0, 0).Format(DateLayout),
		IssuerID:   issuerID,
	}

	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		ok, err := s.identities.Exists(ctx, q, citizenKey)
		if err != nil {
			return err
		}
		if !ok {
			return identity.ErrNoIdentity.WithValue(citizenKey)
		}
		label, known := s.catalog.LicenseLabel(classCode)
		if !known {
			return ErrInvalidClass.WithValue(classCode)
		}
		l.Label = label
		held, err := s.repo.Held(ctx, q, citizenKey, classCode)
		if err != nil {
			return err
		}
		if held {
			return ErrAlreadyHeld.WithValue(classCode)
		}
		l.ID = s.ids.Next()
		err = s.repo.Insert(ctx, q, l)
		if constraint, dup := database.UniqueViolation(err); dup && constraint == repo.ConstraintCitizenClass {
			return ErrAlreadyHeld.WithValue(classCode)
		}
		if constraint, fk := database.ForeignKeyViolation(err); fk && constraint == repo.ConstraintIdentity {
			return identity.ErrNoIdentity.WithValue(citizenKey)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyHeld) {
			s.metrics.IncConflict(ErrAlreadyHeld.Code)
		}
		return nil, err
	}

	s.metrics.IncRegistration("license")
	s.logger.Infow("license granted", "citizen_key", citizenKey, "class", classCode, "issuer", issuerID)
	return l, nil
}

// RevokeLicense removes one license and returns the deleted row.
func (s *Service) RevokeLicense(ctx context.Context, citizenKey, classCode string) (*entity.License, error) {
	classCode = strings.ToUpper(strings.TrimSpace(classCode))
	var out *entity.License
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Delete(ctx, q, citizenKey, classCode)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound.WithValue(classCode)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Infow("license revoked", "citizen_key", citizenKey, "class", classCode)
	return out, nil
}

// ListLicenses returns the licenses held by citizenKey.
func (s *Service) ListLicenses(ctx context.Context, citizenKey string) ([]*entity.License, error) {
	var out []*entity.License
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.ListByCitizen(ctx, q, citizenKey)
		return err
	})
	return out, err
}
