package property

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	identityrepo "github.com/ovaphlow/pitchfork/service-registry/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment"
	"github.com/ovaphlow/pitchfork/service-registry/internal/property/entity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/property/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

const DateLayout = "02/01/2006"

var (
	ErrInvalidAddress   = apperr.New(apperr.KindValidation, "invalid_address", "address", "address is required")
	ErrDuplicateAddress = apperr.New(apperr.KindConflict, "duplicate_address", "address", "address already registered")
	ErrInvalidZone      = apperr.New(apperr.KindValidation, "invalid_zone", "zone", "zone not allowed")
	ErrInvalidColor     = apperr.New(apperr.KindValidation, "invalid_color", "color", "color not allowed")
	ErrInvalidFloors    = apperr.New(apperr.KindValidation, "invalid_floors", "floors", "floors must be positive")
	ErrNotFound         = apperr.New(apperr.KindNotFound, "property_not_found", "address", "property not found")
)

type RegisterInput struct {
	CitizenKey  string
	Address     string
	Zone        string
	Color       string
	Floors      int
	PaymentCode string
	ImageURL    string
	RegistrarID string
}

// Service is the property registry.
type Service struct {
	db         *database.Manager
	repo       *repo.Repo
	identities *identityrepo.Repo
	codes      *payment.Redeemer
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
		codes:      payment.NewRedeemer(),
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

// RegisterProperty validates in, then inserts the property and consumes its
// payment code in one transaction.
func (s *Service) RegisterProperty(ctx context.Context, in RegisterInput) (*entity.Property, error) {
	now := s.clock.Now()
	p := &entity.Property{
		CitizenKey:   in.CitizenKey,
		Address:      strings.TrimSpace(in.Address),
		Zone:         strings.TrimSpace(in.Zone),
		Color:        strings.TrimSpace(in.Color),
		Floors:       in.Floors,
		PaymentCode:  payment.NormalizeCode(in.PaymentCode),
		ImageURL:     strings.TrimSpace(in.ImageURL),
		RegisteredOn: now.Format(DateLayout),
		RegistrarID:  in.RegistrarID,
	}

	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		return s.precheck(ctx, q, p)
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}

	p.ID = s.ids.Next()
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx database.Queryer) error {
		if err := s.repo.Insert(ctx, tx, p); err != nil {
			return err
		}
		return s.codes.Consume(ctx, tx, p.PaymentCode, p.CitizenKey, now.Format(payment.TimestampLayout))
	})
	if err != nil {
		err = registrationError(err, p)
		s.countConflict(err)
		s.logger.Warnw("property registration rolled back", "address", p.Address, "citizen_key", p.CitizenKey, "err", err)
		return nil, err
	}

	s.metrics.IncRegistration("property")
	s.logger.Infow("property registered",
		"address", p.Address,
		"zone", p.Zone,
		"citizen_key", p.CitizenKey,
		"code", p.PaymentCode,
	)
	return p, nil
}

func (s *Service) precheck(ctx context.Context, q database.Queryer, p *entity.Property) error {
	ok, err := s.identities.Exists(ctx, q, p.CitizenKey)
	if err != nil {
		return err
	}
	if !ok {
		return identity.ErrNoIdentity.WithValue(p.CitizenKey)
	}
	if p.Address == "" {
		return ErrInvalidAddress
	}
	taken, err := s.repo.AddressExists(ctx, q, p.Address)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicateAddress.WithValue(p.Address)
	}
	if p.Zone == "" || !catalog.Allowed(s.catalog.PropertyZones, p.Zone) {
		return ErrInvalidZone.WithValue(p.Zone)
	}
	if p.Color == "" || !catalog.Allowed(s.catalog.PropertyColors, p.Color) {
		return ErrInvalidColor.WithValue(p.Color)
	}
	if p.Floors <= 0 {
		return ErrInvalidFloors.WithValue(strconv.Itoa(p.Floors))
	}
	return s.codes.Check(ctx, q, p.PaymentCode, p.CitizenKey)
}

func registrationError(err error, p *entity.Property) error {
	if constraint, dup := database.UniqueViolation(err); dup && constraint == repo.ConstraintAddress {
		return ErrDuplicateAddress.WithValue(p.Address)
	}
	switch constraint, _ := database.ForeignKeyViolation(err); constraint {
	case repo.ConstraintIdentity:
		return identity.ErrNoIdentity.WithValue(p.CitizenKey)
	case repo.ConstraintPaymentCode:
		return payment.ErrCodeNotFound.WithValue(p.PaymentCode)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return payment.ErrRegistrationFailed.Wrap(err)
}

func (s *Service) countConflict(err error) {
	if apperr.IsKind(err, apperr.KindConflict) {
		s.metrics.IncConflict(apperr.CodeOf(err))
	}
}

func (s *Service) GetProperty(ctx context.Context, address string) (*entity.Property, error) {
	var out *entity.Property
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Get(ctx, q, strings.TrimSpace(address))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound.WithValue(address)
	}
	return out, err
}

func (s *Service) ListProperties(ctx context.Context, citizenKey string) ([]*entity.Property, error) {
	var out []*entity.Property
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.ListByCitizen(ctx, q, citizenKey)
		return err
	})
	return out, err
}

// DeleteProperty removes the property at address and returns the deleted row.
func (s *Service) DeleteProperty(ctx context.Context, address string) (*entity.Property, error) {
	var out *entity.Property
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Delete(ctx, q, strings.TrimSpace(address))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound.WithValue(address)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Infow("property deleted", "address", out.Address, "citizen_key", out.CitizenKey)
	return out, nil
}
