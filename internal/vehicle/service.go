package vehicle

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	identityrepo "github.com/ovaphlow/pitchfork/service-registry/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment"
	"github.com/ovaphlow/pitchfork/service-registry/internal/vehicle/entity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/vehicle/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

// DateLayout is DD/MM/YYYY.
const DateLayout = "02/01/2006"

const minYear = 1900

var plateRe = regexp.MustCompile(`^[A-Z]{3}-\d{3}$`)

var (
	ErrInvalidPlate     = apperr.New(apperr.KindValidation, "invalid_plate", "plate", "plate must look like ABC-123")
	ErrDuplicatePlate   = apperr.New(apperr.KindConflict, "duplicate_plate", "plate", "plate already registered")
	ErrInvalidYear      = apperr.New(apperr.KindValidation, "invalid_year", "year", "year out of range")
	ErrInvalidAttribute = apperr.New(apperr.KindValidation, "invalid_attribute", "", "value not allowed")
	ErrNotFound         = apperr.New(apperr.KindNotFound, "vehicle_not_found", "plate", "vehicle not found")
)

// ValidPlate reports whether plate is three upper-case letters, a dash and three digits.
func ValidPlate(plate string) bool { return plateRe.MatchString(plate) }

// RegisterInput describes a vehicle to register.
type RegisterInput struct {
	CitizenKey       string
	Plate            string
	Make             string
	Model            string
	Category         string
	Year             int
	Color            string
	InspectionStatus string
	PermitStatus     string
	PaymentCode      string
	ImageURL         string
	RegistrarID      string
}

// Service is the vehicle registry.
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

// RegisterVehicle validates in and then, in one transaction, inserts the
// vehicle and consumes its payment code. Either both happen or neither does.
func (s *Service) RegisterVehicle(ctx context.Context, in RegisterInput) (*entity.Vehicle, error) {
	now := s.clock.Now()
	v := &entity.Vehicle{
		CitizenKey:       in.CitizenKey,
		Plate:            strings.TrimSpace(in.Plate),
		Make:             strings.TrimSpace(in.Make),
		Model:            strings.TrimSpace(in.Model),
		Category:         strings.TrimSpace(in.Category),
		Year:             in.Year,
		Color:            strings.TrimSpace(in.Color),
		InspectionStatus: strings.TrimSpace(in.InspectionStatus),
		PermitStatus:     strings.TrimSpace(in.PermitStatus),
		PaymentCode:      payment.NormalizeCode(in.PaymentCode),
		ImageURL:         strings.TrimSpace(in.ImageURL),
		RegisteredOn:     now.Format(DateLayout),
		RegistrarID:      in.RegistrarID,
	}

	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		return s.precheck(ctx, q, v, now.Year())
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}

	v.ID = s.ids.Next()
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx database.Queryer) error {
		if err := s.repo.Insert(ctx, tx, v); err != nil {
			return err
		}
		return s.codes.Consume(ctx, tx, v.PaymentCode, v.CitizenKey, now.Format(payment.TimestampLayout))
	})
	if err != nil {
		err = registrationError(err, v)
		s.countConflict(err)
		s.logger.Warnw("vehicle registration rolled back", "plate", v.Plate, "citizen_key", v.CitizenKey, "err", err)
		return nil, err
	}

	s.metrics.IncRegistration("vehicle")
	s.logger.Infow("vehicle registered",
		"plate", v.Plate,
		"citizen_key", v.CitizenKey,
		"code", v.PaymentCode,
		"registrar", v.RegistrarID,
	)
	return v, nil
}

func (s *Service) precheck(ctx context.Context, q database.Queryer, v *entity.Vehicle, year int) error {
	ok, err := s.identities.Exists(ctx, q, v.CitizenKey)
	if err != nil {
		return err
	}
	if !ok {
		return identity.ErrNoIdentity.WithValue(v.CitizenKey)
	}
	if !ValidPlate(v.Plate) {
		return ErrInvalidPlate.WithValue(v.Plate)
	}
	taken, err := s.repo.PlateExists(ctx, q, v.Plate)
	if err != nil {
		return err
	}
	if taken {
		return ErrDuplicatePlate.WithValue(v.Plate)
	}
	if v.Year < minYear || v.Year > year+1 {
		return ErrInvalidYear.WithValue(strconv.Itoa(v.Year))
	}
	if err := s.checkAttributes(v); err != nil {
		return err
	}
	return s.codes.Check(ctx, q, v.PaymentCode, v.CitizenKey)
}

func (s *Service) checkAttributes(v *entity.Vehicle) error {
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"make", v.Make, nil},
		{"model", v.Model, nil},
		{"category", v.Category, s.catalog.VehicleCategories},
		{"color", v.Color, s.catalog.VehicleColors},
		{"inspection_status", v.InspectionStatus, s.catalog.InspectionStatuses},
		{"permit_status", v.PermitStatus, s.catalog.PermitStatuses},
	}
	for _, c := range checks {
		if c.value == "" || !catalog.Allowed(c.allowed, c.value) {
			return ErrInvalidAttribute.WithField(c.field).WithValue(c.value)
		}
	}
	return nil
}

// registrationError maps a failed atomic step to the error reported to callers.
func registrationError(err error, v *entity.Vehicle) error {
	if constraint, dup := database.UniqueViolation(err); dup && constraint == repo.ConstraintPlate {
		return ErrDuplicatePlate.WithValue(v.Plate)
	}
	switch constraint, _ := database.ForeignKeyViolation(err); constraint {
	case repo.ConstraintIdentity:
		return identity.ErrNoIdentity.WithValue(v.CitizenKey)
	case repo.ConstraintPaymentCode:
		return payment.ErrCodeNotFound.WithValue(v.PaymentCode)
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

// GetVehicle returns the vehicle registered under plate.
func (s *Service) GetVehicle(ctx context.Context, plate string) (*entity.Vehicle, error) {
	var out *entity.Vehicle
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Get(ctx, q, strings.TrimSpace(plate))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound.WithValue(plate)
	}
	return out, err
}

// ListVehicles returns the vehicles owned by citizenKey.
func (s *Service) ListVehicles(ctx context.Context, citizenKey string) ([]*entity.Vehicle, error) {
	var out []*entity.Vehicle
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.ListByCitizen(ctx, q, citizenKey)
		return err
	})
	return out, err
}

// DeleteVehicle removes a vehicle and returns the deleted row. The consumed
// payment code stays used.
func (s *Service) DeleteVehicle(ctx context.Context, plate string) (*entity.Vehicle, error) {
	var out *entity.Vehicle
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Delete(ctx, q, strings.TrimSpace(plate))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound.WithValue(plate)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Infow("vehicle deleted", "plate", out.Plate, "citizen_key", out.CitizenKey)
	return out, nil
}
