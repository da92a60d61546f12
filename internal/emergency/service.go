// Package emergency keeps the log of emergency alerts. Delivering the alert
// to the services is handled elsewhere; this package decides who is notified
// and records it.
package emergency

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/emergency/entity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/emergency/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

const (
	ServiceCarabineros = "CARABINEROS DE CHILE"
	ServicePDI         = "Policía de Investigaciones"
	ServiceBomberos    = "Bomberos de Chile"
	ServiceCostanera   = "Costanera Norte"
	ServiceSeguridad   = "Seguridad Ciudadana"
	ServiceSAMU        = "SAMU"

	// TimestampLayout is the format of ReportedAt.
	TimestampLayout = "2006-01-02 15:04:05"

	DefaultRecentLimit = 20
	maxRecentLimit     = 200
)

// Services is the closed set of services an alert can be addressed to.
var Services = []string{
	ServiceCarabineros,
	ServicePDI,
	ServiceBomberos,
	ServiceCostanera,
	ServiceSeguridad,
	ServiceSAMU,
}

var (
	ErrInvalidService = apperr.New(apperr.KindValidation, "invalid_service", "service", "unknown emergency service")
	ErrMissingField   = apperr.New(apperr.KindValidation, "missing_field", "", "required field is empty")
)

type ReportInput struct {
	CitizenKey string
	Reason     string
	Service    string
	Location   string
}

func canonical(service string) (string, bool) {
	service = strings.TrimSpace(service)
	for _, s := range Services {
		if strings.EqualFold(s, service) {
			return s, true
		}
	}
	return "", false
}

// Notify resolves the services to alert for a request. Either police
// service alerts both. The second result is false for an unknown service.
func Notify(service string) ([]string, bool) {
	s, ok := canonical(service)
	switch {
	case !ok:
		return nil, false
	case s == ServiceCarabineros || s == ServicePDI:
		return []string{ServiceCarabineros, ServicePDI}, true
	default:
		return []string{s}, true
	}
}

type Service struct {
	db      *database.Manager
	repo    *repo.Repo
	ids     *utilities.IDGenerator
	clock   clockwork.Clock
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
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

func WithIDGenerator(g *utilities.IDGenerator) Option { return func(s *Service) { s.ids = g } }

func NewService(db *database.Manager, opts ...Option) *Service {
	s := &Service{
		db:     db,
		repo:   repo.NewRepo(),
		ids:    utilities.DefaultIDGenerator(),
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report validates and persists an alert and returns it with the notified services.
func (s *Service) Report(ctx context.Context, in ReportInput) (*entity.Emergency, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, ErrMissingField.WithField("reason")
	}
	if strings.TrimSpace(in.Location) == "" {
		return nil, ErrMissingField.WithField("location")
	}
	service, ok := canonical(in.Service)
	if !ok {
		return nil, ErrInvalidService.WithValue(in.Service)
	}
	notified, _ := Notify(service)

	e := &entity.Emergency{
		ID:               s.ids.Next(),
		CitizenKey:       in.CitizenKey,
		Reason:           strings.TrimSpace(in.Reason),
		Service:          service,
		Location:         strings.TrimSpace(in.Location),
		ReportedAt:       s.clock.Now().Format(TimestampLayout),
		NotifiedServices: strings.Join(notified, ", "),
	}

	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		return s.repo.Insert(ctx, q, e)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRegistration("emergency")
	s.logger.Infow("emergency reported", "id", e.ID, "citizen_key", e.CitizenKey, "notified", e.NotifiedServices)
	return e, nil
}

// Recent lists the latest alerts. A non-positive limit uses DefaultRecentLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]*entity.Emergency, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}
	var out []*entity.Emergency
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Recent(ctx, q, limit)
		return err
	})
	return out, err
}
