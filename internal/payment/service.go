package payment

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	identityrepo "github.com/ovaphlow/pitchfork/service-registry/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment/entity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
)

// TimestampLayout is DD/MM/YYYY HH:MM:SS, used for created and used times.
const TimestampLayout = "02/01/2006 15:04:05"

var (
	ErrInvalidAmount   = apperr.New(apperr.KindValidation, "invalid_amount", "amount", "amount must be positive")
	ErrCodeNotFound    = apperr.New(apperr.KindNotFound, "code_not_found", "code", "payment code not found")
	ErrCodeAlreadyUsed = apperr.New(apperr.KindConflict, "code_already_used", "code", "payment code already used")
)

// ErrRegistrationFailed wraps an unexpected failure of an atomic registration step.
var ErrRegistrationFailed = apperr.New(apperr.KindInternal, "registration_failed", "", "registration failed")

// IssueInput describes a payment code to issue.
type IssueInput struct {
	CitizenKey  string
	Amount      int64
	Description string
	IssuerID    string
}

// Service is the payment code ledger.
type Service struct {
	db         *database.Manager
	repo       *repo.Repo
	identities *identityrepo.Repo
	clock      clockwork.Clock
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	codes      func() string
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

// WithCodeSource replaces the random code generator.
func WithCodeSource(f func() string) Option { return func(s *Service) { s.codes = f } }

func NewService(db *database.Manager, opts ...Option) *Service {
	s := &Service{
		db:         db,
		repo:       repo.NewRepo(),
		identities: identityrepo.NewRepo(),
		clock:      clockwork.NewRealClock(),
		logger:     zap.NewNop().Sugar(),
		codes:      NewCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewCode returns the first 8 hex characters of a random UUID, upper-cased.
func NewCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// IssueCode creates an unused payment code for an existing identity.
func (s *Service) IssueCode(ctx context.Context, in IssueInput) (*entity.PaymentCode, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount.WithValue(strconv.FormatInt(in.Amount, 10))
	}
	pc := &entity.PaymentCode{
		CitizenKey:  in.CitizenKey,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   s.clock.Now().Format(TimestampLayout),
		IssuerID:    in.IssuerID,
	}

	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		ok, err := s.identities.Exists(ctx, q, in.CitizenKey)
		if err != nil {
			return err
		}
		if !ok {
			return identity.ErrNoIdentity.WithValue(in.CitizenKey)
		}
		for attempt := 1; attempt <= identity.MaxGenerationAttempts; attempt++ {
			pc.Code = s.codes()
			taken, err := s.repo.Exists(ctx, q, pc.Code)
			if err != nil {
				return err
			}
			if taken {
				continue
			}
			err = s.repo.Insert(ctx, q, pc)
			if constraint, dup := database.UniqueViolation(err); dup && constraint == repo.ConstraintPrimaryKey {
				continue
			}
			if _, fk := database.ForeignKeyViolation(err); fk {
				return identity.ErrNoIdentity.WithValue(in.CitizenKey)
			}
			return err
		}
		return identity.ErrGenerationExhausted.WithValue("code")
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCodesIssued()
	s.logger.Infow("payment code issued",
		"code", pc.Code,
		"citizen_key", pc.CitizenKey,
		"amount", pc.Amount,
		"issuer", pc.IssuerID,
	)
	return pc, nil
}

// GetCode returns a code by value.
func (s *Service) GetCode(ctx context.Context, code string) (*entity.PaymentCode, error) {
	var out *entity.PaymentCode
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.Get(ctx, q, NormalizeCode(code))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeNotFound.WithValue(code)
	}
	return out, err
}

// ListCodes returns every code issued to citizenKey.
func (s *Service) ListCodes(ctx context.Context, citizenKey string) ([]*entity.PaymentCode, error) {
	var out []*entity.PaymentCode
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.ListByCitizen(ctx, q, citizenKey)
		return err
	})
	return out, err
}

// DeleteCodes removes every code of citizenKey that no vehicle or property
// was paid with, used or not. Run it after removing the citizen's assets and
// before ExpungeIdentity.
func (s *Service) DeleteCodes(ctx context.Context, citizenKey string) ([]*entity.PaymentCode, error) {
	var out []*entity.PaymentCode
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		out, err = s.repo.DeleteUnreferenced(ctx, q, citizenKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("payment codes deleted", "citizen_key", citizenKey, "count", len(out))
	return out, nil
}
