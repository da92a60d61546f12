package justice

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	identityrepo "github.com/ovaphlow/pitchfork/service-registry/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-registry/internal/justice/entity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/justice/repo"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

// TimestampLayout is the format of OccurredAt.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	ErrInvalidSentence = apperr.New(apperr.KindValidation, "invalid_sentence", "sentence", "sentence duration is required")
	ErrMissingReason   = apperr.New(apperr.KindValidation, "missing_field", "reason", "reason is required")
)

// ErrInvalidAmount shares its code with payment.ErrInvalidAmount.
var ErrInvalidAmount = apperr.New(apperr.KindValidation, "invalid_amount", "fine_amount", "fine amount out of range")

type ArrestInput struct {
	CitizenKey  string
	Reason      string
	Sentence    string
	FineAmount  int64
	EvidenceURL string
	OfficerID   string
}

type FineInput struct {
	CitizenKey  string
	Reason      string
	Amount      int64
	EvidenceURL string
	OfficerID   string
}

// Records is the open history of a citizen.
type Records struct {
	Arrests []*entity.Arrest `json:"arrests"`
	Fines   []*entity.Fine   `json:"fines"`
}

// Expunged reports what ExpungeAll removed.
type Expunged struct {
	ArrestCount int              `json:"arrest_count"`
	FineCount   int              `json:"fine_count"`
	Arrests     []*entity.Arrest `json:"arrests"`
	Fines       []*entity.Fine   `json:"fines"`
}

// Service is the justice ledger.
type Service struct {
	db         *database.Manager
	repo       *repo.Repo
	identities *identityrepo.Repo
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

func WithIDGenerator(g *utilities.IDGenerator) Option { return func(s *Service) { s.ids = g } }

func NewService(db *database.Manager, opts ...Option) *Service {
	s := &Service{
		db:         db,
		repo:       repo.NewRepo(),
		identities: identityrepo.NewRepo(),
		ids:        utilities.DefaultIDGenerator(),
		clock:      clockwork.NewRealClock(),
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) identifierOf(ctx context.Context, q database.Queryer, citizenKey string) (string, error) {
	id, err := s.identities.Get(ctx, q, citizenKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", identity.ErrNoIdentity.WithValue(citizenKey)
	}
	if err != nil {
		return "", err
	}
	return id.IdentifierNumber, nil
}

// RecordArrest stores an Active arrest with a snapshot of the identifier number.
func (s *Service) RecordArrest(ctx context.Context, in ArrestInput) (*entity.Arrest, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, ErrMissingReason
	}
	if strings.TrimSpace(in.Sentence) == "" {
		return nil, ErrInvalidSentence
	}
	if in.FineAmount < 0 {
		return nil, ErrInvalidAmount.WithValue(strconv.FormatInt(in.FineAmount, 10))
	}

	a := &entity.Arrest{
		CitizenKey:  in.CitizenKey,
		Reason:      in.Reason,
		Sentence:    in.Sentence,
		FineAmount:  in.FineAmount,
		EvidenceURL: in.EvidenceURL,
		OccurredAt:  s.clock.Now().Format(TimestampLayout),
		OfficerID:   in.OfficerID,
		Status:      entity.StatusActive,
	}
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		ident, err := s.identifierOf(ctx, q, in.CitizenKey)
		if err != nil {
			return err
		}
		a.IdentifierNumber = ident
		a.ID = s.ids.Next()
		return s.repo.InsertArrest(ctx, q, a)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRegistration("arrest")
	s.logger.Infow("arrest recorded", "citizen_key", a.CitizenKey, "id", a.ID, "officer", a.OfficerID)
	return a, nil
}

// RecordFine stores a Pending fine with a snapshot of the identifier number.
func (s *Service) RecordFine(ctx context.Context, in FineInput) (*entity.Fine, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, ErrMissingReason
	}
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount.WithField("amount").WithValue(strconv.FormatInt(in.Amount, 10))
	}

	f := &entity.Fine{
		CitizenKey:  in.CitizenKey,
		Reason:      in.Reason,
		Amount:      in.Amount,
		EvidenceURL: in.EvidenceURL,
		OccurredAt:  s.clock.Now().Format(TimestampLayout),
		OfficerID:   in.OfficerID,
		Status:      entity.StatusPending,
	}
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		ident, err := s.identifierOf(ctx, q, in.CitizenKey)
		if err != nil {
			return err
		}
		f.IdentifierNumber = ident
		f.ID = s.ids.Next()
		return s.repo.InsertFine(ctx, q, f)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRegistration("fine")
	s.logger.Infow("fine recorded", "citizen_key", f.CitizenKey, "id", f.ID, "amount", f.Amount)
	return f, nil
}

// ListRecords returns the Active arrests and Pending fines of citizenKey.
func (s *Service) ListRecords(ctx context.Context, citizenKey string) (*Records, error) {
	out := &Records{}
	err := s.db.WithConnection(ctx, func(ctx context.Context, q database.Queryer) error {
		var err error
		if out.Arrests, err = s.repo.ArrestsByStatus(ctx, q, citizenKey, entity.StatusActive); err != nil {
			return err
		}
		out.Fines, err = s.repo.FinesByStatus(ctx, q, citizenKey, entity.StatusPending)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpungeAll deletes every arrest and fine of citizenKey in one transaction.
// The identity need not exist. A second call returns zero counts.
func (s *Service) ExpungeAll(ctx context.Context, citizenKey string) (*Expunged, error) {
	var out *Expunged
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx database.Queryer) error {
		arrests, err := s.repo.DeleteArrests(ctx, tx, citizenKey)
		if err != nil {
			return err
		}
		fines, err := s.repo.DeleteFines(ctx, tx, citizenKey)
		if err != nil {
			return err
		}
		out = &Expunged{
			ArrestCount: len(arrests),
			FineCount:   len(fines),
			Arrests:     arrests,
			Fines:       fines,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddExpunged("arrest", out.ArrestCount)
	s.metrics.AddExpunged("fine", out.FineCount)
	s.logger.Infow("records expunged", "citizen_key", citizenKey, "arrests", out.ArrestCount, "fines", out.FineCount)
	return out, nil
}
