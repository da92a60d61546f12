package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
)

// Queryer is the statement surface shared by *sqlx.DB, *sqlx.Conn and *sqlx.Tx.
// Repositories accept it so the same code runs inside or outside a transaction.
type Queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// RetryPolicy bounds retries of transient lock/timeout failures.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy is 3 attempts, 1 second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second}
}

// Manager hands out scoped sessions and transactions on a connection pool.
// It is safe for concurrent use.
type Manager struct {
	db      *sqlx.DB
	policy  RetryPolicy
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

type Option func(*Manager)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(db *sqlx.DB, opts ...Option) *Manager {
	m := &Manager{db: db, policy: DefaultRetryPolicy(), logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DB exposes the pool, e.g. for shutdown pings.
func (m *Manager) DB() *sqlx.DB { return m.db }

// Ping checks the store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		m.logger.Warnw("db ping failed", "err", err)
		return ErrStorageUnavailable
	}
	return nil
}

func (m *Manager) Close() error { return m.db.Close() }

// WithConnection runs fn on a dedicated pooled connection and releases it on
// every exit path. Single-statement reads and writes go through here.
func (m *Manager) WithConnection(ctx context.Context, fn func(ctx context.Context, q Queryer) error) error {
	return m.retry(ctx, "connection", func() error {
		conn, err := m.db.Connx(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		return fn(ctx, conn)
	})
}

// WithTransaction runs fn inside BEGIN/COMMIT. Any error or panic from fn
// rolls the transaction back before it is returned (or re-panicked).
// On transient failures the whole unit of work is retried.
func (m *Manager) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Queryer) error) error {
	return m.retry(ctx, "transaction", func() error {
		tx, err := m.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()
		if err := fn(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				m.logger.Warnw("rollback failed", "err", rbErr)
			}
			return err
		}
		return tx.Commit()
	})
}

func (m *Manager) retry(ctx context.Context, op string, do func() error) error {
	attempts := m.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.policy.Delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	operation := func() error {
		attempt++
		err := do()
		switch Classify(err) {
		case ClassNone:
			return nil
		case ClassTransient:
			return err
		case ClassFatal:
			m.logger.Errorw("storage unavailable", "op", op, "err", err)
			m.metrics.IncStorageUnavailable()
			return backoff.Permanent(ErrStorageUnavailable)
		default:
			return backoff.Permanent(err)
		}
	}
	notify := func(err error, delay time.Duration) {
		m.logger.Warnw("storage locked, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"err", err,
		)
		m.metrics.IncStorageRetry()
	}

	err := backoff.RetryNotify(operation, b, notify)
	if Classify(err) == ClassTransient {
		m.logger.Errorw("storage retry budget exhausted", "op", op, "attempts", attempt, "err", err)
		m.metrics.IncStorageUnavailable()
		return ErrStorageUnavailable
	}
	return err
}
