// Package auth issues and verifies the operator bearer tokens that guard the
// registry lookups.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-registry/internal/httpx"
)

const (
	Issuer     = "service-registry"
	DefaultTTL = 12 * time.Hour
)

var (
	ErrNoSecret     = errors.New("operator secret is empty")
	ErrUnauthorized = apperr.New(apperr.KindUnauthorized, "unauthorized", "", "missing or invalid operator token")
)

// Claims identify an operator. The subject is the operator id.
type Claims struct {
	jwt.RegisteredClaims
}

// Authority signs and checks HS256 operator tokens.
type Authority struct {
	secret []byte
	clock  clockwork.Clock
}

type Option func(*Authority)

func WithClock(c clockwork.Clock) Option { return func(a *Authority) { a.clock = c } }

func NewAuthority(secret string, opts ...Option) (*Authority, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	a := &Authority{secret: []byte(secret), clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue returns a signed token for operatorID valid for ttl.
func (a *Authority) Issue(operatorID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := a.clock.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   operatorID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses token and returns its claims, or ErrUnauthorized.
func (a *Authority) Verify(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return nil, ErrUnauthorized.Wrap(err)
	}
	if claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	return &claims, nil
}

type operatorKey struct{}

// OperatorFrom returns the operator id stored by Middleware.
func OperatorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operatorKey{}).(string)
	return id, ok
}

// Middleware rejects requests without a valid "Authorization: Bearer" token.
func (a *Authority) Middleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found {
				httpx.WriteError(w, logger, ErrUnauthorized)
				return
			}
			claims, err := a.Verify(strings.TrimSpace(raw))
			if err != nil {
				httpx.WriteError(w, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), operatorKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
