package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RoleTransport marks tokens issued to the chat transport itself.
const RoleTransport = "transport"

var ErrUnauthorized = errors.New("unauthorized")

// Claims carry the account id in sub.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Principal struct {
	AccountID int64
	Role      string
}

type principalKey struct{}

func principalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator validates HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Parse validates raw and returns the principal it names.
func (a *Authenticator) Parse(raw string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := new(Claims)

	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, fmt.Errorf("%w: subject %q is not an account id", ErrUnauthorized, claims.Subject)
	}

	return Principal{AccountID: id, Role: claims.Role}, nil
}

// Sign issues a token for accountID. Used by tooling and tests.
func (a *Authenticator) Sign(accountID int64, role string) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatInt(accountID, 10),
			Issuer:  a.issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		p, err := a.Parse(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// RequireRole allows only principals with role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok || p.Role != role {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Eligibility decides whether an account may use the account routes.
type Eligibility interface {
	Eligible(ctx context.Context, accountID int64) (bool, error)
}

type AllowAll struct{}

func (AllowAll) Eligible(context.Context, int64) (bool, error) {
	return true, nil
}

// EligibilityFunc adapts a function to Eligibility.
type EligibilityFunc func(ctx context.Context, accountID int64) (bool, error)

func (f EligibilityFunc) Eligible(ctx context.Context, accountID int64) (bool, error) {
	return f(ctx, accountID)
}

// RedisSetEligibility admits accounts that are members of a Redis set,
// e.g. the subscribers of the required channel kept in sync by the
// transport.
type RedisSetEligibility struct {
	rdb *redis.Client
	key string
}

func NewRedisSetEligibility(rdb *redis.Client, key string) *RedisSetEligibility {
	return &RedisSetEligibility{rdb: rdb, key: key}
}

func (e *RedisSetEligibility) Eligible(ctx context.Context, accountID int64) (bool, error) {
	ok, err := e.rdb.SIsMember(ctx, e.key, strconv.FormatInt(accountID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", e.key, err)
	}

	return ok, nil
}

// Guard runs the eligibility check before every account route.
func Guard(el Eligibility, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing principal")
				return
			}

			allowed, err := el.Eligible(r.Context(), p.AccountID)
			if err != nil {
				log.Error("eligibility check failed", zap.Int64("account_id", p.AccountID), zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "eligibility check unavailable")

				return
			}

			if !allowed {
				writeError(w, http.StatusForbidden, "not eligible")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
