package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-gateway/internal/errs"
)

// Resolver turns a connection credential into a user id.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (int, error)
}

// UserLookup resolves usernames carried in the subject claim.
type UserLookup interface {
	IDByUsername(ctx context.Context, username string) (int, error)
}

// Claims mirrors the tokens issued by the account service. Subject is kept
// raw because older tokens carry {"id": n} instead of a string.
type Claims struct {
	Subject json.RawMessage `json:"sub"`
	jwt.RegisteredClaims
}

// JWTResolver validates HS256 tokens.
type JWTResolver struct {
	secret []byte
	users  UserLookup
}

// NewJWTResolver builds a resolver. users may be nil, in which case
// username subjects are rejected.
func NewJWTResolver(secret string, users UserLookup) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), users: users}
}

// Resolve accepts a raw token or a "Bearer <token>" header value.
func (r *JWTResolver) Resolve(ctx context.Context, credential string) (int, error) {
	raw := StripBearer(credential)
	if raw == "" {
		return 0, fmt.Errorf("missing token: %w", errs.ErrUnauthenticated)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %v: %w", err, errs.ErrUnauthenticated)
	}

	return r.subjectID(ctx, claims.Subject)
}

func (r *JWTResolver) subjectID(ctx context.Context, sub json.RawMessage) (int, error) {
	if len(sub) == 0 || string(sub) == "null" {
		return 0, fmt.Errorf("token has no subject: %w", errs.ErrUnauthenticated)
	}

	switch sub[0] {
	case '{':
		var legacy struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(sub, &legacy); err != nil {
			return 0, fmt.Errorf("malformed subject: %w", errs.ErrUnauthenticated)
		}
		return positiveID(legacy.ID.String())
	case '"':
		var s string
		if err := json.Unmarshal(sub, &s); err != nil {
			return 0, fmt.Errorf("malformed subject: %w", errs.ErrUnauthenticated)
		}
		if id, err := positiveID(s); err == nil {
			return id, nil
		}
		return r.lookup(ctx, s)
	default:
		return positiveID(string(sub))
	}
}

func (r *JWTResolver) lookup(ctx context.Context, username string) (int, error) {
	if r.users == nil || strings.TrimSpace(username) == "" {
		return 0, fmt.Errorf("unknown subject %q: %w", username, errs.ErrUnauthenticated)
	}
	id, err := r.users.IDByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return 0, fmt.Errorf("unknown user %q: %w", username, errs.ErrUnauthenticated)
	case err != nil:
		return 0, fmt.Errorf("resolve user %q: %w", username, err)
	}
	return id, nil
}

func positiveID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q: %w", s, errs.ErrUnauthenticated)
	}
	return id, nil
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(credential string) string {
	credential = strings.TrimSpace(credential)
	if len(credential) > 7 && strings.EqualFold(credential[:7], "bearer ") {
		return strings.TrimSpace(credential[7:])
	}
	return credential
}

// GenerateToken signs an HS256 token whose subject is sub. Used by local
// tooling and tests.
func GenerateToken(secret string, sub any, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
