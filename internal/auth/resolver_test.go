package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/errs"
)

const secret = "test-secret"

type usersStub map[string]int

func (u usersStub) IDByUsername(_ context.Context, username string) (int, error) {
	if id, ok := u[username]; ok {
		return id, nil
	}
	return 0, errs.ErrNotFound
}

func TestResolveSubjects(t *testing.T) {
	resolver := NewJWTResolver(secret, usersStub{"alice": 7})

	cases := []struct {
		name string
		sub  any
		want int
	}{
		{"numeric string", "42", 42},
		{"number", 13, 13},
		{"username", "alice", 7},
		{"legacy object", map[string]any{"id": 9}, 9},
		{"legacy object string id", map[string]any{"id": "11"}, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := GenerateToken(secret, tc.sub, time.Minute)
			require.NoError(t, err)

			id, err := resolver.Resolve(context.Background(), token)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)

			id, err = resolver.Resolve(context.Background(), "Bearer "+token)
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestResolveRejects(t *testing.T) {
	resolver := NewJWTResolver(secret, usersStub{})

	expired, err := GenerateToken(secret, "1", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := GenerateToken("other", "1", time.Minute)
	require.NoError(t, err)
	unknownUser, err := GenerateToken(secret, "bob", time.Minute)
	require.NoError(t, err)
	zero, err := GenerateToken(secret, "0", time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"expired":      expired,
		"wrong key":    wrongKey,
		"unknown user": unknownUser,
		"zero id":      zero,
		"alg none":     none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), token)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrUnauthenticated)
		})
	}
}

func TestResolveWithoutUserLookup(t *testing.T) {
	token, err := GenerateToken(secret, "alice", time.Minute)
	require.NoError(t, err)

	_, err = NewJWTResolver(secret, nil).Resolve(context.Background(), token)
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)
}

func TestStripBearer(t *testing.T) {
	assert.Equal(t, "abc", StripBearer("Bearer abc"))
	assert.Equal(t, "abc", StripBearer("bearer  abc "))
	assert.Equal(t, "abc", StripBearer("abc"))
	assert.Equal(t, "", StripBearer("  "))
}
