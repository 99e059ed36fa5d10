package gateway

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenVerifier(t *testing.T) {
	verifier := NewTokenVerifier("secret", "cooplend")
	userID := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		token, err := verifier.Sign(userID, time.Hour)
		require.NoError(t, err)

		got, err := verifier.Verify(token)

		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := verifier.Sign(userID, -time.Minute)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := NewTokenVerifier("secret", "someone-else").Sign(userID, time.Hour)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject: userID.String(),
			Issuer:  "cooplend",
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.Error(t, err)
	})

	t.Run("subject is not a user id", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    "cooplend",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		assert.Error(t, err)
	})
}

func TestBearerToken(t *testing.T) {
	h := newTestHarness(t)

	tests := map[string]string{
		"Bearer abc.def.ghi": "abc.def.ghi",
		"bearer abc.def.ghi": "abc.def.ghi",
		"Basic dXNlcjpwYXNz": "",
		"Bearer":             "",
		"":                   "",
	}

	for header, want := range tests {
		req := h.requestWithAuthorization(header)
		assert.Equal(t, want, bearerToken(req), "header %q", header)
	}
}
