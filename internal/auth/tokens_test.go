package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/scitech-admin-api/internal/config"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

func TestTokenServices_RoundTrip(t *testing.T) {
	for _, format := range []string{config.TokenFormatPaseto, config.TokenFormatJWT} {
		t.Run(format, func(t *testing.T) {
			svc, err := NewTokenService(format, testTokenKey)
			require.NoError(t, err)

			id := uuid.New()
			token, err := svc.CreateToken(id, "ana@scitech.io", user.RoleAdmin, time.Hour)
			require.NoError(t, err)

			claims, err := svc.VerifyToken(token)
			require.NoError(t, err)
			assert.Equal(t, id.String(), claims.UserID)
			assert.Equal(t, "ana@scitech.io", claims.Email)
			assert.Equal(t, user.RoleAdmin, claims.Role)
			assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
		})
	}
}

func TestTokenServices_Expired(t *testing.T) {
	for _, format := range []string{config.TokenFormatPaseto, config.TokenFormatJWT} {
		t.Run(format, func(t *testing.T) {
			svc, err := NewTokenService(format, testTokenKey)
			require.NoError(t, err)

			token, err := svc.CreateToken(uuid.New(), "ana@scitech.io", user.RoleStaff, -time.Minute)
			require.NoError(t, err)

			_, err = svc.VerifyToken(token)
			assert.ErrorIs(t, err, ErrExpiredToken)
		})
	}
}

func TestTokenServices_RejectForeignKey(t *testing.T) {
	otherKey := []byte("ffffffffffffffffffffffffffffffff")

	for _, format := range []string{config.TokenFormatPaseto, config.TokenFormatJWT} {
		t.Run(format, func(t *testing.T) {
			issuer, err := NewTokenService(format, otherKey)
			require.NoError(t, err)
			verifier, err := NewTokenService(format, testTokenKey)
			require.NoError(t, err)

			token, err := issuer.CreateToken(uuid.New(), "ana@scitech.io", user.RoleStaff, time.Hour)
			require.NoError(t, err)

			_, err = verifier.VerifyToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)

			_, err = verifier.VerifyToken("garbage")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewTokenService_Errors(t *testing.T) {
	_, err := NewTokenService("saml", testTokenKey)
	assert.Error(t, err)

	_, err = NewTokenService(config.TokenFormatPaseto, []byte("short"))
	assert.Error(t, err)

	_, err = NewTokenService(config.TokenFormatJWT, []byte("short"))
	assert.Error(t, err)
}

func TestHasher(t *testing.T) {
	h := NewHasher(testArgon2Params)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=1024,t=1,p=1$")
	assert.True(t, h.Verify(hash, "secret1"))
	assert.False(t, h.Verify(hash, "secret2"))

	other, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salt must differ")

	assert.False(t, h.Verify("not-a-hash", "secret1"))
	assert.False(t, h.Verify("$argon2id$v=19$m=x$bad$bad", "secret1"))
}
