package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/models"
)

func TestJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	user := &models.User{ID: 42, Email: "owner@example.com"}

	token, err := GenerateJWT(user, secret)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "owner@example.com", claims.Email)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	user := &models.User{ID: 1, Email: "a@b.com"}

	token, err := GenerateJWT(user, []byte("secret-a"))
	require.NoError(t, err)

	_, err = ValidateJWT(token, []byte("secret-b"))
	assert.Error(t, err)
}

func TestValidateJWT_Garbage(t *testing.T) {
	_, err := ValidateJWT("not.a.token", []byte("secret"))
	assert.Error(t, err)
}
