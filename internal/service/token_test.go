package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, time.Hour)
	ownerID := uuid.New()

	token, exp, err := m.GenerateAccess(ownerID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	parsed, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, ownerID, parsed)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("another-secret-another-secret-xx", time.Hour).GenerateAccess(uuid.New())
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager(testSecret, time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.GenerateAccess(uuid.New())
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Minute).ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestTokenManager_RejectsOtherRole(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":  uuid.NewString(),
		"role": "client",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ParseAccess(token)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	_, err := NewTokenManager(testSecret, time.Hour).ParseAccess("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}
