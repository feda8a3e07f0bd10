package auth

import (
	"testing"
	"time"

	"whatsdesk/internal/config"
	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *models.User {
	u := &models.User{
		WorkspaceID: uuid.New(),
		Email:       "ana@acme.test",
		Role:        models.RoleOperator,
	}
	u.ID = uuid.New()
	return u
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "s3cret", AccessDuration: time.Minute, RefreshDuration: time.Hour})
	user := testUser()

	pair, err := svc.GenerateTokenPair(user)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.WorkspaceID, claims.WorkspaceID)
	assert.Equal(t, models.RoleOperator, claims.Role)

	refresh, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenRefresh, refresh.TokenType)
}

func TestJWTService_RejectsWrongType(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "s3cret", AccessDuration: time.Minute, RefreshDuration: time.Hour})
	pair, err := svc.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "s3cret", AccessDuration: -time.Minute, RefreshDuration: time.Hour})
	pair, err := svc.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_ForeignSecret(t *testing.T) {
	a := NewJWTService(config.JWTConfig{Secret: "one", AccessDuration: time.Minute, RefreshDuration: time.Hour})
	b := NewJWTService(config.JWTConfig{Secret: "two", AccessDuration: time.Minute, RefreshDuration: time.Hour})
	pair, err := a.GenerateTokenPair(testUser())
	require.NoError(t, err)

	_, err = b.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
