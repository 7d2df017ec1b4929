package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

func newAuthServiceFixture() *AuthService {
	return NewAuthService(nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "sma-substitution-api"})
}

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := newAuthServiceFixture()

	token, expires, err := svc.IssueToken(IssueTokenRequest{UserID: "user-1", Role: models.RoleSecretary, Email: "desk@example.com"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleSecretary, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestAuthServiceIssueTokenValidation(t *testing.T) {
	svc := newAuthServiceFixture()

	_, _, err := svc.IssueToken(IssueTokenRequest{UserID: "user-1", Role: "JANITOR"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthServiceFixture()

	other := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "sma-substitution-api"})
	foreign, _, err := other.IssueToken(IssueTokenRequest{UserID: "user-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	stranger := NewAuthService(nil, nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	token, _, err := stranger.IssueToken(IssueTokenRequest{UserID: "user-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
