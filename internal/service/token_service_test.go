package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-identity", Expiry: time.Hour})

	token, expiresAt, err := svc.Issue("user-1", models.RoleAdmin, "school-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "school-1", claims.SchoolID)
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService(TokenConfig{Secret: "other"})
	token, _, err := issuer.Issue("user-1", models.RoleAdmin, "school-1")
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "secret"}).ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Expiry: time.Minute})
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Issue("user-1", models.RoleTeacher, "school-1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestTokenServiceRejectsForeignIssuer(t *testing.T) {
	token, _, err := NewTokenService(TokenConfig{Secret: "secret", Issuer: "someone-else"}).Issue("user-1", models.RoleAdmin, "")
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-identity"}).ValidateToken(token)
	require.Error(t, err)
}

func TestTokenServiceRejectsOtherAlgorithms(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "secret"}).ValidateToken(token)
	require.Error(t, err)
}
