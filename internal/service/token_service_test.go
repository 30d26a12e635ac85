package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rto-compliance-api/internal/models"
	appErrors "github.com/noah-isme/rto-compliance-api/pkg/errors"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	svc := NewTokenService(nil, TokenConfig{Secret: "secret", Issuer: "rto-compliance", TokenTTL: time.Hour})

	token, expiresAt, err := svc.IssueToken("officer-1", models.RoleComplianceOfficer, "officer@example.edu.au")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "officer-1", claims.UserID)
	assert.Equal(t, models.RoleComplianceOfficer, claims.Role)
}

func TestTokenServiceRejectsWrongSecretAndIssuer(t *testing.T) {
	issuer := NewTokenService(nil, TokenConfig{Secret: "other", Issuer: "rto-compliance"})
	token, _, err := issuer.IssueToken("officer-1", models.RoleAdmin, "")
	require.NoError(t, err)

	svc := NewTokenService(nil, TokenConfig{Secret: "secret", Issuer: "rto-compliance"})
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	foreign := NewTokenService(nil, TokenConfig{Secret: "secret", Issuer: "someone-else"})
	token, _, err = foreign.IssueToken("officer-1", models.RoleAdmin, "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService(nil, TokenConfig{Secret: "secret", TokenTTL: time.Minute})
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := svc.IssueToken("officer-1", models.RoleAdmin, "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)

	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceRejectsOtherAlgorithms(t *testing.T) {
	claims := &models.JWTClaims{UserID: "officer-1", Role: models.RoleAdmin}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	svc := NewTokenService(nil, TokenConfig{Secret: "secret"})

	_, err = svc.ValidateToken(token)

	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenServiceRequiresSubject(t *testing.T) {
	svc := NewTokenService(nil, TokenConfig{Secret: "secret"})

	_, _, err := svc.IssueToken(" ", models.RoleAdmin, "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{Role: models.RoleAdmin}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
