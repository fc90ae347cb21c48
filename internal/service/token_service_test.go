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

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(issuer string) models.JWTClaims {
	return models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService("secret", "accounts")

	claims, err := svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), validClaims("accounts")))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewTokenService("secret", "accounts")

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("accounts")),
		"wrong issuer": signToken(t, jwt.SigningMethodHS256, []byte("secret"), validClaims("elsewhere")),
		"wrong method": signToken(t, jwt.SigningMethodHS512, []byte("secret"), validClaims("accounts")),
		"garbage":      "not-a-token",
	}
	expired := validClaims("accounts")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	cases["expired"] = signToken(t, jwt.SigningMethodHS256, []byte("secret"), expired)
	anonymous := validClaims("accounts")
	anonymous.UserID = ""
	cases["no subject"] = signToken(t, jwt.SigningMethodHS256, []byte("secret"), anonymous)

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}

func TestTokenServiceWithoutSecret(t *testing.T) {
	_, err := NewTokenService("", "").ValidateToken("anything")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
