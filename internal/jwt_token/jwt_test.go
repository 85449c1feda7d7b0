package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

var (
	jwtService = NewJWTService("test-signing-key", "test-issuer", "test-audience")
	supplierID = id.SupplierID(uuid.New())
	expiresIn  = time.Hour
)

func TestGenerateSupplierToken(t *testing.T) {
	token, err := jwtService.GenerateSupplierToken(supplierID, "serco-book-a-secure-move", expiresIn)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, supplierID.String(), claims.SupplierID)
	assert.Equal(t, "serco-book-a-secure-move", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateTokenRejects(t *testing.T) {
	expired, err := jwtService.GenerateSupplierToken(supplierID, "x", -time.Hour)
	require.NoError(t, err)

	otherAudience, err := NewJWTService("test-signing-key", "test-issuer", "somebody-else").
		GenerateSupplierToken(supplierID, "x", expiresIn)
	require.NoError(t, err)

	otherKey, err := NewJWTService("another-key", "test-issuer", "test-audience").
		GenerateSupplierToken(supplierID, "x", expiresIn)
	require.NoError(t, err)

	noSupplier, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Audience:  []string{"test-audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	tests := map[string]struct {
		token string
		msg   string
	}{
		"garbage":        {"invalid-token-string", "invalid token"},
		"expired":        {expired, "token has expired"},
		"wrong audience": {otherAudience, "invalid token"},
		"wrong key":      {otherKey, "invalid token"},
		"no supplier":    {noSupplier, "token carries no supplier"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := jwtService.ValidateToken(tt.token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestAdapterParsesSupplier(t *testing.T) {
	token, err := jwtService.GenerateSupplierToken(supplierID, "geoamey", expiresIn)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, supplierID, claims.SupplierID)
	assert.Equal(t, "geoamey", claims.Subject)
}
