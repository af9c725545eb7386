package cognito

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsignedToken(t *testing.T, claims *Claims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return tokenString
}

func TestExtractClaims(t *testing.T) {
	sub := uuid.New()
	issuedAt := time.Now().Truncate(time.Second)

	tokenString := unsignedToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_test",
			Subject:   sub.String(),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
		Email:           "analyst@example.com",
		EmailVerified:   true,
		TokenUse:        "id",
		CognitoUsername: "analyst",
		Groups:          []string{"security-analysts", "oncall"},
	})

	parsed, err := ExtractClaims(tokenString)
	require.NoError(t, err)
	assert.Equal(t, sub, parsed.Sub)
	assert.Equal(t, "analyst@example.com", parsed.Email)
	assert.True(t, parsed.EmailVerified)
	assert.Equal(t, "analyst", parsed.Username)
	assert.Equal(t, []string{"security-analysts", "oncall"}, parsed.Groups)
	assert.True(t, issuedAt.Equal(parsed.IssuedAt))
	assert.True(t, issuedAt.Add(time.Hour).Equal(parsed.ExpiresAt))
}

func TestExtractClaims_MissingSub(t *testing.T) {
	tokenString := unsignedToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_test",
		},
		Email: "analyst@example.com",
	})

	_, err := ExtractClaims(tokenString)
	assert.ErrorIs(t, err, ErrMissingClaim)
	assert.Contains(t, err.Error(), "sub")
}

func TestExtractClaims_InvalidSubUUID(t *testing.T) {
	tokenString := unsignedToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"},
	})

	_, err := ExtractClaims(tokenString)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sub UUID")
}

func TestExtractClaims_Malformed(t *testing.T) {
	_, err := ExtractClaims("definitely-not-a-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse token")
}

func TestExtractClaims_UsernameFallback(t *testing.T) {
	tokenString := unsignedToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.New().String()},
		TokenUse:         "access",
		Username:         "svc-reader",
	})

	parsed, err := ExtractClaims(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "svc-reader", parsed.Username)
	assert.True(t, parsed.IssuedAt.IsZero())
}

func TestExtractClaimsFromValidatedToken(t *testing.T) {
	sub := uuid.New()
	token := &jwt.Token{Claims: &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub.String()},
		Groups:           []string{"security-analysts"},
	}}

	parsed, err := ExtractClaimsFromValidatedToken(token)
	require.NoError(t, err)
	assert.Equal(t, sub, parsed.Sub)

	_, err = ExtractClaimsFromValidatedToken(&jwt.Token{Claims: jwt.MapClaims{}})
	assert.Error(t, err)
}

func TestParsedClaims_HasGroup(t *testing.T) {
	claims := &ParsedClaims{Groups: []string{"security-analysts", "oncall"}}

	assert.True(t, claims.HasGroup("oncall"))
	assert.False(t, claims.HasGroup("admins"))
	assert.False(t, (&ParsedClaims{}).HasGroup("oncall"))
}
