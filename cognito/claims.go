package cognito

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// ExtractClaims parses claims from a JWT without verifying it.
// Only use it on tokens that were validated elsewhere.
func ExtractClaims(tokenString string) (*ParsedClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return parseClaims(claims)
}

// ExtractClaimsFromValidatedToken extracts claims from an already validated jwt.Token
func ExtractClaimsFromValidatedToken(token *jwt.Token) (*ParsedClaims, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	return parseClaims(claims)
}

// parseClaims converts Claims to ParsedClaims with proper type conversions
func parseClaims(claims *Claims) (*ParsedClaims, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid sub UUID: %w", err)
	}

	username := claims.CognitoUsername
	if username == "" {
		username = claims.Username
	}

	parsed := &ParsedClaims{
		Sub:           sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Username:      username,
		Groups:        claims.Groups,
		TokenUse:      claims.TokenUse,
	}

	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}

	return parsed, nil
}

// HasGroup reports whether the user belongs to the Cognito group
func (p *ParsedClaims) HasGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}
