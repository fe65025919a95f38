package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingSubject is returned when the token carries no sub claim
	ErrMissingSubject = errors.New("missing sub claim")
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HMACValidator validates HS256 bearer tokens signed with a shared secret.
type HMACValidator struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewHMACValidator creates a validator. An empty issuer accepts any iss claim.
func NewHMACValidator(secret, issuer string) *HMACValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &HMACValidator{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}
}

// ValidateToken validates a JWT token and returns claims
func (v *HMACValidator) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	claims := &tokenClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	out := &Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Roles:   claims.Roles,
		Issuer:  claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return out, nil
}

// Sign issues a token for subject valid for ttl. Used by operators and tests
// to mint credentials for the shared secret.
func (v *HMACValidator) Sign(subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
