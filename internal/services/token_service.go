package services

import (
	"fmt"
	"time"

	"hamhub/internal/models"

	"github.com/dgrijalva/jwt-go"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims is the identity carried by a session token.
type Claims struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.StandardClaims
}

// ClaimsFor builds the token claims for user.
func ClaimsFor(user *models.User) Claims {
	role := user.Role
	if role == "" {
		role = models.RoleUser
	}
	return Claims{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     role,
	}
}

// TokenService issues and verifies HS256 signed session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. A non-positive ttl means DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for issuing and expiry checks.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// TTL returns the default token lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Configured reports whether a signing secret is present.
func (s *TokenService) Configured() bool { return len(s.secret) > 0 }

// Issue signs claims with the default lifetime.
func (s *TokenService) Issue(claims Claims) (string, error) {
	return s.IssueWithTTL(claims, s.ttl)
}

// IssueWithTTL signs claims valid for ttl from now.
func (s *TokenService) IssueWithTTL(claims Claims, ttl time.Duration) (string, error) {
	if !s.Configured() {
		return "", ErrMissingSecret
	}
	now := s.now()
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns its claims. Any failure (malformed,
// bad signature, unexpected algorithm, expired, missing identity) yields false.
func (s *TokenService) Verify(tokenString string) (*Claims, bool) {
	if !s.Configured() || tokenString == "" {
		return nil, false
	}

	claims := &Claims{}
	parser := &jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true, // expiry is checked below against s.now
	}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	if !claims.VerifyExpiresAt(s.now().Unix(), true) {
		return nil, false
	}
	if claims.ID == "" || !claims.Role.Valid() {
		return nil, false
	}
	return claims, true
}
