package middleware

import (
	"strings"

	"hamhub/internal/metrics"
	"hamhub/internal/models"
	"hamhub/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Cookie names carrying the session.
const (
	TokenCookie = "token"
	UserCookie  = "user"
)

const claimsKey = "claims"

// TokenVerifier checks a session token and returns its claims.
type TokenVerifier interface {
	ValidateToken(token string) (*services.Claims, bool)
}

// Authenticator is the single authorization layer. It backs both the
// path-prefix Gate and the per-handler AuthRequired/RoleRequired wrappers.
type Authenticator struct {
	verifier TokenVerifier
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

// NewAuthenticator creates an Authenticator. m may be nil.
func NewAuthenticator(verifier TokenVerifier, m *metrics.Metrics, log logrus.FieldLogger) *Authenticator {
	return &Authenticator{verifier: verifier, metrics: m, log: log}
}

// ExtractToken returns the bearer token from the Authorization header,
// falling back to the session cookie.
func ExtractToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	return c.Cookies(TokenCookie)
}

// authenticate verifies the request's token. present is false when the
// request carried no token at all.
func (a *Authenticator) authenticate(c *fiber.Ctx) (claims *services.Claims, present bool) {
	token := ExtractToken(c)
	if token == "" {
		a.metrics.ObserveToken("missing")
		return nil, false
	}

	claims, ok := a.verifier.ValidateToken(token)
	if !ok {
		a.metrics.ObserveToken("invalid")
		a.log.WithFields(logrus.Fields{"path": c.Path(), "ip": c.IP()}).Debug("Rejected session token")
		return nil, true
	}
	a.metrics.ObserveToken("valid")
	return claims, true
}

// AuthRequired rejects requests without a valid token with 401 and stores
// the decoded claims for downstream handlers.
func (a *Authenticator) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, _ := a.authenticate(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
				"success": false,
			})
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// RoleRequired must run after AuthRequired. It answers 403 unless the
// caller's role matches.
func (a *Authenticator) RoleRequired(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok || claims.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Forbidden",
				"success": false,
			})
		}
		return c.Next()
	}
}

// ClaimsFrom returns the claims stored by AuthRequired.
func ClaimsFrom(c *fiber.Ctx) (*services.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*services.Claims)
	return claims, ok && claims != nil
}
