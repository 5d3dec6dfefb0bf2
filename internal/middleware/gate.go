package middleware

import (
	"strings"

	"hamhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GateConfig lists the protected path prefixes and where rejected
// requests are sent.
type GateConfig struct {
	AdminPrefixes []string
	UserPrefixes  []string
	LoginPath     string
	HomePath      string
}

// DefaultGateConfig protects /admin for admins and /user for any signed-in user.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		AdminPrefixes: []string{"/admin"},
		UserPrefixes:  []string{"/user"},
		LoginPath:     "/login",
		HomePath:      "/",
	}
}

// Gate guards whole path prefixes. Requests without a usable token are
// redirected to the login page; non-admins hitting an admin prefix are
// redirected home. Other paths pass through untouched.
func (a *Authenticator) Gate(cfg GateConfig) fiber.Handler {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}

	return func(c *fiber.Ctx) error {
		fold := !c.App().Config().CaseSensitive
		paths := gatePaths(c, fold)
		admin := matchesAny(paths, cfg.AdminPrefixes, fold)
		if !admin && !matchesAny(paths, cfg.UserPrefixes, fold) {
			return c.Next()
		}

		claims, _ := a.authenticate(c)
		if claims == nil {
			return c.Redirect(cfg.LoginPath, fiber.StatusTemporaryRedirect)
		}
		if admin && claims.Role != models.RoleAdmin {
			return c.Redirect(cfg.HomePath, fiber.StatusTemporaryRedirect)
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// gatePaths returns the raw request path and the decoded, dot-segment
// resolved path that the static file server sees. Both are lowercased
// when fold is set.
func gatePaths(c *fiber.Ctx, fold bool) []string {
	raw := c.Path()
	normalized := string(c.Request().URI().Path())
	if fold {
		raw, normalized = strings.ToLower(raw), strings.ToLower(normalized)
	}
	return []string{raw, normalized}
}

func matchesAny(paths, prefixes []string, fold bool) bool {
	for _, p := range prefixes {
		if fold {
			p = strings.ToLower(p)
		}
		for _, path := range paths {
			if hasPathPrefix(path, p) {
				return true
			}
		}
	}
	return false
}

// hasPathPrefix matches whole segments: "/admin" covers "/admin" and
// "/admin/x" but not "/administrator".
func hasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
