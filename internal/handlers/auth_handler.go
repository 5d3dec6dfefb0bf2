package handlers

import (
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"hamhub/internal/metrics"
	"hamhub/internal/middleware"
	"hamhub/internal/services"
	"hamhub/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// SessionMaxAge is the lifetime of both session cookies.
const SessionMaxAge = 7 * 24 * time.Hour

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	auth        *middleware.Authenticator
	validate    *validation.Validator
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
	production  bool
}

// NewAuthHandler creates a new AuthHandler. In production cookies are
// marked Secure and 500 responses carry no error detail.
func NewAuthHandler(authService *services.AuthService, auth *middleware.Authenticator, m *metrics.Metrics, log logrus.FieldLogger, production bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		auth:        auth,
		validate:    validation.New(),
		metrics:     m,
		log:         log,
		production:  production,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.All("/register", methodNotAllowed)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.All("/login", methodNotAllowed)
	authRoutes.Get("/profile", h.auth.AuthRequired(), h.HandleProfile)
	authRoutes.All("/profile", methodNotAllowed)
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		h.metrics.ObserveAuth("register", metrics.OutcomeInvalid)
		return invalidBody(c)
	}

	if errs := h.validate.Register(validation.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}); len(errs) > 0 {
		h.metrics.ObserveAuth("register", metrics.OutcomeInvalid)
		return validationFailed(c, errs)
	}

	result, err := h.authService.RegisterUser(c.UserContext(), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		var conflict *services.ConflictError
		switch {
		case errors.As(err, &conflict):
			h.metrics.ObserveAuth("register", metrics.OutcomeConflict)
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": conflict.Error(),
				"success": false,
				"field":   conflict.Field,
			})
		case errors.Is(err, services.ErrMissingSecret):
			h.metrics.ObserveAuth("register", metrics.OutcomeError)
			return h.configError(c, err)
		default:
			h.metrics.ObserveAuth("register", metrics.OutcomeError)
			return h.internalError(c, err, logrus.Fields{"email": req.Email, "username": req.Username})
		}
	}

	h.metrics.ObserveAuth("register", metrics.OutcomeSuccess)
	h.log.WithField("user_id", result.User.ID).Info("User registered")
	return h.respondWithSession(c, fiber.StatusCreated, "Registration successful", result)
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		h.metrics.ObserveAuth("login", metrics.OutcomeInvalid)
		return invalidBody(c)
	}

	if errs := h.validate.Login(validation.LoginInput{Email: req.Email, Password: req.Password}); len(errs) > 0 {
		h.metrics.ObserveAuth("login", metrics.OutcomeInvalid)
		return validationFailed(c, errs)
	}

	result, err := h.authService.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			h.metrics.ObserveAuth("login", metrics.OutcomeUnauthorized)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid email or password",
				"success": false,
			})
		case errors.Is(err, services.ErrAccountInactive):
			h.metrics.ObserveAuth("login", metrics.OutcomeForbidden)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Account is inactive. Please contact administrator.",
				"success": false,
			})
		case errors.Is(err, services.ErrMissingSecret):
			h.metrics.ObserveAuth("login", metrics.OutcomeError)
			return h.configError(c, err)
		default:
			h.metrics.ObserveAuth("login", metrics.OutcomeError)
			return h.internalError(c, err, logrus.Fields{"email": req.Email})
		}
	}

	h.metrics.ObserveAuth("login", metrics.OutcomeSuccess)
	h.log.WithField("user_id", result.User.ID).Info("User logged in")
	return h.respondWithSession(c, fiber.StatusOK, "Login successful", result)
}

// HandleProfile returns the caller's own user record.
func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
			"success": false,
		})
	}
	return h.respondWithUser(c, claims.ID)
}

func (h *AuthHandler) respondWithUser(c *fiber.Ctx, id string) error {
	user, err := h.authService.GetProfile(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Not found",
				"success": false,
			})
		}
		return h.internalError(c, err, logrus.Fields{"user_id": id})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// respondWithSession writes the auth response body and sets the
// httpOnly token cookie plus the readable user cookie.
func (h *AuthHandler) respondWithSession(c *fiber.Ctx, status int, message string, result *services.AuthResult) error {
	public := result.User.Public()

	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(SessionMaxAge.Seconds()),
		Secure:   h.production,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	if encoded, err := json.Marshal(public); err != nil {
		h.log.WithError(err).WithField("user_id", public.ID).Warn("Failed to encode user cookie")
	} else {
		c.Cookie(&fiber.Cookie{
			Name:     middleware.UserCookie,
			Value:    url.QueryEscape(string(encoded)),
			Path:     "/",
			MaxAge:   int(SessionMaxAge.Seconds()),
			Secure:   h.production,
			HTTPOnly: false,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"success": true,
		"token":   result.Token,
		"user":    public,
	})
}

func (h *AuthHandler) configError(c *fiber.Ctx, err error) error {
	h.log.WithError(err).WithField("timestamp", time.Now().UTC().Format(time.RFC3339)).Error("Token signing secret is not configured")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Server configuration error",
		"success": false,
	})
}

func (h *AuthHandler) internalError(c *fiber.Ctx, err error, fields logrus.Fields) error {
	h.log.WithError(err).WithFields(fields).
		WithField("timestamp", time.Now().UTC().Format(time.RFC3339)).
		Error("Request failed")

	body := fiber.Map{
		"message": "Internal server error",
		"success": false,
	}
	if !h.production {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(body)
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"success": false,
	})
}

func validationFailed(c *fiber.Ctx, errs validation.Errors) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"success": false,
		"errors":  []string(errs),
	})
}

func methodNotAllowed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
		"message": "Method not allowed",
		"success": false,
	})
}
