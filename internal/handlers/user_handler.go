package handlers

import (
	"errors"

	"hamhub/internal/middleware"
	"hamhub/internal/models"
	"hamhub/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// UserHandler serves administrative user lookups.
type UserHandler struct {
	service *services.AuthService
	auth    *middleware.Authenticator
	log     logrus.FieldLogger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.AuthService, auth *middleware.Authenticator, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{
		service: service,
		auth:    auth,
		log:     log,
	}
}

// RegisterRoutes registers the admin user routes. Every route requires an
// admin session.
func (h *UserHandler) RegisterRoutes(router fiber.Router) {
	userRoutes := router.Group("/admin/users", h.auth.AuthRequired(), h.auth.RoleRequired(models.RoleAdmin))
	userRoutes.Get("/:id", h.HandleGetUserByID)
}

// HandleGetUserByID retrieves a single user by ID.
func (h *UserHandler) HandleGetUserByID(c *fiber.Ctx) error {
	userID := c.Params("id")
	user, err := h.service.GetProfile(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Not found",
				"success": false,
			})
		}
		h.log.WithError(err).WithField("user_id", userID).Error("Error getting user by ID")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
			"success": false,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}
