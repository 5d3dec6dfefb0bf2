// Package app assembles the HTTP server from configuration.
package app

import (
	"context"
	"errors"
	"time"

	"hamhub/internal/cache"
	"hamhub/internal/config"
	"hamhub/internal/database"
	"hamhub/internal/handlers"
	"hamhub/internal/metrics"
	"hamhub/internal/middleware"
	"hamhub/internal/repositories"
	"hamhub/internal/services"
	"hamhub/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
)

// App owns the fiber server and every resource it depends on.
type App struct {
	cfg     *config.Config
	log     *logrus.Logger
	fiber   *fiber.App
	metrics *metrics.Metrics

	conn     *database.Connection // nil with the memory driver
	profiles *cache.RedisProfileCache
	events   *rabbitmq.Client
}

// New builds the application. Redis and RabbitMQ are optional: when their
// URL is empty or they cannot be reached the app runs without them.
// The database is opened lazily on first use.
func New(cfg *config.Config, log *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
	}

	var userRepo repositories.UserRepository
	if cfg.DBDriver == config.DriverMemory {
		log.Warn("Using in-memory user store; data is lost on restart")
		userRepo = repositories.NewMockUserRepository()
	} else {
		a.conn = database.NewConnection(database.Open(database.Config{
			Driver:         cfg.DBDriver,
			DSN:            cfg.DatabaseDSN,
			ConnectTimeout: cfg.DBConnectTimeout,
			Logger:         log,
		}))
		userRepo = repositories.NewGORMUserRepository(a.conn)
	}

	authService := services.NewAuthService(
		userRepo,
		services.NewPasswordHasher(cfg.BcryptCost),
		services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn),
		log,
	)

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		profiles, err := cache.Connect(ctx, cfg.RedisURL, cfg.ProfileCacheTTL)
		cancel()
		if err != nil {
			log.WithError(err).Warn("Profile cache disabled")
		} else {
			a.profiles = profiles
			authService.WithProfileCache(profiles)
		}
	}

	if cfg.RabbitMQURL != "" {
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, log)
		if err != nil {
			log.WithError(err).Warn("Auth events disabled")
		} else {
			a.events = client
			authService.WithEvents(client)
		}
	}

	authenticator := middleware.NewAuthenticator(authService, a.metrics, log)
	a.fiber = a.newFiber(authService, authenticator)
	return a, nil
}

func (a *App) newFiber(authService *services.AuthService, authenticator *middleware.Authenticator) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "hamhub",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(a.log),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Output: a.log.Out,
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(middleware.RequestMetrics(a.metrics))

	app.Use(authenticator.Gate(middleware.GateConfig{
		AdminPrefixes: []string{"/admin"},
		UserPrefixes:  []string{"/user"},
		LoginPath:     a.cfg.LoginPath,
		HomePath:      a.cfg.HomePath,
	}))

	api := app.Group("/api")
	handlers.NewAuthHandler(authService, authenticator, a.metrics, a.log, a.cfg.IsProduction()).RegisterRoutes(api)
	handlers.NewUserHandler(authService, authenticator, a.log).RegisterRoutes(api)

	app.Get("/health", a.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	if a.cfg.PublicDir != "" {
		app.Static("/", a.cfg.PublicDir)
	}
	return app
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	status, code := "healthy", fiber.StatusOK
	db := config.DriverMemory
	if a.conn != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := a.conn.Ping(ctx); err != nil {
			a.log.WithError(err).Warn("Health check: database unreachable")
			status, code, db = "unhealthy", fiber.StatusServiceUnavailable, "unavailable"
		} else {
			db = "connected"
		}
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"time":     time.Now().Format(time.RFC3339),
		"database": db,
	})
}

// errorHandler keeps framework errors and recovered panics in the
// {success, message} response shape.
func errorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			if code < fiber.StatusInternalServerError {
				message = fe.Message
			}
		}
		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"path":      c.Path(),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}).Error("Unhandled error")
		}
		return c.Status(code).JSON(fiber.Map{
			"message": message,
			"success": false,
		})
	}
}

// Fiber exposes the underlying server, mainly for tests.
func (a *App) Fiber() *fiber.App { return a.fiber }

// Metrics returns the app's collectors.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// StartAuditConsumer logs every auth event from RabbitMQ. It is a no-op
// unless AUDIT_CONSUMER is set and events are enabled, so by default
// downstream consumers own the queue.
func (a *App) StartAuditConsumer() error {
	if !a.cfg.AuditConsumer || a.events == nil {
		return nil
	}
	return a.events.ConsumeAuthEvents(func(msg amqp.Delivery) error {
		a.log.WithFields(logrus.Fields{
			"event":     msg.Type,
			"payload":   string(msg.Body),
			"timestamp": msg.Timestamp.UTC().Format(time.RFC3339),
		}).Info("Auth event")
		return nil
	})
}

// Listen serves HTTP on addr until Shutdown is called.
func (a *App) Listen(addr string) error {
	a.log.WithField("addr", addr).Info("Starting server")
	return a.fiber.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	return a.fiber.ShutdownWithContext(ctx)
}

// Close releases the database, cache and broker connections.
func (a *App) Close() error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.profiles != nil {
		errs = append(errs, a.profiles.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	return errors.Join(errs...)
}
