package database

import (
	"context"
	"fmt"
	"time"

	"hamhub/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the store connection details.
type Config struct {
	Driver         string
	DSN            string
	ConnectTimeout time.Duration
	MaxOpenConns   int
	// Logger receives GORM warnings and errors. Defaults to the logrus
	// standard logger.
	Logger logrus.FieldLogger
}

type gormWriter struct {
	log logrus.FieldLogger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.WithField("component", "gorm").Warnf(format, args...)
}

func newGormLogger(log logrus.FieldLogger) gormlogger.Interface {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return gormlogger.New(gormWriter{log: log}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open returns an Opener that connects with cfg, migrates the user schema and
// verifies the connection within cfg.ConnectTimeout.
func Open(cfg Config) Opener {
	return func(ctx context.Context) (*gorm.DB, error) {
		var dialector gorm.Dialector
		switch cfg.Driver {
		case DriverPostgres:
			dialector = postgres.Open(cfg.DSN)
		case DriverSQLite:
			dialector = sqlite.Open(cfg.DSN)
		default:
			return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
		}

		db, err := gorm.Open(dialector, &gorm.Config{
			Logger: newGormLogger(cfg.Logger),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		switch {
		case cfg.Driver == DriverSQLite:
			// sqlite serializes writers; one connection avoids "database is locked".
			sqlDB.SetMaxOpenConns(1)
		case cfg.MaxOpenConns > 0:
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}

		timeout := cfg.ConnectTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		if err := db.WithContext(ctx).AutoMigrate(&models.User{}); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return db, nil
	}
}
