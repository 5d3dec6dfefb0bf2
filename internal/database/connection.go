// Package database owns the process-wide GORM connection to the credential store.
package database

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Opener establishes a new database handle.
type Opener func(ctx context.Context) (*gorm.DB, error)

// Connection lazily opens the database on first use and hands the same
// handle to every caller afterwards. Concurrent first callers share a single
// in-flight open. A failed open is not cached, so the next caller retries.
type Connection struct {
	open  Opener
	group singleflight.Group

	mu sync.RWMutex
	db *gorm.DB
}

// NewConnection creates a Connection that will use open on first use.
func NewConnection(open Opener) *Connection {
	return &Connection{open: open}
}

// DB returns the shared handle, opening it if needed. Callers waiting on an
// in-flight open give up when their own ctx is done.
func (c *Connection) DB(ctx context.Context) (*gorm.DB, error) {
	if db := c.current(); db != nil {
		return db, nil
	}

	ch := c.group.DoChan("connect", func() (interface{}, error) {
		if db := c.current(); db != nil {
			return db, nil
		}
		// The open must outlive the caller that happened to trigger it.
		db, err := c.open(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.db = db
		c.mu.Unlock()
		return db, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connection) current() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Ping opens the connection if needed and checks that it is alive.
func (c *Connection) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying pool if it was ever opened.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	c.db = nil
	return sqlDB.Close()
}
