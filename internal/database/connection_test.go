package database_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"hamhub/internal/database"
	"hamhub/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func memoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
}

func TestConnection_ConcurrentFirstCallsOpenOnce(t *testing.T) {
	var opens int32
	open := database.Open(database.Config{Driver: database.DriverSQLite, DSN: memoryDSN()})
	conn := database.NewConnection(func(ctx context.Context) (*gorm.DB, error) {
		atomic.AddInt32(&opens, 1)
		time.Sleep(50 * time.Millisecond) // keep the first open in flight
		return open(ctx)
	})
	defer conn.Close()

	const callers = 32
	handles := make([]*gorm.DB, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			db, err := conn.DB(context.Background())
			handles[i] = db
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
	for _, db := range handles {
		assert.Same(t, handles[0], db)
	}

	// Later calls reuse the cached handle.
	db, err := conn.DB(context.Background())
	require.NoError(t, err)
	assert.Same(t, handles[0], db)
	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
}

func TestConnection_FailedOpenIsRetried(t *testing.T) {
	var opens int32
	open := database.Open(database.Config{Driver: database.DriverSQLite, DSN: memoryDSN()})
	conn := database.NewConnection(func(ctx context.Context) (*gorm.DB, error) {
		if atomic.AddInt32(&opens, 1) == 1 {
			return nil, errors.New("connection refused")
		}
		return open(ctx)
	})
	defer conn.Close()

	_, err := conn.DB(context.Background())
	assert.EqualError(t, err, "connection refused")

	db, err := conn.DB(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Equal(t, int32(2), atomic.LoadInt32(&opens))
}

func TestConnection_WaiterHonoursContext(t *testing.T) {
	release := make(chan struct{})
	conn := database.NewConnection(func(ctx context.Context) (*gorm.DB, error) {
		<-release
		return nil, errors.New("closed")
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := conn.DB(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnection_PingAndClose(t *testing.T) {
	conn := database.NewConnection(database.Open(database.Config{Driver: database.DriverSQLite, DSN: memoryDSN()}))
	require.NoError(t, conn.Ping(context.Background()))
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := database.Open(database.Config{Driver: "oracle"})(context.Background())
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}

func TestOpen_LogsThroughLogrus(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: memoryDSN(), Logger: log})(context.Background())
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	err = db.Where("email = ?", "nobody@b.com").First(&models.User{}).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, hook.AllEntries())

	err = db.Exec("SELECT * FROM missing_table").Error
	require.Error(t, err)
	require.NotEmpty(t, hook.AllEntries())
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "gorm", entry.Data["component"])
	assert.Contains(t, entry.Message, "missing_table")
}
