// Package testhelper wires an in-memory database, a fake redis and a recording mailer for package tests.
package testhelper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/mmdatafocus/church_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// SetupDB opens a private in-memory sqlite database and migrates every table.
// A single connection keeps the memory database alive for the whole test.
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:church_test_%d?mode=memory&cache=shared&_foreign_keys=0", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), config.InitConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	prev := config.GetDB()
	config.SetDB(db)
	require.NoError(t, models.MigrateTable())

	storageDir := t.TempDir()
	t.Setenv("STORAGE_PROVIDER", utils.StorageProviderLocal)
	t.Setenv("STORAGE_LOCAL_DIR", storageDir)

	t.Cleanup(func() {
		config.SetDB(prev)
		_ = sqlDB.Close()
	})
	return db
}

// SetupRedis points the cache at a miniredis instance for the test.
func SetupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.SetRedisDB(client)
	t.Cleanup(func() {
		config.SetRedisDB(nil)
		_ = client.Close()
	})
	return mr
}

// AdminContext is a signed-in administrator with user id 1.
func AdminContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Admin")
	ctx = utils.SetUsernameInContext(ctx, "admin")
	ctx = utils.SetIsAdminInContext(ctx, true)
	return utils.SetCorrelationIdInContext(ctx, "test-correlation")
}

// RecordingMailer keeps every message instead of sending it.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []utils.MailMessage
	Err  error
}

func (m *RecordingMailer) Send(_ context.Context, msg utils.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *RecordingMailer) Sent() []utils.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]utils.MailMessage(nil), m.sent...)
}

func SetupMailer(t *testing.T) *RecordingMailer {
	t.Helper()
	m := &RecordingMailer{}
	utils.SetMailer(m)
	t.Cleanup(func() { utils.SetMailer(nil) })
	return m
}
