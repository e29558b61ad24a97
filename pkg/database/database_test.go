package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkalashnik/survey-rewards-bot/pkg/completion"
	"github.com/dkalashnik/survey-rewards-bot/pkg/config"
)

func TestConnectGormSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:database_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := ConnectGorm("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseGorm(db) })

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestConnectGormUnknownDriver(t *testing.T) {
	_, err := ConnectGorm("mongo", "mongodb://localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestCloseGormNil(t *testing.T) {
	assert.NoError(t, CloseGorm(nil))
}

func TestConnectRedisBadURI(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "not-a-redis-uri")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis uri")
}

func TestOpenCompletionBackendMemory(t *testing.T) {
	backend, closeFn, err := OpenCompletionBackend(context.Background(), &config.AppConfig{StoreDriver: config.StoreMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	ctx := context.Background()
	require.NoError(t, backend.Save(ctx, "k", []string{"a"}))
	ids, err := backend.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestOpenCompletionBackendSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:backend_%d?mode=memory&cache=shared", time.Now().UnixNano())
	backend, closeFn, err := OpenCompletionBackend(context.Background(), &config.AppConfig{StoreDriver: config.StoreSQLite, StoreDSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	store := completion.NewStore(backend, nil)
	ctx := context.Background()
	store.MarkCompleted(ctx, "u1", "s1")
	assert.True(t, store.IsCompleted(ctx, "u1", "s1"))
}

func TestOpenCompletionBackendUnknownDriver(t *testing.T) {
	_, _, err := OpenCompletionBackend(context.Background(), &config.AppConfig{StoreDriver: "mongo"})
	assert.Error(t, err)
}
