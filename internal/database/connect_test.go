package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConnectRedisPingsServer(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := ConnectRedis(context.Background(), "redis://"+server.Addr()+"/0", "gema-reminders")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "reminders:policies", "[]", time.Minute).Err())
	require.True(t, server.Exists("reminders:policies"))
}

func TestConnectRedisRejectsBadInput(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "", "gema-reminders")
	require.Error(t, err)

	_, err = ConnectRedis(context.Background(), "http://not-redis", "gema-reminders")
	require.ErrorContains(t, err, "parse redis url")

	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	_, err = ConnectRedis(context.Background(), "redis://"+addr, "gema-reminders")
	require.ErrorContains(t, err, "unable to reach redis")
}

func TestConnectPostgresRequiresDSN(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), "", PoolConfig{})
	require.Error(t, err)
}

func TestConfigurePoolAppliesLimits(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, ConfigurePool(db, PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxLifetime: time.Minute}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Equal(t, 4, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, ConfigurePool(db, PoolConfig{}))
	require.Equal(t, 4, sqlDB.Stats().MaxOpenConnections)
}
