package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	for dialect, want := range map[string]string{
		"":          "mysql",
		"mysql":     "mysql",
		"sqlserver": "sqlserver",
		"postgres":  "pgx",
	} {
		got, err := DriverName(dialect)
		require.NoError(t, err)
		assert.Equal(t, want, got, dialect)
	}

	_, err := DriverName("oracle")
	assert.Error(t, err)
}

func TestConnectSQLRejectsUnknownDialect(t *testing.T) {
	_, err := ConnectSQL(context.Background(), "oracle", "whatever")
	assert.ErrorContains(t, err, "unsupported SQL driver")
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}

func TestConnectRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(context.Background(), addr, "", 0)
	assert.ErrorContains(t, err, "error connecting to Redis")
}
