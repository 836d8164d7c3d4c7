package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/BartekS5/sql2mongo/internal/config"
	"github.com/BartekS5/sql2mongo/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvSQLConn, "")
	t.Setenv(config.EnvMongoConn, "")

	dir := t.TempDir()
	mapping := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(mapping, []byte(`
- {old_name: id, new_name: legacy_id, type: int}
- {old_name: name, new_name: name}
`), 0o644))

	settings := `{
	  "SQL_SETTINGS": {"DB_DRIVER": "postgres", "DB_HOST": "pg", "DB_USER": "u", "DB_NAME": "legacy", "DB_PASS": "p"},
	  "MONGODB_SETTINGS": {"DB_HOST": "mongo", "DB_PORT": 27017, "DB_NAME": "app"},
	  "WHAT_2_IMPORT": [
	    {"table_name": "users", "collection_name": "people", "mapping_file": "` + filepath.ToSlash(mapping) + `", "page_size": 100}
	  ],
	  "REPLACES": [
	    {"collection": "orders", "field": "user_id", "search_collection": "people",
	     "search_field": "legacy_id", "search_new_field": "_id", "new_field": "user", "strategy": "row"}
	  ]
	}`
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(settings), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidatePrintsPlan(t *testing.T) {
	path := writeSettings(t)

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Source: postgres")
	assert.Contains(t, out, "Target database: app")
	assert.Contains(t, out, "Imports (1):")
	assert.Contains(t, out, "users -> people: 2 fields, page size 100 from page 1, async, concurrency 10")
	assert.Contains(t, out, "Replaces (1):")
	assert.Contains(t, out, "orders.user_id -> people.legacy_id (_id into user), row strategy, concurrency 10")
}

func TestValidateReportsConfigErrors(t *testing.T) {
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunRejectsInvalidConfigBeforeConnecting(t *testing.T) {
	t.Setenv(config.EnvSQLConn, "")
	t.Setenv(config.EnvMongoConn, "")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"WHAT_2_IMPORT": []}`), 0o644))

	_, err := execute(t, "run", "--config", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "SQL_SETTINGS (or MYSQL_SETTINGS) is required")
}

func TestNothingToDoSkipsConnections(t *testing.T) {
	path := writeSettings(t)

	// replace-only with no REPLACES entries never dials a database.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := bytes.Replace(data, []byte(`"REPLACES"`), []byte(`"UNUSED"`), 1)
	require.NoError(t, os.WriteFile(path, trimmed, 0o644))

	_, err = execute(t, "replace", "--config", path)
	assert.NoError(t, err)
}

func TestLogFileFlag(t *testing.T) {
	path := writeSettings(t)
	logPath := filepath.Join(t.TempDir(), "run.log")

	_, err := execute(t, "validate", "--config", path, "--log-file", logPath, "--log-level", "debug")
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] Configuration is valid.")
	assert.Contains(t, string(data), "run=")
}
