package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "9090"
database:
  mysql:
    dsn: "user:pass@tcp(localhost:3306)/blgu"
builder:
  lock_ttl_minutes: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, "debug", c.Server.Mode)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/blgu", c.Database.MySQL.DSN)
	assert.Equal(t, 5, c.Builder.LockTTLMinutes)
	assert.Equal(t, 60, c.Builder.SnapshotCacheTTLMinutes)
	assert.Equal(t, 300, c.Assessment.LiveDebounceMs)
	assert.Equal(t, "assessment.verdicts", c.Kafka.Topic)
	assert.Equal(t, "indicators", c.Elasticsearch.IndexName)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
