package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FUNCTIONS_SERVICE_KEY", "svc")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 200, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 10, cfg.Knowledge.HistoryLimit)
	assert.Equal(t, 5*time.Minute, cfg.Bitrix.RefreshBuffer)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Functions.BaseURL)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  name: desk
  port: 9000
jwt:
  secret: from-file
functions:
  service_key: file-key
knowledge:
  top_n: 3
kafka:
  brokers: localhost:9092
  topic: flow.inbound
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("APP_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "desk", cfg.App.Name)
	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 3, cfg.Knowledge.TopN)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	assert.Error(t, cfg.Validate(), "missing jwt secret")

	cfg.JWT.Secret = "s"
	assert.Error(t, cfg.Validate(), "missing service key")

	cfg.Functions.ServiceKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Knowledge.ChunkOverlap = cfg.Knowledge.ChunkSize
	assert.Error(t, cfg.Validate())
}
