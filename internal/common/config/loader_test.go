package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: db.local
    database: bizplan
    user: planner
  redis:
    address: redis.local:6379
genai:
  base_url: http://genai.local
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.local", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, QueueBackendRedis, cfg.Generation.QueueBackend)
	assert.Equal(t, "plan-generation", cfg.Generation.QueueCategory)
	assert.Equal(t, 2*time.Second, GetDuration(cfg.Generation.InitialDelay))
	assert.Equal(t, 2, cfg.Generation.DeferredWorkers)
	assert.Equal(t, 64, cfg.Generation.DeferredBuffer)
	assert.Equal(t, 7200, cfg.Session.TTL)
	assert.Equal(t, 60000, cfg.GenAI.Timeout)
	assert.Equal(t, "business-plans", cfg.Search.Index)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Metrics.Address)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("PLAN_TEST_GENAI_URL", "http://expanded.local")

	body := `
database:
  postgres:
    host: db.local
    database: bizplan
    user: planner
  redis:
    address: redis.local:6379
genai:
  base_url: ${PLAN_TEST_GENAI_URL}
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "http://expanded.local", cfg.GenAI.BaseURL)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{
			name:    "unknown queue backend",
			extra:   "generation:\n  queue_backend: kafka\n",
			wantErr: "generation.queue_backend",
		},
		{
			name:    "zeebe backend without broker",
			extra:   "generation:\n  queue_backend: zeebe\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "search enabled without addresses",
			extra:   "search:\n  enabled: true\n",
			wantErr: "database.elasticsearch.addresses",
		},
		{
			name:    "tracing enabled without endpoint",
			extra:   "tracing:\n  enabled: true\n",
			wantErr: "tracing.jaeger_endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalConfig+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingRequired(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "genai:\n  base_url: http://x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.postgres.host is required")
}
