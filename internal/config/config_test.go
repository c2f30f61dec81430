package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  host: 127.0.0.1
  http_port: 9000
llm:
  provider: anthropic
  anthropic:
    api_key: test-key
session:
  backend: postgres
  postgres:
    dsn: postgres://localhost/intentorch
`

func TestLoadFromBytesOverridesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "test-key", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, "postgres", cfg.Session.Backend)

	// Untouched sections keep Default()'s values.
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.EntityCache.Backend)
}

func TestJSONSchemaIsStableAndNonEmpty(t *testing.T) {
	schema, err := JSONSchema()
	require.NoError(t, err)
	assert.NotEmpty(t, schema)

	again, err := JSONSchema()
	require.NoError(t, err)
	assert.Equal(t, schema, again)
}

func TestValidateRejectsMalformedYAML(t *testing.T) {
	err := Validate([]byte("server: [this, is, not, a, map]"))
	assert.Error(t, err)
}

func TestValidateAcceptsSampleConfig(t *testing.T) {
	assert.NoError(t, Validate([]byte(sampleYAML)))
}
