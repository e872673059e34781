package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplateMatchesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Agent.MaxRounds)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	data := []byte("llm:\n  provider: openai\n  model: gpt-4o-mini\nagent:\n  max_rounds: 3\nauth:\n  token_ttl: 2h\n")
	require.NoError(t, os.WriteFile(Path(dir), data, 0o600))
	cfg, err := Load(Path(dir))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Agent.MaxRounds)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"provider":   "llm:\n  provider: ollama\n",
		"max_rounds": "agent:\n  max_rounds: 21\n",
		"zero":       "agent:\n  max_rounds: 0\n",
		"base_path":  "server:\n  base_path: v1\n",
		"fetch":      "fetch:\n  max_bytes: 10\n",
	}
	for name, raw := range cases {
		_, err := FromYAML([]byte(raw))
		assert.Error(t, err, name)
	}
	_, err := FromYAML([]byte("server: [\n"))
	assert.ErrorContains(t, err, "invalid config yaml")
}

func TestRequireSecrets(t *testing.T) {
	cfg := Default()
	err := cfg.RequireSecrets()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DESK_JWT_SECRET")
	assert.Contains(t, err.Error(), "DESK_SECRETS_PASSPHRASE")
	cfg.Auth.JWTSecret = "s"
	cfg.Secrets.Passphrase = "p"
	assert.NoError(t, cfg.RequireSecrets())
}
