package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "desk.yml"

// Config models desk.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
		DataDir  string `yaml:"data_dir"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	LLM struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"llm"`
	Agent struct {
		MaxRounds         int    `yaml:"max_rounds"`
		SystemPromptExtra string `yaml:"system_prompt_extra"`
	} `yaml:"agent"`
	Fetch struct {
		Timeout  time.Duration `yaml:"timeout"`
		MaxBytes int64         `yaml:"max_bytes"`
	} `yaml:"fetch"`
	Secrets struct {
		Passphrase string `yaml:"passphrase"`
	} `yaml:"secrets"`
}

// Providers lists the model providers a workspace key may belong to.
var Providers = []string{"anthropic", "openai"}

// ValidProvider reports whether p is a supported provider.
func ValidProvider(p string) bool {
	for _, v := range Providers {
		if v == p {
			return true
		}
	}
	return false
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v1"
	cfg.Server.DataDir = ".creatordesk"
	cfg.Auth.TokenTTL = 24 * time.Hour
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.MaxTokens = 4096
	cfg.Agent.MaxRounds = 8
	cfg.Fetch.Timeout = 5 * time.Second
	cfg.Fetch.MaxBytes = 100 << 10
	return &cfg
}

// Validate checks ranges and enums. Secrets are checked separately by the
// commands that need them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with '/' (got %q)", c.Server.BasePath)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config.auth.token_ttl must be positive")
	}
	if !ValidProvider(c.LLM.Provider) {
		return fmt.Errorf("config.llm.provider must be one of %s", strings.Join(Providers, ", "))
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 64000 {
		return errors.New("config.llm.max_tokens must be between 1 and 64000")
	}
	if c.Agent.MaxRounds < 1 || c.Agent.MaxRounds > 20 {
		return errors.New("config.agent.max_rounds must be between 1 and 20")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.New("config.fetch.timeout must be positive")
	}
	if c.Fetch.MaxBytes < 1024 {
		return errors.New("config.fetch.max_bytes must be at least 1024")
	}
	return nil
}

// RequireSecrets ensures the values needed to serve requests are present.
func (c *Config) RequireSecrets() error {
	var missing []string
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		missing = append(missing, "auth.jwt_secret (DESK_JWT_SECRET)")
	}
	if strings.TrimSpace(c.Secrets.Passphrase) == "" {
		missing = append(missing, "secrets.passphrase (DESK_SECRETS_PASSPHRASE)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, FileName)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GenerateDefault returns a commented desk.yml with the built-in values.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1
  data_dir: .creatordesk

auth:
  # Prefer DESK_JWT_SECRET over storing the secret here.
  jwt_secret: ""
  token_ttl: 24h

llm:
  provider: anthropic   # anthropic | openai
  model: ""             # empty uses the provider default
  max_tokens: 4096

agent:
  max_rounds: 8
  system_prompt_extra: ""

fetch:
  timeout: 5s
  max_bytes: 102400

secrets:
  # Prefer DESK_SECRETS_PASSPHRASE. Changing it makes stored model keys unreadable.
  passphrase: ""
`
