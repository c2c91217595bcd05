package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/text/language"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "narratium.yaml"

// DevToken is the bearer credential accepted by development backends.
const DevToken = "dev-token-123"

type Config struct {
	API        APIConfig        `koanf:"api"`
	Game       GameConfig       `koanf:"game"`
	Transcript TranscriptConfig `koanf:"transcript"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Mock       MockConfig       `koanf:"mock"`
}

type APIConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Token     string        `koanf:"token"`    // Supports ${VAR} substitution
	DevMode   bool          `koanf:"dev_mode"` // Use DevToken when no token is set
	Timeout   time.Duration `koanf:"timeout"`  // Per non-streaming request
	UserAgent string        `koanf:"user_agent"`
}

type GameConfig struct {
	Model     string `koanf:"model"`
	Language  string `koanf:"language"` // BCP 47 tag, canonicalized on load
	Type      string `koanf:"type"`
	Framework string `koanf:"framework"`
	Streaming bool   `koanf:"streaming"`
}

type TranscriptConfig struct {
	Driver string `koanf:"driver"` // memory, sqlite, none
	Path   string `koanf:"path"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// MockConfig configures the scripted backend started by serve-mock.
type MockConfig struct {
	Port       int           `koanf:"port"`
	ChunkSize  int           `koanf:"chunk_size"` // Runes per chunk record
	ChunkDelay time.Duration `koanf:"chunk_delay"`
}

var defaults = map[string]any{
	"api.base_url":           "http://localhost:8000",
	"api.timeout":            "60s",
	"api.user_agent":         "narratium-client/1.0",
	"game.model":             "qwen2.5-14b-instruct-1m",
	"game.language":          "zh",
	"game.type":              "openai",
	"game.framework":         "This is an open-world fantasy adventure. The player explores freely and the world reacts to their choices.",
	"game.streaming":         true,
	"transcript.driver":      "memory",
	"transcript.path":        "narratium.db",
	"telemetry.service_name": "narratium-client",
	"mock.port":              8000,
	"mock.chunk_size":        10,
	"mock.chunk_delay":       "50ms",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path (DefaultPath when empty; a missing file is
// fine), then NARRATIUM_ environment variables, then defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("NARRATIUM_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "NARRATIUM_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.API.Token = substituteEnvVars(cfg.API.Token)
	if cfg.API.Token == "" && cfg.API.DevMode {
		cfg.API.Token = DevToken
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration and canonicalizes the game language.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}

	tag, err := language.Parse(c.Game.Language)
	if err != nil {
		return fmt.Errorf("game.language %q: %w", c.Game.Language, err)
	}
	c.Game.Language = tag.String()

	switch c.Transcript.Driver {
	case "memory", "none":
	case "sqlite":
		if c.Transcript.Path == "" {
			return fmt.Errorf("transcript.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown transcript.driver %q", c.Transcript.Driver)
	}

	if c.Mock.ChunkSize <= 0 {
		return fmt.Errorf("mock.chunk_size must be positive")
	}

	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
