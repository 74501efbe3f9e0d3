package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names an optional YAML file loaded between defaults and env.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Model   ModelConfig   `koanf:"model"`
	Logging LoggingConfig `koanf:"logging"`
	Client  ClientConfig  `koanf:"client"`
}

type ServerConfig struct {
	ListenAddr        string        `koanf:"listen_addr"`
	MaxImageBytes     int           `koanf:"max_image_bytes"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

type ModelConfig struct {
	Backend           string `koanf:"backend"`
	ClaudeAPIKey      string `koanf:"claude_api_key"`
	ClaudeBaseURL     string `koanf:"claude_base_url"`
	ClaudeVisionModel string `koanf:"claude_vision_model"`
	ClaudeTextModel   string `koanf:"claude_text_model"`
	OllamaHost        string `koanf:"ollama_host"`
	OllamaVisionModel string `koanf:"ollama_vision_model"`
	OllamaTextModel   string `koanf:"ollama_text_model"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

type ClientConfig struct {
	ServerURL string        `koanf:"server_url"`
	Timeout   time.Duration `koanf:"timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:        ":8080",
			MaxImageBytes:     10 * 1024 * 1024,
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{},
		},
		Model: ModelConfig{
			Backend:           "claude",
			ClaudeVisionModel: "claude-sonnet-4-5",
			ClaudeTextModel:   "claude-haiku-4-5",
			OllamaHost:        "http://localhost:11434",
			OllamaVisionModel: "llava",
			OllamaTextModel:   "llama3.2",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:8080",
			Timeout:   2 * time.Minute,
		},
	}
}

// envMappings maps flat environment variable names to koanf paths.
var envMappings = map[string]string{
	"listen_addr":         "server.listen_addr",
	"max_image_bytes":     "server.max_image_bytes",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"cors_origins":        "server.cors_origins",
	"model_backend":       "model.backend",
	"claude_api_key":      "model.claude_api_key",
	"claude_base_url":     "model.claude_base_url",
	"claude_vision_model": "model.claude_vision_model",
	"claude_text_model":   "model.claude_text_model",
	"ollama_host":         "model.ollama_host",
	"ollama_vision_model": "model.ollama_vision_model",
	"ollama_text_model":   "model.ollama_text_model",
	"log_level":           "logging.level",
	"log_format":          "logging.format",
	"log_file":            "logging.file",
	"server_url":          "client.server_url",
	"client_timeout":      "client.timeout",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load layers struct defaults, an optional YAML file named by CONFIG_PATH and
// environment variables, in increasing priority.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// CORS_ORIGINS arrives as one comma-separated string.
	if origins, ok := k.Get("server.cors_origins").(string); ok {
		if err := k.Set("server.cors_origins", splitList(origins)); err != nil {
			return nil, fmt.Errorf("failed to parse cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would make the server unusable.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case "claude", "ollama":
	default:
		return fmt.Errorf("unknown model backend %q (want claude or ollama)", c.Model.Backend)
	}
	if c.Server.MaxImageBytes <= 0 {
		return fmt.Errorf("max image bytes must be positive, got %d", c.Server.MaxImageBytes)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
