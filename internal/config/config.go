// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config contains runtime configuration for the hive orchestrator.
// Secrets are never read from the config file: the submission key comes
// from AEGIS_API_KEY and each forensic endpoint names the env var
// holding its credential.
type Config struct {
	Server   ServerConfig       `yaml:"server" mapstructure:"server"`
	Model    ModelConfig        `yaml:"model" mapstructure:"model"`
	Watcher  WatcherConfig      `yaml:"watcher" mapstructure:"watcher"`
	History  HistoryConfig      `yaml:"history" mapstructure:"history"`
	Capture  CaptureConfig      `yaml:"capture" mapstructure:"capture"`
	Forensic []ForensicEndpoint `yaml:"forensic" mapstructure:"forensic"`
	APIKey   string             `yaml:"-" mapstructure:"-"`
}

// ServerConfig captures HTTP server settings.
type ServerConfig struct {
	ListenAddr          string `yaml:"listen_addr" mapstructure:"listen_addr"`
	TLSCert             string `yaml:"tls_cert" mapstructure:"tls_cert"`
	TLSKey              string `yaml:"tls_key" mapstructure:"tls_key"`
	MaxPayloadBytes     int64  `yaml:"max_payload_bytes" mapstructure:"max_payload_bytes"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds" mapstructure:"idle_timeout_seconds"`
}

// ModelConfig locates the classifier artifact and sets the decision
// threshold.
type ModelConfig struct {
	Path      string  `yaml:"path" mapstructure:"path"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// WatcherConfig captures the ingestion watcher settings.
type WatcherConfig struct {
	Dir                 string `yaml:"dir" mapstructure:"dir"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
}

// HistoryConfig bounds the in-memory detection ledger.
type HistoryConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
}

// CaptureConfig locates the durable audit log.
type CaptureConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ForensicEndpoint is one text-generation provider in the fallback
// chain. The credential is resolved from APIKeyEnv at load time.
type ForensicEndpoint struct {
	URL            string `yaml:"url" mapstructure:"url"`
	Model          string `yaml:"model" mapstructure:"model"`
	APIKeyEnv      string `yaml:"api_key_env" mapstructure:"api_key_env"`
	APIKey         string `yaml:"-" mapstructure:"-"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ReadTimeout returns the configured read timeout as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the configured write timeout as a duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// IdleTimeout returns the configured idle timeout as a duration.
func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

// PollInterval returns the watcher poll delay as a duration.
func (w WatcherConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// Load reads configuration from an optional YAML file, applying
// defaults and environment overrides. An empty path loads defaults
// only.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.listen_addr", ":8000")
	v.SetDefault("server.max_payload_bytes", int64(1<<20))
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 60)
	v.SetDefault("server.idle_timeout_seconds", 120)

	v.SetDefault("model.path", "models/aegis_model.json")
	v.SetDefault("model.threshold", 0.25)

	v.SetDefault("watcher.dir", "data/incoming_telemetry")
	v.SetDefault("watcher.poll_interval_seconds", 5)

	v.SetDefault("history.capacity", 20)
	v.SetDefault("capture.path", "data/lab_captures.csv")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Submission key comes from the environment only.
	cfg.APIKey = os.Getenv("AEGIS_API_KEY")

	// Default forensic chain: Gemini through its OpenAI-compatible
	// surface, credential from GEMINI_API_KEY.
	if len(cfg.Forensic) == 0 {
		cfg.Forensic = []ForensicEndpoint{{
			URL:       "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:     "gemini-2.0-flash",
			APIKeyEnv: "GEMINI_API_KEY",
		}}
	}
	for i := range cfg.Forensic {
		if cfg.Forensic[i].APIKeyEnv != "" {
			cfg.Forensic[i].APIKey = os.Getenv(cfg.Forensic[i].APIKeyEnv)
		}
		if cfg.Forensic[i].TimeoutSeconds <= 0 {
			cfg.Forensic[i].TimeoutSeconds = 60
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.MaxPayloadBytes <= 0 {
		return fmt.Errorf("server.max_payload_bytes must be positive")
	}
	if c.Model.Threshold <= 0 || c.Model.Threshold > 1 {
		return fmt.Errorf("model.threshold must be in (0, 1], got %v", c.Model.Threshold)
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history.capacity must be positive")
	}
	return nil
}
