package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. INSIGHTS_SERVER_HTTP_PORT
const EnvPrefix = "INSIGHTS_"

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Data    DataConfig    `yaml:"data" envPrefix:"DATA_"`
	Gallery GalleryConfig `yaml:"gallery" envPrefix:"GALLERY_"`
	Events  EventsConfig  `yaml:"events" envPrefix:"EVENTS_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	HTTPPort     int           `yaml:"http_port" env:"HTTP_PORT"`
	StaticDir    string        `yaml:"static_dir" env:"STATIC_DIR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
}

// DataConfig describes where match data comes from
type DataConfig struct {
	// StaticSource is a local path or http(s) URL of the default match file
	StaticSource   string        `yaml:"static_source" env:"STATIC_SOURCE"`
	CacheSize      int           `yaml:"cache_size" env:"CACHE_SIZE"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

// GalleryConfig holds weapons gallery settings
type GalleryConfig struct {
	SourceDir string `yaml:"source_dir" env:"SOURCE_DIR"`
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
	ThumbSize int    `yaml:"thumb_size" env:"THUMB_SIZE"`
}

// EventsConfig holds NATS settings. Events are only published when
// NATSURL is set or Embedded is true.
type EventsConfig struct {
	NATSURL      string `yaml:"nats_url" env:"NATS_URL"`
	Subject      string `yaml:"subject" env:"SUBJECT"`
	Embedded     bool   `yaml:"embedded" env:"EMBEDDED"`
	EmbeddedHost string `yaml:"embedded_host" env:"EMBEDDED_HOST"`
	EmbeddedPort int    `yaml:"embedded_port" env:"EMBEDDED_PORT"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file, then applies .env files and
// INSIGHTS_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads .env beside the config file and in the working directory.
// Variables already set in the environment win.
func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	seen := make(map[string]bool)
	for _, p := range candidates {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	// StaticDir has no default: empty means don't serve static files

	if c.Data.CacheSize == 0 {
		c.Data.CacheSize = 8
	}
	if c.Data.FetchTimeout == 0 {
		c.Data.FetchTimeout = 15 * time.Second
	}
	if c.Data.MaxUploadBytes == 0 {
		c.Data.MaxUploadBytes = 10 << 20
	}

	if c.Gallery.ThumbSize == 0 {
		c.Gallery.ThumbSize = 256
	}

	if c.Events.Subject == "" {
		c.Events.Subject = "insights.events"
	}
	if c.Events.EmbeddedHost == "" {
		c.Events.EmbeddedHost = "127.0.0.1"
	}
	if c.Events.EmbeddedPort == 0 {
		c.Events.EmbeddedPort = 4222
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if c.Data.CacheSize < 0 {
		return fmt.Errorf("data.cache_size must not be negative")
	}
	if c.Data.MaxUploadBytes < 0 {
		return fmt.Errorf("data.max_upload_bytes must not be negative")
	}
	if c.Gallery.ThumbSize < 0 {
		return fmt.Errorf("gallery.thumb_size must not be negative")
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.ListenAddr, c.Server.HTTPPort)
}
