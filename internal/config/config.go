package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Airtable  AirtableConfig  `yaml:"airtable"`
	Auth      AuthConfig      `yaml:"auth"`
	Journal   JournalConfig   `yaml:"journal"`
	Lock      LockConfig      `yaml:"lock"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AirtableConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseID  string        `yaml:"base_id"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig holds the optional shared key expected in X-API-Key on
// inbound webhook requests. Empty disables the check.
type AuthConfig struct {
	WebhookKey string `yaml:"webhook_key"`
}

type JournalConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type LockConfig struct {
	Redis RedisConfig   `yaml:"redis"`
	TTL   time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Journal drivers.
const (
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
	JournalNone     = "none"
)

func defaults() *Config {
	return &Config{
		Server:    ServerConfig{Port: 3000},
		Airtable:  AirtableConfig{BaseURL: "https://api.airtable.com/v0", Timeout: 30 * time.Second},
		Journal:   JournalConfig{Driver: JournalSQLite, Path: "data/journal.db"},
		Lock:      LockConfig{TTL: 2 * time.Minute},
		MQTT:      MQTTConfig{Topic: "haetable/deliveries", ClientID: "haetable"},
		Tailscale: TailscaleConfig{Hostname: "haetable", StateDir: "tsnet-state"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is not an error; defaults and the environment
// are used instead. Env vars use the prefix HAETABLE_ and underscore-separated
// paths, plus the bare names PORT, AIRTABLE_API_KEY and AIRTABLE_BASE_ID:
//
//	HAETABLE_SERVER_HOST, HAETABLE_SERVER_PORT,
//	HAETABLE_AIRTABLE_API_KEY, HAETABLE_AIRTABLE_BASE_ID,
//	HAETABLE_AIRTABLE_BASE_URL, HAETABLE_AIRTABLE_TIMEOUT,
//	HAETABLE_AUTH_WEBHOOK_KEY,
//	HAETABLE_JOURNAL_DRIVER, HAETABLE_JOURNAL_PATH, HAETABLE_JOURNAL_DSN,
//	HAETABLE_LOCK_REDIS_ADDR, HAETABLE_LOCK_REDIS_PASSWORD, HAETABLE_LOCK_REDIS_DB,
//	HAETABLE_MQTT_BROKER, HAETABLE_MQTT_TOPIC,
//	HAETABLE_TAILSCALE_ENABLED, HAETABLE_LOG_LEVEL, HAETABLE_LOG_FORMAT
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HAETABLE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	// PORT is the conventional platform variable; the prefixed one wins.
	for _, key := range []string{"PORT", "HAETABLE_SERVER_PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Server.Port = port
			}
		}
	}
	for _, key := range []string{"AIRTABLE_API_KEY", "HAETABLE_AIRTABLE_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			cfg.Airtable.APIKey = v
		}
	}
	for _, key := range []string{"AIRTABLE_BASE_ID", "HAETABLE_AIRTABLE_BASE_ID"} {
		if v := os.Getenv(key); v != "" {
			cfg.Airtable.BaseID = v
		}
	}
	if v := os.Getenv("HAETABLE_AIRTABLE_BASE_URL"); v != "" {
		cfg.Airtable.BaseURL = v
	}
	if v := os.Getenv("HAETABLE_AIRTABLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Airtable.Timeout = d
		}
	}
	if v := os.Getenv("HAETABLE_AUTH_WEBHOOK_KEY"); v != "" {
		cfg.Auth.WebhookKey = v
	}
	if v := os.Getenv("HAETABLE_JOURNAL_DRIVER"); v != "" {
		cfg.Journal.Driver = v
	}
	if v := os.Getenv("HAETABLE_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("HAETABLE_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
	}
	if v := os.Getenv("HAETABLE_LOCK_REDIS_ADDR"); v != "" {
		cfg.Lock.Redis.Addr = v
	}
	if v := os.Getenv("HAETABLE_LOCK_REDIS_PASSWORD"); v != "" {
		cfg.Lock.Redis.Password = v
	}
	if v := os.Getenv("HAETABLE_LOCK_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Lock.Redis.DB = db
		}
	}
	if v := os.Getenv("HAETABLE_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("HAETABLE_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}
	if v := os.Getenv("HAETABLE_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("HAETABLE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HAETABLE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Airtable.APIKey == "" {
		return fmt.Errorf("airtable.api_key is required")
	}
	if c.Airtable.BaseID == "" {
		return fmt.Errorf("airtable.base_id is required")
	}
	if c.Airtable.Timeout <= 0 {
		return fmt.Errorf("airtable.timeout must be positive")
	}
	switch c.Journal.Driver {
	case JournalSQLite:
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path is required for the sqlite journal")
		}
	case JournalPostgres:
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal.dsn is required for the postgres journal")
		}
	case JournalNone:
	default:
		return fmt.Errorf("journal.driver %q is not one of sqlite, postgres, none", c.Journal.Driver)
	}
	if c.Lock.Redis.Addr != "" && c.Lock.TTL <= 0 {
		return fmt.Errorf("lock.ttl must be positive")
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt.broker is set")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}
	return nil
}

// Addr returns the host:port the plain HTTP listener binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger on w.
func (l LogConfig) NewLogger(w *os.File) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(l.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
