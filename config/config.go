// Package config loads chatmesh settings from an optional YAML file and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// AppConfig is the root configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address" yaml:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type SessionConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	RedisURL   string `mapstructure:"redis_url" yaml:"redis_url"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	// Expire is the session lifetime in seconds.
	Expire int `mapstructure:"expire" yaml:"expire"`
}

// TTL returns the session lifetime.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.Expire) * time.Second
}

type EngineConfig struct {
	MaxConcurrentChats int `mapstructure:"max_concurrent_chats" yaml:"max_concurrent_chats"`
	EventBuffer        int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

type ModelConfig struct {
	Provider    string   `mapstructure:"provider" yaml:"provider"`
	Name        string   `mapstructure:"name" yaml:"name"`
	Models      []string `mapstructure:"models" yaml:"models"`
	APIKey      string   `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string   `mapstructure:"base_url" yaml:"base_url"`
	Temperature float64  `mapstructure:"temperature" yaml:"temperature"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Legacy environment names bound in addition to the CHATMESH_ prefixed keys.
var legacyEnv = map[string]string{
	"session.redis_url":           "REDIS_URL",
	"session.expire":              "SESSION_EXPIRE_TIME",
	"engine.max_concurrent_chats": "MAX_CONCURRENT_CHATS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("session.backend", BackendMemory)
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")
	v.SetDefault("session.sqlite_path", "chatmesh.db")
	v.SetDefault("session.expire", 3600)
	v.SetDefault("engine.max_concurrent_chats", 20)
	v.SetDefault("engine.event_buffer", 64)
	v.SetDefault("model.provider", "mock")
	v.SetDefault("model.name", "mock")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration. An empty path skips the file and uses
// defaults plus environment overrides.
func Load(path string) (*AppConfig, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads path and calls fn with every subsequent revision of the file.
// Revisions that fail to decode or validate are passed as errors; the last
// good configuration stays in effect for the caller.
func Watch(path string, fn func(*AppConfig, error)) (*AppConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("watch requires a config file")
	}
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		fn(decode(v))
	})
	v.WatchConfig()
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHATMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := "CHATMESH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// YAML renders the configuration with secrets redacted.
func (c *AppConfig) YAML() ([]byte, error) {
	redacted := *c
	if redacted.Model.APIKey != "" {
		redacted.Model.APIKey = "***"
	}
	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

// Validate checks enumerated and numeric settings.
func (c *AppConfig) Validate() error {
	switch c.Session.Backend {
	case BackendMemory, BackendRedis, BackendSQLite, BackendNone:
	default:
		return fmt.Errorf("invalid session backend %q", c.Session.Backend)
	}
	switch c.Model.Provider {
	case "mock", "openai", "anthropic":
	default:
		return fmt.Errorf("invalid model provider %q", c.Model.Provider)
	}
	if c.Session.Expire <= 0 {
		return fmt.Errorf("session expire must be positive, got %d", c.Session.Expire)
	}
	if c.Engine.MaxConcurrentChats <= 0 {
		return fmt.Errorf("max_concurrent_chats must be positive, got %d", c.Engine.MaxConcurrentChats)
	}
	return nil
}
