package config

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/adamgordonbell/c3-azure-demo/pkg/logger"
)

// Config holds all the configuration for the joke service.
// The mapstructure tags tell Viper which YAML field maps to which Go struct field.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Completion CompletionConfig `mapstructure:"completion"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// CompletionConfig points at an OpenAI-compatible chat-completions endpoint.
type CompletionConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Configured reports whether the AI path can be attempted at all.
func (c CompletionConfig) Configured() bool {
	return c.Endpoint != "" && c.APIKey != ""
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"requests_per_second"`
	Burst   int     `mapstructure:"burst"`
}

// Store wraps configuration with thread-safe access and hot-reload updates.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil
	}
	cpy := *s.cfg
	return &cpy
}

func (s *Store) set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// NewStatic wraps an already-built config in a Store. Useful for tests and
// for embedding the service without a config file.
func NewStatic(cfg *Config) *Store {
	s := &Store{}
	s.set(cfg)
	return s
}

// LoadAndWatch loads the config and watches for on-disk changes.
// Environment variables prefixed with C3_ override file values
// (e.g. C3_COMPLETION_API_KEY overrides completion.api_key).
func LoadAndWatch() (*Store, error) {
	v := viper.New()
	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("C3")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: defaults plus env vars still make a
		// runnable config. Any other read error is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	store := &Store{}
	if err := refresh(v, store); err != nil {
		return nil, err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := refresh(v, store); err != nil {
			logger.Error("config reload failed", logger.Err(err))
		} else {
			logger.Info("config reloaded", logger.String("file", e.Name))
		}
	})

	return store, nil
}

// Load preserves the watch-free API: it loads once and does not watch.
func Load() (*Config, error) {
	store, err := LoadAndWatch()
	if err != nil {
		return nil, err
	}
	return store.Get(), nil
}

// setDefaults registers every key. Viper only honors env overrides for keys
// it already knows about, so even zero-valued keys get a default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "c3-joke-service")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("completion.endpoint", "")
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.model", "gpt-4o-mini")
	v.SetDefault("completion.max_tokens", 100)
	v.SetDefault("completion.temperature", 0.9)
	v.SetDefault("completion.timeout", 15*time.Second)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_second", 5.0)
	v.SetDefault("ratelimit.burst", 10)
}

func refresh(v *viper.Viper, store *Store) error {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	store.set(&cfg)
	return nil
}
