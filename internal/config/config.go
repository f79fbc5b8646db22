// Package config loads server and router settings from an optional YAML
// file and FOUNDRY_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/foundry-express/internal/body"
	"github.com/Brownie44l1/foundry-express/internal/router"
	"github.com/Brownie44l1/foundry-express/internal/server"
)

// EnvPrefix is prepended to every environment override, e.g. FOUNDRY_SERVER_ADDR
const EnvPrefix = "FOUNDRY"

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Router RouterConfig `mapstructure:"router" yaml:"router"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes" yaml:"max_header_bytes"`
	MaxBodySize     int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
}

type RouterConfig struct {
	Encoding    string `mapstructure:"encoding" yaml:"encoding"`
	ParseFormat string `mapstructure:"parse_format" yaml:"parse_format"` // raw, json or querystring
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Otel  bool   `mapstructure:"otel" yaml:"otel"` // send records to the OpenTelemetry bridge
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodySize:     10 << 20,
		},
		Router: RouterConfig{
			Encoding:    router.DefaultEncoding,
			ParseFormat: body.Raw.String(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path when it is non-empty, then applies environment
// overrides. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Viper only consults the environment for keys it knows about
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_header_bytes", d.Server.MaxHeaderBytes)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("router.encoding", d.Router.Encoding)
	v.SetDefault("router.parse_format", d.Router.ParseFormat)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.otel", d.Log.Otel)
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("invalid server.read_timeout: %s", c.Server.ReadTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 || c.Server.MaxBodySize < 0 {
		return fmt.Errorf("size limits must not be negative")
	}

	if _, err := body.ParseFormat(c.Router.ParseFormat); err != nil {
		return fmt.Errorf("invalid router.parse_format: %w", err)
	}
	if _, err := body.LookupEncoding(c.Router.Encoding); err != nil {
		return fmt.Errorf("invalid router.encoding: %w", err)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// ServerSettings converts to the host server settings
func (c *Config) ServerSettings() server.Config {
	return server.Config{
		Addr:           c.Server.Addr,
		ReadTimeout:    c.Server.ReadTimeout,
		MaxHeaderBytes: c.Server.MaxHeaderBytes,
		MaxBodySize:    c.Server.MaxBodySize,
	}
}

// RouterSettings converts to router defaults. Validate must have passed.
func (c *Config) RouterSettings() router.Settings {
	format, _ := body.ParseFormat(c.Router.ParseFormat)
	return router.Settings{
		Encoding:    c.Router.Encoding,
		ParseFormat: format,
	}
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// YAML renders the effective configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
