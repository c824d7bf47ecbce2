package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Digitransit DigitransitConfig `mapstructure:"digitransit"`
	Board       BoardConfig       `mapstructure:"board"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DigitransitConfig struct {
	APIKey       string `mapstructure:"api_key"`
	RoutingURL   string `mapstructure:"routing_url"`
	GeocodingURL string `mapstructure:"geocoding_url"`
}

type BoardConfig struct {
	// RefreshSeconds is the auto-refresh cadence for live board sessions.
	RefreshSeconds int `mapstructure:"refresh_seconds"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	// Addr may be empty; preferences then live in process memory only.
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("digitransit.api_key", "")
	v.SetDefault("digitransit.routing_url", "https://api.digitransit.fi/routing/v2/hsl/gtfs/v1")
	v.SetDefault("digitransit.geocoding_url", "https://api.digitransit.fi/geocoding/v1/search")
	v.SetDefault("board.refresh_seconds", 30)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: HELSINKIMOVES_DIGITRANSIT_API_KEY → digitransit.api_key
	v.SetEnvPrefix("HELSINKIMOVES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Digitransit.APIKey == "" {
		errs = append(errs, "digitransit.api_key is required")
	}
	if c.Digitransit.RoutingURL == "" {
		errs = append(errs, "digitransit.routing_url is required")
	}
	if c.Digitransit.GeocodingURL == "" {
		errs = append(errs, "digitransit.geocoding_url is required")
	}
	if c.Board.RefreshSeconds < 5 {
		errs = append(errs, "board.refresh_seconds must be at least 5")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
