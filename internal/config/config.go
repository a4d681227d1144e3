package config

import (
	"fmt"
	"strings"
)

// Config holds runtime configuration for the server.
type Config struct {
	Port       string
	Provider   string
	AdminToken string
	LogLevel   string
	LogFormat  string
	Poller     PollerConfig
	SellerAPI  SellerAPIConfig
	Metrics    MetricsConfig
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:      defaultPort,
		Provider:  defaultProvider,
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		Poller:    defaultPoller(),
		SellerAPI: defaultSellerAPI(),
		Metrics:   defaultMetrics(),
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Default().fromEnv()
}

// LoadFile reads a YAML file over the defaults, then applies environment
// overrides. An empty path uses the environment alone. Either way the result
// is validated.
func LoadFile(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Load()
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	cfg, err := readFile(path, Default())
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.fromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot run with.
func (c Config) Validate() error {
	if c.Poller.Interval < MinPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", MinPollInterval, c.Poller.Interval)
	}
	switch strings.ToLower(c.Poller.SoftFailure) {
	case "", "drop", "escalate":
	default:
		return fmt.Errorf("soft_failure must be drop or escalate, got %q", c.Poller.SoftFailure)
	}
	switch strings.ToLower(c.Provider) {
	case "fixture", "sellerapi":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	return nil
}

func (c Config) fromEnv() Config {
	return Config{
		Port:       envOrDefault(envPort, c.Port),
		Provider:   envOrDefault(envProvider, c.Provider),
		AdminToken: envOrDefault(envAdminToken, c.AdminToken),
		LogLevel:   envOrDefault(envLogLevel, c.LogLevel),
		LogFormat:  envOrDefault(envLogFormat, c.LogFormat),
		Poller:     c.Poller.fromEnv(),
		SellerAPI:  c.SellerAPI.fromEnv(),
		Metrics:    c.Metrics.fromEnv(),
	}
}
