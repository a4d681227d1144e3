package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a config file. Unset fields keep the
// value they had before the file was applied.
type fileConfig struct {
	Port       string `yaml:"port"`
	Provider   string `yaml:"provider"`
	AdminToken string `yaml:"admin_token"`
	Log        struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Poller struct {
		Interval     *fileDuration `yaml:"interval"`
		FetchTimeout *fileDuration `yaml:"fetch_timeout"`
		SoftFailure  string        `yaml:"soft_failure"`
		Autostart    *bool         `yaml:"autostart"`
	} `yaml:"poller"`
	SellerAPI struct {
		BaseURL      string        `yaml:"base_url"`
		Token        string        `yaml:"token"`
		Timeout      *fileDuration `yaml:"timeout"`
		RateInterval *fileDuration `yaml:"rate_interval"`
		PerPage      int           `yaml:"per_page"`
	} `yaml:"seller_api"`
	Metrics struct {
		Enabled      *bool  `yaml:"enabled"`
		Port         string `yaml:"port"`
		OtlpEndpoint string `yaml:"otlp_endpoint"`
		ServiceName  string `yaml:"service_name"`
		OtlpInsecure *bool  `yaml:"otlp_insecure"`
	} `yaml:"metrics"`
}

// fileDuration accepts duration strings like "10s" or "1m".
type fileDuration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *fileDuration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = fileDuration(parsed)
	return nil
}

func readFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return parse(data, base)
}

// parse applies YAML over base. ${VAR} references are expanded from the environment.
func parse(data []byte, base Config) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return fc.apply(base), nil
}

func (fc fileConfig) apply(cfg Config) Config {
	setString(&cfg.Port, fc.Port)
	setString(&cfg.Provider, fc.Provider)
	setString(&cfg.AdminToken, fc.AdminToken)
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)

	setDuration(&cfg.Poller.Interval, fc.Poller.Interval)
	setDuration(&cfg.Poller.FetchTimeout, fc.Poller.FetchTimeout)
	setString(&cfg.Poller.SoftFailure, fc.Poller.SoftFailure)
	setBool(&cfg.Poller.Autostart, fc.Poller.Autostart)

	setString(&cfg.SellerAPI.BaseURL, fc.SellerAPI.BaseURL)
	setString(&cfg.SellerAPI.Token, fc.SellerAPI.Token)
	setDuration(&cfg.SellerAPI.Timeout, fc.SellerAPI.Timeout)
	setDuration(&cfg.SellerAPI.RateInterval, fc.SellerAPI.RateInterval)
	if fc.SellerAPI.PerPage > 0 {
		cfg.SellerAPI.PerPage = fc.SellerAPI.PerPage
	}

	setBool(&cfg.Metrics.Enabled, fc.Metrics.Enabled)
	setString(&cfg.Metrics.Port, fc.Metrics.Port)
	setString(&cfg.Metrics.OtlpEndpoint, fc.Metrics.OtlpEndpoint)
	setString(&cfg.Metrics.ServiceName, fc.Metrics.ServiceName)
	setBool(&cfg.Metrics.OtlpInsecure, fc.Metrics.OtlpInsecure)
	return cfg
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *Duration, v *fileDuration) {
	if v != nil {
		*dst = Duration(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
