package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

const DefaultServiceName = "meteringest"

type ObservabilityConfig struct {
	ServiceName string         `koanf:"service_name"`
	Environment string         `koanf:"environment"`
	Logging     LoggingConfig  `koanf:"logging"`
	NewRelic    NewRelicConfig `koanf:"new_relic"`
	Metrics     MetricsConfig  `koanf:"metrics"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

type NewRelicConfig struct {
	LicenseKey string `koanf:"license_key"`
	// AppName defaults to the service name.
	AppName string `koanf:"app_name"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		ServiceName: DefaultServiceName,
		Environment: "development",
		Logging:     LoggingConfig{Level: "info"},
		Metrics:     MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func (o *ObservabilityConfig) Validate() error {
	if o.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if o.Logging.Level == "" {
		o.Logging.Level = "info"
	}
	if _, err := zerolog.ParseLevel(o.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if o.Metrics.Enabled && o.Metrics.Path == "" {
		o.Metrics.Path = "/metrics"
	}
	if o.NewRelic.LicenseKey != "" && len(o.NewRelic.LicenseKey) != 40 {
		return fmt.Errorf("new_relic.license_key must be 40 characters")
	}
	return nil
}

// NewRelicEnabled reports whether an APM agent should be started.
func (o *ObservabilityConfig) NewRelicEnabled() bool {
	return o != nil && o.NewRelic.LicenseKey != ""
}

func (o *ObservabilityConfig) IsProduction() bool {
	return o != nil && o.Environment == "production"
}
