package config

// MetricsConfig controls telemetry export settings.
type MetricsConfig struct {
	Enabled      bool
	Port         string
	OtlpEndpoint string
	ServiceName  string
	OtlpInsecure bool
}

func defaultMetrics() MetricsConfig {
	return MetricsConfig{
		Enabled:      true,
		Port:         defaultMetricsPort,
		ServiceName:  defaultServiceName,
		OtlpInsecure: true,
	}
}

func (m MetricsConfig) fromEnv() MetricsConfig {
	return MetricsConfig{
		Enabled:      boolEnvOrDefault(envMetricsOn, m.Enabled),
		Port:         envOrDefault(envMetricsPort, m.Port),
		OtlpEndpoint: envOrDefault(envOtelEndpoint, m.OtlpEndpoint),
		ServiceName:  envOrDefault(envOtelService, m.ServiceName),
		OtlpInsecure: boolEnvOrDefault(envOtelInsecure, m.OtlpInsecure),
	}
}
