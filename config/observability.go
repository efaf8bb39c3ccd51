package config

// ObservabilityConfig configures metrics emission.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig configures the StatsD sink.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StatsdAddress string `yaml:"statsd_address"`
}

// IsEnabled reports whether metrics should be emitted.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}
