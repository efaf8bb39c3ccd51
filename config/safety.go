package config

// SafetyConfig is the destructive-statement safety policy. When enabled,
// every rendered statement must provably exclude rows newer than
// RetentionDays before it may execute. Read-only during a run.
type SafetyConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RetentionDays uint64 `yaml:"retention_days"`
}
