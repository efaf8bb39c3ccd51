package config

import (
	"log/slog"
	"os"
	"regexp"
)

// envRefPattern matches ${NAME} and ${NAME:-default} references.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// secretNamePattern flags variable names whose values must never appear in
// diagnostic logs.
var secretNamePattern = regexp.MustCompile(`(?i)(password|secret|token|key)`)

// ExpandEnv resolves ${NAME} and ${NAME:-default} references against the
// process environment. An unset variable without a default resolves to the
// empty string. Substitutions are logged at debug level with secret-like
// names redacted.
func ExpandEnv(input string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	return envRefPattern.ReplaceAllStringFunc(input, func(ref string) string {
		groups := envRefPattern.FindStringSubmatch(ref)
		name := groups[1]
		hasDefault := groups[2] != ""
		defaultValue := groups[3]

		value, ok := os.LookupEnv(name)
		if !ok {
			if hasDefault {
				value = defaultValue
			} else {
				value = ""
			}
		}

		logged := value
		if secretNamePattern.MatchString(name) {
			logged = "[REDACTED]"
		}
		logger.Debug("substituting environment variable", "name", name, "value", logged)

		return value
	})
}
