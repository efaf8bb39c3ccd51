package config

import apperrors "github.com/dbsweeper/dbsweeper/internal/errors"

// DBConfig contains MySQL database configuration.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Validate checks required fields and fills the default port.
func (c *DBConfig) Validate() error {
	if c.Host == "" {
		return apperrors.Config("database host cannot be empty")
	}
	if c.Username == "" {
		return apperrors.Config("database username cannot be empty")
	}
	if c.Database == "" {
		return apperrors.Config("database name cannot be empty")
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Port < 0 || c.Port > 65535 {
		return apperrors.Configf("database port out of range: %d", c.Port)
	}
	return nil
}
