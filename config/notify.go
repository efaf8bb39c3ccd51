package config

import apperrors "github.com/dbsweeper/dbsweeper/internal/errors"

// NotifyConfig configures the Slack notification channel. When disabled, run
// reports are logged but not delivered anywhere.
type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Validate requires credentials only when the channel is enabled.
func (c *NotifyConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.BotToken == "" {
		return apperrors.Config("notifications enabled but bot_token is empty")
	}
	if c.ChannelID == "" {
		return apperrors.Config("notifications enabled but channel_id is empty")
	}
	return nil
}
