package models

import (
	"errors"
	"time"
)

// ErrGuildConfigNotFound is returned by config stores when a guild has no stored proxy config.
var ErrGuildConfigNotFound = errors.New("guild config not found")

// GuildProxyConfig represents the proxy settings stored for a single guild.
type GuildProxyConfig struct {
	GuildID   string    `json:"guild_id" mapstructure:"guild_id"`
	Enabled   bool      `json:"enabled" mapstructure:"enabled"`
	APIURL    string    `json:"api_url" mapstructure:"apiUrl"`
	BotID     string    `json:"bot_id" mapstructure:"botId"` // proxy bot that owns the webhooks
	UpdatedAt time.Time `json:"updated_at" mapstructure:"-"`
}

// WithGuild returns a copy of the config bound to the given guild.
func (c GuildProxyConfig) WithGuild(guildID string) GuildProxyConfig {
	c.GuildID = guildID
	return c
}
