// Package proxy decides, for every message event, whether it is a user's own
// message or a webhook rewrite posted by a proxy bot, and emits exactly one
// terminal notification per original message.
package proxy

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"discord-pk-bot/models"
)

// MessageHandler defines the interface for handling Discord message events.
type MessageHandler interface {
	// HandleCreate is called when a new message is created.
	HandleCreate(ctx context.Context, m *discordgo.MessageCreate)

	// HandleUpdate is called when a message is updated (edited).
	HandleUpdate(ctx context.Context, m *discordgo.MessageUpdate)

	// HandleDelete is called when a message is deleted.
	HandleDelete(ctx context.Context, m *discordgo.MessageDelete)

	// Close releases background resources such as the sweep task.
	Close() error
}

// Dispatcher receives the terminal notifications.
type Dispatcher interface {
	DispatchProxied(ctx context.Context, ev models.ProxiedEvent)
	DispatchUnproxied(ctx context.Context, ev models.UnproxiedEvent)
}

// Platform is the part of the chat platform the reconciler reads from.
type Platform interface {
	Channel(channelID string) (*discordgo.Channel, error)
	ChannelWebhooks(channelID string) ([]*discordgo.Webhook, error)
	ChannelMessage(channelID, messageID string) (*discordgo.Message, error)
	GuildMember(guildID, userID string) (*discordgo.Member, error)
}

// ConfigStore loads and persists per-guild proxy settings. Get must return
// models.ErrGuildConfigNotFound for guilds without a stored config.
type ConfigStore interface {
	Get(ctx context.Context, guildID string) (*models.GuildProxyConfig, error)
	Save(ctx context.Context, cfg models.GuildProxyConfig) error
}

// RecordLookup queries the proxy service. A nil record with a nil error is a miss.
type RecordLookup interface {
	Lookup(ctx context.Context, apiURL, messageID string) (*models.ProxyRecord, error)
}
