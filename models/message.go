package models

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// EventType names the platform event that produced a notification.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Outcome is the terminal state of a reconciled message.
type Outcome string

const (
	OutcomeProxied   Outcome = "proxied"
	OutcomeUnproxied Outcome = "unproxied"
)

// PendingMessage is a user message whose proxied or unproxied fate is not known yet.
type PendingMessage struct {
	MessageID string
	CreatedAt time.Time
	Event     *discordgo.MessageCreate
}

// ProxyRecord is the subset of a proxy service message record the bot consumes.
type ProxyRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	ID        string         `json:"id"`       // webhook message id
	Original  string         `json:"original"` // id of the user message that was replaced
	Sender    string         `json:"sender"`   // account that sent the original message
	Channel   string         `json:"channel"`
	Guild     string         `json:"guild"`
	System    *ProxySystem   `json:"system,omitempty"`
	Member    *ProxyIdentity `json:"member,omitempty"`
}

// ProxySystem identifies the system that proxied a message.
type ProxySystem struct {
	ID   string `json:"id"`
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// ProxyIdentity identifies the system member a message was proxied as.
type ProxyIdentity struct {
	ID          string `json:"id"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// UnproxiedEvent carries a message that was not rewritten by the proxy service.
type UnproxiedEvent struct {
	Event     EventType
	GuildID   string
	ChannelID string
	MessageID string
	Message   *discordgo.Message // may be nil for deletions the state cache never saw
	ReplyTo   *discordgo.Message
}

// ProxiedEvent carries a webhook message that replaced a user's original message.
type ProxiedEvent struct {
	Event     EventType
	GuildID   string
	ChannelID string
	Message   *discordgo.Message
	Record    *ProxyRecord
	Author    *discordgo.Member // original sender, resolved best-effort
	ReplyTo   *discordgo.Message
}

// Resolution is a persisted terminal notification.
type Resolution struct {
	MessageID  string
	Outcome    Outcome
	Event      EventType
	OriginalID string
	GuildID    string
	ChannelID  string
	AuthorID   string
	ResolvedAt int64
}
