package proxy

import (
	"log/slog"

	"discord-pk-bot/telemetry"
)

// WebhookAuthenticator confirms that a webhook message was posted through a
// webhook owned by the guild's configured proxy bot.
type WebhookAuthenticator struct {
	platform Platform
}

func NewWebhookAuthenticator(platform Platform) *WebhookAuthenticator {
	return &WebhookAuthenticator{platform: platform}
}

// Authenticate reports whether webhookID belongs to channelID (or its parent,
// for threads) and was created by expectedCreatorID. Lookup failures are
// logged and count as "not authenticated".
func (a *WebhookAuthenticator) Authenticate(channelID, webhookID, expectedCreatorID string) bool {
	ok := a.authenticate(channelID, webhookID, expectedCreatorID)
	telemetry.RecordWebhookAuth(ok)
	return ok
}

func (a *WebhookAuthenticator) authenticate(channelID, webhookID, expectedCreatorID string) bool {
	if webhookID == "" || expectedCreatorID == "" {
		return false
	}

	topID, ok := a.topChannelID(channelID)
	if !ok {
		return false
	}

	// Webhook lists only exist on top-level channels.
	webhooks, err := a.platform.ChannelWebhooks(topID)
	if err != nil {
		slog.Warn("proxy: failed to retrieve webhooks", "channel_id", topID, "error", err)
		return false
	}

	for _, wh := range webhooks {
		if wh == nil || wh.ID != webhookID {
			continue
		}
		if wh.User == nil || wh.User.ID != expectedCreatorID {
			slog.Debug("proxy: webhook creator mismatch",
				"channel_id", topID, "webhook_id", webhookID, "expected_creator", expectedCreatorID)
			return false
		}
		return true
	}

	slog.Debug("proxy: webhook not found in channel", "channel_id", topID, "webhook_id", webhookID)
	return false
}

func (a *WebhookAuthenticator) topChannelID(channelID string) (string, bool) {
	ch, err := a.platform.Channel(channelID)
	if err != nil || ch == nil {
		slog.Warn("proxy: failed to resolve channel", "channel_id", channelID, "error", err)
		return "", false
	}
	if ch.IsThread() {
		if ch.ParentID == "" {
			slog.Warn("proxy: thread without parent", "channel_id", channelID)
			return "", false
		}
		return ch.ParentID, true
	}
	return ch.ID, true
}
