package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

// Discord rejects embeds with more fields or longer values than these.
const (
	maxEmbedFields     = 25
	maxEmbedFieldValue = 1024
)

// EmbedSender is the part of a discordgo session used to post log embeds.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordHandler passes every record to the wrapped handler and mirrors
// records at or above level to an admin channel as an embed.
type DiscordHandler struct {
	next      slog.Handler
	sender    EmbedSender
	channelID string
	level     slog.Leveler
	attrs     []slog.Attr
	group     string
}

// NewDiscordHandler wraps next. With no sender or channel it only forwards to next.
func NewDiscordHandler(next slog.Handler, sender EmbedSender, channelID string, level slog.Leveler) *DiscordHandler {
	if level == nil {
		level = slog.LevelWarn
	}
	return &DiscordHandler{next: next, sender: sender, channelID: channelID, level: level}
}

func (h *DiscordHandler) mirrors(level slog.Level) bool {
	return h.sender != nil && h.channelID != "" && level >= h.level.Level()
}

func (h *DiscordHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || h.mirrors(level)
}

func (h *DiscordHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}
	if h.mirrors(r.Level) {
		embed := h.embed(r)
		go h.send(embed)
	}
	return err
}

func (h *DiscordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &c
}

func (h *DiscordHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.next = h.next.WithGroup(name)
	if h.group != "" {
		c.group = h.group + "." + name
	} else {
		c.group = name
	}
	return &c
}

func (h *DiscordHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
	}
	return out
}

func (h *DiscordHandler) embed(r slog.Record) *discordgo.MessageEmbed {
	var color int
	switch {
	case r.Level >= slog.LevelError:
		color = ColorError
	case r.Level >= slog.LevelWarn:
		color = ColorWarn
	default:
		color = ColorInfo
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Log Level: %s", r.Level),
		Description: truncate(r.Message, maxEmbedFieldValue),
		Color:       color,
		Timestamp:   ts.Format(time.RFC3339),
	}

	addField := func(a slog.Attr) bool {
		if len(embed.Fields) >= maxEmbedFields {
			return false
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   a.Key,
			Value:  truncate(a.Value.String(), maxEmbedFieldValue),
			Inline: true,
		})
		return true
	}

	for _, a := range h.attrs {
		if !addField(a) {
			return embed
		}
	}
	recordAttrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		recordAttrs = append(recordAttrs, a)
		return true
	})
	for _, a := range h.qualify(recordAttrs) {
		if !addField(a) {
			break
		}
	}
	return embed
}

func (h *DiscordHandler) send(embed *discordgo.MessageEmbed) {
	if _, err := h.sender.ChannelMessageSendEmbed(h.channelID, embed); err != nil {
		// Report through the wrapped handler only, so a failing channel cannot loop.
		r := slog.NewRecord(time.Now(), slog.LevelWarn, "error sending log message to Discord", 0)
		r.AddAttrs(slog.String("channel_id", h.channelID), slog.Any("error", err))
		_ = h.next.Handle(context.Background(), r)
	}
}

func truncate(s string, n int) string {
	if s == "" {
		return "-"
	}
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
