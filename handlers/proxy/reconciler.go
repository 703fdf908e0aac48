package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"discord-pk-bot/models"
	"discord-pk-bot/telemetry"
)

// Options controls the reconciler's timings.
type Options struct {
	SweepInterval  time.Duration
	GracePeriod    time.Duration // how long a user message may wait for a proxy record
	SettleDelay    time.Duration // wait before asking the proxy service about a webhook message
	ReplyCacheSize int
	Defaults       models.GuildProxyConfig // saved for guilds seen for the first time
}

func DefaultOptions() Options {
	return Options{
		SweepInterval:  time.Second,
		GracePeriod:    3 * time.Second,
		SettleDelay:    2 * time.Second,
		ReplyCacheSize: 1000,
		Defaults: models.GuildProxyConfig{
			Enabled: true,
			APIURL:  "https://api.pluralkit.me",
			BotID:   "466378653216014359",
		},
	}
}

// Reconciler turns raw message events into proxied/unproxied notifications.
type Reconciler struct {
	platform   Platform
	configs    ConfigStore
	lookup     RecordLookup
	dispatcher Dispatcher
	opts       Options

	auth     *WebhookAuthenticator
	pending  *PendingBuffer
	replies  *ReplyCache
	resolved *lru.Cache[string, models.Outcome] // original ids that already got their notification
	sweeper  *Sweeper

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

var _ MessageHandler = (*Reconciler)(nil)

// NewReconciler creates a reconciler. Call Start to begin sweeping.
func NewReconciler(platform Platform, configs ConfigStore, lookup RecordLookup, dispatcher Dispatcher, opts Options) (*Reconciler, error) {
	if platform == nil || configs == nil || lookup == nil || dispatcher == nil {
		return nil, errors.New("reconciler requires a platform, config store, record lookup and dispatcher")
	}
	if opts.GracePeriod <= 0 || opts.SweepInterval <= 0 {
		return nil, fmt.Errorf("invalid sweep timings: interval %s, grace %s", opts.SweepInterval, opts.GracePeriod)
	}

	replies, err := NewReplyCache(opts.ReplyCacheSize)
	if err != nil {
		return nil, err
	}
	resolved, err := lru.New[string, models.Outcome](opts.ReplyCacheSize * 10)
	if err != nil {
		return nil, fmt.Errorf("create resolved set: %w", err)
	}

	r := &Reconciler{
		platform:   platform,
		configs:    configs,
		lookup:     lookup,
		dispatcher: dispatcher,
		opts:       opts,
		auth:       NewWebhookAuthenticator(platform),
		pending:    NewPendingBuffer(),
		replies:    replies,
		resolved:   resolved,
		now:        time.Now,
		sleep:      sleepContext,
	}
	r.sweeper = NewSweeper(opts.SweepInterval, func(now time.Time) { r.Sweep(now) })
	return r, nil
}

// Start begins the periodic grace period sweep.
func (r *Reconciler) Start() error {
	return r.sweeper.Start()
}

// Close stops the sweep and waits for a running sweep to finish. Event
// handlers already in flight are left to complete on their own.
func (r *Reconciler) Close() error {
	<-r.sweeper.Stop().Done()
	return nil
}

// Running reports whether the grace period sweep is active.
func (r *Reconciler) Running() bool {
	return r.sweeper.Running()
}

// Pending returns the number of buffered messages.
func (r *Reconciler) Pending() int {
	return r.pending.Len()
}

// HandleCreate buffers user messages and resolves webhook messages against the proxy service.
func (r *Reconciler) HandleCreate(ctx context.Context, m *discordgo.MessageCreate) {
	msg := m.Message
	log := eventLogger(models.EventCreate, msg)

	cfg, enabled := r.guildConfig(ctx, log, msg.GuildID)
	if !enabled {
		r.emitUnproxied(ctx, unproxiedCreate(m))
		return
	}

	if msg.WebhookID == "" {
		r.pending.Put(msg.ID, models.PendingMessage{
			MessageID: msg.ID,
			CreatedAt: r.now(),
			Event:     m,
		})
		telemetry.SetPending(r.pending.Len())
		log.Debug("message buffered")

		r.cacheReply(log, msg)
		return
	}

	// Webhook posts are never a user's own message, so an unauthenticated one has nothing to resolve.
	if !r.auth.Authenticate(msg.ChannelID, msg.WebhookID, cfg.BotID) {
		log.Debug("webhook message not from proxy bot, dropping", "webhook_id", msg.WebhookID)
		return
	}

	record := r.settleAndLookup(ctx, log, cfg, msg.ID)
	if record == nil {
		return
	}

	r.pending.Remove(record.Original)
	r.pending.Remove(msg.ID)
	telemetry.SetPending(r.pending.Len())

	if !r.claim(record.Original, models.OutcomeProxied) {
		log.Warn("proxy record arrived after original was resolved", "original_id", record.Original)
		return
	}

	replyTo, _ := r.replies.Get(record.Original)
	r.emitProxied(ctx, log, models.ProxiedEvent{
		Event:     models.EventCreate,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Message:   msg,
		Record:    record,
		ReplyTo:   replyTo,
	})
}

// HandleUpdate resolves an edit immediately; edits are never buffered.
func (r *Reconciler) HandleUpdate(ctx context.Context, m *discordgo.MessageUpdate) {
	msg := m.Message
	log := eventLogger(models.EventUpdate, msg)

	unproxied := models.UnproxiedEvent{
		Event:     models.EventUpdate,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		Message:   msg,
		ReplyTo:   msg.ReferencedMessage,
	}

	cfg, enabled := r.guildConfig(ctx, log, msg.GuildID)
	if !enabled {
		r.emitUnproxied(ctx, unproxied)
		return
	}

	webhookID := r.webhookIDFor(msg, m.BeforeUpdate)
	if webhookID == "" || !r.auth.Authenticate(msg.ChannelID, webhookID, cfg.BotID) {
		r.emitUnproxied(ctx, unproxied)
		return
	}

	record := r.settleAndLookup(ctx, log, cfg, msg.ID)
	if record == nil {
		r.emitUnproxied(ctx, unproxied)
		return
	}

	replyTo, _ := r.replies.Get(record.Original)
	r.emitProxied(ctx, log, models.ProxiedEvent{
		Event:     models.EventUpdate,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Message:   msg,
		Record:    record,
		ReplyTo:   replyTo,
	})
}

// HandleDelete drops any pending entry for the message and classifies the deletion.
func (r *Reconciler) HandleDelete(ctx context.Context, m *discordgo.MessageDelete) {
	log := eventLogger(models.EventDelete, m.Message)

	if _, ok := r.pending.Remove(m.ID); ok {
		telemetry.SetPending(r.pending.Len())
	}

	known := m.Message
	if m.BeforeDelete != nil {
		known = m.BeforeDelete
	}
	unproxied := models.UnproxiedEvent{
		Event:     models.EventDelete,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Message:   known,
		ReplyTo:   known.ReferencedMessage,
	}

	cfg, enabled := r.guildConfig(ctx, log, m.GuildID)
	if !enabled {
		r.emitUnproxied(ctx, unproxied)
		return
	}

	webhookID := known.WebhookID
	if webhookID == "" {
		record, err := r.lookup.Lookup(ctx, cfg.APIURL, m.ID)
		if err != nil {
			log.Debug("proxy lookup failed, treating as miss", "error", err)
		}
		if err == nil && record != nil {
			// The proxy service replaced this message; the webhook copy arrives as its own event.
			log.Debug("deletion is a proxy rewrite, suppressing", "proxied_id", record.ID)
			return
		}
		r.emitUnproxied(ctx, unproxied)
		return
	}

	if !r.auth.Authenticate(m.ChannelID, webhookID, cfg.BotID) {
		r.emitUnproxied(ctx, unproxied)
		return
	}

	record := r.settleAndLookup(ctx, log, cfg, m.ID)
	if record == nil {
		r.emitUnproxied(ctx, unproxied)
		return
	}

	replyTo, _ := r.replies.Get(record.Original)
	r.emitProxied(ctx, log, models.ProxiedEvent{
		Event:     models.EventDelete,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Message:   known,
		Record:    record,
		ReplyTo:   replyTo,
	})
}

// Sweep resolves every message buffered longer than the grace period as
// unproxied and returns how many it drained.
func (r *Reconciler) Sweep(now time.Time) int {
	expired := r.pending.DrainOlderThan(now.Add(-r.opts.GracePeriod))
	if len(expired) == 0 {
		return 0
	}

	telemetry.SetPending(r.pending.Len())
	telemetry.AddExpired(len(expired))
	slog.Debug("sweep resolved pending messages as unproxied", "count", len(expired))

	for _, p := range expired {
		if !r.claim(p.MessageID, models.OutcomeUnproxied) {
			continue
		}
		ev := unproxiedCreate(p.Event)
		go r.emitUnproxied(context.Background(), ev)
	}
	return len(expired)
}

// guildConfig loads the guild's settings, saving the defaults on first access.
// Direct messages, disabled guilds and store failures all report false.
func (r *Reconciler) guildConfig(ctx context.Context, log *slog.Logger, guildID string) (*models.GuildProxyConfig, bool) {
	if guildID == "" {
		return nil, false
	}

	cfg, err := r.configs.Get(ctx, guildID)
	if errors.Is(err, models.ErrGuildConfigNotFound) {
		defaults := r.opts.Defaults.WithGuild(guildID)
		if err := r.configs.Save(ctx, defaults); err != nil {
			log.Warn("failed to save default guild config", "error", err)
		}
		cfg, err = &defaults, nil
	}
	if err != nil {
		log.Warn("failed to load guild config, treating proxying as disabled", "error", err)
		return nil, false
	}
	if cfg == nil {
		return nil, false
	}

	return cfg, cfg.Enabled
}

// settleAndLookup waits for the proxy service to record a rewrite, then asks
// it about messageID. Every failure is a miss.
func (r *Reconciler) settleAndLookup(ctx context.Context, log *slog.Logger, cfg *models.GuildProxyConfig, messageID string) *models.ProxyRecord {
	if err := r.sleep(ctx, r.opts.SettleDelay); err != nil {
		log.Debug("settle delay interrupted", "error", err)
		return nil
	}

	record, err := r.lookup.Lookup(ctx, cfg.APIURL, messageID)
	if err != nil {
		log.Debug("proxy lookup failed, treating as miss", "error", err)
		return nil
	}
	if record == nil {
		log.Debug("no proxy record for message")
	}
	return record
}

// cacheReply stores the message msg replies to, best-effort.
func (r *Reconciler) cacheReply(log *slog.Logger, msg *discordgo.Message) {
	ref := msg.MessageReference
	if ref == nil || ref.MessageID == "" {
		return
	}

	referenced := msg.ReferencedMessage
	if referenced == nil {
		channelID := ref.ChannelID
		if channelID == "" {
			channelID = msg.ChannelID
		}

		var err error
		referenced, err = r.platform.ChannelMessage(channelID, ref.MessageID)
		if err != nil || referenced == nil {
			log.Debug("could not resolve replied-to message", "reference_id", ref.MessageID, "error", err)
			return
		}
	}

	r.replies.Put(msg.ID, referenced)
}

// webhookIDFor finds the webhook marker of an edited message. Partial updates
// carry no author, so the full message is fetched when the event lacks one.
func (r *Reconciler) webhookIDFor(msg, before *discordgo.Message) string {
	if msg.WebhookID != "" {
		return msg.WebhookID
	}
	if before != nil && before.WebhookID != "" {
		return before.WebhookID
	}
	if msg.Author != nil {
		return ""
	}

	full, err := r.platform.ChannelMessage(msg.ChannelID, msg.ID)
	if err != nil || full == nil {
		return ""
	}
	return full.WebhookID
}

// claim marks originalID as resolved and reports whether this caller was first.
func (r *Reconciler) claim(originalID string, outcome models.Outcome) bool {
	if originalID == "" {
		return true
	}
	seen, _ := r.resolved.ContainsOrAdd(originalID, outcome)
	return !seen
}

func (r *Reconciler) emitProxied(ctx context.Context, log *slog.Logger, ev models.ProxiedEvent) {
	if ev.Record != nil && ev.Record.Sender != "" && ev.GuildID != "" {
		member, err := r.platform.GuildMember(ev.GuildID, ev.Record.Sender)
		if err != nil {
			log.Debug("could not resolve proxied message author", "sender", ev.Record.Sender, "error", err)
		} else {
			ev.Author = member
		}
	}

	telemetry.RecordNotification(string(models.OutcomeProxied), string(ev.Event))
	r.dispatcher.DispatchProxied(ctx, ev)
}

func (r *Reconciler) emitUnproxied(ctx context.Context, ev models.UnproxiedEvent) {
	telemetry.RecordNotification(string(models.OutcomeUnproxied), string(ev.Event))
	r.dispatcher.DispatchUnproxied(ctx, ev)
}

func unproxiedCreate(m *discordgo.MessageCreate) models.UnproxiedEvent {
	return models.UnproxiedEvent{
		Event:     models.EventCreate,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Message:   m.Message,
		ReplyTo:   m.ReferencedMessage,
	}
}

func eventLogger(event models.EventType, msg *discordgo.Message) *slog.Logger {
	return slog.With(
		"trace_id", uuid.NewString(),
		"event", string(event),
		"guild_id", msg.GuildID,
		"channel_id", msg.ChannelID,
		"message_id", msg.ID,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
