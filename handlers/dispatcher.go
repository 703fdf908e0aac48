package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"discord-pk-bot/handlers/proxy"
	"discord-pk-bot/models"
)

// ResolutionRecorder persists terminal notifications.
type ResolutionRecorder interface {
	Insert(ctx context.Context, r models.Resolution) error
}

// Dispatcher logs every notification, records it and hands it to the
// registered callbacks.
type Dispatcher struct {
	recorder ResolutionRecorder
	now      func() time.Time

	mu          sync.RWMutex
	onProxied   []func(ctx context.Context, ev models.ProxiedEvent)
	onUnproxied []func(ctx context.Context, ev models.UnproxiedEvent)
}

var _ proxy.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. recorder may be nil.
func NewDispatcher(recorder ResolutionRecorder) *Dispatcher {
	return &Dispatcher{recorder: recorder, now: time.Now}
}

// OnProxied registers fn to receive proxied notifications.
func (d *Dispatcher) OnProxied(fn func(ctx context.Context, ev models.ProxiedEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onProxied = append(d.onProxied, fn)
}

// OnUnproxied registers fn to receive unproxied notifications.
func (d *Dispatcher) OnUnproxied(fn func(ctx context.Context, ev models.UnproxiedEvent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onUnproxied = append(d.onUnproxied, fn)
}

func (d *Dispatcher) DispatchProxied(ctx context.Context, ev models.ProxiedEvent) {
	res := models.Resolution{
		Outcome:    models.OutcomeProxied,
		Event:      ev.Event,
		GuildID:    ev.GuildID,
		ChannelID:  ev.ChannelID,
		ResolvedAt: d.now().Unix(),
	}
	if ev.Message != nil {
		res.MessageID = ev.Message.ID
	}
	if ev.Record != nil {
		if res.MessageID == "" {
			res.MessageID = ev.Record.ID
		}
		res.OriginalID = ev.Record.Original
		res.AuthorID = ev.Record.Sender
	}

	slog.Info("message proxied",
		"event", string(ev.Event),
		"guild_id", ev.GuildID,
		"channel_id", ev.ChannelID,
		"message_id", res.MessageID,
		"original_id", res.OriginalID,
		"sender", res.AuthorID,
	)
	d.record(ctx, res)

	d.mu.RLock()
	callbacks := d.onProxied
	d.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ctx, ev)
	}
}

func (d *Dispatcher) DispatchUnproxied(ctx context.Context, ev models.UnproxiedEvent) {
	res := models.Resolution{
		MessageID:  ev.MessageID,
		Outcome:    models.OutcomeUnproxied,
		Event:      ev.Event,
		GuildID:    ev.GuildID,
		ChannelID:  ev.ChannelID,
		ResolvedAt: d.now().Unix(),
	}
	if ev.Message != nil && ev.Message.Author != nil {
		res.AuthorID = ev.Message.Author.ID
	}

	slog.Info("message unproxied",
		"event", string(ev.Event),
		"guild_id", ev.GuildID,
		"channel_id", ev.ChannelID,
		"message_id", ev.MessageID,
	)
	d.record(ctx, res)

	d.mu.RLock()
	callbacks := d.onUnproxied
	d.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ctx, ev)
	}
}

func (d *Dispatcher) record(ctx context.Context, res models.Resolution) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Insert(ctx, res); err != nil {
		slog.Warn("failed to record resolution", "message_id", res.MessageID, "error", err)
	}
}
