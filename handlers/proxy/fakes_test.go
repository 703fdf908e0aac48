package proxy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"discord-pk-bot/models"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond

	guildID   = "1"
	channelID = "10"
	threadID  = "11"
	proxyBot  = "P"
	otherBot  = "Q"
	webhookP  = "W"
	webhookQ  = "WQ"
	apiURL    = "https://pk.example"
)

var errUnavailable = errors.New("unavailable")

type fakePlatform struct {
	mu          sync.Mutex
	channels    map[string]*discordgo.Channel
	webhooks    map[string][]*discordgo.Webhook
	messages    map[string]*discordgo.Message
	members     map[string]*discordgo.Member
	webhooksErr error
	fetched     []string // channel ids whose webhooks were listed
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels: map[string]*discordgo.Channel{
			channelID: {ID: channelID, GuildID: guildID, Type: discordgo.ChannelTypeGuildText},
			threadID:  {ID: threadID, GuildID: guildID, ParentID: channelID, Type: discordgo.ChannelTypeGuildPublicThread},
		},
		webhooks: map[string][]*discordgo.Webhook{
			channelID: {
				{ID: webhookP, ChannelID: channelID, User: &discordgo.User{ID: proxyBot}},
				{ID: webhookQ, ChannelID: channelID, User: &discordgo.User{ID: otherBot}},
			},
		},
		messages: map[string]*discordgo.Message{},
		members:  map[string]*discordgo.Member{},
	}
}

func (p *fakePlatform) Channel(id string) (*discordgo.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	return ch, nil
}

func (p *fakePlatform) ChannelWebhooks(id string) ([]*discordgo.Webhook, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, id)
	if p.webhooksErr != nil {
		return nil, p.webhooksErr
	}
	return p.webhooks[id], nil
}

func (p *fakePlatform) ChannelMessage(channelID, messageID string) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, ok := p.messages[messageID]
	if !ok {
		return nil, errors.New("unknown message")
	}
	return msg, nil
}

func (p *fakePlatform) GuildMember(guildID, userID string) (*discordgo.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[userID]
	if !ok {
		return nil, errors.New("unknown member")
	}
	return m, nil
}

type fakeConfigs struct {
	mu      sync.Mutex
	configs map[string]models.GuildProxyConfig
	getErr  error
	saves   int
}

func newFakeConfigs() *fakeConfigs {
	return &fakeConfigs{configs: map[string]models.GuildProxyConfig{
		guildID: {GuildID: guildID, Enabled: true, APIURL: apiURL, BotID: proxyBot},
	}}
}

func (c *fakeConfigs) Get(_ context.Context, id string) (*models.GuildProxyConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	cfg, ok := c.configs[id]
	if !ok {
		return nil, models.ErrGuildConfigNotFound
	}
	return &cfg, nil
}

func (c *fakeConfigs) Save(_ context.Context, cfg models.GuildProxyConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.configs[cfg.GuildID] = cfg
	return nil
}

type fakeLookup struct {
	mu      sync.Mutex
	records map[string]*models.ProxyRecord
	err     error
	calls   []string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{records: map[string]*models.ProxyRecord{}}
}

// add registers a rewrite of original into proxied, reachable by either id.
func (l *fakeLookup) add(original, proxied, sender string) *models.ProxyRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := &models.ProxyRecord{ID: proxied, Original: original, Sender: sender, Channel: channelID, Guild: guildID}
	l.records[original] = rec
	l.records[proxied] = rec
	return rec
}

func (l *fakeLookup) Lookup(_ context.Context, url, id string) (*models.ProxyRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, url+"|"+id)
	if l.err != nil {
		return nil, l.err
	}
	return l.records[id], nil
}

type recordingDispatcher struct {
	mu        sync.Mutex
	proxied   []models.ProxiedEvent
	unproxied []models.UnproxiedEvent
}

func (d *recordingDispatcher) DispatchProxied(_ context.Context, ev models.ProxiedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.proxied = append(d.proxied, ev)
}

func (d *recordingDispatcher) DispatchUnproxied(_ context.Context, ev models.UnproxiedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unproxied = append(d.unproxied, ev)
}

func (d *recordingDispatcher) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.proxied), len(d.unproxied)
}

func (d *recordingDispatcher) snapshot() ([]models.ProxiedEvent, []models.UnproxiedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.ProxiedEvent(nil), d.proxied...), append([]models.UnproxiedEvent(nil), d.unproxied...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type harness struct {
	r        *Reconciler
	platform *fakePlatform
	configs  *fakeConfigs
	lookup   *fakeLookup
	out      *recordingDispatcher
	clock    *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		platform: newFakePlatform(),
		configs:  newFakeConfigs(),
		lookup:   newFakeLookup(),
		out:      &recordingDispatcher{},
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
	}

	opts := DefaultOptions()
	opts.Defaults = models.GuildProxyConfig{Enabled: true, APIURL: apiURL, BotID: proxyBot}

	r, err := NewReconciler(h.platform, h.configs, h.lookup, h.out, opts)
	require.NoError(t, err)
	r.now = h.clock.Now
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	h.r = r

	return h
}

func userMessage(id string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        id,
		GuildID:   guildID,
		ChannelID: channelID,
		Content:   "hello",
		Author:    &discordgo.User{ID: "U"},
	}}
}

func webhookMessage(id, webhookID string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        id,
		GuildID:   guildID,
		ChannelID: channelID,
		Content:   "hello",
		WebhookID: webhookID,
		Author:    &discordgo.User{ID: webhookID, Bot: true},
	}}
}
