package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"discord-pk-bot/config"
)

// Intents needed to see message content and webhook authorship in guilds.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

// Bot encapsulates the bot's state.
type Bot struct {
	Session  *discordgo.Session
	Settings *config.Settings

	services []Service
}

// NewBot creates a bot for the given settings. The session is not opened yet.
func NewBot(settings *config.Settings) (*Bot, error) {
	if settings == nil {
		return nil, errors.New("bot requires settings")
	}
	if settings.Token == "" {
		return nil, errors.New("no bot token provided, set BOT_TOKEN in your .env or config file")
	}

	dg, err := discordgo.New("Bot " + settings.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = Intents
	// Deletions are classified from the cached message, so keep some history per channel.
	dg.State.MaxMessageCount = 100

	return &Bot{
		Session:  dg,
		Settings: settings,
	}, nil
}

// AddService registers a background service started after the session opens.
func (b *Bot) AddService(s Service) {
	b.services = append(b.services, s)
}

// Start registers handlers, opens the session and starts the services.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	if registerHandlers != nil {
		registerHandlers(b)
	}

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	if err := b.startServices(); err != nil {
		_ = b.Session.Close()
		return err
	}

	slog.Info("bot is now running, press CTRL-C to exit")
	return nil
}

// Stop stops the services and closes the session.
func (b *Bot) Stop() {
	b.stopServices()
	if b.Session != nil {
		if err := b.Session.Close(); err != nil {
			slog.Warn("error closing Discord session", "error", err)
		}
	}
	slog.Info("bot stopped gracefully")
}

// Run starts the bot and blocks until ctx is cancelled or the process is
// interrupted, then stops it.
func (b *Bot) Run(ctx context.Context, registerHandlers func(*Bot)) error {
	if err := b.Start(registerHandlers); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	<-ctx.Done()

	b.Stop()
	return nil
}
