package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"discord-pk-bot/bot"
	"discord-pk-bot/config"
	"discord-pk-bot/database"
	pkgrpc "discord-pk-bot/grpc"
	"discord-pk-bot/handlers"
	"discord-pk-bot/handlers/proxy"
	"discord-pk-bot/pluralkit"
	"discord-pk-bot/telemetry"
	"discord-pk-bot/utils"
)

func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and reconcile proxied messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return runBot(cmd.Context(), settings)
		},
	}
}

func runBot(ctx context.Context, settings *config.Settings) error {
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: settings.LogLevel()})
	slog.SetDefault(slog.New(base))

	// Collectors must exist before the session delivers its first event.
	telemetry.Init()

	db, err := database.InitDB(settings.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := bot.NewBot(settings)
	if err != nil {
		return err
	}

	if settings.Bot.AdminChannelID == "" {
		slog.Info("bot.adminChannelId is not set, logging to channel is disabled")
	}
	slog.SetDefault(slog.New(utils.NewDiscordHandler(base, b.Session, settings.Bot.AdminChannelID, slog.LevelWarn)))

	pk := settings.PluralKit
	registry := pluralkit.NewRegistry(pluralkit.Options{
		Timeout:   pk.Client.Timeout,
		RateLimit: pk.Client.RateLimit,
		Burst:     pk.Client.Burst,
		CacheSize: pk.Client.CacheSize,
		UserAgent: pk.Client.UserAgent,
	})

	dispatcher := handlers.NewDispatcher(database.NewResolutionLog(db))

	reconciler, err := proxy.NewReconciler(
		proxy.NewSessionPlatform(b.Session),
		database.NewGuildConfigStore(db),
		registry,
		dispatcher,
		proxy.Options{
			SweepInterval:  pk.SweepInterval,
			GracePeriod:    pk.GracePeriod,
			SettleDelay:    pk.SettleDelay,
			ReplyCacheSize: pk.ReplyCacheSize,
			Defaults:       pk.Defaults,
		},
	)
	if err != nil {
		return fmt.Errorf("create reconciler: %w", err)
	}

	b.AddService(reconciler)
	if settings.Metrics.Address != "" {
		b.AddService(telemetry.NewServer(settings.Metrics.Address))
	}
	if settings.GRPC.HealthAddress != "" {
		hs := pkgrpc.NewHealthServer(settings.GRPC.HealthAddress)
		hs.AddCheck(pkgrpc.ReconcilerService, reconciler.Running)
		b.AddService(hs)
	}

	return b.Run(ctx, func(b *bot.Bot) {
		handlers.Register(b, reconciler)
	})
}
