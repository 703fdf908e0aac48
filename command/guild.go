package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"discord-pk-bot/config"
	"discord-pk-bot/database"
	"discord-pk-bot/models"
	"discord-pk-bot/pluralkit"
)

type guildStore interface {
	Get(ctx context.Context, guildID string) (*models.GuildProxyConfig, error)
	Save(ctx context.Context, cfg models.GuildProxyConfig) error
	List(ctx context.Context) ([]models.GuildProxyConfig, error)
}

// guildChanges holds the fields `guild set` was asked to change.
type guildChanges struct {
	APIURL  *string
	BotID   *string
	Enabled *bool
}

func NewGuildCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "guild",
		Short: "Inspect and change per-guild proxy settings",
		Example: `  pkbot guild show
  pkbot guild set 123456789012345678 --api-url https://pk.example --bot-id 466378653216014359
  pkbot guild set 123456789012345678 --enabled=false
  pkbot guild reset 123456789012345678`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: database.path from config)")

	showCmd := &cobra.Command{
		Use:   "show [guild-id]",
		Short: "Show the settings of one guild, or of every known guild",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGuildStore(dbPath, func(store guildStore, settings *config.Settings) error {
				return showGuilds(cmd.Context(), cmd.OutOrStdout(), store, settings.PluralKit.Defaults, args)
			})
		},
	}

	var (
		apiURL, botID string
		enabled       bool
	)
	setCmd := &cobra.Command{
		Use:   "set <guild-id>",
		Short: "Change the proxy service a guild uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var changes guildChanges
			if cmd.Flags().Changed("api-url") {
				changes.APIURL = &apiURL
			}
			if cmd.Flags().Changed("bot-id") {
				changes.BotID = &botID
			}
			if cmd.Flags().Changed("enabled") {
				changes.Enabled = &enabled
			}

			return withGuildStore(dbPath, func(store guildStore, settings *config.Settings) error {
				cfg, err := setGuild(cmd.Context(), store, settings.PluralKit.Defaults, args[0], changes)
				if err != nil {
					return err
				}
				return writeGuilds(cmd.OutOrStdout(), []models.GuildProxyConfig{*cfg})
			})
		},
	}
	setCmd.Flags().StringVar(&apiURL, "api-url", "", "Base URL of the proxy service API")
	setCmd.Flags().StringVar(&botID, "bot-id", "", "User id of the proxy bot that owns the webhooks")
	setCmd.Flags().BoolVar(&enabled, "enabled", true, "Whether proxy detection is enabled")

	resetCmd := &cobra.Command{
		Use:   "reset <guild-id>",
		Short: "Restore the default proxy service API URL and bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGuildStore(dbPath, func(store guildStore, settings *config.Settings) error {
				cfg, err := resetGuild(cmd.Context(), store, settings.PluralKit.Defaults, args[0])
				if err != nil {
					return err
				}
				return writeGuilds(cmd.OutOrStdout(), []models.GuildProxyConfig{*cfg})
			})
		},
	}

	cmd.AddCommand(showCmd, setCmd, resetCmd)
	return cmd
}

func withGuildStore(dbPath string, fn func(guildStore, *config.Settings) error) error {
	settings, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if dbPath == "" {
		dbPath = settings.Database.Path
	}

	db, err := database.InitDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(database.NewGuildConfigStore(db), settings)
}

func showGuilds(ctx context.Context, w io.Writer, store guildStore, defaults models.GuildProxyConfig, ids []string) error {
	if len(ids) == 0 {
		all, err := store.List(ctx)
		if err != nil {
			return err
		}
		return writeGuilds(w, all)
	}

	cfg, err := store.Get(ctx, ids[0])
	if errors.Is(err, database.ErrGuildConfigNotFound) {
		d := defaults.WithGuild(ids[0])
		cfg = &d
		err = nil
	}
	if err != nil {
		return err
	}
	return writeGuilds(w, []models.GuildProxyConfig{*cfg})
}

func setGuild(ctx context.Context, store guildStore, defaults models.GuildProxyConfig, guildID string, changes guildChanges) (*models.GuildProxyConfig, error) {
	if changes.APIURL == nil && changes.BotID == nil && changes.Enabled == nil {
		return nil, errors.New("nothing to change, pass --api-url, --bot-id or --enabled")
	}
	if changes.APIURL != nil {
		if err := pluralkit.ValidateBaseURL(*changes.APIURL); err != nil {
			return nil, err
		}
	}
	if changes.BotID != nil && *changes.BotID == "" {
		return nil, errors.New("bot id must not be empty")
	}

	cfg, err := loadOrDefault(ctx, store, defaults, guildID)
	if err != nil {
		return nil, err
	}

	if changes.APIURL != nil {
		cfg.APIURL = *changes.APIURL
	}
	if changes.BotID != nil {
		cfg.BotID = *changes.BotID
	}
	if changes.Enabled != nil {
		cfg.Enabled = *changes.Enabled
	}

	if err := store.Save(ctx, *cfg); err != nil {
		return nil, err
	}
	return store.Get(ctx, guildID)
}

func resetGuild(ctx context.Context, store guildStore, defaults models.GuildProxyConfig, guildID string) (*models.GuildProxyConfig, error) {
	cfg, err := loadOrDefault(ctx, store, defaults, guildID)
	if err != nil {
		return nil, err
	}

	cfg.APIURL = defaults.APIURL
	cfg.BotID = defaults.BotID

	if err := store.Save(ctx, *cfg); err != nil {
		return nil, err
	}
	return store.Get(ctx, guildID)
}

func loadOrDefault(ctx context.Context, store guildStore, defaults models.GuildProxyConfig, guildID string) (*models.GuildProxyConfig, error) {
	cfg, err := store.Get(ctx, guildID)
	if errors.Is(err, database.ErrGuildConfigNotFound) {
		d := defaults.WithGuild(guildID)
		return &d, nil
	}
	return cfg, err
}

func writeGuilds(w io.Writer, configs []models.GuildProxyConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GUILD\tENABLED\tAPI URL\tBOT\tUPDATED")
	for _, c := range configs {
		updated := "-"
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", c.GuildID, c.Enabled, c.APIURL, c.BotID, updated)
	}
	return tw.Flush()
}
