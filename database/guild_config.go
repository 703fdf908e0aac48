package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"discord-pk-bot/models"
)

// ErrGuildConfigNotFound is returned when a guild has no stored proxy config.
var ErrGuildConfigNotFound = models.ErrGuildConfigNotFound

// GuildConfigStore persists per-guild proxy settings.
type GuildConfigStore struct {
	db *sql.DB
}

func NewGuildConfigStore(db *sql.DB) *GuildConfigStore {
	return &GuildConfigStore{db: db}
}

// Get returns the stored config for a guild, or ErrGuildConfigNotFound.
func (s *GuildConfigStore) Get(ctx context.Context, guildID string) (*models.GuildProxyConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT guild_id, enabled, api_url, bot_id, updated_at FROM guild_config WHERE guild_id = ?`, guildID)

	var (
		cfg       models.GuildProxyConfig
		updatedAt int64
	)
	if err := row.Scan(&cfg.GuildID, &cfg.Enabled, &cfg.APIURL, &cfg.BotID, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGuildConfigNotFound
		}
		return nil, fmt.Errorf("failed to query guild config %s: %w", guildID, err)
	}
	cfg.UpdatedAt = time.Unix(updatedAt, 0)

	return &cfg, nil
}

// Save inserts or replaces the config for cfg.GuildID.
func (s *GuildConfigStore) Save(ctx context.Context, cfg models.GuildProxyConfig) error {
	if cfg.GuildID == "" {
		return errors.New("guild config without guild id")
	}

	query := `
    INSERT INTO guild_config (guild_id, enabled, api_url, bot_id, updated_at)
    VALUES (?, ?, ?, ?, ?)
    ON CONFLICT(guild_id) DO UPDATE SET
        enabled = excluded.enabled,
        api_url = excluded.api_url,
        bot_id = excluded.bot_id,
        updated_at = excluded.updated_at;`

	if _, err := s.db.ExecContext(ctx, query, cfg.GuildID, cfg.Enabled, cfg.APIURL, cfg.BotID, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save guild config %s: %w", cfg.GuildID, err)
	}
	return nil
}

// List returns every stored guild config ordered by guild id.
func (s *GuildConfigStore) List(ctx context.Context) ([]models.GuildProxyConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, enabled, api_url, bot_id, updated_at FROM guild_config ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild configs: %w", err)
	}
	defer rows.Close()

	var configs []models.GuildProxyConfig
	for rows.Next() {
		var (
			cfg       models.GuildProxyConfig
			updatedAt int64
		)
		if err := rows.Scan(&cfg.GuildID, &cfg.Enabled, &cfg.APIURL, &cfg.BotID, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan guild config: %w", err)
		}
		cfg.UpdatedAt = time.Unix(updatedAt, 0)
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}
