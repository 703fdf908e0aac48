package database

import (
	"context"
	"database/sql"
	"fmt"

	"discord-pk-bot/models"
)

// ResolutionLog records every terminal notification the reconciler emits.
type ResolutionLog struct {
	db *sql.DB
}

func NewResolutionLog(db *sql.DB) *ResolutionLog {
	return &ResolutionLog{db: db}
}

// Insert saves a single resolution.
func (l *ResolutionLog) Insert(ctx context.Context, r models.Resolution) error {
	query := `
    INSERT INTO resolutions (message_id, outcome, event, original_id, guild_id, channel_id, author_id, resolved_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?);`

	_, err := l.db.ExecContext(ctx, query,
		r.MessageID,
		string(r.Outcome),
		string(r.Event),
		r.OriginalID,
		r.GuildID,
		r.ChannelID,
		r.AuthorID,
		r.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert resolution for message %s: %w", r.MessageID, err)
	}
	return nil
}

// ForMessage returns the resolutions recorded for a message, matching either
// the resolved id or the original id it replaced.
func (l *ResolutionLog) ForMessage(ctx context.Context, messageID string) ([]models.Resolution, error) {
	rows, err := l.db.QueryContext(ctx, `
    SELECT message_id, outcome, event, original_id, guild_id, channel_id, author_id, resolved_at
    FROM resolutions WHERE message_id = ? OR original_id = ? ORDER BY resolution_id`, messageID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions for message %s: %w", messageID, err)
	}
	defer rows.Close()

	var out []models.Resolution
	for rows.Next() {
		var (
			r              models.Resolution
			outcome, event string
		)
		if err := rows.Scan(&r.MessageID, &outcome, &event, &r.OriginalID, &r.GuildID, &r.ChannelID, &r.AuthorID, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		r.Outcome = models.Outcome(outcome)
		r.Event = models.EventType(event)
		out = append(out, r)
	}
	return out, rows.Err()
}
