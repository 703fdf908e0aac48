package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// InitDB opens the sqlite database at dbPath and ensures every table exists.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open the SQLite database. It will be created if it doesn't exist.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ping the database to verify the connection.
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("connected to database", "path", dbPath)
	return db, nil
}

// createTables creates all tables used by the bot.
func createTables(db *sql.DB) error {
	if err := createGuildConfigTable(db); err != nil {
		return fmt.Errorf("failed to create guild_config table: %w", err)
	}
	if err := createResolutionsTable(db); err != nil {
		return fmt.Errorf("failed to create resolutions table: %w", err)
	}
	return nil
}

func createGuildConfigTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS guild_config (
        guild_id TEXT PRIMARY KEY,
        enabled BOOLEAN NOT NULL DEFAULT TRUE,
        api_url TEXT NOT NULL,
        bot_id TEXT NOT NULL,
        updated_at INTEGER NOT NULL
    );`
	_, err := db.Exec(query)
	return err
}

func createResolutionsTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS resolutions (
        resolution_id INTEGER PRIMARY KEY AUTOINCREMENT,
        message_id TEXT NOT NULL,
        outcome TEXT NOT NULL,
        event TEXT NOT NULL,
        original_id TEXT DEFAULT '',
        guild_id TEXT DEFAULT '',
        channel_id TEXT DEFAULT '',
        author_id TEXT DEFAULT '',
        resolved_at INTEGER NOT NULL
    );`
	if _, err := db.Exec(query); err != nil {
		return err
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_resolutions_message ON resolutions(message_id);",
		"CREATE INDEX IF NOT EXISTS idx_resolutions_original ON resolutions(original_id);",
	}
	for _, indexQuery := range indexes {
		if _, err := db.Exec(indexQuery); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}
	return nil
}
