package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"discord-pk-bot/models"
)

// DefaultAPIURL is the public PluralKit API.
const DefaultAPIURL = "https://api.pluralkit.me"

// DefaultBotID is the user id of the public PluralKit bot.
const DefaultBotID = "466378653216014359"

// Settings is the typed view of the merged configuration.
type Settings struct {
	Token     string          `mapstructure:"BOT_TOKEN"`
	Bot       BotSettings     `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PluralKit PluralKitConfig `mapstructure:"pluralkit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
}

type BotSettings struct {
	AdminChannelID string `mapstructure:"adminChannelId"`
	LogLevel       string `mapstructure:"logLevel"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PluralKitConfig holds the reconciler timings and the proxy service client settings.
type PluralKitConfig struct {
	SweepInterval  time.Duration           `mapstructure:"sweepInterval"`
	GracePeriod    time.Duration           `mapstructure:"gracePeriod"`
	SettleDelay    time.Duration           `mapstructure:"settleDelay"`
	ReplyCacheSize int                     `mapstructure:"replyCacheSize"`
	Defaults       models.GuildProxyConfig `mapstructure:"defaults"`
	Client         ClientConfig            `mapstructure:"client"`
}

type ClientConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rateLimit"`
	Burst     int           `mapstructure:"burst"`
	CacheSize int           `mapstructure:"cacheSize"`
	UserAgent string        `mapstructure:"userAgent"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

type GRPCConfig struct {
	HealthAddress string `mapstructure:"healthAddress"`
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("BOT_TOKEN", "")
	v.SetDefault("bot.adminChannelId", "")
	v.SetDefault("bot.logLevel", "info")
	v.SetDefault("database.path", "data/pkbot.db")

	v.SetDefault("pluralkit.sweepInterval", time.Second)
	v.SetDefault("pluralkit.gracePeriod", 3*time.Second) // needs tuning against observed proxy latency
	v.SetDefault("pluralkit.settleDelay", 2*time.Second)
	v.SetDefault("pluralkit.replyCacheSize", 1000)

	v.SetDefault("pluralkit.defaults.enabled", true)
	v.SetDefault("pluralkit.defaults.apiUrl", DefaultAPIURL)
	v.SetDefault("pluralkit.defaults.botId", DefaultBotID)

	v.SetDefault("pluralkit.client.timeout", 10*time.Second)
	v.SetDefault("pluralkit.client.rateLimit", 2.0)
	v.SetDefault("pluralkit.client.burst", 2)
	v.SetDefault("pluralkit.client.cacheSize", 10_000)
	v.SetDefault("pluralkit.client.userAgent", "discord-pk-bot (https://github.com/bwmarrin/discordgo)")

	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("grpc.healthAddress", "")
}

// LoadConfig loads configuration from, in order:
// 1. the .env file (environment variables)
// 2. config.yaml (base configuration)
// 3. config/pluralkit.json (merged into the base configuration)
// Environment variables override values from the files.
func LoadConfig() (*Settings, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, skipping")
	}

	v := viper.GetViper()
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
		slog.Info("config.yaml not found, using environment variables and defaults")
	}

	v.SetConfigName("pluralkit")
	v.SetConfigType("json")
	v.AddConfigPath("./config")

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("merge config/pluralkit.json: %w", err)
		}
		slog.Debug("config/pluralkit.json not found, skipping merge")
	}

	return Decode(v)
}

// Decode unmarshals the current viper state into Settings and validates it.
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects timings and sizes the reconciler cannot run with.
func (s *Settings) Validate() error {
	pk := s.PluralKit
	switch {
	case pk.SweepInterval <= 0:
		return fmt.Errorf("pluralkit.sweepInterval must be positive, got %s", pk.SweepInterval)
	case pk.GracePeriod <= 0:
		return fmt.Errorf("pluralkit.gracePeriod must be positive, got %s", pk.GracePeriod)
	case pk.SettleDelay < 0:
		return fmt.Errorf("pluralkit.settleDelay must not be negative, got %s", pk.SettleDelay)
	case pk.ReplyCacheSize <= 0:
		return fmt.Errorf("pluralkit.replyCacheSize must be positive, got %d", pk.ReplyCacheSize)
	case pk.Client.CacheSize <= 0:
		return fmt.Errorf("pluralkit.client.cacheSize must be positive, got %d", pk.Client.CacheSize)
	case pk.Defaults.APIURL == "":
		return errors.New("pluralkit.defaults.apiUrl must not be empty")
	}
	return nil
}

// LogLevel maps bot.logLevel to a slog level, defaulting to info.
func (s *Settings) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Bot.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
