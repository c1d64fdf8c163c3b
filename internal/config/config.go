package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds daemon configuration read from the environment.
type Config struct {
	BridgeAddr string

	TelegramToken string
	TelegramChat  int64

	DiscordToken   string
	DiscordChannel string
}

// Load reads configuration from a .env file (if present) and the
// environment. Notifier settings are optional; a token without its
// destination is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BridgeAddr:     os.Getenv("WAYMARK_BRIDGE_ADDR"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		DiscordToken:   os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannel: os.Getenv("DISCORD_CHANNEL_ID"),
	}
	if cfg.BridgeAddr == "" {
		cfg.BridgeAddr = ":8080"
	}

	if cfg.TelegramToken != "" {
		raw := os.Getenv("TELEGRAM_CHAT_ID")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChat = id
	}
	if cfg.DiscordToken != "" && cfg.DiscordChannel == "" {
		return nil, fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_BOT_TOKEN is set")
	}

	return cfg, nil
}
