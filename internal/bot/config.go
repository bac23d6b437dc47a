package bot

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Chat source names accepted in CHAT_SOURCE.
const (
	SourceBilibili = "bilibili"
	SourceDiscord  = "discord"
	SourceTelegram = "telegram"
)

// Config holds the bot configuration loaded from environment variables.
type Config struct {
	ChatSource string `env:"CHAT_SOURCE" envDefault:"bilibili"`

	BilibiliRoomID       string        `env:"BILIBILI_ROOM_ID"`
	BilibiliPollInterval time.Duration `env:"BILIBILI_POLL_INTERVAL" envDefault:"5s"`
	BilibiliAPIURL       string        `env:"BILIBILI_API_URL" envDefault:"https://api.live.bilibili.com/ajax/msg"`

	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`

	TelegramToken string `env:"TELEGRAM_TOKEN"`
	// TelegramChatID limits the bot to one chat. Zero accepts every chat.
	TelegramChatID int64 `env:"TELEGRAM_CHAT_ID"`

	// StatusAddr is the status HTTP listen address. Empty disables the server.
	StatusAddr string `env:"STATUS_ADDR"`
}

// LoadConfig loads configuration from environment variables.
// Returns an error if the selected chat source is missing required fields.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ChatSource {
	case SourceBilibili:
		if c.BilibiliRoomID == "" {
			return errors.New("BILIBILI_ROOM_ID is required for the bilibili source")
		}
		if c.BilibiliPollInterval <= 0 {
			return errors.New("BILIBILI_POLL_INTERVAL must be positive")
		}
	case SourceDiscord:
		if c.DiscordToken == "" || c.DiscordChannelID == "" {
			return errors.New("DISCORD_TOKEN and DISCORD_CHANNEL_ID are required for the discord source")
		}
	case SourceTelegram:
		if c.TelegramToken == "" {
			return errors.New("TELEGRAM_TOKEN is required for the telegram source")
		}
	default:
		return fmt.Errorf("unknown CHAT_SOURCE %q", c.ChatSource)
	}
	return nil
}
