package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramUpdateTimeout = 30

// Compile-time check that TelegramSource implements ChatSource.
var _ ChatSource = (*TelegramSource)(nil)

// TelegramSource reads messages through the Telegram Bot API long-poll.
type TelegramSource struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSource creates a new TelegramSource. A zero chatID accepts every
// chat, and announcements are then dropped.
func NewTelegramSource(token string, chatID int64) (*TelegramSource, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return &TelegramSource{
		api:    api,
		chatID: chatID,
	}, nil
}

func (s *TelegramSource) Name() string {
	return SourceTelegram
}

// Announce posts text to the configured chat.
func (s *TelegramSource) Announce(text string) error {
	if s.chatID == 0 {
		slog.Debug("dropped announcement without a chat", "text", text)
		return nil
	}
	return s.send(s.chatID, text)
}

func (s *TelegramSource) send(chatID int64, text string) error {
	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}
	return nil
}

// Run receives updates until ctx is cancelled.
func (s *TelegramSource) Run(ctx context.Context, deliver DeliverFunc) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramUpdateTimeout

	updates := s.api.GetUpdatesChan(u)
	defer s.api.StopReceivingUpdates()

	slog.Info("started receiving updates", "username", s.api.Self.UserName, "chat_id", s.chatID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := s.toChatMessage(update)
			if !ok {
				continue
			}
			chatID := update.Message.Chat.ID
			deliver(msg, ResponderFunc(func(text string) error {
				return s.send(chatID, text)
			}))
		}
	}
}

// toChatMessage converts an update, dropping non-messages, bots and other chats.
func (s *TelegramSource) toChatMessage(update tgbotapi.Update) (ChatMessage, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.From.IsBot || m.Chat == nil {
		return ChatMessage{}, false
	}
	if s.chatID != 0 && m.Chat.ID != s.chatID {
		return ChatMessage{}, false
	}

	username := m.From.UserName
	if username == "" {
		username = strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	}

	return ChatMessage{
		Source:   SourceTelegram,
		Username: username,
		Text:     m.Text,
		At:       time.Unix(int64(m.Date), 0),
	}, true
}
