package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// Compile-time check that DiscordSource implements ChatSource.
var _ ChatSource = (*DiscordSource)(nil)

// DiscordSource reads messages from one Discord text channel.
type DiscordSource struct {
	session   *discordgo.Session
	channelID snowflake.ID
}

// NewDiscordSource creates a new DiscordSource. The connection is opened by Run.
func NewDiscordSource(token, channelID string) (*DiscordSource, error) {
	id, err := snowflake.Parse(channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel ID: %w", err)
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	// Handlers run on the gateway reader goroutine, one message at a time.
	session.SyncEvents = true

	return &DiscordSource{
		session:   session,
		channelID: id,
	}, nil
}

func (s *DiscordSource) Name() string {
	return SourceDiscord
}

// Announce posts text to the channel.
func (s *DiscordSource) Announce(text string) error {
	_, err := s.session.ChannelMessageSend(s.channelID.String(), text)
	return err
}

// Run opens the gateway connection and delivers channel messages until ctx is cancelled.
func (s *DiscordSource) Run(ctx context.Context, deliver DeliverFunc) error {
	remove := s.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		msg, ok := s.toChatMessage(m)
		if !ok {
			return
		}
		deliver(msg, ResponderFunc(s.Announce))
	})
	defer remove()

	if err := s.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	defer s.session.Close()

	slog.Info("started listening to channel",
		"channel_id", s.channelID,
		"user_id", s.session.State.User.ID,
	)

	<-ctx.Done()
	return nil
}

// toChatMessage converts a gateway event, dropping bots and other channels.
func (s *DiscordSource) toChatMessage(m *discordgo.MessageCreate) (ChatMessage, bool) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return ChatMessage{}, false
	}

	channelID, err := snowflake.Parse(m.ChannelID)
	if err != nil || channelID != s.channelID {
		return ChatMessage{}, false
	}

	return ChatMessage{
		Source:   SourceDiscord,
		Username: m.Author.Username,
		Text:     m.Content,
		At:       m.Timestamp,
	}, true
}
