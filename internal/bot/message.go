package bot

import (
	"context"
	"time"
)

// ChatMessage is one chat line received from a ChatSource.
type ChatMessage struct {
	// Source is the name of the ChatSource the message came from.
	Source   string
	Username string
	Text     string
	At       time.Time
}

// MessageHandler handles a chat message. Replies go through r.
type MessageHandler func(ctx context.Context, msg ChatMessage, r Responder) error

// DeliverFunc receives messages from a ChatSource, in arrival order.
type DeliverFunc func(msg ChatMessage, r Responder)

// Announcer posts an unsolicited line to the chat.
type Announcer interface {
	Announce(text string) error
}

// ChatSource is a chat service messages are read from.
type ChatSource interface {
	Announcer

	// Name returns a short identifier used in logs.
	Name() string

	// Run delivers messages until ctx is cancelled.
	Run(ctx context.Context, deliver DeliverFunc) error
}
