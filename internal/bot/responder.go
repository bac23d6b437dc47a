package bot

import "sync"

// Responder replies to the message being handled.
// This interface enables testing handlers without a live chat connection.
type Responder interface {
	Reply(text string) error
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(text string) error

// Reply calls f.
func (f ResponderFunc) Reply(text string) error {
	return f(text)
}

// MockResponder is a test double for Responder.
type MockResponder struct {
	mu      sync.Mutex
	Replies []string
	Err     error
}

// Reply records the reply for testing.
func (m *MockResponder) Reply(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = append(m.Replies, text)
	return m.Err
}

// LastReply returns the latest reply, or "" if there is none.
func (m *MockResponder) LastReply() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Replies) == 0 {
		return ""
	}
	return m.Replies[len(m.Replies)-1]
}
