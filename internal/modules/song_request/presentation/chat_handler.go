package presentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/sglre6355/reqbox/internal/bot"
	"github.com/sglre6355/reqbox/internal/modules/song_request/application/usecases"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// DefaultRequestPrefixes are the prefixes that mark a chat line as a song request.
var DefaultRequestPrefixes = []string{"点歌:"}

// ChatHandler turns chat lines into admin key redemptions, admin commands and
// song requests.
type ChatHandler struct {
	permissions *usecases.PermissionService
	adminKey    *usecases.AdminKeyService
	requests    *usecases.RequestService
	commands    *CommandRouter
	prefixes    []string
}

// NewChatHandler creates a new ChatHandler. Prefixes are compared after width
// folding, so "点歌:" also matches "点歌：".
func NewChatHandler(
	permissions *usecases.PermissionService,
	adminKey *usecases.AdminKeyService,
	requests *usecases.RequestService,
	commands *CommandRouter,
	prefixes []string,
) *ChatHandler {
	if len(prefixes) == 0 {
		prefixes = DefaultRequestPrefixes
	}

	folded := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			folded = append(folded, width.Fold.String(p))
		}
	}

	return &ChatHandler{
		permissions: permissions,
		adminKey:    adminKey,
		requests:    requests,
		commands:    commands,
		prefixes:    folded,
	}
}

// HandleMessage processes one chat line.
func (h *ChatHandler) HandleMessage(ctx context.Context, msg bot.ChatMessage, r bot.Responder) error {
	user := strings.TrimSpace(msg.Username)
	text := strings.TrimSpace(msg.Text)
	if user == "" || text == "" {
		return nil
	}

	role := h.permissions.Classify(user)
	slog.Info("chat message", "tag", role.Tag(), "source", msg.Source, "username", user, "text", text)

	if h.redeemAdminKey(user, role, text) {
		return nil
	}

	if strings.HasPrefix(text, "!") {
		if !h.permissions.IsAdmin(user) {
			slog.Info("denied command", "tag", "DNY", "username", user, "command", text)
			return nil
		}
		reply := h.commands.Execute(ctx, text)
		if reply == "" {
			return nil
		}
		return r.Reply(reply)
	}

	query, ok := h.matchRequest(text)
	if !ok || query == "" {
		return nil
	}

	slog.Info("received request", "username", user, "query", query)

	output, err := h.requests.Submit(ctx, usecases.SubmitInput{
		Username: user,
		Query:    query,
	})
	if err != nil {
		if errors.Is(err, usecases.ErrPermissionDenied) {
			slog.Info("request aborted", "username", user, "reason", "permission denied")
			return nil
		}
		return r.Reply(submitErrorMessage(err))
	}

	return r.Reply(fmt.Sprintf("入队成功: %s (点歌者: %s)", output.Item.Title(), user))
}

// redeemAdminKey promotes user when text is the current unused admin key.
// It reports whether text was a key attempt that should not be processed further.
func (h *ChatHandler) redeemAdminKey(user string, role domain.Role, text string) bool {
	if h.adminKey == nil {
		return false
	}

	key, err := h.adminKey.Verify(text)
	switch {
	case errors.Is(err, usecases.ErrKeyMismatch):
		return false
	case errors.Is(err, usecases.ErrKeyAlreadyUsed):
		slog.Info("rejected used admin key", "username", user)
		return true
	case err != nil:
		slog.Error("failed to verify admin key", "username", user, "error", err)
		return true
	}

	if role == domain.RoleAdmin {
		slog.Info("admin key sent by existing admin", "username", user)
		return true
	}

	h.permissions.PromoteAdmin(user)
	slog.Info("promoted user to admin", "username", user)

	if err := h.adminKey.Fuse(key); err != nil {
		slog.Error("failed to fuse admin key", "error", err)
		return true
	}
	slog.Info("fused admin key", "hour", h.adminKey.HourBucket())

	return true
}

// matchRequest returns the query after a request prefix.
func (h *ChatHandler) matchRequest(text string) (string, bool) {
	for _, prefix := range h.prefixes {
		head, rest := splitRunes(text, utf8.RuneCountInString(prefix))
		if width.Fold.String(head) == prefix {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// splitRunes splits s after its first n runes.
func splitRunes(s string, n int) (string, string) {
	i := 0
	for n > 0 && i < len(s) {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n--
	}
	return s[:i], s[i:]
}

func submitErrorMessage(err error) string {
	var dup *usecases.DuplicateItemError
	switch {
	case errors.Is(err, usecases.ErrQueueFull):
		return "点歌队列已满，无法加入"
	case errors.As(err, &dup):
		return fmt.Sprintf("歌曲 '%s' 已在队列中，无法重复添加", dup.Title)
	case errors.Is(err, usecases.ErrVideoDisabled):
		return "视频播放未启用"
	default:
		return "未找到歌曲"
	}
}
