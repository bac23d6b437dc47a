package usecases

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// MaxGrantCount is the largest per-user quota an admin can grant.
const MaxGrantCount = 100

// GrantTimeInput contains the input for the GrantTime use case.
type GrantTimeInput struct {
	// Seconds is the grant length. Nil opens requests with no deadline.
	Seconds *int
}

// PermissionService guards PermissionState and persists whitelist changes.
type PermissionService struct {
	mu    sync.Mutex
	state *domain.PermissionState
	store ports.WhitelistStore
	now   func() time.Time
}

// NewPermissionService loads the stored whitelist, seeding the store with
// defaultWhitelist when nothing was stored yet.
func NewPermissionService(
	defaultAdmins []string,
	defaultWhitelist []string,
	store ports.WhitelistStore,
) *PermissionService {
	s := &PermissionService{
		state: domain.NewPermissionState(defaultAdmins, defaultWhitelist),
		store: store,
		now:   time.Now,
	}

	if store == nil {
		return s
	}

	users, found, err := store.Load()
	switch {
	case err != nil:
		slog.Warn("failed to load whitelist, using defaults", "error", err)
	case !found:
		slog.Info("no stored whitelist, seeding with defaults", "users", len(defaultWhitelist))
		s.persistLocked()
	default:
		s.state.ReplaceWhitelist(users)
		slog.Info("loaded whitelist", "users", len(users))
	}

	return s
}

// Classify returns the role of user.
func (s *PermissionService) Classify(user string) domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Classify(user)
}

// IsAdmin reports whether user is an admin.
func (s *PermissionService) IsAdmin(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsAdmin(user)
}

// Decide reports whether user may submit a request now.
func (s *PermissionService) Decide(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Decide(user, s.now())
}

// Reserve decides and takes user's quota unit under one lock, so concurrent
// submits by the same user cannot both pass on a single remaining unit.
func (s *PermissionService) Reserve(user string) (domain.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Reserve(user, s.now())
}

// Refund hands back a reservation whose admission failed.
func (s *PermissionService) Refund(r domain.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Refund(r) {
		slog.Debug("refunded quota", "username", r.User)
	}
}

// GrantTime opens requests to everyone, for a number of seconds or indefinitely.
func (s *PermissionService) GrantTime(input GrantTimeInput) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Seconds == nil {
		s.state.GrantTimeOpen()
		slog.Info("granted open access")
		return
	}

	d := time.Duration(min(*input.Seconds, math.MaxInt32)) * time.Second
	s.state.GrantTimeFor(d, s.now())
	slog.Info("granted timed access", "seconds", *input.Seconds)
}

// GrantCount gives every non-whitelisted user n requests.
func (s *PermissionService) GrantCount(n int) error {
	if n < 0 || n > MaxGrantCount {
		return ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.GrantCount(n)
	slog.Info("granted counted access", "per_user", n)
	return nil
}

// Revoke clears the selected grant mechanism.
func (s *PermissionService) Revoke(scope domain.RevokeScope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Revoke(scope)
	slog.Info("revoked access", "scope", scope)
}

// Grants returns the current temporary grant state.
func (s *PermissionService) Grants() domain.GrantSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Grants()
}

// AddToWhitelist adds user and persists the whitelist.
// It reports false if user was already whitelisted.
func (s *PermissionService) AddToWhitelist(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.AddToWhitelist(user) {
		return false
	}
	s.persistLocked()
	return true
}

// RemoveFromWhitelist removes user and persists the whitelist.
// It reports false if user was not whitelisted.
func (s *PermissionService) RemoveFromWhitelist(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.RemoveFromWhitelist(user) {
		return false
	}
	s.persistLocked()
	return true
}

// ClearWhitelist resets the whitelist to the current admins and persists it.
func (s *PermissionService) ClearWhitelist() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.ResetWhitelistToAdmins()
	s.persistLocked()
}

// Whitelist returns the whitelist sorted by name.
func (s *PermissionService) Whitelist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Whitelist()
}

// Admins returns the admins sorted by name.
func (s *PermissionService) Admins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Admins()
}

// PromoteAdmin adds user to the in-memory admin set.
func (s *PermissionService) PromoteAdmin(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PromoteAdmin(user)
}

// DemoteAdmin removes a promoted admin.
func (s *PermissionService) DemoteAdmin(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DemoteAdmin(user)
}

// The in-memory change stands even if the write fails.
func (s *PermissionService) persistLocked() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.state.Whitelist()); err != nil {
		slog.Error("failed to save whitelist", "error", err)
	}
}
