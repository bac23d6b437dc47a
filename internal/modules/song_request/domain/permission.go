package domain

import (
	"slices"
	"time"
)

// Role classifies a chat user.
type Role int

const (
	RoleAnonymous Role = iota
	RoleWhitelisted
	RoleAdmin
)

// Tag returns the three-letter tag used when logging chat lines.
func (r Role) Tag() string {
	switch r {
	case RoleAdmin:
		return "ADM"
	case RoleWhitelisted:
		return "GRP"
	default:
		return "USR"
	}
}

// RevokeScope selects which grant mechanism Revoke clears.
type RevokeScope int

const (
	RevokeTime RevokeScope = iota
	RevokeCount
	RevokeAll
)

func (s RevokeScope) String() string {
	switch s {
	case RevokeTime:
		return "time"
	case RevokeCount:
		return "count"
	case RevokeAll:
		return "all"
	default:
		return "unknown"
	}
}

// PermissionState holds admins, the whitelist and the two temporary grant modes.
// The time grant and the count grant are mutually exclusive: activating one
// clears the other. PermissionState is not safe for concurrent use.
type PermissionState struct {
	defaultAdmins map[string]struct{}
	admins        map[string]struct{}
	whitelist     map[string]struct{}

	// timeGrantUntil is zero when no time grant is active.
	timeGrantUntil time.Time
	timeGrantOpen  bool

	quotaPerUser   int
	alreadyClaimed map[string]struct{}
	remaining      map[string]int

	// countEpoch changes whenever count grant state is reset.
	countEpoch uint64
}

// Reservation is the quota unit taken by Reserve. The zero value charged nothing.
type Reservation struct {
	User    string
	Charged bool
	epoch   uint64
}

// NewPermissionState creates a state with the given permanent admins and whitelist.
func NewPermissionState(defaultAdmins, whitelist []string) *PermissionState {
	s := &PermissionState{
		defaultAdmins:  toSet(defaultAdmins),
		admins:         toSet(defaultAdmins),
		whitelist:      toSet(whitelist),
		alreadyClaimed: make(map[string]struct{}),
		remaining:      make(map[string]int),
	}
	return s
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Classify returns the role of user. Admin takes precedence over whitelist.
func (s *PermissionState) Classify(user string) Role {
	if s.IsAdmin(user) {
		return RoleAdmin
	}
	if s.IsWhitelisted(user) {
		return RoleWhitelisted
	}
	return RoleAnonymous
}

// IsAdmin reports whether user is an admin.
func (s *PermissionState) IsAdmin(user string) bool {
	_, ok := s.admins[user]
	return ok
}

// IsWhitelisted reports whether user is on the whitelist.
func (s *PermissionState) IsWhitelisted(user string) bool {
	_, ok := s.whitelist[user]
	return ok
}

// TimeGrantActive reports whether the time grant admits everyone at now.
func (s *PermissionState) TimeGrantActive(now time.Time) bool {
	if s.timeGrantOpen {
		return true
	}
	return !s.timeGrantUntil.IsZero() && now.Before(s.timeGrantUntil)
}

// Decide reports whether user may submit a request at now.
// When only the count grant applies, the first call for a user claims the
// per-user quota; later calls never claim again until the grant is reset.
func (s *PermissionState) Decide(user string, now time.Time) bool {
	if s.IsWhitelisted(user) || s.TimeGrantActive(now) {
		return true
	}
	if s.quotaPerUser <= 0 {
		return false
	}

	if _, claimed := s.alreadyClaimed[user]; !claimed {
		s.remaining[user] = s.quotaPerUser
		s.alreadyClaimed[user] = struct{}{}
	}

	return s.remaining[user] > 0
}

// Consume spends one unit of user's quota after a successful admission.
// Whitelisted users and admissions under an active time grant spend nothing.
// The entry is kept at zero so the user cannot claim a fresh quota.
func (s *PermissionState) Consume(user string, now time.Time) {
	if s.IsWhitelisted(user) || s.TimeGrantActive(now) {
		return
	}
	if n, ok := s.remaining[user]; ok && n > 0 {
		s.remaining[user] = n - 1
	}
}

// Reserve decides and, when the count grant applies, spends one unit of
// user's quota in the same step. A Reservation that charged a unit can be
// handed back with Refund if the admission fails later.
func (s *PermissionState) Reserve(user string, now time.Time) (Reservation, bool) {
	if !s.Decide(user, now) {
		return Reservation{}, false
	}

	r := Reservation{User: user, epoch: s.countEpoch}
	before, claimed := s.remaining[user]
	s.Consume(user, now)
	if claimed && s.remaining[user] < before {
		r.Charged = true
	}
	return r, true
}

// Refund returns a charged unit to its user. It is a no-op when nothing was
// charged or the count grant was reset since the reservation.
func (s *PermissionState) Refund(r Reservation) bool {
	if !r.Charged || r.epoch != s.countEpoch {
		return false
	}
	n, ok := s.remaining[r.User]
	if !ok || n >= s.quotaPerUser {
		return false
	}
	s.remaining[r.User] = n + 1
	return true
}

// Remaining returns user's remaining quota and whether a quota was claimed.
func (s *PermissionState) Remaining(user string) (int, bool) {
	n, ok := s.remaining[user]
	return n, ok
}

// GrantTimeFor opens requests to everyone until now+d. A negative d is treated as zero.
// It clears all count grant state.
func (s *PermissionState) GrantTimeFor(d time.Duration, now time.Time) {
	s.timeGrantUntil = now.Add(max(0, d))
	s.timeGrantOpen = false
	s.resetCount()
}

// GrantTimeOpen opens requests to everyone with no deadline.
// It clears all count grant state.
func (s *PermissionState) GrantTimeOpen() {
	s.timeGrantUntil = time.Time{}
	s.timeGrantOpen = true
	s.resetCount()
}

// GrantCount gives every non-whitelisted user n requests, claimed on first use.
// It closes any time grant and lets everyone claim again.
func (s *PermissionState) GrantCount(n int) {
	s.clearTime()
	s.resetCount()
	s.quotaPerUser = max(0, n)
}

// Revoke clears the selected grant mechanism.
func (s *PermissionState) Revoke(scope RevokeScope) {
	switch scope {
	case RevokeTime:
		s.clearTime()
	case RevokeCount:
		s.resetCount()
	case RevokeAll:
		s.clearTime()
		s.resetCount()
	}
}

func (s *PermissionState) clearTime() {
	s.timeGrantUntil = time.Time{}
	s.timeGrantOpen = false
}

func (s *PermissionState) resetCount() {
	s.countEpoch++
	s.quotaPerUser = 0
	clear(s.alreadyClaimed)
	clear(s.remaining)
}

// GrantSnapshot describes the active temporary grants.
type GrantSnapshot struct {
	TimeOpen     bool
	TimeUntil    time.Time
	QuotaPerUser int
	Claimed      int
}

// Grants returns the current temporary grant state.
func (s *PermissionState) Grants() GrantSnapshot {
	return GrantSnapshot{
		TimeOpen:     s.timeGrantOpen,
		TimeUntil:    s.timeGrantUntil,
		QuotaPerUser: s.quotaPerUser,
		Claimed:      len(s.alreadyClaimed),
	}
}

// AddToWhitelist adds user and reports whether it was absent.
func (s *PermissionState) AddToWhitelist(user string) bool {
	if user == "" || s.IsWhitelisted(user) {
		return false
	}
	s.whitelist[user] = struct{}{}
	return true
}

// RemoveFromWhitelist removes user and reports whether it was present.
func (s *PermissionState) RemoveFromWhitelist(user string) bool {
	if !s.IsWhitelisted(user) {
		return false
	}
	delete(s.whitelist, user)
	return true
}

// ResetWhitelistToAdmins replaces the whitelist with a copy of the admin set.
func (s *PermissionState) ResetWhitelistToAdmins() {
	s.whitelist = make(map[string]struct{}, len(s.admins))
	for a := range s.admins {
		s.whitelist[a] = struct{}{}
	}
}

// ReplaceWhitelist overwrites the whitelist, e.g. after loading it from disk.
func (s *PermissionState) ReplaceWhitelist(users []string) {
	s.whitelist = toSet(users)
}

// Whitelist returns the whitelist sorted by name.
func (s *PermissionState) Whitelist() []string {
	return sortedKeys(s.whitelist)
}

// Admins returns the admins sorted by name.
func (s *PermissionState) Admins() []string {
	return sortedKeys(s.admins)
}

// PromoteAdmin adds user to the admin set and reports whether it was absent.
func (s *PermissionState) PromoteAdmin(user string) bool {
	if user == "" || s.IsAdmin(user) {
		return false
	}
	s.admins[user] = struct{}{}
	return true
}

// DemoteAdmin removes a promoted admin. Configured default admins are permanent.
func (s *PermissionState) DemoteAdmin(user string) bool {
	if _, permanent := s.defaultAdmins[user]; permanent {
		return false
	}
	if !s.IsAdmin(user) {
		return false
	}
	delete(s.admins, user)
	return true
}
