package usecases

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

var testNow = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

func newTestPermissionService(store *mockWhitelistStore) *PermissionService {
	s := NewPermissionService([]string{"admin"}, []string{"admin", "regular"}, store)
	s.now = fixedClock(testNow)
	return s
}

func TestNewPermissionService(t *testing.T) {
	tests := []struct {
		name          string
		store         *mockWhitelistStore
		wantWhitelist []string
		wantSaves     int
	}{
		{
			name:          "seeds empty store with defaults",
			store:         &mockWhitelistStore{},
			wantWhitelist: []string{"admin", "regular"},
			wantSaves:     1,
		},
		{
			name:          "loads stored whitelist",
			store:         &mockWhitelistStore{users: []string{"alice", "bob"}, found: true},
			wantWhitelist: []string{"alice", "bob"},
			wantSaves:     0,
		},
		{
			name:          "keeps defaults when load fails",
			store:         &mockWhitelistStore{loadErr: errors.New("corrupt file")},
			wantWhitelist: []string{"admin", "regular"},
			wantSaves:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestPermissionService(tt.store)

			if got := s.Whitelist(); !slices.Equal(got, tt.wantWhitelist) {
				t.Errorf("Whitelist() = %v, want %v", got, tt.wantWhitelist)
			}
			if len(tt.store.saved) != tt.wantSaves {
				t.Errorf("expected %d saves, got %d", tt.wantSaves, len(tt.store.saved))
			}
		})
	}
}

func TestPermissionService_GrantCount(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		wantErr error
	}{
		{name: "zero", n: 0},
		{name: "upper bound", n: MaxGrantCount},
		{name: "negative", n: -1, wantErr: ErrInvalidCount},
		{name: "above bound", n: MaxGrantCount + 1, wantErr: ErrInvalidCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestPermissionService(nil)

			err := s.GrantCount(tt.n)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && s.Grants().QuotaPerUser != tt.n {
				t.Errorf("expected quota %d, got %d", tt.n, s.Grants().QuotaPerUser)
			}
		})
	}
}

func TestPermissionService_GrantTime(t *testing.T) {
	t.Run("timed grant expires", func(t *testing.T) {
		s := newTestPermissionService(nil)
		s.GrantTime(GrantTimeInput{Seconds: intPtr(60)})

		if !s.Decide("stranger") {
			t.Error("expected stranger to be admitted during grant")
		}

		s.now = fixedClock(testNow.Add(61 * time.Second))
		if s.Decide("stranger") {
			t.Error("expected stranger to be denied after grant expired")
		}
	})

	t.Run("open grant has no deadline", func(t *testing.T) {
		s := newTestPermissionService(nil)
		s.GrantTime(GrantTimeInput{})

		s.now = fixedClock(testNow.Add(24 * time.Hour))
		if !s.Decide("stranger") {
			t.Error("expected stranger to be admitted under open grant")
		}
		if !s.Grants().TimeOpen {
			t.Error("expected TimeOpen to be reported")
		}
	})

	t.Run("time grant clears count grant", func(t *testing.T) {
		s := newTestPermissionService(nil)
		if err := s.GrantCount(2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.GrantTime(GrantTimeInput{Seconds: intPtr(10)})

		if got := s.Grants().QuotaPerUser; got != 0 {
			t.Errorf("expected quota to be cleared, got %d", got)
		}
	})
}

func TestPermissionService_Revoke(t *testing.T) {
	s := newTestPermissionService(nil)
	s.GrantTime(GrantTimeInput{})
	s.Revoke(domain.RevokeAll)

	if s.Decide("stranger") {
		t.Error("expected stranger to be denied after revoke")
	}
	if !s.Decide("regular") {
		t.Error("expected whitelisted user to stay admitted")
	}
}

func TestPermissionService_WhitelistPersistence(t *testing.T) {
	store := &mockWhitelistStore{users: []string{"admin"}, found: true}
	s := newTestPermissionService(store)

	if !s.AddToWhitelist("alice") {
		t.Fatal("expected alice to be added")
	}
	if s.AddToWhitelist("alice") {
		t.Error("expected second add to report false")
	}
	if s.RemoveFromWhitelist("nobody") {
		t.Error("expected removing unknown user to report false")
	}
	s.ClearWhitelist()

	want := [][]string{
		{"admin", "alice"},
		{"admin"},
	}
	if len(store.saved) != len(want) {
		t.Fatalf("expected %d saves, got %d: %v", len(want), len(store.saved), store.saved)
	}
	for i := range want {
		if !slices.Equal(store.saved[i], want[i]) {
			t.Errorf("save %d = %v, want %v", i, store.saved[i], want[i])
		}
	}
}

func TestPermissionService_SaveFailureKeepsChange(t *testing.T) {
	store := &mockWhitelistStore{found: true, saveErr: errors.New("read-only filesystem")}
	s := newTestPermissionService(store)

	if !s.AddToWhitelist("alice") {
		t.Fatal("expected alice to be added")
	}
	if !s.Decide("alice") {
		t.Error("expected alice to be admitted despite failed save")
	}
}

func TestPermissionService_PromoteAdmin(t *testing.T) {
	s := newTestPermissionService(nil)

	if !s.PromoteAdmin("alice") {
		t.Fatal("expected alice to be promoted")
	}
	if got := s.Classify("alice"); got != domain.RoleAdmin {
		t.Errorf("Classify() = %v, want admin", got)
	}
	if s.DemoteAdmin("admin") {
		t.Error("expected default admin to be permanent")
	}
	if !s.DemoteAdmin("alice") {
		t.Error("expected promoted admin to be demoted")
	}
}
