package usecases

import (
	"fmt"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// AdminKeyService verifies the rotating admin key and records redeemed keys.
type AdminKeyService struct {
	secret string
	fuses  ports.FuseStore
	loc    *time.Location
	now    func() time.Time
}

// NewAdminKeyService creates an AdminKeyService. Keys are derived from the hour
// in loc; a nil loc means time.Local.
func NewAdminKeyService(secret string, fuses ports.FuseStore, loc *time.Location) *AdminKeyService {
	if loc == nil {
		loc = time.Local
	}
	return &AdminKeyService{
		secret: secret,
		fuses:  fuses,
		loc:    loc,
		now:    time.Now,
	}
}

// Now returns the current time in the key's location.
func (s *AdminKeyService) Now() time.Time {
	return s.now().In(s.loc)
}

// CurrentKey returns the key for the current hour.
func (s *AdminKeyService) CurrentKey() string {
	return domain.DeriveAdminKey(s.now().In(s.loc), s.secret)
}

// HourBucket returns the current hour bucket the key is derived from.
func (s *AdminKeyService) HourBucket() string {
	return domain.HourBucket(s.now().In(s.loc))
}

// Verify checks whether text carries the current key. It has no side effects:
// the caller decides whether to promote and then calls Fuse.
func (s *AdminKeyService) Verify(text string) (string, error) {
	candidate := domain.NormalizeKeyInput(text)
	if candidate == "" {
		return "", ErrKeyMismatch
	}

	key := s.CurrentKey()
	if candidate != key {
		return "", ErrKeyMismatch
	}

	if s.fuses != nil {
		used, err := s.fuses.Contains(key)
		if err != nil {
			return "", fmt.Errorf("failed to read fused keys: %w", err)
		}
		if used {
			return "", ErrKeyAlreadyUsed
		}
	}

	return key, nil
}

// Fuse marks key as redeemed so it cannot promote anyone else.
func (s *AdminKeyService) Fuse(key string) error {
	if s.fuses == nil {
		return nil
	}
	if err := s.fuses.Add(key); err != nil {
		return fmt.Errorf("failed to fuse admin key: %w", err)
	}
	return nil
}
