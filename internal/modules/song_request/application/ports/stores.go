package ports

import (
	"context"

	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// WhitelistStore persists the whitelist.
type WhitelistStore interface {
	// Load returns the stored whitelist. found is false if nothing was stored yet.
	Load() (users []string, found bool, err error)
	Save(users []string) error
}

// FuseStore persists admin keys that were already redeemed.
type FuseStore interface {
	Contains(key string) (bool, error)
	Add(key string) error
}

// RequestRecorder is the append-only request log.
type RequestRecorder interface {
	Record(ctx context.Context, record domain.RequestRecord) error

	// UserStats returns the total number of requests by username and up to limit of the latest.
	UserStats(ctx context.Context, username string, limit int) (domain.UserStats, error)
}
