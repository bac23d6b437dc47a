package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// ItemResolver turns request text into a queue item.
type ItemResolver struct {
	catalog      ports.Catalog
	external     ports.ExternalSearcher
	videoEnabled bool
}

// NewItemResolver creates an ItemResolver. external may be nil when the
// secondary source is disabled.
func NewItemResolver(
	catalog ports.Catalog,
	external ports.ExternalSearcher,
	videoEnabled bool,
) *ItemResolver {
	return &ItemResolver{
		catalog:      catalog,
		external:     external,
		videoEnabled: videoEnabled,
	}
}

// Resolve parses query as a video reference first and falls back to a catalog search.
func (r *ItemResolver) Resolve(ctx context.Context, query string) (domain.QueueItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrResolutionFailed
	}

	if ref, ok := domain.ParseVideoRef(query); ok {
		if !r.videoEnabled {
			return nil, ErrVideoDisabled
		}
		return ref, nil
	}

	if r.catalog == nil {
		return nil, fmt.Errorf("%w: no catalog configured", ErrResolutionFailed)
	}

	track, err := r.catalog.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}
	return track, nil
}

// ResolveExternal searches the secondary source only.
func (r *ItemResolver) ResolveExternal(ctx context.Context, query string) (domain.QueueItem, error) {
	if r.external == nil {
		return nil, ErrExternalDisabled
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrResolutionFailed
	}

	track, err := r.external.SearchExternal(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}
	return track, nil
}
