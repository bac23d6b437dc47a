package presentation

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/application/usecases"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// fakeCatalog matches queries against track names, case-insensitively.
type fakeCatalog struct {
	tracks []domain.Track
}

func (c *fakeCatalog) Search(_ context.Context, query string) (domain.Track, error) {
	for _, t := range c.tracks {
		if strings.EqualFold(t.DisplayName, query) || string(t.ID) == query {
			return t, nil
		}
	}
	return domain.Track{}, ports.ErrNoResults
}

func (c *fakeCatalog) ResolveAudioURL(_ context.Context, id domain.TrackID) (string, error) {
	return "https://cdn.example/" + string(id) + ".mp3", nil
}

type fakeExternalSearcher struct {
	track domain.ExternalTrack
}

func (s *fakeExternalSearcher) SearchExternal(_ context.Context, _ string) (domain.ExternalTrack, error) {
	return s.track, nil
}

// fakeRecorder keeps records in memory.
type fakeRecorder struct {
	mu      sync.Mutex
	records []domain.RequestRecord
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, record domain.RequestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *fakeRecorder) UserStats(_ context.Context, username string, limit int) (domain.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return domain.UserStats{}, r.err
	}

	stats := domain.UserStats{Username: username}
	for _, rec := range r.records {
		if rec.Username == username {
			stats.Total++
			stats.Recent = append(stats.Recent, rec.Label)
		}
	}
	if len(stats.Recent) > limit {
		stats.Recent = slices.Clone(stats.Recent[len(stats.Recent)-limit:])
	}
	return stats, nil
}

// fakeFuseStore keeps fused keys in memory.
type fakeFuseStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (s *fakeFuseStore) Contains(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *fakeFuseStore) Add(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = make(map[string]bool)
	}
	s.keys[key] = true
	return nil
}

type fixture struct {
	queue       *domain.RequestQueue
	history     *domain.History
	recorder    *fakeRecorder
	fuses       *fakeFuseStore
	permissions *usecases.PermissionService
	adminKey    *usecases.AdminKeyService
	requests    *usecases.RequestService
	queueSvc    *usecases.QueueService
	player      *usecases.Orchestrator
	commands    *CommandRouter
	chat        *ChatHandler
}

type fixtureOptions struct {
	whitelist    []string
	capacity     int
	external     bool
	videoEnabled bool
}

func newFixture(opts fixtureOptions) *fixture {
	if opts.capacity == 0 {
		opts.capacity = domain.DefaultQueueCapacity
	}

	f := &fixture{
		queue:    domain.NewRequestQueue(opts.capacity),
		history:  domain.NewHistory(10),
		recorder: &fakeRecorder{},
		fuses:    &fakeFuseStore{},
	}

	catalog := &fakeCatalog{tracks: []domain.Track{
		{ID: "1", DisplayName: "晴天", ArtistName: "周杰伦"},
		{ID: "2", DisplayName: "稻香", ArtistName: "周杰伦"},
		{ID: "3", DisplayName: "七里香", ArtistName: "周杰伦"},
	}}

	var external ports.ExternalSearcher
	if opts.external {
		external = &fakeExternalSearcher{track: domain.ExternalTrack{
			ID:          "ext-1",
			DisplayName: "海阔天空",
			ArtistName:  "Beyond",
			AudioURL:    "https://cdn.example/ext-1.mp3",
		}}
	}

	resolver := usecases.NewItemResolver(catalog, external, opts.videoEnabled)

	f.permissions = usecases.NewPermissionService([]string{"admin"}, opts.whitelist, nil)
	f.adminKey = usecases.NewAdminKeyService("secret", f.fuses, nil)
	f.requests = usecases.NewRequestService(f.permissions, f.queue, resolver, f.recorder, nil)
	f.queueSvc = usecases.NewQueueService(f.queue, resolver, nil)
	f.player = usecases.NewOrchestrator(
		f.queue, catalog, nil, nil, nil, f.history, nil,
		usecases.DefaultOrchestratorConfig(),
	)
	f.commands = NewCommandRouter(f.permissions, f.adminKey, f.requests, f.queueSvc, f.player)
	f.chat = NewChatHandler(f.permissions, f.adminKey, f.requests, f.commands, []string{"点歌:"})

	return f
}
