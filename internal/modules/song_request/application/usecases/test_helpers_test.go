package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

func mockTrack(id string) domain.Track {
	return domain.Track{
		ID:          domain.TrackID(id),
		DisplayName: "Song " + id,
		ArtistName:  "Artist",
	}
}

func intPtr(n int) *int {
	return &n
}

type mockCatalog struct {
	mu        sync.Mutex
	tracks    map[string]domain.Track
	urls      map[domain.TrackID]string
	searchErr error
	urlErr    error
	searches  []string

	// searchDelay holds Search before it answers.
	searchDelay time.Duration
}

func newMockCatalog(tracks ...domain.Track) *mockCatalog {
	m := &mockCatalog{
		tracks: make(map[string]domain.Track),
		urls:   make(map[domain.TrackID]string),
	}
	for _, t := range tracks {
		m.tracks[t.DisplayName] = t
		m.urls[t.ID] = "https://media.example/" + string(t.ID) + ".mp3"
	}
	return m
}

func (m *mockCatalog) Search(_ context.Context, query string) (domain.Track, error) {
	if m.searchDelay > 0 {
		time.Sleep(m.searchDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.searches = append(m.searches, query)
	if m.searchErr != nil {
		return domain.Track{}, m.searchErr
	}
	t, ok := m.tracks[query]
	if !ok {
		return domain.Track{}, ports.ErrNoResults
	}
	return t, nil
}

func (m *mockCatalog) ResolveAudioURL(_ context.Context, id domain.TrackID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.urlErr != nil {
		return "", m.urlErr
	}
	url, ok := m.urls[id]
	if !ok {
		return "", errors.New("no playable url")
	}
	return url, nil
}

type mockExternalSearcher struct {
	track domain.ExternalTrack
	err   error
}

func (m *mockExternalSearcher) SearchExternal(_ context.Context, _ string) (domain.ExternalTrack, error) {
	if m.err != nil {
		return domain.ExternalTrack{}, m.err
	}
	return m.track, nil
}

type mockFallbackSource struct {
	mu    sync.Mutex
	item  domain.QueueItem
	err   error
	calls int
}

func (m *mockFallbackSource) RandomFallback(_ context.Context) (domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.item, nil
}

func (m *mockFallbackSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockProcess exits on its own when exit is called, when it receives quit
// (unless ignoreQuit is set), or when it is terminated.
type mockProcess struct {
	pid        int
	ignoreQuit bool

	mu         sync.Mutex
	sent       []string
	terminated int
	waitErr    error

	done     chan struct{}
	doneOnce sync.Once
}

func newMockProcess(pid int) *mockProcess {
	return &mockProcess{
		pid:  pid,
		done: make(chan struct{}),
	}
}

func (p *mockProcess) PID() int {
	return p.pid
}

func (p *mockProcess) Done() <-chan struct{} {
	return p.done
}

func (p *mockProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *mockProcess) Send(command string) error {
	select {
	case <-p.done:
		return errors.New("connection refused")
	default:
	}

	p.mu.Lock()
	p.sent = append(p.sent, command)
	ignore := p.ignoreQuit
	p.mu.Unlock()

	if command == "quit" && !ignore {
		p.exit(nil)
	}
	return nil
}

func (p *mockProcess) Terminate(_ time.Duration) error {
	p.mu.Lock()
	p.terminated++
	p.mu.Unlock()

	p.exit(errors.New("signal: terminated"))
	return nil
}

func (p *mockProcess) exit(err error) {
	p.doneOnce.Do(func() {
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *mockProcess) commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func (p *mockProcess) terminateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

func (p *mockProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// mockLauncher hands out processes in order and reports every launch on launched.
type mockLauncher struct {
	mu        sync.Mutex
	processes []*mockProcess
	specs     []ports.LaunchSpec
	err       error
	next      int
	launched  chan *mockProcess
}

func newMockLauncher(processes ...*mockProcess) *mockLauncher {
	return &mockLauncher{
		processes: processes,
		launched:  make(chan *mockProcess, 16),
	}
}

func (m *mockLauncher) NewIPCPath(sessionID string) string {
	return "/tmp/reqbox-test-" + sessionID
}

func (m *mockLauncher) Launch(_ context.Context, spec ports.LaunchSpec) (ports.PlayerProcess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.specs = append(m.specs, spec)
	if m.err != nil {
		return nil, m.err
	}
	if m.next >= len(m.processes) {
		return nil, errors.New("no more processes")
	}

	proc := m.processes[m.next]
	m.next++
	m.launched <- proc
	return proc, nil
}

func (m *mockLauncher) launchSpecs() []ports.LaunchSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.LaunchSpec(nil), m.specs...)
}

type mockProber struct {
	duration time.Duration
	err      error

	// hang makes Probe wait until its context is cancelled.
	hang bool
}

func (m *mockProber) Probe(ctx context.Context, _ string) (time.Duration, error) {
	if m.hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return m.duration, m.err
}

type mockWhitelistStore struct {
	users   []string
	found   bool
	loadErr error
	saveErr error
	saved   [][]string
}

func (m *mockWhitelistStore) Load() ([]string, bool, error) {
	return m.users, m.found, m.loadErr
}

func (m *mockWhitelistStore) Save(users []string) error {
	m.saved = append(m.saved, append([]string(nil), users...))
	return m.saveErr
}

type mockFuseStore struct {
	keys   map[string]bool
	err    error
	addErr error
}

func newMockFuseStore() *mockFuseStore {
	return &mockFuseStore{keys: make(map[string]bool)}
}

func (m *mockFuseStore) Contains(key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.keys[key], nil
}

func (m *mockFuseStore) Add(key string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.keys[key] = true
	return nil
}

type mockRecorder struct {
	records []domain.RequestRecord
	err     error
}

func (m *mockRecorder) Record(_ context.Context, record domain.RequestRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockRecorder) UserStats(_ context.Context, username string, limit int) (domain.UserStats, error) {
	stats := domain.UserStats{Username: username}
	for _, r := range m.records {
		if r.Username != username {
			continue
		}
		stats.Total++
		stats.Recent = append(stats.Recent, r.Label)
	}
	if len(stats.Recent) > limit {
		stats.Recent = stats.Recent[len(stats.Recent)-limit:]
	}
	return stats, nil
}

type mockEventPublisher struct {
	mu               sync.Mutex
	requestAdmitted  []ports.RequestAdmittedEvent
	playbackStarted  []ports.PlaybackStartedEvent
	playbackFinished []ports.PlaybackFinishedEvent
	queueCleared     []ports.QueueClearedEvent
}

func (m *mockEventPublisher) PublishRequestAdmitted(event ports.RequestAdmittedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestAdmitted = append(m.requestAdmitted, event)
}

func (m *mockEventPublisher) PublishPlaybackStarted(event ports.PlaybackStartedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackStarted = append(m.playbackStarted, event)
}

func (m *mockEventPublisher) PublishPlaybackFinished(event ports.PlaybackFinishedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackFinished = append(m.playbackFinished, event)
}

func (m *mockEventPublisher) PublishQueueCleared(event ports.QueueClearedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueCleared = append(m.queueCleared, event)
}

func (m *mockEventPublisher) finished() []ports.PlaybackFinishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.PlaybackFinishedEvent(nil), m.playbackFinished...)
}

// fixedClock returns a now func pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
