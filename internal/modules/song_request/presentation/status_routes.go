package presentation

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/usecases"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

const defaultStatusHistory = 10

type itemResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Label  string `json:"label"`
}

type nowPlayingResponse struct {
	Item      itemResponse `json:"item"`
	SessionID string       `json:"session_id"`
	StartedAt time.Time    `json:"started_at"`
	Fallback  bool         `json:"fallback"`
}

type statusResponse struct {
	State                string              `json:"state"`
	NowPlaying           *nowPlayingResponse `json:"now_playing"`
	Volume               int                 `json:"volume"`
	TimeoutBufferSeconds int                 `json:"timeout_buffer_seconds"`
	QueueCapacity        int                 `json:"queue_capacity"`
	Queue                []itemResponse      `json:"queue"`
}

type historyEntryResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// StatusRoutes serves a read-only view of the player and queue.
type StatusRoutes struct {
	queue  *usecases.QueueService
	player *usecases.Orchestrator
}

// NewStatusRoutes creates a new StatusRoutes.
func NewStatusRoutes(queue *usecases.QueueService, player *usecases.Orchestrator) *StatusRoutes {
	return &StatusRoutes{
		queue:  queue,
		player: player,
	}
}

// Mount registers the routes on r.
func (s *StatusRoutes) Mount(r chi.Router) {
	r.Get("/status", s.handleStatus)
	r.Get("/history", s.handleHistory)
}

func (s *StatusRoutes) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.player.Status()

	items := s.queue.List()
	queue := make([]itemResponse, 0, len(items))
	for _, item := range items {
		queue = append(queue, toItemResponse(item))
	}

	resp := statusResponse{
		State:                status.State.String(),
		Volume:               status.Volume,
		TimeoutBufferSeconds: int(status.TimeoutBuffer / time.Second),
		QueueCapacity:        s.queue.Capacity(),
		Queue:                queue,
	}
	if np := status.NowPlaying; np != nil {
		resp.NowPlaying = &nowPlayingResponse{
			Item:      toItemResponse(np.Item),
			SessionID: np.SessionID,
			StartedAt: np.StartedAt,
			Fallback:  np.Fallback,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *StatusRoutes) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := defaultStatusHistory
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a positive integer"})
			return
		}
		n = parsed
	}

	entries := s.player.History(n)
	resp := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyEntryResponse{
			ID:          e.ID,
			Kind:        e.Kind,
			Title:       e.Title,
			Artist:      e.Artist,
			CompletedAt: e.CompletedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func toItemResponse(item domain.QueueItem) itemResponse {
	return itemResponse{
		ID:     domain.ItemID(item),
		Kind:   domain.ItemKind(item),
		Title:  item.Title(),
		Artist: item.Artist(),
		Label:  item.Label(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
