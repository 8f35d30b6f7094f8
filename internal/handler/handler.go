package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gitpulse/gitpulse/internal/analyze"
	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/pkg/errors"
	"github.com/gorilla/mux"
)

const topLimit = 5

// SyncPublisher queues a pipeline run request for the consumer side.
type SyncPublisher interface {
	PublishSyncRequest(ctx context.Context, owner, repo string) error
}

// ReportsHandler serves the stored analytics over HTTP and accepts sync
// triggers. All report endpoints are read-only views of the store.
type ReportsHandler struct {
	db    models.Database
	queue SyncPublisher
	owner string
	name  string
}

func NewReportsHandler(db models.Database, q SyncPublisher, owner, name string) *ReportsHandler {
	return &ReportsHandler{
		db:    db,
		queue: q,
		owner: owner,
		name:  name,
	}
}

func (h *ReportsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/repository", h.getRepository).Methods("GET")
	r.HandleFunc("/reports/top-authors", h.getTopAuthors).Methods("GET")
	r.HandleFunc("/reports/top-committers", h.getTopCommitters).Methods("GET")
	r.HandleFunc("/reports/longest-streak", h.getLongestStreak).Methods("GET")
	r.HandleFunc("/reports/heatmap", h.getHeatmap).Methods("GET")
	r.HandleFunc("/sync", h.triggerSync).Methods("POST")
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}, message ...string) {
	resp := APIResponse{
		Status: "success",
		Data:   data,
	}
	if len(message) > 0 {
		resp.Message = message[0]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (h *ReportsHandler) getRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := h.db.GetRepositoryByFullName(r.Context(), h.owner+"/"+h.name)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}
	if repo == nil {
		errors.WriteHTTPError(w, errors.New(
			"REPOSITORY_NOT_FOUND",
			"Repository not found",
			"The target repository has not been loaded yet",
			nil,
			errors.LevelInfo,
		))
		return
	}
	writeSuccess(w, http.StatusOK, repo)
}

func (h *ReportsHandler) getTopAuthors(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.GetTopAuthors(r.Context(), topLimit)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rows)
}

func (h *ReportsHandler) getTopCommitters(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.GetTopCommitters(r.Context(), topLimit)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rows)
}

func (h *ReportsHandler) getLongestStreak(w http.ResponseWriter, r *http.Request) {
	streak, err := h.db.GetLongestStreak(r.Context())
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}
	if streak == nil {
		writeSuccess(w, http.StatusOK, nil, "no commit streaks found")
		return
	}
	writeSuccess(w, http.StatusOK, streak)
}

func (h *ReportsHandler) getHeatmap(w http.ResponseWriter, r *http.Request) {
	cells, err := h.db.GetHeatmapCounts(r.Context())
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	grid := analyze.BuildGrid(cells)
	writeSuccess(w, http.StatusOK, map[string]any{
		"days":   analyze.DayLabels[:],
		"blocks": analyze.BlockLabels[:],
		"counts": grid.Counts,
	})
}

func (h *ReportsHandler) triggerSync(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		errors.WriteHTTPError(w, errors.New(
			"CONFIG_ERROR",
			"Sync queue is not configured",
			"Set RABBITMQ_URL to enable sync triggers",
			nil,
			errors.LevelError,
		))
		return
	}

	if err := h.queue.PublishSyncRequest(r.Context(), h.owner, h.name); err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	writeSuccess(w, http.StatusAccepted, nil, "sync request queued")
}
