// Package http exposes backup and restore over the local JSON API.
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/ppestock/internal/backup"
	"github.com/odyssey-erp/ppestock/internal/platform/httpx"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

// Coordinator is the subset of the backup coordinator the handler drives.
type Coordinator interface {
	ManualBackup(ctx context.Context) (backup.Snapshot, error)
	List(ctx context.Context) ([]backup.Snapshot, error)
	Restore(ctx context.Context, id string) (backup.RestoreResult, error)
	Status() map[backup.Kind]backup.SlotStatus
}

// Handler wires backup endpoints.
type Handler struct {
	logger    *slog.Logger
	coord     Coordinator
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs the backup handler. Mutating endpoints allow
// requestsPerMinute calls per client address.
func NewHandler(logger *slog.Logger, coord Coordinator, requestsPerMinute int) *Handler {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	limiter := httprate.Limit(requestsPerMinute, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr, nil
		}
		return "ip:" + host, nil
	}))
	return &Handler{logger: logger, coord: coord, rateLimit: limiter}
}

// MountRoutes registers backup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/backups", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/status", h.handleStatus)
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit)
			r.Post("/", h.handleManual)
			r.Post("/{id}/restore", h.handleRestore)
		})
	})
}

type restoreRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.coord.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if snaps == nil {
		snaps = []backup.Snapshot{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": snaps})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, h.coord.Status())
}

func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request) {
	snap, err := h.coord.ManualBackup(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, snap)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !req.Confirm {
		httpx.RespondError(w, shared.NewValidationError("confirm", "must be true to replace the current data"))
		return
	}
	id := chi.URLParam(r, "id")
	result, err := h.coord.Restore(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Warn("store restored from snapshot", slog.String("id", id), slog.Bool("restart_required", result.RestartRequired))
	httpx.JSON(w, http.StatusOK, result)
}
