// Package http exposes the product service over the local JSON API.
package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/export"
	"github.com/odyssey-erp/ppestock/internal/platform/httpx"
	"github.com/odyssey-erp/ppestock/internal/products"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

// Handler wires product endpoints.
type Handler struct {
	logger  *slog.Logger
	service *products.Service
	today   func() calendar.Date
}

// NewHandler constructs the product handler. today defaults to the local calendar date.
func NewHandler(logger *slog.Logger, service *products.Service, today func() calendar.Date) *Handler {
	if today == nil {
		today = calendar.Today
	}
	return &Handler{logger: logger, service: service, today: today}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/export.csv", h.handleExportCSV)
		r.Get("/export.pdf", h.handleExportPDF)
		r.Get("/export.xlsx", h.handleExportXLSX)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, ok := h.filtered(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input products.ProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	today, err := h.evaluationDate(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := h.service.AddProduct(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.GetProduct(r.Context(), id, today)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%d", strings.TrimSuffix(r.URL.Path, "/"), id))
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	today, err := h.evaluationDate(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetProduct(r.Context(), id, today)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input products.ProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	today, err := h.evaluationDate(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.UpdateProduct(r.Context(), id, input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetProduct(r.Context(), id, today)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	items, ok := h.filtered(w, r)
	if !ok {
		return
	}
	buf := &bytes.Buffer{}
	if err := export.WriteCSV(buf, items); err != nil {
		h.logger.Error("export products csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=produtos.csv")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	today, err := h.evaluationDate(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, ok := h.filtered(w, r)
	if !ok {
		return
	}
	buf := &bytes.Buffer{}
	if err := export.WritePDF(buf, "Controle de EPIs", today, items); err != nil {
		h.logger.Error("export products pdf", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=produtos.pdf")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	items, ok := h.filtered(w, r)
	if !ok {
		return
	}
	buf := &bytes.Buffer{}
	if err := export.WriteXLSX(buf, items); err != nil {
		h.logger.Error("export products xlsx", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=produtos.xlsx")
	_, _ = w.Write(buf.Bytes())
}

// filtered runs the list query described by the status, q and today
// parameters, writing the error response itself when it fails.
func (h *Handler) filtered(w http.ResponseWriter, r *http.Request) ([]products.EnrichedProduct, bool) {
	today, err := h.evaluationDate(r)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	q := r.URL.Query()
	filter := products.Filter{Term: q.Get("q")}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, perr := expiry.ParseStatus(raw)
		if perr != nil {
			httpx.RespondError(w, shared.NewValidationError("status", "is not a known status"))
			return nil, false
		}
		filter.Status = status
	}
	items, err := h.service.Filter(r.Context(), filter, today)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	return items, true
}

func (h *Handler) evaluationDate(r *http.Request) (calendar.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("today"))
	if raw == "" {
		return h.today(), nil
	}
	d, err := calendar.ParseAny(raw)
	if err != nil {
		return calendar.Date{}, shared.NewValidationError("today", "must be a yyyy-mm-dd or dd/mm/yyyy date")
	}
	return d, nil
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}
