package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/carmarket/internal/carrequest"
)

// CarRequestHandlers serves the public and owner-scoped car request routes.
type CarRequestHandlers struct {
	requests carrequest.Repository
	logger   *slog.Logger
}

// NewCarRequestHandlers creates a new CarRequestHandlers instance.
func NewCarRequestHandlers(requests carrequest.Repository, logger *slog.Logger) *CarRequestHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &CarRequestHandlers{requests: requests, logger: logger}
}

// ListApproved handles GET /car-requests?city.
func (h *CarRequestHandlers) ListApproved(w http.ResponseWriter, r *http.Request) {
	items, err := h.requests.ListApproved(r.Context(), strings.TrimSpace(r.URL.Query().Get("city")))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve car requests")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, items)
}

// ListOwn handles GET /car-requests/user_requests?userId&status.
func (h *CarRequestHandlers) ListOwn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	listByUser(w, r, h.requests, h.logger, userID)
}

// listByUser is shared with the dashboard, which names the user the same way.
func listByUser(w http.ResponseWriter, r *http.Request, repo carrequest.Repository, logger *slog.Logger, userID string) {
	items, err := repo.ListByUser(r.Context(), userID, strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		writeDomainError(w, r, logger, err, "retrieve car requests")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, items)
}

// Get handles GET /car-requests/{id}?userId.
func (h *CarRequestHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := requestAndOwner(w, r)
	if !ok {
		return
	}
	item, err := h.requests.Get(r.Context(), id, userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve car request")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, item)
}

// Create handles POST /car-requests. New requests are pending review.
func (h *CarRequestHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req carrequest.CarRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CreatedAt, req.UpdatedAt = time.Time{}, time.Time{}
	if err := h.requests.Create(r.Context(), &req); err != nil {
		writeDomainError(w, r, h.logger, err, "create car request")
		return
	}
	WriteJSON(w, r.Context(), http.StatusCreated, &req)
}

// Update handles PATCH /car-requests/{id}?userId.
func (h *CarRequestHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := requestAndOwner(w, r)
	if !ok {
		return
	}
	var patch carrequest.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	updated, err := h.requests.Update(r.Context(), id, userID, patch)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update car request")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, updated)
}

// Delete handles DELETE /car-requests/{id}?userId.
func (h *CarRequestHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := requestAndOwner(w, r)
	if !ok {
		return
	}
	if err := h.requests.Delete(r.Context(), id, userID); err != nil {
		writeDomainError(w, r, h.logger, err, "delete car request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requestAndOwner(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	id, ok := requirePath(w, r, "id")
	if !ok {
		return "", "", false
	}
	userID, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return "", "", false
	}
	return id, userID, true
}
