package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/carmarket/internal/carrequest"
	"github.com/onnwee/carmarket/internal/notice"
	"github.com/onnwee/carmarket/internal/post"
	"github.com/onnwee/carmarket/internal/search"
	"github.com/onnwee/carmarket/internal/user"
)

// DashboardHandlers serves the moderation dashboard. Requests act without an
// owner scope, so every car request is reachable.
type DashboardHandlers struct {
	users    user.Repository
	posts    post.Repository
	requests carrequest.Repository
	notices  notice.Repository
	search   *search.Service
	logger   *slog.Logger
}

// DashboardDeps groups the repositories the dashboard reads and writes.
type DashboardDeps struct {
	Users    user.Repository
	Posts    post.Repository
	Requests carrequest.Repository
	Notices  notice.Repository
	Search   *search.Service
}

// NewDashboardHandlers creates a new DashboardHandlers instance.
func NewDashboardHandlers(deps DashboardDeps, logger *slog.Logger) *DashboardHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandlers{
		users:    deps.Users,
		posts:    deps.Posts,
		requests: deps.Requests,
		notices:  deps.Notices,
		search:   deps.Search,
		logger:   logger,
	}
}

// SearchUsers handles GET /dashboard/users?searchTerm&city&page.
func (h *DashboardHandlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	h.rankUsers(w, r, search.Request{
		Query: searchTerm(r),
		Facet: strings.TrimSpace(r.URL.Query().Get("city")),
		Page:  page,
		Limit: search.UserPageSize,
	}, true)
}

// Typeahead handles GET /dashboard/search?searchTerm: the first few users
// for an autocomplete box.
func (h *DashboardHandlers) Typeahead(w http.ResponseWriter, r *http.Request) {
	h.rankUsers(w, r, search.Request{
		Query: searchTerm(r),
		Page:  1,
		Limit: search.TypeaheadSize,
	}, false)
}

func (h *DashboardHandlers) rankUsers(w http.ResponseWriter, r *http.Request, req search.Request, paged bool) {
	result, err := h.search.Search(r.Context(), search.EntityUsers, req)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "search users")
		return
	}
	items, err := h.users.GetMany(r.Context(), result.IDs())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "load search results")
		return
	}
	if !paged {
		WriteJSON(w, r.Context(), http.StatusOK, items)
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, usersPage{Users: items, NextPage: result.NextPage})
}

// ListCarRequests handles GET /dashboard/car-requests.
func (h *DashboardHandlers) ListCarRequests(w http.ResponseWriter, r *http.Request) {
	items, err := h.requests.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve car requests")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, items)
}

// GetCarRequest handles GET /dashboard/car-requests/{id}.
func (h *DashboardHandlers) GetCarRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePath(w, r, "id")
	if !ok {
		return
	}
	item, err := h.requests.Get(r.Context(), id, "")
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve car request")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, item)
}

// ListUserRequests handles GET /dashboard/user-requests?userId&status.
func (h *DashboardHandlers) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	listByUser(w, r, h.requests, h.logger, userID)
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetCarRequestStatus handles PATCH /dashboard/car-requests/status/{id}.
func (h *DashboardHandlers) SetCarRequestStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePath(w, r, "id")
	if !ok {
		return
	}
	var body statusRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	status, err := carrequest.ParseStatus(body.Status)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update car request status")
		return
	}
	updated, err := h.requests.SetStatus(r.Context(), id, status)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update car request status")
		return
	}
	h.logger.InfoContext(r.Context(), "car request moderated",
		slog.String("request_id", id),
		slog.String("status", string(updated.Status)),
	)
	WriteJSON(w, r.Context(), http.StatusOK, updated)
}

// UpdateCarRequest handles PATCH /dashboard/car-requests/{id}.
func (h *DashboardHandlers) UpdateCarRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePath(w, r, "id")
	if !ok {
		return
	}
	var patch carrequest.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	updated, err := h.requests.Update(r.Context(), id, "", patch)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update car request")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, updated)
}

// DeleteCarRequest handles DELETE /dashboard/car-requests/{id}.
func (h *DashboardHandlers) DeleteCarRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePath(w, r, "id")
	if !ok {
		return
	}
	if err := h.requests.Delete(r.Context(), id, ""); err != nil {
		writeDomainError(w, r, h.logger, err, "delete car request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TogglePopular handles POST /dashboard/popular?postId.
func (h *DashboardHandlers) TogglePopular(w http.ResponseWriter, r *http.Request) {
	postID, ok := requireQuery(w, r, "postId")
	if !ok {
		return
	}
	popular, err := h.posts.TogglePopular(r.Context(), postID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update popular flag")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, map[string]bool{"popular": popular})
}

// ToggleSeller handles POST /dashboard/user?userId.
func (h *DashboardHandlers) ToggleSeller(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	seller, err := h.users.ToggleSeller(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update seller flag")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, map[string]bool{"seller": seller})
}

// CreateBanner handles POST /dashboard/banners.
func (h *DashboardHandlers) CreateBanner(w http.ResponseWriter, r *http.Request) {
	var b notice.Banner
	if !decodeJSON(w, r, &b) {
		return
	}
	if err := h.notices.CreateBanner(r.Context(), &b); err != nil {
		writeDomainError(w, r, h.logger, err, "create banner")
		return
	}
	WriteJSON(w, r.Context(), http.StatusCreated, &b)
}

// CreateNotification handles POST /dashboard/notifications.
func (h *DashboardHandlers) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var n notice.Notification
	if !decodeJSON(w, r, &n) {
		return
	}
	if err := h.notices.CreateNotification(r.Context(), &n); err != nil {
		writeDomainError(w, r, h.logger, err, "create notification")
		return
	}
	WriteJSON(w, r.Context(), http.StatusCreated, &n)
}
