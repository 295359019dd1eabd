package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/carmarket/internal/paging"
	"github.com/onnwee/carmarket/internal/recency"
	"github.com/onnwee/carmarket/internal/search"
	"github.com/onnwee/carmarket/internal/user"
)

// UserHandlers holds dependencies for user HTTP handlers.
type UserHandlers struct {
	users   user.Repository
	search  *search.Service
	recency *recency.Service
	logger  *slog.Logger
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(users user.Repository, searcher *search.Service, recent *recency.Service, logger *slog.Logger) *UserHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandlers{users: users, search: searcher, recency: recent, logger: logger}
}

// List handles GET /users?searchTerm&page. Without a search term users are
// listed newest first; with one they are ranked by username.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}

	term := searchTerm(r)
	if term == "" {
		items, err := h.users.List(r.Context(), search.UserPageSize, paging.Offset(page, search.UserPageSize))
		if err != nil {
			writeDomainError(w, r, h.logger, err, "retrieve users")
			return
		}
		WriteJSON(w, r.Context(), http.StatusOK, usersPage{
			Users:    items,
			NextPage: paging.Next(page, search.UserPageSize, len(items)),
		})
		return
	}

	result, err := h.search.Search(r.Context(), search.EntityUsers, search.Request{
		Query: term,
		Page:  page,
		Limit: search.UserPageSize,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "search users")
		return
	}
	items, err := h.users.GetMany(r.Context(), result.IDs())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "load search results")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, usersPage{Users: items, NextPage: result.NextPage})
}

// Get handles GET /users/{userId}.
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePath(w, r, "userId")
	if !ok {
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve user")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, u)
}

// Create handles POST /users. The id is the caller's external identity.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var u user.User
	if !decodeJSON(w, r, &u) {
		return
	}
	u.CreatedAt, u.UpdatedAt = time.Time{}, time.Time{}

	if err := h.users.Create(r.Context(), &u); err != nil {
		writeDomainError(w, r, h.logger, err, "create user")
		return
	}
	WriteJSON(w, r.Context(), http.StatusCreated, &u)
}

// Update handles PUT /users/{userId}.
func (h *UserHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePath(w, r, "userId")
	if !ok {
		return
	}
	var patch user.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	u, err := h.users.Update(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update user")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, u)
}

// Delete handles DELETE /users/{userId}.
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePath(w, r, "userId")
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err, "delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListViewed handles GET /users/viewed/{userId}: profiles the user visited,
// most recent first.
func (h *UserHandlers) ListViewed(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePath(w, r, "userId")
	if !ok {
		return
	}
	entries, err := h.recency.ListRecent(r.Context(), recency.ViewedUsers, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve viewed users")
		return
	}
	items, err := h.users.GetMany(r.Context(), recency.TargetIDs(entries))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve viewed users")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, items)
}

// RecordView handles PUT /users/viewed/{otherId}?userId.
func (h *UserHandlers) RecordView(w http.ResponseWriter, r *http.Request) {
	otherID, ok := requirePath(w, r, "otherId")
	if !ok {
		return
	}
	viewer, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	if _, err := h.users.Get(r.Context(), otherID); err != nil {
		writeDomainError(w, r, h.logger, err, "record viewed user")
		return
	}
	res, err := h.recency.RecordInteraction(r.Context(), recency.ViewedUsers, viewer, otherID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "record viewed user")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, res)
}
