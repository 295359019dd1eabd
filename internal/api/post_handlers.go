package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/onnwee/carmarket/internal/middleware"
	"github.com/onnwee/carmarket/internal/paging"
	"github.com/onnwee/carmarket/internal/post"
	"github.com/onnwee/carmarket/internal/recency"
	"github.com/onnwee/carmarket/internal/search"
)

// CreatePostRequest represents the request body for creating a post.
type CreatePostRequest struct {
	UserID       string   `json:"user_id"`
	CarName      string   `json:"car_name"`
	Price        int64    `json:"price"`
	Model        string   `json:"model"`
	Transmission string   `json:"transmission"`
	FuelType     string   `json:"fuel_type"`
	Color        string   `json:"color"`
	Information  string   `json:"information"`
	Conditions   string   `json:"conditions"`
	Engine       string   `json:"engine"`
	Side         string   `json:"side"`
	Images       []string `json:"images"`
}

// PostHandlers holds dependencies for post HTTP handlers.
type PostHandlers struct {
	posts   post.Repository
	search  *search.Service
	recency *recency.Service
	logger  *slog.Logger
}

// NewPostHandlers creates a new PostHandlers instance.
func NewPostHandlers(posts post.Repository, searcher *search.Service, recent *recency.Service, logger *slog.Logger) *PostHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostHandlers{posts: posts, search: searcher, recency: recent, logger: logger}
}

// ListFeed handles GET /posts?userId&page.
func (h *PostHandlers) ListFeed(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}

	items, err := h.posts.ListFeed(r.Context(), viewer, search.PostPageSize, paging.Offset(page, search.PostPageSize))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve posts")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, postsPage{
		Posts:    items,
		NextPage: paging.Next(page, search.PostPageSize, len(items)),
	})
}

// ListPopular handles GET /posts/popular?userId.
func (h *PostHandlers) ListPopular(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	items, err := h.posts.ListPopular(r.Context(), viewer)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve popular posts")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, items)
}

// Search handles GET /posts/search?searchTerm&city&page&userId. Posts are
// ranked by car name and faceted by their owner's city; the ranked ids are
// then loaded as feed items in rank order.
func (h *PostHandlers) Search(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	result, err := h.search.Search(r.Context(), search.EntityPosts, search.Request{
		Query: searchTerm(r),
		Facet: strings.TrimSpace(q.Get("city")),
		Page:  page,
		Limit: search.PostPageSize,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "search posts")
		return
	}

	items, err := h.posts.GetMany(r.Context(), result.IDs(), strings.TrimSpace(q.Get(viewerParam)))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "load search results")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, postsPage{Posts: items, NextPage: result.NextPage})
}

// searchTerm reads the free-text query, accepting both parameter spellings
// the web client has used.
func searchTerm(r *http.Request) string {
	q := r.URL.Query()
	if term := q.Get("searchTerm"); term != "" {
		return strings.TrimSpace(term)
	}
	return strings.TrimSpace(q.Get("q"))
}

// Filter handles GET /posts/filtered?userId&car_name&...&price.
func (h *PostHandlers) Filter(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := post.Filter{
		CarName:      strings.TrimSpace(q.Get("car_name")),
		Conditions:   strings.TrimSpace(q.Get("conditions")),
		Engine:       strings.TrimSpace(q.Get("engine")),
		FuelType:     strings.TrimSpace(q.Get("fuel_type")),
		Model:        strings.TrimSpace(q.Get("model")),
		Side:         strings.TrimSpace(q.Get("side")),
		Transmission: strings.TrimSpace(q.Get("transmission")),
	}
	if raw := strings.TrimSpace(q.Get("price")); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || price < 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "price must be a non-negative integer")
			return
		}
		f.MaxPrice = price
	}

	items, err := h.posts.Filter(r.Context(), f, viewer)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve filtered posts")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, postsPage{Posts: items})
}

// ListSaved handles GET /posts/saves/{userId}?page.
func (h *PostHandlers) ListSaved(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePath(w, r, "userId")
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	items, err := h.posts.ListSaved(r.Context(), userID, search.PostPageSize, paging.Offset(page, search.PostPageSize))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve saved posts")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, postsPage{
		Posts:    items,
		NextPage: paging.Next(page, search.PostPageSize, len(items)),
	})
}

// ListViewed handles GET /posts/viewed/{userId}: the user's recently viewed
// posts, most recent first.
func (h *PostHandlers) ListViewed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requirePath(w, r, "userId")
	if !ok {
		return
	}
	entries, err := h.recency.ListRecent(r.Context(), recency.ViewedPosts, userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve viewed posts")
		return
	}
	items, err := h.posts.GetMany(r.Context(), recency.TargetIDs(entries), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve viewed posts")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, items)
}

// RecordView handles PUT /posts/viewed/{postId}?userId.
func (h *PostHandlers) RecordView(w http.ResponseWriter, r *http.Request) {
	postID, ok := requirePath(w, r, "postId")
	if !ok {
		return
	}
	viewer, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	if _, err := h.posts.Get(r.Context(), postID, viewer); err != nil {
		writeDomainError(w, r, h.logger, err, "record viewed post")
		return
	}
	res, err := h.recency.RecordInteraction(r.Context(), recency.ViewedPosts, viewer, postID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "record viewed post")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, res)
}

// ListByUser handles GET /posts/user/{userId}?myId&page.
func (h *PostHandlers) ListByUser(w http.ResponseWriter, r *http.Request) {
	owner, ok := requirePath(w, r, "userId")
	if !ok {
		return
	}
	viewer, ok := requireQuery(w, r, "myId")
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	items, err := h.posts.ListByUser(r.Context(), owner, viewer, search.PostPageSize, paging.Offset(page, search.PostPageSize))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve user posts")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, postsPage{
		Posts:    items,
		NextPage: paging.Next(page, search.PostPageSize, len(items)),
	})
}

// Get handles GET /posts/{postId}?userId.
func (h *PostHandlers) Get(w http.ResponseWriter, r *http.Request) {
	postID, ok := requirePath(w, r, "postId")
	if !ok {
		return
	}
	viewer, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return
	}
	item, err := h.posts.Get(r.Context(), postID, viewer)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve post")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, item)
}

// Create handles POST /posts.
func (h *PostHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p := &post.Post{
		UserID:       req.UserID,
		CarName:      req.CarName,
		Price:        req.Price,
		Model:        req.Model,
		Transmission: req.Transmission,
		FuelType:     req.FuelType,
		Color:        req.Color,
		Information:  req.Information,
		Conditions:   req.Conditions,
		Engine:       req.Engine,
		Side:         req.Side,
		Images:       req.Images,
	}
	if err := h.posts.Create(r.Context(), p); err != nil {
		writeDomainError(w, r, h.logger, err, "create post")
		return
	}
	WriteJSON(w, r.Context(), http.StatusCreated, p)
}

// Update handles PUT /posts/{postId}.
func (h *PostHandlers) Update(w http.ResponseWriter, r *http.Request) {
	postID, ok := requirePath(w, r, "postId")
	if !ok {
		return
	}
	var patch post.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	updated, err := h.posts.Update(r.Context(), postID, patch)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update post")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, updated)
}

// Delete handles DELETE /posts/{postId}.
func (h *PostHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	postID, ok := requirePath(w, r, "postId")
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), postID); err != nil {
		writeDomainError(w, r, h.logger, err, "delete post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleSave handles PUT /posts/saves/{postId}?userId.
func (h *PostHandlers) ToggleSave(w http.ResponseWriter, r *http.Request) {
	postID, viewer, ok := postAndViewer(w, r)
	if !ok {
		return
	}
	saved, err := h.posts.ToggleSave(r.Context(), postID, viewer)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update save")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, map[string]bool{"save_status": saved})
}

// ToggleLike handles PUT /posts/likes/{postId}?userId.
func (h *PostHandlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	postID, viewer, ok := postAndViewer(w, r)
	if !ok {
		return
	}
	liked, err := h.posts.ToggleLike(r.Context(), postID, viewer)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "update like")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, map[string]bool{"like_status": liked})
}

func postAndViewer(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	postID, ok := requirePath(w, r, "postId")
	if !ok {
		return "", "", false
	}
	viewer, ok := requireQuery(w, r, viewerParam)
	if !ok {
		return "", "", false
	}
	return postID, viewer, true
}
