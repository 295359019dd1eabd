package api

import (
	"net/http"

	"github.com/onnwee/carmarket/internal/middleware"
)

// Handlers bundles the route groups served by NewRouter.
type Handlers struct {
	Posts       *PostHandlers
	Users       *UserHandlers
	CarRequests *CarRequestHandlers
	Dashboard   *DashboardHandlers
	Notices     *NoticeHandlers
	Health      *HealthHandlers

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// NewRouter registers every route on a new ServeMux. Each route reports its
// pattern through middleware.RecordRoute; anything unrouted gets a JSON 404.
func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			middleware.RecordRoute(r)
			fn(w, r)
		})
	}

	handle("GET /health", h.Health.Health)
	handle("GET /ready", h.Health.Ready)
	if h.Metrics != nil {
		handle("GET /metrics", h.Metrics.ServeHTTP)
	}

	// Posts
	handle("GET /posts", h.Posts.ListFeed)
	handle("POST /posts", h.Posts.Create)
	handle("GET /posts/popular", h.Posts.ListPopular)
	handle("GET /posts/search", h.Posts.Search)
	handle("GET /posts/filtered", h.Posts.Filter)
	handle("GET /posts/saves/{userId}", h.Posts.ListSaved)
	handle("PUT /posts/saves/{postId}", h.Posts.ToggleSave)
	handle("PUT /posts/likes/{postId}", h.Posts.ToggleLike)
	handle("GET /posts/viewed/{userId}", h.Posts.ListViewed)
	handle("PUT /posts/viewed/{postId}", h.Posts.RecordView)
	handle("GET /posts/user/{userId}", h.Posts.ListByUser)
	handle("GET /posts/{postId}", h.Posts.Get)
	handle("PUT /posts/{postId}", h.Posts.Update)
	handle("DELETE /posts/{postId}", h.Posts.Delete)

	// Users
	handle("GET /users", h.Users.List)
	handle("POST /users", h.Users.Create)
	handle("GET /users/viewed/{userId}", h.Users.ListViewed)
	handle("PUT /users/viewed/{otherId}", h.Users.RecordView)
	handle("GET /users/{userId}", h.Users.Get)
	handle("PUT /users/{userId}", h.Users.Update)
	handle("DELETE /users/{userId}", h.Users.Delete)

	// Car requests
	handle("GET /car-requests", h.CarRequests.ListApproved)
	handle("POST /car-requests", h.CarRequests.Create)
	handle("GET /car-requests/user_requests", h.CarRequests.ListOwn)
	handle("GET /car-requests/{id}", h.CarRequests.Get)
	handle("PATCH /car-requests/{id}", h.CarRequests.Update)
	handle("DELETE /car-requests/{id}", h.CarRequests.Delete)

	// Notices
	handle("GET /others/banners", h.Notices.ListBanners)
	handle("GET /others/notifications", h.Notices.ListNotifications)

	// Dashboard
	handle("GET /dashboard/users", h.Dashboard.SearchUsers)
	handle("GET /dashboard/search", h.Dashboard.Typeahead)
	handle("GET /dashboard/car-requests", h.Dashboard.ListCarRequests)
	handle("GET /dashboard/car-requests/{id}", h.Dashboard.GetCarRequest)
	handle("GET /dashboard/user-requests", h.Dashboard.ListUserRequests)
	handle("PATCH /dashboard/car-requests/status/{id}", h.Dashboard.SetCarRequestStatus)
	handle("PATCH /dashboard/car-requests/{id}", h.Dashboard.UpdateCarRequest)
	handle("DELETE /dashboard/car-requests/{id}", h.Dashboard.DeleteCarRequest)
	handle("POST /dashboard/popular", h.Dashboard.TogglePopular)
	handle("POST /dashboard/user", h.Dashboard.ToggleSeller)
	handle("POST /dashboard/banners", h.Dashboard.CreateBanner)
	handle("POST /dashboard/notifications", h.Dashboard.CreateNotification)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})
	return mux
}
