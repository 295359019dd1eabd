package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/carmarket/internal/notice"
)

// NoticeHandlers serves the public banner and notification feeds.
type NoticeHandlers struct {
	notices notice.Repository
	logger  *slog.Logger
}

func NewNoticeHandlers(notices notice.Repository, logger *slog.Logger) *NoticeHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoticeHandlers{notices: notices, logger: logger}
}

// ListBanners handles GET /others/banners.
func (h *NoticeHandlers) ListBanners(w http.ResponseWriter, r *http.Request) {
	items, err := h.notices.ListBanners(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve banners")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, items)
}

// ListNotifications handles GET /others/notifications.
func (h *NoticeHandlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := h.notices.ListNotifications(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "retrieve notifications")
		return
	}
	WriteJSON(w, r.Context(), http.StatusOK, items)
}
