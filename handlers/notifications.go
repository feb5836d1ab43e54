package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dbi-software/hive/database"
	"github.com/dbi-software/hive/services"
)

// NotificationsHandler handles the in-app notification feed.
type NotificationsHandler struct {
	notifications *services.NotificationService
	logger        *slog.Logger
}

func NewNotificationsHandler(notifications *services.NotificationService, logger *slog.Logger) *NotificationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationsHandler{
		notifications: notifications,
		logger:        logger,
	}
}

// List returns the caller's notifications, newest first.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	unreadOnly := r.URL.Query().Get("unreadOnly") == "true"
	feed, err := h.notifications.Feed(r.Context(), userID, unreadOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if feed == nil {
		feed = []database.Notification{}
	}
	writeJSON(w, http.StatusOK, feed)
}

// UnreadCount returns how many unread notifications the caller has.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	if err := h.notifications.MarkAllRead(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	if err := h.notifications.Delete(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
