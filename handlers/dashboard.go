package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dbi-software/hive/services"
)

// DashboardHandler serves the aggregated dashboard snapshot.
type DashboardHandler struct {
	dashboard *services.DashboardService
	logger    *slog.Logger
}

func NewDashboardHandler(dashboard *services.DashboardService, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{
		dashboard: dashboard,
		logger:    logger,
	}
}

// Get computes and returns the caller's dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	myTasksOnly := r.URL.Query().Get("myTasksOnly") == "true"
	snapshot, err := h.dashboard.ComputeDashboard(r.Context(), userID, myTasksOnly)
	if err != nil {
		h.logger.Error("failed to compute dashboard", slog.String("error", err.Error()))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
