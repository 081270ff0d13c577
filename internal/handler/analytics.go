package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

// AnalyticsReader computes dashboard statistics.
type AnalyticsReader interface {
	Overview(ctx context.Context) (*model.Overview, error)
	DailySeries(ctx context.Context, days int) (*model.DailySeries, error)
	Rollup(ctx context.Context, day time.Time) (*model.Analytics, error)
	History(ctx context.Context, limit int) ([]model.Analytics, error)
}

// AnalyticsHandler handles analytics endpoints.
type AnalyticsHandler struct {
	analytics AnalyticsReader
	logger    *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(analytics AnalyticsReader, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, logger: log}
}

// Overview handles GET /api/v1/analytics/overview
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.analytics.Overview(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "compute overview")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// Daily handles GET /api/v1/analytics/daily?days=30
func (h *AnalyticsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	days := 30
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 || parsed > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	series, err := h.analytics.DailySeries(r.Context(), days)
	if err != nil {
		writeServiceError(w, h.logger, err, "compute daily series")
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// History handles GET /api/v1/analytics/history
func (h *AnalyticsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := paging(r, 30, 366)
	rows, err := h.analytics.History(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "load analytics history")
		return
	}
	if rows == nil {
		rows = []model.Analytics{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days": rows,
	})
}

// Rollup handles POST /api/v1/analytics/rollup?date=2006-01-02
func (h *AnalyticsHandler) Rollup(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	row, err := h.analytics.Rollup(r.Context(), day)
	if err != nil {
		writeServiceError(w, h.logger, err, "compute rollup")
		return
	}
	writeJSON(w, http.StatusOK, row)
}
