package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tapbook/salon-booking/internal/events"
	"github.com/tapbook/salon-booking/pkg/logging"
)

// AdminFunnelHandler serves the booking funnel KPIs salon owners check.
type AdminFunnelHandler struct {
	recorder *events.Recorder
	logger   *logging.Logger
	now      func() time.Time
}

func NewAdminFunnelHandler(recorder *events.Recorder, logger *logging.Logger) *AdminFunnelHandler {
	if recorder == nil {
		panic("handlers: event recorder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminFunnelHandler{recorder: recorder, logger: logger, now: time.Now}
}

// Funnel answers GET /admin/salons/{salonID}/funnel?days=N.
func (h *AdminFunnelHandler) Funnel(w http.ResponseWriter, r *http.Request) {
	salonID := chi.URLParam(r, "salonID")
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 365 {
			http.Error(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	to := h.now().UTC()
	from := to.AddDate(0, 0, -days)
	funnel, err := h.recorder.QueryFunnel(r.Context(), salonID, from, to)
	if err != nil {
		h.logger.Error("funnel query failed", "salon_id", salonID, "error", err)
		http.Error(w, "funnel query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, funnel)
}

// Events answers GET /admin/salons/{salonID}/events?limit=N.
func (h *AdminFunnelHandler) Events(w http.ResponseWriter, r *http.Request) {
	salonID := chi.URLParam(r, "salonID")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	evts, err := h.recorder.RecentEvents(r.Context(), salonID, limit)
	if err != nil {
		h.logger.Error("events query failed", "salon_id", salonID, "error", err)
		http.Error(w, "events query failed", http.StatusInternalServerError)
		return
	}
	if evts == nil {
		evts = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evts)
}
