package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/automation"
	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/contentpilot/contentpilot-backend/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HeaderUserID carries the caller's tenant id.
const HeaderUserID = "X-User-ID"

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
	maxSpecialDates      = 366
)

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

// Automation is the control surface the handlers drive.
type Automation interface {
	StartScheduler(ctx context.Context, tenantID string, intervalDays int) (bool, error)
	StopScheduler(ctx context.Context, tenantID string) (bool, error)
	StartPoster(ctx context.Context, tenantID string, intervalMinutes int) (bool, error)
	StopPoster(ctx context.Context, tenantID string) (bool, error)
	AddSpecialDates(ctx context.Context, tenantID string, entries []automation.SpecialDateInput) (int, error)
	UpcomingSpecialDates(tenantID string, days int) ([]automation.Occurrence, error)
	ForceCheck(ctx context.Context, tenantID string) error
	Status(ctx context.Context, tenantID string, activityLimit int) (automation.Status, error)
	Activity(ctx context.Context, tenantID string, limit int) ([]store.Activity, error)
}

// EventLister reads a user's calendar for export.
type EventLister interface {
	ListEvents(ctx context.Context, userID string) ([]calendar.CalendarEvent, error)
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	automation Automation
	events     EventLister
	readiness  map[string]ReadinessCheck
	stream     http.HandlerFunc
	websocket  http.HandlerFunc
	logger     *zap.SugaredLogger
	metrics    MetricsInterface
}

func NewHandler(
	auto Automation,
	events EventLister,
	readiness map[string]ReadinessCheck,
	stream http.HandlerFunc,
	websocket http.HandlerFunc,
	logger *zap.SugaredLogger,
	metrics MetricsInterface,
) *Handler {
	return &Handler{
		automation: auto,
		events:     events,
		readiness:  readiness,
		stream:     stream,
		websocket:  websocket,
		logger:     logger,
		metrics:    metrics,
	}
}

func tenant(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}

// Scheduler

func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	var req StartSchedulerRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	if req.IntervalDays < 0 || req.IntervalDays > automation.MaxIntervalDays {
		h.writeError(w, http.StatusBadRequest, "INVALID_INTERVAL", fmt.Sprintf("intervalDays must be between 0 and %d", automation.MaxIntervalDays))
		return
	}

	started, err := h.automation.StartScheduler(r.Context(), tenant(r), req.IntervalDays)
	if err != nil {
		h.writeAutomationError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ControlResponse{Changed: started, Message: controlMessage("Scheduler", started, "started", "already running")})
}

func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	stopped, err := h.automation.StopScheduler(r.Context(), tenant(r))
	if err != nil {
		h.writeAutomationError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ControlResponse{Changed: stopped, Message: controlMessage("Scheduler", stopped, "stopped", "not running")})
}

// Poster

func (h *Handler) StartPoster(w http.ResponseWriter, r *http.Request) {
	var req StartPosterRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	if req.IntervalMinutes < 0 || req.IntervalMinutes > automation.MaxIntervalMinutes {
		h.writeError(w, http.StatusBadRequest, "INVALID_INTERVAL", fmt.Sprintf("intervalMinutes must be between 0 and %d", automation.MaxIntervalMinutes))
		return
	}

	started, err := h.automation.StartPoster(r.Context(), tenant(r), req.IntervalMinutes)
	if err != nil {
		h.writeAutomationError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ControlResponse{Changed: started, Message: controlMessage("Poster", started, "started", "already running")})
}

func (h *Handler) StopPoster(w http.ResponseWriter, r *http.Request) {
	stopped, err := h.automation.StopPoster(r.Context(), tenant(r))
	if err != nil {
		h.writeAutomationError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ControlResponse{Changed: stopped, Message: controlMessage("Poster", stopped, "stopped", "not running")})
}

func (h *Handler) ForceCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.automation.ForceCheck(r.Context(), tenant(r)); err != nil {
		h.writeAutomationError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, ControlResponse{Changed: true, Message: "Check triggered"})
}

// Special dates

func (h *Handler) AddSpecialDates(w http.ResponseWriter, r *http.Request) {
	var req []SpecialDateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected a JSON array of special dates")
		return
	}
	if len(req) == 0 || len(req) > maxSpecialDates {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", fmt.Sprintf("expected between 1 and %d special dates", maxSpecialDates))
		return
	}

	entries := make([]automation.SpecialDateInput, 0, len(req))
	for _, d := range req {
		entries = append(entries, d.toInput())
	}

	added, err := h.automation.AddSpecialDates(r.Context(), tenant(r), entries)
	switch {
	case errors.Is(err, automation.ErrUnauthorized):
		h.writeAutomationError(w, err)
	case err != nil && added == 0:
		h.writeError(w, http.StatusBadRequest, "INVALID_SPECIAL_DATES", err.Error())
	case err != nil:
		h.writeJSON(w, http.StatusOK, AddSpecialDatesResponse{Added: added, Error: err.Error()})
	default:
		h.writeJSON(w, http.StatusOK, AddSpecialDatesResponse{Added: added})
	}
}

func (h *Handler) UpcomingSpecialDates(w http.ResponseWriter, r *http.Request) {
	days, ok := h.intQuery(w, r, "days", 0)
	if !ok {
		return
	}
	occ, err := h.automation.UpcomingSpecialDates(tenant(r), days)
	if err != nil {
		h.writeAutomationError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUpcomingDTOs(occ))
}

// Status and activity

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intQuery(w, r, "activity", defaultActivityLimit)
	if !ok {
		return
	}
	st, err := h.automation.Status(r.Context(), tenant(r), clampLimit(limit))
	if err != nil {
		h.writeAutomationError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intQuery(w, r, "limit", defaultActivityLimit)
	if !ok {
		return
	}
	entries, err := h.automation.Activity(r.Context(), tenant(r), clampLimit(limit))
	if err != nil {
		h.writeAutomationError(w, err)
		return
	}
	if entries == nil {
		entries = []store.Activity{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// ExportCalendar writes the user's events as an iCalendar feed. Callers
// may only export their own calendar.
func (h *Handler) ExportCalendar(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	caller := tenant(r)
	if caller == "" {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing "+HeaderUserID+" header")
		return
	}
	if caller != userID {
		h.writeError(w, http.StatusForbidden, "FORBIDDEN", "calendar belongs to another user")
		return
	}

	events, err := h.events.ListEvents(r.Context(), userID)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "STORE_ERROR", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	if err := calendar.ExportICS(w, "ContentPilot "+userID, events); err != nil {
		h.logger.Errorw("Calendar export failed", "userId", userID, "error", err)
	}
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var reasons []string
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(reasons) > 0 {
		h.writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "unavailable", Reasons: reasons})
		return
	}
	h.writeJSON(w, http.StatusOK, HealthDTO{Status: "ready"})
}

// Live updates
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r)
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.websocket(w, r)
}

// Utility methods

// decodeOptional accepts an empty body as the zero value.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return false
	}
	return true
}

func (h *Handler) intQuery(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_QUERY", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultActivityLimit
	}
	if n > maxActivityLimit {
		return maxActivityLimit
	}
	return n
}

func controlMessage(name string, changed bool, did, noop string) string {
	if changed {
		return name + " " + did
	}
	return name + " " + noop
}

func (h *Handler) writeAutomationError(w http.ResponseWriter, err error) {
	var storeErr *automation.StoreError
	switch {
	case errors.Is(err, automation.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing "+HeaderUserID+" header")
	case errors.As(err, &storeErr):
		h.writeError(w, http.StatusServiceUnavailable, "STORE_ERROR", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnw("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", "code", code, "message", message, "status", status)
	} else {
		h.logger.Debugw("API error", "code", code, "message", message, "status", status)
	}

	h.writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
