package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/store"
	"go.uber.org/zap"
)

type SSEHandler struct {
	source    ActivitySource
	origins   []string
	heartbeat time.Duration
	logger    *zap.SugaredLogger

	closeOnce sync.Once
	done      chan struct{}
}

func NewSSEHandler(source ActivitySource, origins []string, logger *zap.SugaredLogger) *SSEHandler {
	return &SSEHandler{
		source:    source,
		origins:   origins,
		heartbeat: 30 * time.Second,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Close ends every open stream. It is safe to call more than once.
func (h *SSEHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// HandleSSE streams activity entries as server-sent events until the
// client disconnects. The event name is the activity kind.
func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if origin := r.Header.Get("Origin"); origin != "" && originAllowed(h.origins, origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	filter := FilterFromQuery(r)
	ctx := r.Context()
	feed := h.source.Subscribe(ctx)

	h.logger.Debugw("SSE connection established", "kinds", len(filter.Kinds), "userId", filter.UserID)
	h.sendEvent(w, flusher, "connected", "", nil)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-h.done:
			return

		case <-heartbeat.C:
			h.sendEvent(w, flusher, "heartbeat", "", map[string]int64{
				"timestamp": time.Now().Unix(),
			})

		case a, ok := <-feed:
			if !ok {
				return
			}
			if !filter.Match(a) {
				continue
			}
			h.sendEvent(w, flusher, a.Kind, a.ID, a)
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType, id string, data any) {
	payload := []byte("{}")
	if data != nil {
		var err error
		if payload, err = json.Marshal(data); err != nil {
			h.logger.Errorw("Failed to marshal SSE data", "error", err)
			return
		}
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

var _ ActivitySource = (*store.ActivityFeed)(nil)
