package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/broadcast"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/service"
)

// StreamHandler serves an event's broadcast messages as Server-Sent Events.
type StreamHandler struct {
	events    *service.EventService
	hub       *broadcast.Hub
	keepAlive time.Duration
}

// NewStreamHandler constructs a StreamHandler.
func NewStreamHandler(events *service.EventService, hub *broadcast.Hub) *StreamHandler {
	return &StreamHandler{events: events, hub: hub, keepAlive: 25 * time.Second}
}

// Stream handles GET /events/{id}/stream
// The connection joins the event's channel and leaves it on disconnect.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if _, err := h.events.GetEvent(r.Context(), eventID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Join(eventID)
	defer h.hub.Leave(sub)

	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		slog.WarnContext(r.Context(), "stream not flushable", "error", err)
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeSSE(w, msg); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, msg broadcast.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data)
	return err
}
