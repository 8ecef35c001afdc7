package mapview

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-itinerary-map/internal/api"
	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
)

const (
	EventTypeSnapshot         = "snapshot"
	EventTypeActivitySelected = "activity_selected"
	EventTypeError            = "error"

	streamBuffer = 16
)

type StreamEvent struct {
	Type      string                      `json:"type"`
	EventID   string                      `json:"event_id"`
	Timestamp time.Time                   `json:"timestamp"`
	View      *ViewState                  `json:"view,omitempty"`
	Selected  *mapengine.ActivitySelected `json:"selected,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

// heartbeat keeps idle connections open through proxies.
var heartbeat = 25 * time.Second

// StreamEvents sends the current view state, then one event per marker
// selection until the client goes away or the view is torn down. A subscriber
// that cannot keep up loses events rather than blocking the engine. The stream
// is long-lived, so the server write deadline is lifted for it.
func (h *HandlerImpl) StreamEvents(w http.ResponseWriter, r *http.Request) {
	r, span := startSpan(r, "StreamEvents", "/maps/{mapID}/events")
	defer span.End()

	l := h.logger.With(slog.String("handler", "StreamEvents"))
	ctx := r.Context()

	id, err := mapID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid map ID format")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events := make(chan mapengine.ActivitySelected, streamBuffer)
	unsubscribe, done, err := h.service.Subscribe(ctx, id, func(ev mapengine.ActivitySelected) {
		select {
		case events <- ev:
		default:
			l.WarnContext(ctx, "Dropping selection event for slow subscriber", slog.String("view", id.String()))
		}
	})
	if err != nil {
		h.writeError(w, r, l, err)
		return
	}
	defer unsubscribe()

	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		l.DebugContext(ctx, "Write deadline kept for event stream", slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	view, err := h.service.GetView(ctx, id)
	if err != nil {
		h.writeSSEError(w, flusher, err.Error())
		return
	}
	h.writeSSE(w, flusher, StreamEvent{Type: EventTypeSnapshot, View: view})
	l.InfoContext(ctx, "Map event stream opened", slog.String("view", id.String()))

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			h.writeSSE(w, flusher, StreamEvent{Type: EventTypeActivitySelected, Selected: &ev})
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-done:
			h.writeSSEError(w, flusher, mapengine.ErrDisposed.Error())
			l.InfoContext(ctx, "Map view closed, ending event stream", slog.String("view", id.String()))
			return
		case <-ctx.Done():
			l.InfoContext(ctx, "Client disconnected", slog.String("view", id.String()))
			return
		}
	}
}

func (h *HandlerImpl) writeSSE(w http.ResponseWriter, flusher http.Flusher, event StreamEvent) {
	event.EventID = uuid.New().String()
	event.Timestamp = time.Now()
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event", slog.Any("error", err))
		return
	}
	fmt.Fprintf(w, "id: %s\n", event.EventID)
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (h *HandlerImpl) writeSSEError(w http.ResponseWriter, flusher http.Flusher, msg string) {
	h.writeSSE(w, flusher, StreamEvent{Type: EventTypeError, Error: msg})
}
