// README: SSE frame types and the http.ResponseWriter frame writer.
package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"

	"ordertrack/internal/modules/order"
	"ordertrack/internal/types"
)

const (
	FrameConnection = "connection"
	FrameUpdate     = "update"
	FrameHeartbeat  = "heartbeat"

	updateType = "status_update"
)

var ErrStreamingUnsupported = errors.New("response writer cannot flush")

// Frame is one server-sent event. ID and Retry are omitted from the wire when zero.
type Frame struct {
	Event string
	ID    string
	Retry time.Duration
	Data  interface{}
}

// FrameWriter writes one frame and pushes it to the client.
type FrameWriter interface {
	WriteFrame(f Frame) error
}

type ConnectionPayload struct {
	Type      string    `json:"type"`
	Scope     string    `json:"scope"`
	OrderID   types.ID  `json:"orderId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RetryMs   int64     `json:"retryMs"`
}

type HeartbeatPayload struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type Changes struct {
	Status        order.Status `json:"status"`
	Message       *string      `json:"message,omitempty"`
	EstimatedTime *time.Time   `json:"estimatedTime,omitempty"`
	Location      *string      `json:"location,omitempty"`
}

type UpdatePayload struct {
	Type      string    `json:"type"`
	OrderID   types.ID  `json:"orderId"`
	EventID   string    `json:"eventId"`
	Changes   Changes   `json:"changes"`
	Timestamp time.Time `json:"timestamp"`
}

func updateFrame(orderID types.ID, e order.Event) Frame {
	return Frame{
		Event: FrameUpdate,
		ID:    e.ID,
		Data: UpdatePayload{
			Type:    updateType,
			OrderID: orderID,
			EventID: e.ID,
			Changes: Changes{
				Status:        e.Status,
				Message:       e.Message,
				EstimatedTime: e.EstimatedTime,
				Location:      e.Location,
			},
			Timestamp: e.Timestamp,
		},
	}
}

// SSEWriter encodes frames as text/event-stream onto an HTTP response.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the event-stream headers on w. It fails when w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEWriter{w: w, flusher: flusher}, nil
}

func (s *SSEWriter) WriteFrame(f Frame) error {
	err := sse.Encode(s.w, sse.Event{
		Event: f.Event,
		Id:    f.ID,
		Retry: uint(f.Retry / time.Millisecond),
		Data:  f.Data,
	})
	if err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
