// README: Streaming endpoints: per-order and all-orders server-sent event feeds.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ordertrack/internal/logger"
	"ordertrack/internal/modules/broadcast"
	"ordertrack/internal/modules/order"
	"ordertrack/internal/modules/stream"
	"ordertrack/internal/types"
)

type StreamHandler struct {
	order   *order.Service
	streams *stream.Manager
	log     *logrus.Entry
}

func NewStreamHandler(svc *order.Service, streams *stream.Manager, log *logrus.Entry) *StreamHandler {
	if log == nil {
		log = logger.New("http.stream")
	}
	return &StreamHandler{order: svc, streams: streams, log: log}
}

// Order streams one order's updates. A Last-Event-ID header replays what the client missed.
func (h *StreamHandler) Order(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if _, err := h.order.Get(c.Request.Context(), id); err != nil {
		writeOrderError(c, err)
		return
	}
	lastID := c.GetHeader("Last-Event-ID")
	if lastID == "" {
		lastID = c.Query("lastEventId")
	}
	h.serve(c, stream.Options{
		Scope:       broadcast.OrderScope(id),
		LastEventID: lastID,
		Replay: func(ctx context.Context) ([]order.Event, error) {
			o, err := h.order.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return o.Events, nil
		},
	})
}

// All streams every order's updates. Routed behind RequirePrivileged.
func (h *StreamHandler) All(c *gin.Context) {
	h.serve(c, stream.Options{Scope: broadcast.Wildcard})
}

func (h *StreamHandler) serve(c *gin.Context, opts stream.Options) {
	w, err := stream.NewSSEWriter(c.Writer)
	if err != nil {
		writeError(c, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	log := h.log.WithFields(logrus.Fields{"scope": opts.Scope.String(), "client_ip": c.ClientIP()})
	log.Debug("stream opened")
	if err := h.streams.Serve(c.Request.Context(), w, opts); err != nil {
		log.WithField("error", err.Error()).Info("stream ended")
		return
	}
	log.Debug("stream closed by client")
}
