// README: API gateway; builds the gin engine and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ordertrack/internal/http/handlers"
	"ordertrack/internal/http/middleware"
	"ordertrack/internal/logger"
	"ordertrack/internal/modules/order"
	"ordertrack/internal/modules/stream"
)

type ServerDeps struct {
	Order   *order.Service
	Streams *stream.Manager
	// ETA is optional; without it the suggestion endpoint answers 503.
	ETA    handlers.ETASuggester
	Logger *logrus.Entry
}

type Server struct {
	order   *order.Service
	streams *stream.Manager
	eta     handlers.ETASuggester
	log     *logrus.Entry
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.New("http")
	}
	return &Server{
		order:   deps.Order,
		streams: deps.Streams,
		eta:     deps.ETA,
		log:     log,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(
		middleware.Recovery(s.log),
		middleware.Logging(s.log),
		middleware.Metrics(),
		middleware.Actor(),
	)
	registerRoutes(r, s)
	return r
}
