// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ordertrack/internal/http/handlers"
	"ordertrack/internal/http/middleware"
)

func registerRoutes(r *gin.Engine, s *Server) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	orderHandler := handlers.NewOrderHandler(s.order)
	api.GET("/track", orderHandler.Track)
	api.GET("/orders/:id", orderHandler.Get)

	streamHandler := handlers.NewStreamHandler(s.order, s.streams, s.log)
	api.GET("/orders/:id/stream", streamHandler.Order)

	adminHandler := handlers.NewAdminHandler(s.order, s.eta)
	admin := api.Group("/admin")
	admin.GET("/orders", adminHandler.List)
	admin.POST("/orders", adminHandler.Register)
	admin.GET("/orders/export", adminHandler.Export)
	admin.POST("/orders/:id/status", adminHandler.UpdateStatus)
	admin.GET("/orders/:id/eta", adminHandler.SuggestETA)
	admin.GET("/transitions", adminHandler.Transitions)
	admin.GET("/stream", middleware.RequirePrivileged(), streamHandler.All)
}
