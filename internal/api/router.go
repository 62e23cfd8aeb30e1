package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/livescribe/internal/capture"
	"github.com/yegors/livescribe/internal/config"
	"github.com/yegors/livescribe/internal/transcript"
	"github.com/yegors/livescribe/internal/websocket"
	"github.com/yegors/livescribe/pkg/logger"
)

// Router builds the HTTP routes for the service
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(controller *capture.Controller, transcriptLog *transcript.Log, wsServer *websocket.Server, cfg *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler: NewHandler(controller, transcriptLog, wsServer, logger),
		config:  cfg,
		logger:  logger.Named("api-router"),
	}
}

// Routes returns the HTTP handler with all routes registered
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.Recoverer)

	router.Route("/api/v1", func(api chi.Router) {
		api.Post("/capture/start", r.handler.StartCapture)
		api.Post("/capture/stop", r.handler.StopCapture)
		api.Get("/status", r.handler.GetStatus)
		api.Get("/transcript", r.handler.GetTranscript)
		api.Delete("/transcript", r.handler.ClearTranscript)
	})

	router.Get("/ws", r.handler.HandleWebSocket)

	if r.config.Server.StaticFilesDir != "" {
		r.logger.Info("Serving static files", logger.String("dir", r.config.Server.StaticFilesDir))
		router.Handle("/*", NewStaticFileHandler(r.config.Server.StaticFilesDir, r.logger))
	}

	return router
}
