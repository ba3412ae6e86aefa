package server

import (
	"log/slog"
	"net/http"

	"gsc-dashboard/internal/handlers"
	"gsc-dashboard/internal/services"
)

type Server struct {
	sessions    *services.Store
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(sessions *services.Store, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		sessions:    sessions,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(sessions, logger),
		sseHandlers: handlers.NewSSEHandlers(sessions, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("POST /api/datasets", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("GET /api/datasets", s.apiHandlers.HandleDatasets)
	s.mux.HandleFunc("DELETE /api/datasets/{label}", s.apiHandlers.HandleDeleteDataset)
	s.mux.HandleFunc("GET /api/overview", s.apiHandlers.HandleOverview)
	s.mux.HandleFunc("GET /api/keywords", s.apiHandlers.HandleKeywords)
	s.mux.HandleFunc("GET /api/domains", s.apiHandlers.HandleDomains)
	s.mux.HandleFunc("GET /api/compare", s.apiHandlers.HandleCompare)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/overview", s.sseHandlers.HandleOverview)
	s.mux.HandleFunc("GET /sse/keywords", s.sseHandlers.HandleKeywords)
	s.mux.HandleFunc("GET /sse/domains", s.sseHandlers.HandleDomains)
	s.mux.HandleFunc("GET /sse/compare", s.sseHandlers.HandleCompare)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
