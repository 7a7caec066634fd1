package http

import (
	"net/http"

	"github.com/bnema/transq/internal/adapter/http/middleware"
	"github.com/bnema/transq/internal/service"
)

type Server struct {
	mux        *http.ServeMux
	pipeline   Pipeline
	handlers   *Handlers
	sseHandler *SSEHandler
	apiToken   string
}

type ServerOptions struct {
	APIToken        string
	UploadDir       string
	MaxUploadSizeMB int
	// Fetcher enables POST /api/jobs/url when set.
	Fetcher Fetcher
}

func NewServer(pipeline Pipeline, uploader Uploader, eventBus *service.EventBus, opts ServerOptions) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		pipeline:   pipeline,
		handlers:   NewHandlers(pipeline, uploader, opts.Fetcher, opts.UploadDir, opts.MaxUploadSizeMB),
		sseHandler: NewSSEHandler(eventBus, pipeline.Status),
		apiToken:   opts.APIToken,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return TokenMiddleware(s.apiToken, false, next)
	}

	s.mux.HandleFunc("POST /api/jobs", auth(s.handlers.Upload()))
	if s.handlers.fetcher != nil {
		s.mux.HandleFunc("POST /api/jobs/url", auth(s.handlers.FetchURL()))
	}
	s.mux.HandleFunc("DELETE /api/jobs/{name}", auth(s.handlers.CancelJob()))
	s.mux.HandleFunc("DELETE /api/completed/{name}", auth(s.handlers.DeleteCompleted()))
	// plain links need the query token, like the event stream
	s.mux.HandleFunc("GET /api/completed/{name}", TokenMiddleware(s.apiToken, true, s.handlers.Download()))

	s.mux.HandleFunc("POST /api/pause", auth(s.handlers.Control("pause", s.pipeline.Pause)))
	s.mux.HandleFunc("POST /api/resume", auth(s.handlers.Control("resume", s.pipeline.Resume)))
	s.mux.HandleFunc("POST /api/terminate", auth(s.handlers.Control("terminate", s.pipeline.Terminate)))

	s.mux.HandleFunc("GET /api/status", auth(s.handlers.Status()))
	s.mux.HandleFunc("GET /api/events", TokenMiddleware(s.apiToken, true, s.sseHandler.Events()))

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
