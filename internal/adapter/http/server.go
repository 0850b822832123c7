package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/road-incident-map/internal/adapter/scene"
	"github.com/couchcryptid/road-incident-map/internal/mapview"
)

// MapService is the part of the dashboard the HTTP API drives.
type MapService interface {
	Scene() scene.Scene
	Marker(key string) (scene.MarkerView, bool)
	Hover(key string) (scene.MarkerView, bool)
	Unhover(key string) (scene.MarkerView, bool)
	Click(key string) (scene.MarkerView, bool)
	ViewDetails(key string, nav mapview.Navigator) (found, navigated bool)
	Resize(s scene.Size)
}

// Server exposes the map API alongside health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	maps       MapService
	logger     *slog.Logger
}

// NewServer creates the HTTP server and its routes.
func NewServer(addr string, maps MapService, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		maps:   maps,
		logger: logger,
	}

	r.Use(middleware.Recoverer)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.accessLog)
		r.Get("/map", s.handleScene)
		r.Post("/map/size", s.handleResize)
		r.Route("/markers/{key}", func(r chi.Router) {
			r.Get("/", s.markerHandler(s.maps.Marker))
			r.Post("/hover", s.markerHandler(s.maps.Hover))
			r.Post("/unhover", s.markerHandler(s.maps.Unhover))
			r.Post("/click", s.markerHandler(s.maps.Click))
			r.Get("/details", s.handleDetails)
		})
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleScene(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.maps.Scene())
}

type sizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid size body")
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}
	s.maps.Resize(scene.Size{Width: req.Width, Height: req.Height})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) markerHandler(op func(key string) (scene.MarkerView, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := op(chi.URLParam(r, "key"))
		if !ok {
			writeError(w, http.StatusNotFound, "marker not found")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// handleDetails answers the popup's "View Details" action with a redirect to
// the incident's detail page.
func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	var target string
	found, navigated := s.maps.ViewDetails(chi.URLParam(r, "key"), mapview.NavigatorFunc(func(path string) {
		target = path
	}))
	switch {
	case !found:
		writeError(w, http.StatusNotFound, "marker not found")
	case !navigated:
		writeError(w, http.StatusNotFound, "incident has no detail page")
	default:
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	sharedobs.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
