package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vidtube/internal/cdn"
	"vidtube/internal/events"
	"vidtube/internal/logging"
	"vidtube/internal/publish"
	"vidtube/internal/scratch"
	"vidtube/internal/video"
)

// VideoPublisher runs the publish pipeline for one request.
type VideoPublisher interface {
	Publish(ctx context.Context, req *publish.Request) (*publish.Result, error)
}

// Deps are the collaborators the server is built from.
type Deps struct {
	Store     video.Store
	Publisher VideoPublisher
	Uploader  cdn.Uploader
	Events    events.Publisher
	Scratch   *scratch.Dir
	Auth      *Authenticator
	Logger    *zap.Logger

	// Optional.
	Metrics        *Metrics
	Gatherer       prometheus.Gatherer
	LogLevel       http.Handler
	MediaDir       string
	MaxUploadBytes int64
	CORSOrigins    []string
}

type Server struct {
	store     video.Store
	publisher VideoPublisher
	uploader  cdn.Uploader
	events    events.Publisher
	scratch   *scratch.Dir
	auth      *Authenticator
	log       *zap.Logger

	metrics        *Metrics
	gatherer       prometheus.Gatherer
	logLevel       http.Handler
	mediaDir       string
	maxUploadBytes int64
	corsOrigins    []string
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:          d.Store,
		publisher:      d.Publisher,
		uploader:       d.Uploader,
		events:         d.Events,
		scratch:        d.Scratch,
		auth:           d.Auth,
		log:            d.Logger,
		metrics:        d.Metrics,
		gatherer:       d.Gatherer,
		logLevel:       d.LogLevel,
		mediaDir:       d.MediaDir,
		maxUploadBytes: d.MaxUploadBytes,
		corsOrigins:    d.CORSOrigins,
	}
	if s.events == nil {
		s.events = events.Nop
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, logging.Middleware(s.log), middleware.Recoverer, s.corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthcheck", s.handleHealthcheck)

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", s.handleListVideos)
			r.Get("/search", s.handleSearchVideos)
			r.Get("/{id}", s.handleGetVideo)
			r.Post("/{id}/view", s.handleIncrementView)

			r.Group(func(r chi.Router) {
				r.Use(s.auth.Require)
				r.Post("/", s.handlePublishVideo)
				r.Patch("/{id}", s.handleUpdateVideo)
				r.Delete("/{id}", s.handleDeleteVideo)
				r.Patch("/toggle/publish/{id}", s.handleTogglePublish)
			})
		})
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.logLevel != nil {
		r.Handle("/debug/log/level", s.logLevel)
	}
	if s.mediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(s.mediaDir))))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (len(s.corsOrigins) == 0 || slices.Contains(s.corsOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type apiErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendJSONError(w http.ResponseWriter, status int, message string, details ...string) {
	if details == nil {
		details = []string{}
	}
	sendJSON(w, status, apiErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Errors:  details,
	})
}

// sendError maps err to a status code and writes it.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badUp   *badUploadError
		stepErr *publish.Error
	)
	switch {
	case errors.As(err, &badUp):
		sendJSONError(w, badUp.status, badUp.msg)
	case errors.Is(err, publish.ErrMissingAsset):
		sendJSONError(w, http.StatusBadRequest, "Video file required")
	case errors.Is(err, ErrUnauthenticated):
		sendJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden):
		sendJSONError(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, video.ErrNotFound):
		sendJSONError(w, http.StatusNotFound, "Video not found")
	case errors.As(err, &stepErr):
		logging.C(r.Context()).Error("publish failed", zap.String("upload_id", stepErr.UploadID), zap.Error(err))
		sendJSONError(w, http.StatusInternalServerError, stepErr.Kind.Error())
	case errors.Is(err, context.Canceled):
		logging.C(r.Context()).Warn("request cancelled", zap.Error(err))
		sendJSONError(w, http.StatusRequestTimeout, "request cancelled")
	default:
		logging.C(r.Context()).Error("request failed", zap.Error(err))
		sendJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}
