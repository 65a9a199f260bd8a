// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/okian/comps/internal/adapters/http/swagger"
	"github.com/okian/comps/internal/adapters/repository"
	service "github.com/okian/comps/internal/app"
	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/ranking"
	"github.com/okian/comps/pkg/logger"
)

// Defaults for the HTTP layer.
const (
	DefaultRateLimitRPS   = 50
	DefaultRateLimitBurst = 100
	DefaultMaxBodyBytes   = 10 << 20
	corsMaxAgeSeconds     = 300
)

// DefaultCORSOrigins are allowed when none are configured.
var DefaultCORSOrigins = []string{"http://localhost:3000"}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Comparables(ctx context.Context, req service.ComparablesRequest) (*service.ComparablesResponse, error)
	ComparablesByID(ctx context.Context, id string, overrides *ranking.Overrides) (*service.ComparablesResponse, error)
	Property(ctx context.Context, id string) (*model.PropertyRecord, error)
	Search(ctx context.Context, f repository.Filter) ([]*model.PropertyRecord, error)
	Counties() []string
	DataStats(ctx context.Context) (service.DataStats, error)

	// SubmitJob enqueues a job. duplicate is set when the job id was seen
	// within the dedupe window.
	SubmitJob(ctx context.Context, job model.Job) (state service.JobState, duplicate bool, err error)
	Job(id string) (service.JobState, bool)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRateLimit sets the API rate limit. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = append([]string(nil), origins...)
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps    Dependencies
	limiter *rate.Limiter
	origins []string
	maxBody int64
	logger  logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		limiter:       rate.NewLimiter(DefaultRateLimitRPS, DefaultRateLimitBurst),
		origins:       DefaultCORSOrigins,
		maxBody:       DefaultMaxBodyBytes,
		logger:        logger.Nop(),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router for every HTTP route.
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           corsMaxAgeSeconds,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	swagger.Register(ctx, r)

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimit(s.limiter))
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/properties/comparables", s.handleFindComparables)
		r.Post("/properties/search", s.handleSearch)
		r.Get("/properties/{id}", s.handleGetProperty)
		r.Get("/properties/{id}/comparables", s.handleGetComparables)
		r.Get("/counties", s.handleCounties)
		r.Get("/data/stats", s.handleDataStats)
		r.Post("/comparables/jobs", s.handleSubmitJob)
		r.Get("/comparables/jobs/{id}", s.handleGetJob)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail classifies err and writes it. Server errors are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("requestID", w.Header().Get(RequestIDHeader)),
			logger.Error(err))
	}
	writeError(w, status, code, err)
}

// decode reads a JSON body into v, capped at the configured size.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	return dec.Decode(v)
}
