package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entrate/internal/cache"
	"entrate/internal/core"
	"entrate/internal/log"
	"entrate/internal/middleware/ratelimit"
	"entrate/internal/middleware/security"
	"entrate/internal/middleware/trace"
	"entrate/internal/services"
)

const (
	calculationCacheSize = 100
	calculationCacheTTL  = time.Minute
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API exposes.
type Deps struct {
	Income    *services.IncomeService
	Summary   *services.SummaryService
	Generator *services.RecordGenerator
	DB        Pinger
	Location  *time.Location
	Logger    *log.Logger
}

// Options tune the transport around the handlers.
type Options struct {
	AllowedOrigins    []string
	RequestsPerMinute int
}

type Server struct {
	http.Server

	income    *services.IncomeService
	summary   *services.SummaryService
	generator *services.RecordGenerator
	db        Pinger
	loc       *time.Location
	logger    *log.Logger
	now       func() time.Time

	rateLimiter *ratelimit.Limiter
	calcCache   *cache.LRUCache[*core.IncomeCalculation]
	caches      *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Server{
		income:      deps.Income,
		summary:     deps.Summary,
		generator:   deps.Generator,
		db:          deps.DB,
		loc:         loc,
		logger:      logger.WithComponent(log.ComponentHTTP),
		now:         time.Now,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		calcCache:   cache.NewLRUCache[*core.IncomeCalculation](calculationCacheSize, calculationCacheTTL),
		caches:      cache.NewManager(),
	}
	s.caches.Register(s.calcCache)
	s.caches.StartCleanup(5 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	clientIP := security.NewClientIP()
	tracer := trace.NewMiddleware(s.logger, clientIP.Extract)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(tracer.Handler)
	r.Use(log.Middleware(s.logger))
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimiter.Middleware(clientIP.Extract, s.handleRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/income", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSource)
				r.Put("/", s.handleUpdateSource)
				r.Delete("/", s.handleDeleteSource)
				r.Get("/schedule", s.handleSchedulePreview)
			})
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.handleListRecords)
			r.Post("/", s.handleCreateRecord)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRecord)
				r.Put("/", s.handleUpdateRecord)
				r.Delete("/", s.handleDeleteRecord)
			})
		})

		r.Get("/calculations", s.handleCalculation)
		r.Post("/generate", s.handleGenerate)
	})

	return r
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			log.FromContext(r.Context()).Failure(r.Context(), "Readiness check failed", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later", nil)
}
