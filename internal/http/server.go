package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tipsplit/internal/cache"
	applog "tipsplit/internal/log"
	"tipsplit/internal/metrics"
	"tipsplit/internal/middleware/ratelimit"
	"tipsplit/internal/middleware/trace"
	"tipsplit/internal/services"
)

// Options configures the HTTP server
type Options struct {
	Addr           string
	MaxBodyBytes   int64
	DefaultMinCash int64
	RateLimit      ratelimit.Config
	// CacheSize or CacheTTL of zero disables the replay cache.
	CacheSize int
	CacheTTL  time.Duration
}

type Server struct {
	http.Server
	service *services.DistributionService
	metrics *metrics.Metrics
	logger  *applog.Logger
	opts    Options

	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	responses *cache.LRUCache[[]byte]
	caches    *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(opts Options, svc *services.DistributionService, m *metrics.Metrics, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		service: svc,
		metrics: m,
		logger:  logger.WithComponent(applog.ComponentHTTP),
		opts:    opts,
		limiter: ratelimit.NewLimiter(opts.RateLimit),
		tracer:  trace.NewMiddleware(extractClientIP, m),
		caches:  cache.NewManager(logger.WithComponent(applog.ComponentCache)),
	}

	if opts.CacheSize > 0 && opts.CacheTTL > 0 {
		s.responses = cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL)
		s.caches.Register(s.responses)
	}
	s.caches.Start(time.Minute)

	mux.Handle("POST /distribute", s.route("/distribute", s.handleDistribute))
	mux.Handle("GET /distributions", s.route("/distributions", s.handleListDistributions))
	mux.Handle("GET /distributions/{id}", s.route("/distributions/{id}", s.handleGetDistribution))
	mux.Handle("GET /healthz", s.route("/healthz", handleHealth))
	mux.Handle("GET /readyz", s.route("/readyz", s.handleReady))
	if m != nil {
		mux.Handle("GET /metrics", applog.Middleware(s.logger)(s.tracer.Route("/metrics")(m.Handler())))
	}

	return s
}

// route wraps h in the middleware chain: context logger, trace, request id,
// security headers, then rate limiting.
func (s *Server) route(name string, h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	handler = s.limiter.Middleware(extractClientIP, s.onRateLimited)(handler)
	handler = withSecurityHeaders(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = s.tracer.Route(name)(handler)
	return applog.Middleware(s.logger)(handler)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, extractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, MsgRateLimited).Write(w)
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
