package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rumpus/rucho/internal/chaos"
	"github.com/rumpus/rucho/internal/client"
	"github.com/rumpus/rucho/internal/config"
	"github.com/rumpus/rucho/internal/echo"
	"github.com/rumpus/rucho/internal/metrics"
	"github.com/rumpus/rucho/internal/middleware"
	"github.com/rumpus/rucho/internal/pipeline"
	"github.com/rumpus/rucho/internal/proxy"
	"github.com/rumpus/rucho/internal/ratelimit"
)

// AdminPrefix holds routes served outside the pipeline.
const AdminPrefix = "/_rucho/"

// Server owns the handler tree and the listeners.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	access  *zap.Logger
	engine  *chaos.Engine
	metrics *metrics.Registry
	prom    *prometheus.Registry
	redis   *redis.Client
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithAccessLogger sets the destination of per-request log lines.
func WithAccessLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.access = l
	}
}

// WithRedis supplies the client used by the admission limiter instead of
// dialing ratelimit.redis_addr.
func WithRedis(rdb *redis.Client) Option {
	return func(s *Server) {
		s.redis = rdb
	}
}

// New builds the full handler tree from cfg.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewRegistry(),
		prom:    prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.access == nil {
		s.access = logger.Named("access")
	}

	chaosCfg, err := cfg.ChaosConfig()
	if err != nil {
		return nil, err
	}
	if chaosCfg != nil {
		s.engine = chaos.NewEngine(chaosCfg, logger.Named("chaos"))
		s.prom.MustRegister(chaos.NewCollector(s.engine))
	}
	s.prom.MustRegister(
		metrics.NewCollector(s.metrics),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backend, err := s.backend()
	if err != nil {
		return nil, err
	}
	var core http.Handler = pipeline.New(backend, pipeline.Standard(s.engine, s.metrics)...)

	if s.redis == nil && cfg.RateLimit.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
	}
	if s.redis != nil {
		rl := ratelimit.NewRateLimiter(s.redis, cfg.RateLimit.Limit, cfg.RateLimit.Window, logger.Named("ratelimit"))
		core = rl.Middleware(core)
	}

	router := proxy.NewRouter()
	router.AddRoute(AdminPrefix+"prometheus", promhttp.HandlerFor(s.prom, promhttp.HandlerOpts{}))
	router.AddRoute(AdminPrefix+"chaos", chaos.StatusHandler(s.engine))
	router.AddRoute("/", core)

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		client.Middleware,
		middleware.AccessLog(s.access),
	}
	if cfg.Tracing.Enabled {
		mws = append(mws, middleware.Tracing)
	}
	s.handler = middleware.Chain(router, mws...)
	return s, nil
}

// backend is what the pipeline wraps: the echo handlers, or a reverse
// proxy when an upstream is configured. /metrics is served in both modes.
func (s *Server) backend() (http.Handler, error) {
	metricsHandler := metrics.Handler(s.metrics)

	if s.cfg.Server.Upstream == "" {
		return echo.New(map[string]http.Handler{"GET /metrics": metricsHandler}), nil
	}

	upstream, err := proxy.ProxyHandler(s.cfg.Server.Upstream, s.logger.Named("proxy"))
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("/", upstream)
	return mux, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the request metrics registry.
func (s *Server) Metrics() *metrics.Registry {
	return s.metrics
}

// Engine returns the chaos engine, or nil when chaos is disabled.
func (s *Server) Engine() *chaos.Engine {
	return s.engine
}

// Addrs returns the configured listen addresses, skipping empty ones.
func (s *Server) Addrs() []string {
	var addrs []string
	for _, a := range []string{s.cfg.Server.ListenPrimary, s.cfg.Server.ListenSecondary} {
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// Run listens on every configured address and serves until ctx ends, then
// shuts down gracefully within server.shutdown_timeout.
func (s *Server) Run(ctx context.Context) error {
	var listeners []net.Listener
	for _, addr := range s.Addrs() {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		listeners = append(listeners, ln)
	}
	return s.Serve(ctx, listeners...)
}

// Serve serves on the given listeners until ctx ends.
func (s *Server) Serve(ctx context.Context, listeners ...net.Listener) error {
	if len(listeners) == 0 {
		return errors.New("no listeners configured")
	}

	g, gctx := errgroup.WithContext(ctx)
	servers := make([]*http.Server, 0, len(listeners))
	for _, ln := range listeners {
		srv := &http.Server{
			Handler:           s.handler,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
		}
		servers = append(servers, srv)

		g.Go(func() error {
			s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", ln.Addr(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down", zap.Duration("timeout", s.cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if s.redis != nil {
			_ = s.redis.Close()
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
