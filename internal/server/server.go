package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/preston-bernstein/seller-notification-service/internal/config"
	httpserver "github.com/preston-bernstein/seller-notification-service/internal/http"
	"github.com/preston-bernstein/seller-notification-service/internal/http/handlers"
	"github.com/preston-bernstein/seller-notification-service/internal/logging"
	"github.com/preston-bernstein/seller-notification-service/internal/metrics"
	"github.com/preston-bernstein/seller-notification-service/internal/poller"
	"github.com/preston-bernstein/seller-notification-service/internal/providers"
	"github.com/preston-bernstein/seller-notification-service/internal/store"
)

var metricsSetup = metrics.Setup

type Server struct {
	logger        *slog.Logger
	metrics       *metrics.Recorder
	store         *store.MemoryStore
	httpServer    httpServer
	metricsServer httpServer
	poller        Poller
	metricsStop   func(context.Context) error
	configPath    string

	// baseCtx outlives individual requests so sessions started over the admin API keep running.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu  sync.Mutex
	cfg config.Config
}

// Option customizes a Server.
type Option func(*Server)

// WithConfigFile enables hot reload of the given YAML file while the server runs.
func WithConfigFile(path string) Option {
	return func(s *Server) { s.configPath = path }
}

// New constructs a server with default provider and poller wiring.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Server {
	return newServerWithProvider(cfg, logger, nil, opts...)
}

func newServerWithProvider(cfg config.Config, logger *slog.Logger, provider providers.NotificationProvider, opts ...Option) *Server {
	return newServerWithMetrics(cfg, logger, provider, nil, opts...)
}

func newServerWithMetrics(cfg config.Config, logger *slog.Logger, provider providers.NotificationProvider, recorder *metrics.Recorder, opts ...Option) *Server {
	recorder, metricsSrv, metricsShutdown := buildMetrics(cfg, logger, recorder)

	factory := newProviderFactory(logger, recorder)
	if provider == nil {
		provider = factory.build(cfg)
	} else {
		provider = factory.wrap(cfg, provider)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	memoryStore := store.NewMemoryStore()
	plr := buildPoller(cfg, provider, logger, recorder)
	httpSrv := buildHTTPServer(baseCtx, cfg, memoryStore, logger, recorder, plr)

	s := &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       recorder,
		store:         memoryStore,
		httpServer:    httpSrv,
		metricsServer: metricsSrv,
		poller:        plr,
		metricsStop:   metricsShutdown,
		baseCtx:       baseCtx,
		cancelBase:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newServerWithDeps is used for testing to inject custom components.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, memoryStore *store.MemoryStore, httpSrv httpServer, plr Poller) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		logger:     logger,
		store:      memoryStore,
		httpServer: httpSrv,
		poller:     plr,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

func buildPoller(cfg config.Config, provider providers.NotificationProvider, logger *slog.Logger, recorder *metrics.Recorder) *poller.Poller {
	return poller.New(provider,
		poller.WithLogger(logger),
		poller.WithMetrics(recorder),
		poller.WithInterval(cfg.Poller.Interval),
		poller.WithFetchTimeout(cfg.Poller.FetchTimeout),
		poller.WithSoftFailurePolicy(poller.ParseSoftFailurePolicy(cfg.Poller.SoftFailure)),
	)
}

func buildHTTPServer(baseCtx context.Context, cfg config.Config, memoryStore *store.MemoryStore, logger *slog.Logger, recorder *metrics.Recorder, plr Poller) httpServer {
	var statusFn func() poller.Status
	if plr != nil {
		statusFn = plr.Status
	}
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}

	handler := handlers.NewHandler(memoryStore, logger, statusFn)
	admin := handlers.NewAdminHandler(baseCtx, plr, memoryStore, cfg.AdminToken, logger)
	if cfg.AdminToken == "" {
		logger.Warn("admin token not set; poller control endpoints are unauthenticated")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpserver.NewHandler(handler, admin, logger, recorder),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return netHTTPServer{srv: srv}
}

// Run starts the servers and the poller, then waits for context cancellation to shut down gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) {
	s.startMetrics()
	s.startServer(stop)
	s.startPoller()
	s.watchConfig(ctx)

	<-ctx.Done()
	logging.Info(s.logger, "shutdown signal received")

	s.gracefulShutdown()
}

func (s *Server) startServer(stop context.CancelFunc) {
	logging.Info(s.logger, "http server starting", slog.String("addr", s.httpServer.Addr()))
	launchServer("http", s.httpServer, s.logger, func(err error) {
		if stop != nil {
			stop()
		}
	})
}

func (s *Server) startMetrics() {
	if s.metricsServer == nil {
		return
	}
	logging.Info(s.logger, "metrics server starting", slog.String("addr", s.metricsServer.Addr()))
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

// startPoller begins polling with the configured seller token. Without a token the
// poller stays idle until a session is started over the admin API.
func (s *Server) startPoller() {
	cfg := s.config()
	if !cfg.Poller.Autostart {
		logging.Info(s.logger, "poller autostart disabled")
		return
	}
	if cfg.SellerAPI.Token == "" {
		logging.Info(s.logger, "no seller token configured; poller idle until started")
		return
	}
	if err := s.poller.Start(s.baseCtx, cfg.SellerAPI.Token, s.store.SetSnapshot, s.store.SetError); err != nil {
		logging.Error(s.logger, "failed to start poller", err)
	}
}

func (s *Server) watchConfig(ctx context.Context) {
	if s.configPath == "" {
		return
	}
	w := config.NewWatcher(s.configPath, s.config(), s.logger)
	go func() {
		if err := w.Watch(ctx, s.applyConfig); err != nil {
			logging.Warn(s.logger, "config watcher stopped", "error", err)
		}
	}()
}

// applyConfig applies the parts of a reloaded configuration that can change at runtime:
// the poll interval and the seller token. Everything else needs a restart.
func (s *Server) applyConfig(next config.Config) {
	s.mu.Lock()
	prev := s.cfg
	s.cfg = next
	s.mu.Unlock()

	if next.Poller.Interval != prev.Poller.Interval {
		if err := s.poller.UpdateInterval(next.Poller.Interval); err != nil {
			logging.Warn(s.logger, "config interval not applied", "error", err)
		}
	}

	if next.SellerAPI.Token != prev.SellerAPI.Token && next.Poller.Autostart {
		s.poller.Stop()
		if next.SellerAPI.Token != "" {
			if err := s.poller.Start(s.baseCtx, next.SellerAPI.Token, s.store.SetSnapshot, s.store.SetError); err != nil {
				logging.Error(s.logger, "failed to restart poller", err)
			}
		}
	}

	if next.Port != prev.Port || next.Provider != prev.Provider || next.Metrics != prev.Metrics || next.AdminToken != prev.AdminToken {
		logging.Warn(s.logger, "config change requires restart to take effect")
	}
}

func (s *Server) config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Server) gracefulShutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics shutdown failed", "error", err)
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics server shutdown failed", "error", err)
		}
	}

	if s.poller != nil {
		s.poller.Stop()
	}
	if s.cancelBase != nil {
		s.cancelBase()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error(s.logger, "graceful shutdown failed", err)
	}

	logging.Info(s.logger, "shutdown complete")
}

func buildMetrics(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*metrics.Recorder, httpServer, func(context.Context) error) {
	if recorder != nil {
		return recorder, nil, nil
	}

	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		logging.Warn(logger, "metrics setup failed, continuing without telemetry", "err", err)
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		metricsSrv = netHTTPServer{
			srv: &http.Server{
				Addr:              ":" + recCfg.Port,
				Handler:           handler,
				ReadHeaderTimeout: readTimeout,
			},
		}
	}

	return rec, metricsSrv, shutdown
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn(logger, name+" server failed", "error", err)
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}

// Store exposes the notification store backing the HTTP API.
func (s *Server) Store() *store.MemoryStore {
	return s.store
}
