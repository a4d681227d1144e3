package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/config"
	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/metrics"
	"github.com/preston-bernstein/seller-notification-service/internal/poller"
	"github.com/preston-bernstein/seller-notification-service/internal/providers/fixture"
	"github.com/preston-bernstein/seller-notification-service/internal/store"
	"github.com/preston-bernstein/seller-notification-service/internal/testutil"
)

type stubPoller struct {
	mu         sync.Mutex
	starts     []string
	stops      int
	intervals  []time.Duration
	startErr   error
	intervalFn func(time.Duration) error
}

func (s *stubPoller) Start(ctx context.Context, credential string, onSuccess poller.SuccessFunc, onError poller.ErrorFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, credential)
	return s.startErr
}

func (s *stubPoller) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *stubPoller) UpdateInterval(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals = append(s.intervals, d)
	if s.intervalFn != nil {
		return s.intervalFn(d)
	}
	return nil
}

func (s *stubPoller) Fetch(ctx context.Context) poller.Outcome {
	return poller.Outcome{Kind: poller.OutcomeSkipped, Reason: poller.ReasonIdle}
}

func (s *stubPoller) Status() poller.Status {
	return poller.Status{}
}

func (s *stubPoller) snapshot() ([]string, int, []time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.starts...), s.stops, append([]time.Duration(nil), s.intervals...)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	cfg.SellerAPI.RateInterval = time.Millisecond
	return cfg
}

func runServer(t *testing.T, srv *Server) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx, cancel)
		close(done)
	}()
	return cancel, done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

func TestNewServesHealth(t *testing.T) {
	srv := New(testConfig(), nil)
	rr := testutil.Serve(srv.Handler(), http.MethodGet, "/health", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	if srv.Store() == nil {
		t.Fatalf("expected store to be wired")
	}
}

func TestServerPollsFixtureIntoStore(t *testing.T) {
	rec := metrics.NewRecorder()
	srv := newServerWithMetrics(testConfig(), nil, fixture.New(), rec)
	defer srv.gracefulShutdown()

	if err := srv.poller.Start(context.Background(), "tok", srv.store.SetSnapshot, srv.store.SetError); err != nil {
		t.Fatalf("start: %v", err)
	}
	testutil.Eventually(t, time.Second, func() bool {
		_, _, ok := srv.store.Latest()
		return ok
	}, "snapshot stored")

	rr := testutil.Serve(srv.Handler(), http.MethodGet, "/notifications", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	var body struct {
		notifications.Snapshot
		UpdatedAt time.Time `json:"updated_at"`
	}
	testutil.DecodeJSON(t, rr, &body)
	if body.Unread != 2 || len(body.Notifications) != 3 {
		t.Fatalf("unexpected body %+v", body)
	}
	if rec.ProviderCalls("fixture") == 0 {
		t.Fatalf("expected instrumented provider calls under configured name")
	}
}

func TestServerAdminStartUsesBaseContext(t *testing.T) {
	cfg := testConfig()
	cfg.AdminToken = "secret"
	srv := newServerWithProvider(cfg, nil, fixture.New())
	defer srv.gracefulShutdown()

	req, _ := http.NewRequest(http.MethodPost, "/poller/start", strings.NewReader(`{"token":"seller"}`))
	req.Header.Set("X-Admin-Token", "secret")
	rr := testutil.ServeRequest(srv.Handler(), req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	// The request context has ended; the session must keep running on the server's context.
	testutil.Eventually(t, time.Second, func() bool {
		return srv.poller.Status().Active && srv.store.Version() > 0
	}, "admin-started session active and delivering")
}

func TestRunAutostartsWithToken(t *testing.T) {
	cfg := testConfig()
	cfg.SellerAPI.Token = "tok"
	stubHTTP := &testutil.StubHTTPServer{AddrVal: ":0"}
	plr := &stubPoller{}
	srv := newServerWithDeps(cfg, nil, store.NewMemoryStore(), stubHTTP, plr)

	cancel, done := runServer(t, srv)
	testutil.Eventually(t, time.Second, func() bool {
		starts, _, _ := plr.snapshot()
		return len(starts) == 1
	}, "poller started")
	cancel()
	waitDone(t, done)

	starts, stops, _ := plr.snapshot()
	if starts[0] != "tok" || stops != 1 {
		t.Fatalf("expected start with token and one stop, got %v %d", starts, stops)
	}
	if stubHTTP.ShutdownCalls != 1 {
		t.Fatalf("expected http shutdown, got %d", stubHTTP.ShutdownCalls)
	}
	if srv.baseCtx.Err() == nil {
		t.Fatalf("expected base context cancelled on shutdown")
	}
}

func TestRunSkipsAutostart(t *testing.T) {
	cases := map[string]func(*config.Config){
		"no token": func(c *config.Config) { c.SellerAPI.Token = "" },
		"disabled": func(c *config.Config) {
			c.SellerAPI.Token = "tok"
			c.Poller.Autostart = false
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			plr := &stubPoller{}
			logger, buf := testutil.NewBufferLogger()
			srv := newServerWithDeps(cfg, logger, store.NewMemoryStore(), &testutil.StubHTTPServer{}, plr)

			cancel, done := runServer(t, srv)
			testutil.Eventually(t, time.Second, func() bool {
				return strings.Contains(buf.String(), "poller")
			}, "autostart decision logged")
			cancel()
			waitDone(t, done)

			if starts, _, _ := plr.snapshot(); len(starts) != 0 {
				t.Fatalf("expected no start, got %v", starts)
			}
		})
	}
}

func TestRunLogsStartFailure(t *testing.T) {
	cfg := testConfig()
	cfg.SellerAPI.Token = "tok"
	plr := &stubPoller{startErr: poller.ErrInvalidArgument}
	logger, buf := testutil.NewBufferLogger()
	srv := newServerWithDeps(cfg, logger, store.NewMemoryStore(), &testutil.StubHTTPServer{}, plr)

	cancel, done := runServer(t, srv)
	testutil.Eventually(t, time.Second, func() bool {
		return strings.Contains(buf.String(), "failed to start poller")
	}, "start failure logged")
	cancel()
	waitDone(t, done)
}

func TestApplyConfigUpdatesIntervalAndToken(t *testing.T) {
	cfg := testConfig()
	cfg.SellerAPI.Token = "old"
	plr := &stubPoller{}
	logger, buf := testutil.NewBufferLogger()
	srv := newServerWithDeps(cfg, logger, store.NewMemoryStore(), &testutil.StubHTTPServer{}, plr)

	next := cfg
	next.Poller.Interval = 5 * time.Second
	next.SellerAPI.Token = "new"
	srv.applyConfig(next)

	starts, stops, intervals := plr.snapshot()
	if len(intervals) != 1 || intervals[0] != 5*time.Second {
		t.Fatalf("expected interval update, got %v", intervals)
	}
	if stops != 1 || len(starts) != 1 || starts[0] != "new" {
		t.Fatalf("expected restart with rotated token, got stops=%d starts=%v", stops, starts)
	}
	if srv.config() != next {
		t.Fatalf("expected config to be replaced")
	}

	restart := next
	restart.Port = "5000"
	srv.applyConfig(restart)
	if !strings.Contains(buf.String(), "config change requires restart") {
		t.Fatalf("expected restart warning, got %s", buf.String())
	}
	if _, _, intervals := plr.snapshot(); len(intervals) != 1 {
		t.Fatalf("expected unchanged interval not to be reapplied")
	}
}

func TestApplyConfigClearedTokenStopsPoller(t *testing.T) {
	cfg := testConfig()
	cfg.SellerAPI.Token = "tok"
	plr := &stubPoller{intervalFn: func(time.Duration) error { return poller.ErrIntervalTooShort }}
	logger, buf := testutil.NewBufferLogger()
	srv := newServerWithDeps(cfg, logger, store.NewMemoryStore(), &testutil.StubHTTPServer{}, plr)

	next := cfg
	next.SellerAPI.Token = ""
	next.Poller.Interval = 2 * time.Second
	srv.applyConfig(next)

	starts, stops, _ := plr.snapshot()
	if stops != 1 || len(starts) != 0 {
		t.Fatalf("expected stop without restart, got stops=%d starts=%v", stops, starts)
	}
	if !strings.Contains(buf.String(), "config interval not applied") {
		t.Fatalf("expected rejected interval logged")
	}
}

func TestRunWatchesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("poller:\n  interval: 5s\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	plr := &stubPoller{}
	srv := newServerWithDeps(cfg, nil, store.NewMemoryStore(), &testutil.StubHTTPServer{}, plr)
	WithConfigFile(path)(srv)

	cancel, done := runServer(t, srv)
	defer func() {
		cancel()
		waitDone(t, done)
	}()

	// The watcher may not be registered yet on the first write, so rewrite, but less
	// often than the reload debounce: every write restarts it.
	polls := 0
	testutil.Eventually(t, 5*time.Second, func() bool {
		if polls%200 == 0 {
			_ = os.WriteFile(path, []byte("poller:\n  interval: 9s\n"), 0o600)
		}
		polls++
		_, _, intervals := plr.snapshot()
		return len(intervals) > 0 && intervals[0] == 9*time.Second
	}, "interval applied from reloaded file")
}

func TestGracefulShutdownLogsFailures(t *testing.T) {
	orig := shutdownTimeout
	shutdownTimeout = 10 * time.Millisecond
	defer func() { shutdownTimeout = orig }()

	logger, buf := testutil.NewBufferLogger()
	blocking := &testutil.BlockingHTTPServer{Unblock: make(chan struct{})}
	srv := newServerWithDeps(testConfig(), logger, store.NewMemoryStore(), blocking, &stubPoller{})
	srv.metricsServer = &testutil.StubHTTPServer{ShutdownErr: errors.New("boom")}
	srv.metricsStop = func(context.Context) error { return errors.New("flush failed") }

	srv.gracefulShutdown()

	out := buf.String()
	for _, want := range []string{"metrics shutdown failed", "metrics server shutdown failed", "graceful shutdown failed", "shutdown complete"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in logs, got %s", want, out)
		}
	}
	if blocking.ShutdownCalls != 1 {
		t.Fatalf("expected one http shutdown attempt")
	}
}

func TestLaunchServerReportsListenErrors(t *testing.T) {
	errs := make(chan error, 1)
	launchServer("http", &testutil.ErrHTTPServer{}, nil, func(err error) { errs <- err })
	select {
	case err := <-errs:
		if err == nil {
			t.Fatalf("expected listen error")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected onError to be called")
	}

	called := make(chan struct{}, 1)
	launchServer("http", &testutil.CloseableHTTPServer{}, nil, func(error) { called <- struct{}{} })
	select {
	case <-called:
		t.Fatalf("ErrServerClosed should not be reported")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartMetricsLaunchesServer(t *testing.T) {
	stub := &testutil.StubHTTPServer{AddrVal: ":9090"}
	srv := newServerWithDeps(testConfig(), nil, store.NewMemoryStore(), &testutil.StubHTTPServer{}, &stubPoller{})
	srv.startMetrics()

	srv.metricsServer = stub
	srv.startMetrics()
	srv.gracefulShutdown()
	if stub.ShutdownCalls != 1 {
		t.Fatalf("expected metrics server shutdown")
	}
}
