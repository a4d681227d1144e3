package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/logging"
	"github.com/preston-bernstein/seller-notification-service/internal/metrics"
	"github.com/preston-bernstein/seller-notification-service/internal/providers"
)

const (
	defaultInterval = 30 * time.Second
	// MinInterval is the smallest interval UpdateInterval accepts.
	MinInterval = time.Second
)

// SuccessFunc receives every delivered snapshot.
type SuccessFunc func(notifications.Snapshot)

// ErrorFunc receives transport failures (and soft failures when escalated).
type ErrorFunc func(error)

// SoftFailurePolicy decides what happens when the server answers with a non-success status.
type SoftFailurePolicy int

const (
	// SoftFailureDrop delivers nothing for the tick.
	SoftFailureDrop SoftFailurePolicy = iota
	// SoftFailureEscalate passes an ErrSoftAPIFailure to the error consumer.
	SoftFailureEscalate
)

// ParseSoftFailurePolicy maps "drop"/"escalate" to a policy, defaulting to drop.
func ParseSoftFailurePolicy(raw string) SoftFailurePolicy {
	if strings.EqualFold(strings.TrimSpace(raw), "escalate") {
		return SoftFailureEscalate
	}
	return SoftFailureDrop
}

// session is one Start..Stop lifetime. A nil session means idle.
type session struct {
	id     uint64
	ticker Ticker
	done   chan struct{}
	kick   chan struct{}
	// starved is set when a cycle was skipped because an ended session still held the guard.
	starved bool
}

// Poller fetches notification state on an interval and hands it to a registered consumer.
// At most one loop runs per Poller and at most one provider call is in flight at a time.
type Poller struct {
	provider     providers.NotificationProvider
	logger       *slog.Logger
	metrics      *metrics.Recorder
	clock        Clock
	softPolicy   SoftFailurePolicy
	fetchTimeout time.Duration

	mu         sync.Mutex
	sess       *session
	seq        uint64
	interval   time.Duration
	credential string
	onSuccess  SuccessFunc
	onError    ErrorFunc

	// inFlight is the re-entrancy guard. It is set and cleared under mu, and only
	// by the cycle that set it; holder is that cycle's session.
	inFlight atomic.Bool
	holder   uint64

	statusMu      sync.RWMutex
	health        Status
	healthSession uint64
}

// Option customizes a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(p *Poller) { p.metrics = recorder }
}

// WithInterval sets the initial polling interval. Values below MinInterval keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d >= MinInterval {
			p.interval = d
		}
	}
}

// WithSoftFailurePolicy sets how non-success server responses are handled.
func WithSoftFailurePolicy(policy SoftFailurePolicy) Option {
	return func(p *Poller) { p.softPolicy = policy }
}

// WithFetchTimeout bounds each provider call. Zero means no timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source and ticker factory.
func WithClock(clock Clock) Option {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New constructs an idle Poller.
func New(provider providers.NotificationProvider, opts ...Option) *Poller {
	p := &Poller{
		provider: provider,
		clock:    realClock{},
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling with the given credential and consumers.
//
// When already active it only replaces the non-nil consumers and logs a warning; the
// running schedule is untouched. Otherwise it validates its arguments, performs one
// fetch immediately and then one per interval until Stop is called or ctx ends.
func (p *Poller) Start(ctx context.Context, credential string, onSuccess SuccessFunc, onError ErrorFunc) error {
	p.mu.Lock()
	if p.sess != nil {
		if onSuccess != nil {
			p.onSuccess = onSuccess
		}
		if onError != nil {
			p.onError = onError
		}
		p.mu.Unlock()
		logging.Warn(p.logger, "poller already active; consumer replaced")
		return nil
	}
	if strings.TrimSpace(credential) == "" {
		p.mu.Unlock()
		return fmt.Errorf("%w: credential is required", ErrInvalidArgument)
	}
	if onSuccess == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: success consumer is required", ErrInvalidArgument)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.seq++
	sess := &session{
		id:     p.seq,
		ticker: p.clock.NewTicker(p.interval),
		done:   make(chan struct{}),
		kick:   make(chan struct{}, 1),
	}
	p.sess = sess
	p.credential = credential
	p.onSuccess = onSuccess
	p.onError = onError
	interval := p.interval
	p.metrics.SetPollerActive(true)
	p.mu.Unlock()

	p.resetHealth(sess.id)
	logging.Info(p.logger, "poller started",
		slog.Int64(logging.FieldDurationMS, interval.Milliseconds()),
		slog.Uint64(logging.FieldSession, sess.id),
		logging.Credential(credential),
	)

	go p.run(ctx, sess)
	return nil
}

// Stop cancels the schedule and clears the credential and consumers. It is safe to call
// when idle and does not wait for an in-flight fetch; that fetch's result is discarded.
//
// Consumers run without the poller lock held, so Stop may be called from inside one.
// The flip side is that a consumer call already past its session check when Stop is
// called still completes once after Stop returns. No call starts after that.
func (p *Poller) Stop() {
	if id, ok := p.endSession(0); ok {
		logging.Info(p.logger, "poller stopped", slog.Uint64(logging.FieldSession, id))
	}
}

// UpdateInterval changes the polling interval. Values below MinInterval are rejected.
// While active the ticker is reset in place, the credential and consumers are kept,
// and one fetch runs right away.
func (p *Poller) UpdateInterval(d time.Duration) error {
	if d < MinInterval {
		logging.Warn(p.logger, "poller interval rejected",
			slog.Duration(logging.FieldInterval, d),
			slog.Duration("min", MinInterval),
		)
		return fmt.Errorf("%w: %s < %s", ErrIntervalTooShort, d, MinInterval)
	}

	p.mu.Lock()
	p.interval = d
	sess := p.sess
	if sess != nil {
		sess.ticker.Reset(d)
		select {
		case sess.kick <- struct{}{}:
		default:
		}
	}
	p.mu.Unlock()

	logging.Info(p.logger, "poller interval updated",
		slog.Duration(logging.FieldInterval, d),
		slog.Bool("active", sess != nil),
	)
	return nil
}

// Fetch runs one guarded fetch cycle outside the schedule and returns its outcome.
// It is a no-op returning a skipped outcome when the poller is idle.
func (p *Poller) Fetch(ctx context.Context) Outcome {
	p.mu.Lock()
	sess := p.sess
	p.mu.Unlock()
	if sess == nil {
		return skipped(ReasonIdle)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return p.cycle(ctx, sess.id)
}

// IsActive reports whether a polling loop is running.
func (p *Poller) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess != nil
}

// Interval returns the interval used by the current or next session.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) run(ctx context.Context, sess *session) {
	defer sess.ticker.Stop()

	p.cycle(ctx, sess.id)
	for {
		select {
		case <-sess.done:
			return
		case <-ctx.Done():
			if id, ok := p.endSession(sess.id); ok {
				logging.Info(p.logger, "poller stopped", slog.Uint64(logging.FieldSession, id), slog.String("reason", "context done"))
			}
			return
		case <-sess.ticker.C():
			p.cycle(ctx, sess.id)
		case <-sess.kick:
			p.cycle(ctx, sess.id)
		}
	}
}

// endSession tears down the current session. A non-zero id only ends that session.
func (p *Poller) endSession(id uint64) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess := p.sess
	if sess == nil || (id != 0 && sess.id != id) {
		return 0, false
	}
	sess.ticker.Stop()
	close(sess.done)
	p.metrics.SetPollerActive(false)
	p.sess = nil
	p.credential = ""
	p.onSuccess = nil
	p.onError = nil
	return sess.id, true
}
