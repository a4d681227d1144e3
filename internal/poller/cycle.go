package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/logging"
	"github.com/preston-bernstein/seller-notification-service/internal/providers"
)

// cycle performs one guarded fetch-and-deliver pass for the given session.
func (p *Poller) cycle(ctx context.Context, sessionID uint64) Outcome {
	credential, reason := p.acquire(sessionID)
	switch reason {
	case ReasonIdle:
		return skipped(ReasonIdle)
	case ReasonInFlight:
		logging.Debug(p.logger, "poller tick skipped", slog.String("reason", ReasonInFlight))
		p.metrics.RecordPollerCycle(OutcomeSkipped.String(), 0, nil)
		return skipped(ReasonInFlight)
	}
	defer p.release(sessionID)

	start := p.clock.Now()
	p.recordAttempt(sessionID, start)

	resp, err := p.callProvider(ctx, credential)
	outcome := p.classify(resp, err)
	elapsed := p.clock.Now().Sub(start)

	p.recordOutcome(sessionID, outcome, start)
	p.metrics.RecordPollerCycle(outcome.Kind.String(), elapsed, outcome.Err)

	outcome.Discarded = !p.deliver(sessionID, outcome)
	if outcome.Kind == OutcomeDelivered && !outcome.Discarded {
		p.metrics.RecordUnread(outcome.Snapshot.Unread)
	}
	p.logOutcome(outcome, elapsed)
	return outcome
}

// acquire takes the fetch guard for sessionID and returns the credential to use.
// A non-empty reason means the cycle must be skipped.
func (p *Poller) acquire(sessionID uint64) (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess := p.sess
	if sess == nil || sess.id != sessionID || p.onSuccess == nil || p.credential == "" {
		return "", ReasonIdle
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		if p.holder != sessionID {
			sess.starved = true
		}
		return "", ReasonInFlight
	}
	p.holder = sessionID
	return p.credential, ""
}

// release clears the fetch guard. When the fetch belonged to an ended session and
// the current session lost a cycle to it, the current session is kicked so its
// first fetch is not postponed to the next tick.
func (p *Poller) release(sessionID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight.Store(false)
	p.holder = 0
	sess := p.sess
	if sess == nil || sess.id == sessionID || !sess.starved {
		return
	}
	sess.starved = false
	select {
	case sess.kick <- struct{}{}:
	default:
	}
}

func (p *Poller) classify(resp notifications.Response, err error) Outcome {
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: err}
	}
	if snap, ok := notifications.Normalize(resp); ok {
		return Outcome{Kind: OutcomeDelivered, Snapshot: snap}
	}
	return Outcome{Kind: OutcomeSoftFailure, Message: resp.Message}
}

// deliver hands the outcome to the consumers registered at completion time.
// It reports false when the session ended while the fetch was in flight.
func (p *Poller) deliver(sessionID uint64, o Outcome) bool {
	p.mu.Lock()
	if p.sess == nil || p.sess.id != sessionID {
		p.mu.Unlock()
		logging.Debug(p.logger, "poller result discarded", slog.Uint64(logging.FieldSession, sessionID))
		return false
	}
	onSuccess, onError := p.onSuccess, p.onError
	p.mu.Unlock()

	switch o.Kind {
	case OutcomeDelivered:
		if onSuccess != nil {
			p.safeInvoke("success", func() { onSuccess(o.Snapshot) })
		}
	case OutcomeFailed:
		if onError != nil {
			p.safeInvoke("error", func() { onError(o.Err) })
		}
	case OutcomeSoftFailure:
		if p.softPolicy == SoftFailureEscalate && onError != nil {
			err := fmt.Errorf("%w: %s", ErrSoftAPIFailure, o.Message)
			p.safeInvoke("error", func() { onError(err) })
		}
	}
	return true
}

func (p *Poller) callProvider(ctx context.Context, credential string) (resp notifications.Response, err error) {
	if p.provider == nil {
		return notifications.Response{}, providers.ErrProviderUnavailable
	}
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			logging.Error(p.logger, "provider panic", nil,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			resp = notifications.Response{}
			err = fmt.Errorf("%w (correlation_id: %s)", ErrProviderPanic, correlationID)
		}
	}()
	return p.provider.FetchNotifications(ctx, credential)
}

// safeInvoke runs a consumer callback so that a panic never ends the polling loop.
func (p *Poller) safeInvoke(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			logging.Error(p.logger, "consumer panic", nil,
				"consumer", kind,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}

func (p *Poller) logOutcome(o Outcome, elapsed time.Duration) {
	attrs := []any{
		slog.String(logging.FieldOutcome, o.Kind.String()),
		slog.Int64(logging.FieldDurationMS, elapsed.Milliseconds()),
	}
	switch o.Kind {
	case OutcomeDelivered:
		attrs = append(attrs,
			slog.Int(logging.FieldUnread, o.Snapshot.Unread),
			slog.Int(logging.FieldCount, len(o.Snapshot.Notifications)),
		)
		logging.Debug(p.logger, "poller refreshed notifications", attrs...)
	case OutcomeFailed:
		logging.Warn(p.logger, "poller fetch failed", append(attrs, "error", o.Err)...)
	case OutcomeSoftFailure:
		logging.Info(p.logger, "poller fetch reported failure", append(attrs, slog.String("message", o.Message))...)
	}
}
