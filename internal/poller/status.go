package poller

import "time"

// Status describes the lifecycle state and recent health of the poller.
type Status struct {
	Active              bool
	Fetching            bool
	Interval            time.Duration
	ConsecutiveFailures int
	LastError           string
	LastOutcome         string
	LastAttempt         time.Time
	LastSuccess         time.Time
}

// IsReady reports whether the poller has had a recent success and is not failing repeatedly.
func (s Status) IsReady() bool {
	if s.LastSuccess.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < 3
}

// resetHealth starts a fresh health record owned by sessionID.
func (p *Poller) resetHealth(sessionID uint64) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.health = Status{}
	p.healthSession = sessionID
}

// Results from ended sessions are ignored so a new session never looks ready
// on the strength of a fetch it did not make.
func (p *Poller) recordAttempt(sessionID uint64, at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	if sessionID != p.healthSession {
		return
	}
	p.health.LastAttempt = at
}

func (p *Poller) recordOutcome(sessionID uint64, o Outcome, at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	if sessionID != p.healthSession {
		return
	}
	p.health.LastOutcome = o.Kind.String()
	switch o.Kind {
	case OutcomeDelivered:
		p.health.ConsecutiveFailures = 0
		p.health.LastError = ""
		p.health.LastSuccess = at
	case OutcomeFailed:
		p.health.ConsecutiveFailures++
		if o.Err != nil {
			p.health.LastError = o.Err.Error()
		}
	case OutcomeSoftFailure:
		p.health.ConsecutiveFailures++
		p.health.LastError = o.Message
		if p.health.LastError == "" {
			p.health.LastError = "server reported failure"
		}
	}
}

// Status returns a snapshot of the poller's state and recent health.
func (p *Poller) Status() Status {
	p.mu.Lock()
	active := p.sess != nil
	interval := p.interval
	p.mu.Unlock()

	p.statusMu.RLock()
	st := p.health
	p.statusMu.RUnlock()

	st.Active = active
	st.Interval = interval
	st.Fetching = active && p.inFlight.Load()
	return st
}
