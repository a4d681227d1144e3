package poller

import "github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"

// OutcomeKind enumerates how a fetch cycle ended.
type OutcomeKind int

const (
	// OutcomeSkipped means no provider call was made (idle, or another fetch in flight).
	OutcomeSkipped OutcomeKind = iota
	// OutcomeDelivered means a snapshot was fetched and normalized.
	OutcomeDelivered
	// OutcomeFailed means the provider call returned an error.
	OutcomeFailed
	// OutcomeSoftFailure means the call succeeded but the server reported a non-success status.
	OutcomeSoftFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailed:
		return "failed"
	case OutcomeSoftFailure:
		return "soft_failure"
	default:
		return "skipped"
	}
}

// Skip reasons.
const (
	ReasonIdle     = "idle"
	ReasonInFlight = "fetch in flight"
)

// Outcome is the result of one fetch cycle.
type Outcome struct {
	Kind     OutcomeKind
	Snapshot notifications.Snapshot
	Err      error
	// Message carries the server message for soft failures.
	Message string
	// Reason explains a skip.
	Reason string
	// Discarded is set when the session ended before the result could be delivered.
	Discarded bool
}

func skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}
