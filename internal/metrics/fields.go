package metrics

// Common metric attribute keys to keep telemetry consistent/searchable.
const (
	AttrMethod   = "method"
	AttrPath     = "path"
	AttrStatus   = "status"
	AttrProvider = "provider"
	AttrOutcome  = "outcome"
)

// OutcomeSkipped is the poller outcome counted as a skip rather than a cycle.
const OutcomeSkipped = "skipped"
