package poller

import "errors"

var (
	// ErrInvalidArgument is returned by Start when the credential or success consumer is missing.
	ErrInvalidArgument = errors.New("poller: invalid argument")
	// ErrIntervalTooShort is returned by UpdateInterval for values below MinInterval.
	ErrIntervalTooShort = errors.New("poller: interval below minimum")
	// ErrSoftAPIFailure wraps a non-success status reported by the server, when escalated.
	ErrSoftAPIFailure = errors.New("poller: server reported failure")
	// ErrProviderPanic wraps a recovered panic raised by the provider.
	ErrProviderPanic = errors.New("poller: provider panic")
)
