package engine

import "errors"

var (
	// ErrRouteNotSupported indicates no registered provider covers the
	// requested chain/token pair. Raised before any network call.
	ErrRouteNotSupported = errors.New("engine: no provider supports the requested route")

	// ErrAllProvidersFailed indicates eligible providers exist but every one
	// of them failed or timed out for this request.
	ErrAllProvidersFailed = errors.New("engine: all eligible providers failed")
)
