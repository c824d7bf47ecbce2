package domain

import "errors"

// Classified failures surfaced by collaborators. The board engine maps
// exactly one of these onto a user-facing status per failed load.
var (
	ErrUpstreamTimeout    = errors.New("upstream request timed out")
	ErrTransport          = errors.New("network failure")
	ErrUpstream           = errors.New("upstream error")
	ErrInvalidCoordinates = errors.New("invalid lat/lon")
	ErrInvalidMode        = errors.New("invalid mode")

	// Storage failures are absorbed at the synchronizer boundary and
	// never propagate past it.
	ErrStorageUnavailable = errors.New("preference storage unavailable")

	ErrLocationDenied      = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrLocationTimeout     = errors.New("location request timed out")
)
