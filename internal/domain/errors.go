package domain

import "errors"

// Error taxonomy for the captioning pipeline. Per-image errors are recorded
// against the image key and never abort a batch; fatal preconditions are
// checked before any work is scheduled.
var (
	// ErrServiceUnavailable indicates the inference endpoint could not be
	// reached or the request timed out. Transient.
	ErrServiceUnavailable = errors.New("caption service unavailable")

	// ErrModel indicates the inference endpoint returned an explicit error
	// for this request.
	ErrModel = errors.New("model error")

	// ErrNotFound indicates a cache/store lookup miss. Expected and
	// non-fatal: it triggers processing.
	ErrNotFound = errors.New("caption not found")

	// ErrStorage indicates the persistence layer failed to write a record.
	ErrStorage = errors.New("storage failure")

	// ErrNoSamples indicates demo rendering was invoked with zero inputs.
	ErrNoSamples = errors.New("no samples available")
)

// IsServiceUnavailable reports whether err is an endpoint reachability or
// timeout failure.
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// IsModelError reports whether err is an explicit endpoint failure.
func IsModelError(err error) bool {
	return errors.Is(err, ErrModel)
}

// IsNotFound reports whether err is a store lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
