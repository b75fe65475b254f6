package airspace

import "errors"

// Error kinds. Callers wrap these with context and match them with
// errors.Is.
var (
	// ErrNotFound means a region snapshot or a callsign does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorruptData means a stored file exists but is not a
	// well-formed snapshot or alert collection.
	ErrCorruptData = errors.New("corrupt data")

	// ErrUpstream means the reasoning service failed, timed out, or
	// returned nothing usable.
	ErrUpstream = errors.New("upstream failure")
)
