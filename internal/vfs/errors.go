package vfs

import "errors"

// Filesystem errors. Wrapped errors name the offending source, path or entry.
var (
	// ErrConfiguration reports bad registration input, such as a data
	// directory that does not exist or differs in case under strict mode.
	ErrConfiguration = errors.New("vfs configuration error")

	// ErrIndex reports archive contents the index cannot accept.
	ErrIndex = errors.New("vfs index error")

	// ErrNotFound reports a lookup for a name no source provides.
	ErrNotFound = errors.New("vfs file not found")

	// ErrOpen reports a source that could not be opened or read.
	ErrOpen = errors.New("vfs open error")
)
