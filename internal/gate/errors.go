package gate

import "errors"

var (
	// ErrNotWritable is returned for tags outside the write whitelist.
	ErrNotWritable = errors.New("gate: tag not writable")
	// ErrOutOfRange is returned when a value fails its engineering limits.
	ErrOutOfRange = errors.New("gate: value out of range")
)
