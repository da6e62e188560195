package alarms

import "errors"

// ErrNotFound is returned when no acknowledgeable alarm matches the ID.
var ErrNotFound = errors.New("alarms: alarm not found")
