// Package scenario manages fault and upset drills: named disturbances
// that overlay the process for a bounded time and then expire.
package scenario

import (
	"errors"
	"time"

	"github.com/birising/OT-honey/internal/tags"
)

var (
	// ErrUnknown is returned for scenario names outside the catalog.
	ErrUnknown = errors.New("scenario: unknown scenario")
	// ErrAlreadyRunning is returned when the named scenario is already active.
	ErrAlreadyRunning = errors.New("scenario: already running")
	// ErrNotRunning is returned by Stop when nothing is active.
	ErrNotRunning = errors.New("scenario: no scenario running")
)

// Override pins one tag to a fixed value for the scenario's lifetime.
type Override struct {
	Tag   string
	Value tags.Value
}

// Definition is one catalog entry.
type Definition struct {
	Name        string
	Title       string
	Description string
	Duration    time.Duration
	// Ramp is how long parameter overrides take to reach full effect.
	// Zero means immediate.
	Ramp      time.Duration
	Params    map[string]float64
	Overrides []Override
}

// Overlay is what the active scenario contributes to one tick. Tag
// overrides are committed after the model's own writes, so they win.
// Params carry target values for model parameters; Ramp is the fraction
// of the way there, in [0, 1].
type Overlay struct {
	TagOverrides []tags.Update
	Params       map[string]float64
	Ramp         float64
}

// Active reports whether the overlay carries any effect.
func (o Overlay) Active() bool {
	return len(o.TagOverrides) > 0 || len(o.Params) > 0
}

// Info describes a catalog entry for listings.
type Info struct {
	Name        string
	Title       string
	Description string
	Duration    time.Duration
}

// State describes the currently running scenario.
type State struct {
	Name      string
	Title     string
	StartedAt time.Time
	EndsAt    time.Time
}

// Remaining returns how much run time is left at now.
func (s State) Remaining(now time.Time) time.Duration {
	if left := s.EndsAt.Sub(now); left > 0 {
		return left
	}
	return 0
}
