package alarms

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/birising/OT-honey/internal/observability/metrics"
	"github.com/birising/OT-honey/internal/tags"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Notifier receives alarm lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

const defaultHistoryCap = 256

// conditionState tracks one schedule row between ticks.
type conditionState struct {
	pending      bool
	pendingSince time.Time
	active       *Alarm
}

// Engine evaluates the alarm schedule against committed tag values.
// Evaluate runs on the tick driver; Acknowledge and the read methods
// may be called concurrently from the API surfaces.
type Engine struct {
	clock    Clock
	notifier Notifier

	mu         sync.Mutex
	conditions []Condition
	states     map[string]*conditionState
	history    []*Alarm
	historyCap int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the wall clock used for acknowledgement times.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithNotifier attaches a lifecycle event sink.
func WithNotifier(notifier Notifier) EngineOption {
	return func(e *Engine) { e.notifier = notifier }
}

// WithHistoryCap bounds the retained alarm history.
func WithHistoryCap(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.historyCap = n
		}
	}
}

// NewEngine builds an engine over the given schedule.
func NewEngine(conditions []Condition, opts ...EngineOption) (*Engine, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("alarms: empty schedule")
	}
	e := &Engine{
		clock:      systemClock{},
		conditions: conditions,
		states:     make(map[string]*conditionState, len(conditions)),
		historyCap: defaultHistoryCap,
	}
	for _, cond := range conditions {
		if err := cond.validate(); err != nil {
			return nil, fmt.Errorf("alarms: %w", err)
		}
		if _, dup := e.states[cond.Code]; dup {
			return nil, fmt.Errorf("alarms: condition %s declared twice", cond.Code)
		}
		e.states[cond.Code] = &conditionState{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate runs the schedule against one tick's committed values. A
// condition must hold continuously for its delay before raising; every
// false reading restarts the debounce. A false reading clears the alarm
// immediately, acknowledged or not.
func (e *Engine) Evaluate(ctx context.Context, view map[string]tags.Value, now time.Time) {
	var events []Event

	e.mu.Lock()
	for _, cond := range e.conditions {
		value, ok := view[cond.Tag]
		if !ok {
			continue
		}
		st := e.states[cond.Code]
		if cond.tripped(value) {
			if st.active != nil {
				continue
			}
			if !st.pending {
				st.pending = true
				st.pendingSince = now
			}
			if now.Sub(st.pendingSince) >= cond.Delay {
				alarm := &Alarm{
					ID:       buildAlarmID(cond.Code, now),
					Code:     cond.Code,
					Tag:      cond.Tag,
					Severity: cond.Severity,
					Text:     cond.Text,
					Value:    value,
					Status:   StatusActive,
					RaisedAt: now,
				}
				st.active = alarm
				st.pending = false
				e.pushHistoryLocked(alarm)
				events = append(events, Event{Type: EventRaised, Alarm: alarm.Clone()})
			}
		} else {
			st.pending = false
			if st.active != nil {
				st.active.Status = StatusCleared
				st.active.ClearedAt = now
				events = append(events, Event{Type: EventCleared, Alarm: st.active.Clone()})
				st.active = nil
			}
		}
	}
	activeCount := e.activeCountLocked()
	e.mu.Unlock()

	metrics.SetActiveAlarms(activeCount)
	for _, ev := range events {
		e.emit(ctx, ev)
	}
}

// Acknowledge marks a raised, unacknowledged alarm as acknowledged.
func (e *Engine) Acknowledge(ctx context.Context, id string) (Alarm, error) {
	e.mu.Lock()
	for _, st := range e.states {
		if st.active == nil || st.active.ID != id {
			continue
		}
		if st.active.Status != StatusActive {
			break
		}
		st.active.Status = StatusAcknowledged
		st.active.AckedAt = e.clock.Now()
		out := st.active.Clone()
		e.mu.Unlock()

		e.emit(ctx, Event{Type: EventAcknowledged, Alarm: out})
		return out, nil
	}
	e.mu.Unlock()
	return Alarm{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Active returns raised alarms ordered by raise time, oldest first.
func (e *Engine) Active() []Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alarm, 0, 8)
	for _, st := range e.states {
		if st.active != nil {
			out = append(out, st.active.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].RaisedAt.Before(out[j].RaisedAt)
	})
	return out
}

// ActiveCount returns the number of raised alarms.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeCountLocked()
}

// History returns up to limit lifecycle records, newest first. Records
// reflect the alarm's latest state. limit <= 0 returns everything.
func (e *Engine) History(limit int) []Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Alarm, 0, n)
	for i := len(e.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, e.history[i].Clone())
	}
	return out
}

// Reset clears all alarm state, emitting cleared events for anything
// still raised. Used by the plant reset.
func (e *Engine) Reset(ctx context.Context) {
	now := e.clock.Now()
	var events []Event

	e.mu.Lock()
	for _, st := range e.states {
		if st.active != nil {
			st.active.Status = StatusCleared
			st.active.ClearedAt = now
			events = append(events, Event{Type: EventCleared, Alarm: st.active.Clone()})
		}
		st.active = nil
		st.pending = false
	}
	e.history = nil
	e.mu.Unlock()

	metrics.SetActiveAlarms(0)
	for _, ev := range events {
		e.emit(ctx, ev)
	}
}

func (e *Engine) activeCountLocked() int {
	count := 0
	for _, st := range e.states {
		if st.active != nil {
			count++
		}
	}
	return count
}

func (e *Engine) pushHistoryLocked(alarm *Alarm) {
	if len(e.history) >= e.historyCap {
		e.history = append(e.history[:0], e.history[1:]...)
	}
	e.history = append(e.history, alarm)
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	metrics.IncAlarmEvent(string(ev.Type))
	if e.notifier != nil {
		e.notifier.Notify(ctx, ev)
	}
}

func buildAlarmID(code string, raisedAt time.Time) string {
	sum := sha1.Sum([]byte(code + "|" + raisedAt.Format(time.RFC3339Nano)))
	return "alarm-" + hex.EncodeToString(sum[:8])
}
