package scenario

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/birising/OT-honey/internal/gate"
	"github.com/birising/OT-honey/internal/observability/metrics"
	"github.com/birising/OT-honey/internal/tags"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// activeRun is the manager's record of the scenario in progress.
type activeRun struct {
	def       Definition
	startedAt time.Time
	endsAt    time.Time
	// baseline holds pre-scenario values of overridden operator tags,
	// restored when the run ends. Model-owned tags are left to recover
	// through the process dynamics.
	baseline []tags.Update
}

// Manager runs at most one scenario at a time against the registry.
type Manager struct {
	registry *tags.Registry
	clock    Clock
	log      zerolog.Logger

	mu     sync.Mutex
	defs   map[string]Definition
	order  []string
	active *activeRun
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger attaches a logger for lifecycle events.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager builds a manager over the given catalog.
func NewManager(registry *tags.Registry, defs []Definition, opts ...Option) (*Manager, error) {
	if registry == nil {
		return nil, errors.New("scenario: registry is required")
	}
	if len(defs) == 0 {
		return nil, errors.New("scenario: catalog is empty")
	}
	m := &Manager{
		registry: registry,
		clock:    systemClock{},
		log:      zerolog.Nop(),
		defs:     make(map[string]Definition, len(defs)),
		order:    make([]string, 0, len(defs)),
	}
	for _, def := range defs {
		if _, dup := m.defs[def.Name]; dup {
			return nil, fmt.Errorf("scenario: %q declared twice", def.Name)
		}
		m.defs[def.Name] = def
		m.order = append(m.order, def.Name)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// List returns the catalog in declaration order.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.order))
	for _, name := range m.order {
		def := m.defs[name]
		out = append(out, Info{
			Name:        def.Name,
			Title:       def.Title,
			Description: def.Description,
			Duration:    def.Duration,
		})
	}
	return out
}

// Active returns the running scenario, if any.
func (m *Manager) Active() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return State{}, false
	}
	return m.state(), true
}

func (m *Manager) state() State {
	return State{
		Name:      m.active.def.Name,
		Title:     m.active.def.Title,
		StartedAt: m.active.startedAt,
		EndsAt:    m.active.endsAt,
	}
}

// Start activates the named scenario. Starting the one already running
// is an error; starting a different one preempts the current run and
// restores its baseline first.
func (m *Manager) Start(name string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	def, ok := m.defs[name]
	if !ok {
		return State{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if m.active != nil {
		if m.active.def.Name == name {
			return State{}, fmt.Errorf("%w: %q", ErrAlreadyRunning, name)
		}
		m.endLocked("preempted")
	}

	now := m.clock.Now()
	run := &activeRun{
		def:       def,
		startedAt: now,
		endsAt:    now.Add(def.Duration),
	}
	for _, ov := range def.Overrides {
		if !gate.Writable(ov.Tag) {
			continue
		}
		if current, err := m.registry.Get(ov.Tag); err == nil {
			run.baseline = append(run.baseline, tags.Update{Name: ov.Tag, Value: current})
		}
	}
	m.active = run
	metrics.IncScenarioEvent(def.Name, "started")
	metrics.SetScenarioActive(true)
	m.log.Info().
		Str("scenario", def.Name).
		Dur("duration", def.Duration).
		Time("ends_at", run.endsAt).
		Msg("scenario started")
	return m.state(), nil
}

// Stop ends the running scenario and restores its baseline.
func (m *Manager) Stop() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return State{}, ErrNotRunning
	}
	st := m.state()
	m.endLocked("stopped")
	return st, nil
}

// Tick returns the overlay for the tick at now, expiring the run when
// its time is up. The tick driver calls this once per tick before the
// model step.
func (m *Manager) Tick(now time.Time) Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Overlay{}
	}
	if !now.Before(m.active.endsAt) {
		m.endLocked("expired")
		return Overlay{}
	}

	run := m.active
	overlay := Overlay{
		Params: run.def.Params,
		Ramp:   1.0,
	}
	if run.def.Ramp > 0 {
		elapsed := now.Sub(run.startedAt)
		if elapsed < run.def.Ramp {
			overlay.Ramp = float64(elapsed) / float64(run.def.Ramp)
		}
	}
	if len(run.def.Overrides) > 0 {
		overlay.TagOverrides = make([]tags.Update, len(run.def.Overrides))
		for i, ov := range run.def.Overrides {
			overlay.TagOverrides[i] = tags.Update{Name: ov.Tag, Value: ov.Value}
		}
	}
	return overlay
}

// Reset drops the active run without restoring baselines. Used by the
// plant reset, which rewrites the whole registry anyway.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
	metrics.SetScenarioActive(false)
}

// endLocked finishes the active run and restores operator-owned tags.
func (m *Manager) endLocked(cause string) {
	run := m.active
	m.active = nil
	if len(run.baseline) > 0 {
		if errs := m.registry.Apply(run.baseline, m.clock.Now()); len(errs) > 0 {
			m.log.Warn().
				Str("scenario", run.def.Name).
				Int("failed", len(errs)).
				Msg("baseline restore incomplete")
		}
	}
	metrics.IncScenarioEvent(run.def.Name, cause)
	metrics.SetScenarioActive(false)
	m.log.Info().
		Str("scenario", run.def.Name).
		Str("cause", cause).
		Msg("scenario ended")
}
