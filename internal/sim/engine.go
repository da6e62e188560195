// Package sim drives the emulated treatment plant: the physical process
// model and the tick loop that commits its output, evaluates alarms and
// feeds the trend history.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/birising/OT-honey/internal/alarms"
	"github.com/birising/OT-honey/internal/observability/metrics"
	"github.com/birising/OT-honey/internal/scenario"
	"github.com/birising/OT-honey/internal/tags"
	"github.com/birising/OT-honey/internal/trend"
)

// DefaultInterval is the standard tick period.
const DefaultInterval = time.Second

// Engine is the single tick driver. Every tag mutation of a tick goes
// through one Apply batch, so readers never observe a half-applied tick.
type Engine struct {
	registry  *tags.Registry
	model     *Model
	scenarios *scenario.Manager
	alarmEng  *alarms.Engine
	trends    *trend.Buffer

	clock    Clock
	log      zerolog.Logger
	interval time.Duration
	watch    []string

	mu        sync.Mutex
	lastTick  time.Time
	startedAt time.Time
	ticks     uint64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the wall clock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithInterval sets the tick period.
func WithInterval(interval time.Duration) EngineOption {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// NewEngine wires the tick driver.
func NewEngine(registry *tags.Registry, model *Model, scenarios *scenario.Manager, alarmEng *alarms.Engine, trends *trend.Buffer, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, errors.New("sim: registry is required")
	}
	if model == nil {
		return nil, errors.New("sim: model is required")
	}
	if scenarios == nil {
		return nil, errors.New("sim: scenario manager is required")
	}
	if alarmEng == nil {
		return nil, errors.New("sim: alarm engine is required")
	}
	if trends == nil {
		return nil, errors.New("sim: trend buffer is required")
	}
	e := &Engine{
		registry:  registry,
		model:     model,
		scenarios: scenarios,
		alarmEng:  alarmEng,
		trends:    trends,
		clock:     systemClock{},
		log:       zerolog.Nop(),
		interval:  DefaultInterval,
		watch:     tags.CoreNames(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.startedAt = e.clock.Now()
	return e, nil
}

// Run ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info().Dur("interval", e.interval).Msg("process engine running")
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("process engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick advances the plant once: scenario overlay, model step, one
// registry commit, then alarm evaluation and trend capture against the
// committed values.
func (e *Engine) Tick(ctx context.Context) {
	began := time.Now()

	e.mu.Lock()
	now := e.clock.Now()
	dt := e.interval.Seconds()
	if !e.lastTick.IsZero() {
		if step := now.Sub(e.lastTick); step > 0 {
			if limit := 10 * e.interval; step > limit {
				step = limit
			}
			dt = step.Seconds()
		}
	}
	e.lastTick = now

	overlay := e.scenarios.Tick(now)
	updates := e.model.Step(now, dt, overlay.Params, overlay.Ramp)
	// Scenario pins go last in the batch, so they win over model output.
	updates = append(updates, overlay.TagOverrides...)
	if errs := e.registry.Apply(updates, now); len(errs) > 0 {
		for _, ue := range errs {
			e.log.Warn().Str("tag", ue.Name).Err(ue.Err).Msg("tick commit rejected update")
		}
	}

	view := e.registry.Values(e.watch)
	e.alarmEng.Evaluate(ctx, view, now)
	e.trends.Record(now, view)
	e.ticks++
	e.mu.Unlock()

	metrics.ObserveTick(time.Since(began))
}

// Reset returns the plant to its commissioning state: declared tag
// defaults, cleared alarms and trends, no scenario, fresh controller
// state and noise sequences.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	now := e.clock.Now()
	e.scenarios.Reset()
	e.registry.ResetDefaults(now)
	e.model.Reset()
	e.alarmEng.Reset(ctx)
	e.trends.Reset()
	e.lastTick = time.Time{}
	e.mu.Unlock()

	e.log.Info().Msg("plant state reset")
}

// Health is a point-in-time operational snapshot.
type Health struct {
	Mode         string
	KillSwitch   bool
	ActiveAlarms int
	TrendPoints  int
	Scenario     string
	Ticks        uint64
	Uptime       time.Duration
}

// Health reports the current plant status.
func (e *Engine) Health() Health {
	view := e.registry.Values([]string{tags.GlobalMode, tags.KillSwitch})

	e.mu.Lock()
	ticks := e.ticks
	uptime := e.clock.Now().Sub(e.startedAt)
	e.mu.Unlock()

	h := Health{
		Mode:         tags.ModeName(view[tags.GlobalMode].AsInt()),
		KillSwitch:   view[tags.KillSwitch].AsBool(),
		ActiveAlarms: e.alarmEng.ActiveCount(),
		TrendPoints:  e.trends.Len(),
		Ticks:        ticks,
		Uptime:       uptime,
	}
	if st, ok := e.scenarios.Active(); ok {
		h.Scenario = st.Name
	}
	return h
}
