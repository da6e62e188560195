// Package gate enforces the write surface of the plant: which tags an
// operator may set, with what types and engineering limits, and the
// side effects a write carries.
package gate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/birising/OT-honey/internal/tags"
)

// Limits bound an analog write in engineering units.
type Limits struct {
	Min, Max float64
}

// writable is the full whitelist. Everything else is read-only over
// every protocol surface.
var writable = map[string]struct{}{
	tags.PMP101CMD:     {},
	tags.PMP101Auto:    {},
	tags.BLW201CMD:     {},
	tags.BLW201Auto:    {},
	tags.BLW201SP:      {},
	tags.DO301SP:       {},
	tags.DO301CtrlEn:   {},
	tags.DO301CtrlMode: {},
	tags.PMP401CMD:     {},
	tags.PMP401Auto:    {},
	tags.PMP402CMD:     {},
	tags.PMP402Auto:    {},
	tags.SCR101CMD:     {},
	tags.SCR101Auto:    {},
	tags.PMP301CMD:     {},
	tags.PMP301Auto:    {},
	tags.PMP501CMD:     {},
	tags.PMP501Auto:    {},
	tags.DoseFeCl3SP:   {},
	tags.VLV101CMD:     {},
	tags.VLV501CMD:     {},
	tags.GlobalMode:    {},
	tags.KillSwitch:    {},
}

// analogLimits holds range checks for the writable analog tags.
var analogLimits = map[string]Limits{
	tags.DO301SP:     {Min: 1.0, Max: 5.0},
	tags.BLW201SP:    {Min: 0, Max: 100},
	tags.DoseFeCl3SP: {Min: 0, Max: 10},
	tags.VLV101CMD:   {Min: 0, Max: 100},
	tags.VLV501CMD:   {Min: 0, Max: 100},
}

// Writable reports whether name is on the write whitelist.
func Writable(name string) bool {
	_, ok := writable[name]
	return ok
}

// WritableTags returns the whitelist sorted by name.
func WritableTags() []string {
	out := make([]string, 0, len(writable))
	for name := range writable {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RangeFor returns the engineering limits for a writable analog tag.
func RangeFor(name string) (Limits, bool) {
	lim, ok := analogLimits[name]
	return lim, ok
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Gate validates operator writes and commits them to the registry.
type Gate struct {
	registry *tags.Registry
	clock    Clock
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// New builds a write gate over the registry.
func New(registry *tags.Registry, opts ...Option) (*Gate, error) {
	if registry == nil {
		return nil, errors.New("gate: registry is required")
	}
	g := &Gate{registry: registry, clock: systemClock{}}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Write validates one operator write and commits it. Raw values arrive
// as decoded JSON or protocol payloads; they are coerced to the tag's
// declared type, never converted across classes. Engaging the kill
// switch also drops the plant into MAINTENANCE in the same commit.
func (g *Gate) Write(name string, raw any) (tags.Value, error) {
	if !Writable(name) {
		return tags.Value{}, fmt.Errorf("%w: %s", ErrNotWritable, name)
	}
	meta, err := g.registry.Meta(name)
	if err != nil {
		return tags.Value{}, err
	}
	value, err := tags.Coerce(meta.Type, raw)
	if err != nil {
		return tags.Value{}, err
	}
	if err := checkLimits(name, value); err != nil {
		return tags.Value{}, err
	}

	batch := []tags.Update{{Name: name, Value: value}}
	if name == tags.KillSwitch && value.AsBool() {
		batch = append(batch, tags.Update{Name: tags.GlobalMode, Value: tags.Int(tags.ModeMaintenance)})
	}
	if errs := g.registry.Apply(batch, g.clock.Now()); len(errs) > 0 {
		return tags.Value{}, errs[0].Err
	}
	return value, nil
}

// SetMode switches the plant operating mode.
func (g *Gate) SetMode(mode int64) error {
	_, err := g.Write(tags.GlobalMode, mode)
	return err
}

// SetKillSwitch engages or releases the emergency stop. Releasing it
// leaves the plant in MAINTENANCE until the mode is set back explicitly.
func (g *Gate) SetKillSwitch(engaged bool) error {
	_, err := g.Write(tags.KillSwitch, engaged)
	return err
}

func checkLimits(name string, value tags.Value) error {
	if name == tags.GlobalMode {
		if !tags.ValidMode(value.AsInt()) {
			return fmt.Errorf("%w: mode %d not in {0,1,2}", ErrOutOfRange, value.AsInt())
		}
		return nil
	}
	lim, ok := analogLimits[name]
	if !ok {
		return nil
	}
	v := value.AsFloat()
	if v < lim.Min || v > lim.Max {
		return fmt.Errorf("%w: %s=%g outside [%g, %g]", ErrOutOfRange, name, v, lim.Min, lim.Max)
	}
	return nil
}
