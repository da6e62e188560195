package scenario

import (
	"errors"
	"testing"
	"time"

	"github.com/birising/OT-honey/internal/tags"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func knownParamStub(key string) bool {
	switch key {
	case "influent.base_flow", "influent.pump_capacity", "influent.cod":
		return true
	}
	return false
}

func newTestManager(t *testing.T) (*Manager, *tags.Registry, *fakeClock) {
	t.Helper()
	start := time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)
	registry, err := tags.NewRegistry(tags.Catalog(tags.DefaultCatalogSize, 1), start)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	defs, err := BuiltinCatalog(CatalogOptions{Registry: registry, KnownParam: knownParamStub})
	if err != nil {
		t.Fatalf("builtin catalog: %v", err)
	}
	clock := &fakeClock{now: start}
	m, err := NewManager(registry, defs, WithClock(clock))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, registry, clock
}

func TestBuiltinCatalog(t *testing.T) {
	m, _, _ := newTestManager(t)

	infos := m.List()
	if len(infos) != 7 {
		t.Fatalf("catalog size = %d, want 7", len(infos))
	}
	want := map[string]time.Duration{
		"storm":             30 * time.Minute,
		"vfd_fault":         10 * time.Minute,
		"ph_calibration":    5 * time.Minute,
		"bypass_risk":       15 * time.Minute,
		"screen_blockage":   10 * time.Minute,
		"do_sensor_failure": 15 * time.Minute,
		"chemical_overdose": 10 * time.Minute,
	}
	for _, info := range infos {
		d, ok := want[info.Name]
		if !ok {
			t.Fatalf("unexpected scenario %q", info.Name)
		}
		if info.Duration != d {
			t.Fatalf("%s duration = %s, want %s", info.Name, info.Duration, d)
		}
	}
}

func TestStartStopLifecycle(t *testing.T) {
	m, _, clock := newTestManager(t)

	st, err := m.Start("vfd_fault")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st.EndsAt != clock.now.Add(10*time.Minute) {
		t.Fatalf("ends_at = %s, want start+10m", st.EndsAt)
	}
	if _, ok := m.Active(); !ok {
		t.Fatalf("scenario not reported active")
	}

	if _, err := m.Start("vfd_fault"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("restart err = %v, want ErrAlreadyRunning", err)
	}

	if _, err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := m.Active(); ok {
		t.Fatalf("scenario still active after stop")
	}
	if _, err := m.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second stop err = %v, want ErrNotRunning", err)
	}
}

func TestStartUnknownScenario(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Start("meteor_strike"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("err = %v, want ErrUnknown", err)
	}
}

func TestTickOverlayAndExpiry(t *testing.T) {
	m, _, clock := newTestManager(t)

	if ov := m.Tick(clock.now); ov.Active() {
		t.Fatalf("idle manager produced overlay %+v", ov)
	}

	if _, err := m.Start("do_sensor_failure"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.advance(time.Second)
	ov := m.Tick(clock.now)
	if len(ov.TagOverrides) != 1 {
		t.Fatalf("override count = %d, want 1", len(ov.TagOverrides))
	}
	if ov.TagOverrides[0].Name != tags.DO301 || ov.TagOverrides[0].Value.AsFloat() != 0.5 {
		t.Fatalf("override = %+v, want DO301.PV=0.5", ov.TagOverrides[0])
	}

	clock.advance(15 * time.Minute)
	if ov := m.Tick(clock.now); ov.Active() {
		t.Fatalf("overlay still active past expiry")
	}
	if _, ok := m.Active(); ok {
		t.Fatalf("scenario still active past expiry")
	}
}

func TestStormRampsParameter(t *testing.T) {
	m, _, clock := newTestManager(t)

	if _, err := m.Start("storm"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if ov := m.Tick(clock.now); ov.Ramp != 0 {
		t.Fatalf("ramp at start = %v, want 0", ov.Ramp)
	}
	clock.advance(150 * time.Second) // half of the 5m ramp
	ov := m.Tick(clock.now)
	if ov.Ramp != 0.5 {
		t.Fatalf("ramp halfway = %v, want 0.5", ov.Ramp)
	}
	if ov.Params["influent.base_flow"] != 35 {
		t.Fatalf("params = %v, want base_flow target 35", ov.Params)
	}
	clock.advance(10 * time.Minute)
	if ov := m.Tick(clock.now); ov.Ramp != 1 {
		t.Fatalf("ramp after window = %v, want 1", ov.Ramp)
	}
}

func TestPreemptRestoresOperatorBaseline(t *testing.T) {
	m, registry, clock := newTestManager(t)

	if err := registry.Set(tags.DoseFeCl3SP, tags.Float(4.0), clock.now); err != nil {
		t.Fatalf("seed setpoint: %v", err)
	}
	if _, err := m.Start("chemical_overdose"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Simulate the tick driver committing the overlay.
	clock.advance(time.Second)
	ov := m.Tick(clock.now)
	if errs := registry.Apply(ov.TagOverrides, clock.now); len(errs) > 0 {
		t.Fatalf("apply overlay: %v", errs)
	}
	if v, _ := registry.Get(tags.DoseFeCl3SP); v.AsFloat() != 9.5 {
		t.Fatalf("setpoint under scenario = %v, want 9.5", v.AsFloat())
	}

	if _, err := m.Start("storm"); err != nil {
		t.Fatalf("preempting start: %v", err)
	}
	if v, _ := registry.Get(tags.DoseFeCl3SP); v.AsFloat() != 4.0 {
		t.Fatalf("setpoint after preempt = %v, want restored 4.0", v.AsFloat())
	}
	if v, _ := registry.Get(tags.PMP501Auto); !v.AsBool() {
		t.Fatalf("PMP501.AUTO not restored to true")
	}
	if st, ok := m.Active(); !ok || st.Name != "storm" {
		t.Fatalf("active = %+v, want storm", st)
	}
}

func TestCatalogValidation(t *testing.T) {
	registry, err := tags.NewRegistry(tags.Catalog(tags.DefaultCatalogSize, 1), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	opts := CatalogOptions{Registry: registry, KnownParam: knownParamStub}

	cases := []struct {
		name string
		yaml string
	}{
		{"unknown param", "scenarios:\n  - name: x\n    duration: 1m\n    params: {bogus.key: 1}\n"},
		{"unknown tag", "scenarios:\n  - name: x\n    duration: 1m\n    overrides:\n      - tag: \"WWTP01:NOPE:X.PV\"\n        value: 1\n"},
		{"bad duration", "scenarios:\n  - name: x\n    duration: soon\n    params: {influent.cod: 1}\n"},
		{"no effect", "scenarios:\n  - name: x\n    duration: 1m\n"},
		{"duplicate", "scenarios:\n  - name: x\n    duration: 1m\n    params: {influent.cod: 1}\n  - name: x\n    duration: 1m\n    params: {influent.cod: 2}\n"},
		{"type mismatch", "scenarios:\n  - name: x\n    duration: 1m\n    overrides:\n      - tag: \"WWTP01:AERATION:BLW201.FAULT\"\n        value: 3.7\n"},
	}
	for _, tc := range cases {
		if _, err := parseCatalog([]byte(tc.yaml), opts); err == nil {
			t.Fatalf("%s: catalog accepted, want error", tc.name)
		}
	}
}
