package sim

import (
	"context"
	"testing"
	"time"

	"github.com/birising/OT-honey/internal/alarms"
	"github.com/birising/OT-honey/internal/gate"
	"github.com/birising/OT-honey/internal/scenario"
	"github.com/birising/OT-honey/internal/tags"
	"github.com/birising/OT-honey/internal/trend"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// plant wires a full engine over fake time, the way main does over real time.
type plant struct {
	clock     *fakeClock
	registry  *tags.Registry
	gate      *gate.Gate
	scenarios *scenario.Manager
	alarmEng  *alarms.Engine
	trends    *trend.Buffer
	engine    *Engine
}

func newTestPlant(t *testing.T, seed int64) *plant {
	t.Helper()
	// Noon start keeps the diurnal influent factor at 1.0.
	clock := &fakeClock{now: time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)}

	registry, err := tags.NewRegistry(tags.Catalog(tags.DefaultCatalogSize, seed), clock.now)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	model, err := NewModel(registry, DefaultParams(), seed)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	defs, err := scenario.BuiltinCatalog(scenario.CatalogOptions{Registry: registry, KnownParam: KnownParam})
	if err != nil {
		t.Fatalf("BuiltinCatalog: %v", err)
	}
	manager, err := scenario.NewManager(registry, defs, scenario.WithClock(clock))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	alarmEng, err := alarms.NewEngine(alarms.Schedule(), alarms.WithClock(clock))
	if err != nil {
		t.Fatalf("NewEngine(alarms): %v", err)
	}
	trends, err := trend.NewBuffer(trend.Tracked(), 7200)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	g, err := gate.New(registry, gate.WithClock(clock))
	if err != nil {
		t.Fatalf("gate.New: %v", err)
	}
	engine, err := NewEngine(registry, model, manager, alarmEng, trends,
		WithClock(clock), WithInterval(time.Second))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &plant{
		clock:     clock,
		registry:  registry,
		gate:      g,
		scenarios: manager,
		alarmEng:  alarmEng,
		trends:    trends,
		engine:    engine,
	}
}

func (p *plant) tick(n int) {
	ctx := context.Background()
	for i := 0; i < n; i++ {
		p.clock.advance(time.Second)
		p.engine.Tick(ctx)
	}
}

func (p *plant) f(t *testing.T, name string) float64 {
	t.Helper()
	v, err := p.registry.Get(name)
	if err != nil {
		t.Fatalf("Get(%s): %v", name, err)
	}
	return v.AsFloat()
}

func (p *plant) b(t *testing.T, name string) bool {
	t.Helper()
	v, err := p.registry.Get(name)
	if err != nil {
		t.Fatalf("Get(%s): %v", name, err)
	}
	return v.AsBool()
}

func (p *plant) activeCodes() map[string]bool {
	codes := make(map[string]bool)
	for _, a := range p.alarmEng.Active() {
		codes[a.Code] = true
	}
	return codes
}

func TestSteadyStateRemainsHealthy(t *testing.T) {
	p := newTestPlant(t, 42)
	p.tick(300)

	if n := p.alarmEng.ActiveCount(); n != 0 {
		t.Fatalf("steady state raised %d alarms: %v", n, p.activeCodes())
	}
	if do := p.f(t, tags.DO301); do < 2.0 || do > 4.0 {
		t.Fatalf("DO drifted to %v, want 2..4 under control", do)
	}
	if !p.b(t, tags.BLW201FB) {
		t.Fatal("blower stopped in steady state")
	}
	if level := p.f(t, tags.LT101); level < 1.1 || level > 1.5 {
		t.Fatalf("wet well level = %v, want slow fill between 1.1 and 1.5", level)
	}
	if current := p.f(t, tags.BLW201Current); current >= blowerTripCurrent {
		t.Fatalf("blower current %v at or above trip threshold", current)
	}

	h := p.engine.Health()
	if h.Ticks != 300 {
		t.Fatalf("ticks = %d, want 300", h.Ticks)
	}
	if h.Mode != "AUTO" || h.KillSwitch || h.Scenario != "" {
		t.Fatalf("unexpected health: %+v", h)
	}
	if got := p.trends.Len(); got != 300*len(trend.Tracked()) {
		t.Fatalf("trend samples = %d, want %d", got, 300*len(trend.Tracked()))
	}
}

func TestKillSwitchHaltsPlantInOneTick(t *testing.T) {
	p := newTestPlant(t, 42)
	p.tick(5)

	if err := p.gate.SetKillSwitch(true); err != nil {
		t.Fatalf("SetKillSwitch: %v", err)
	}
	p.tick(1)

	mode, err := p.registry.Get(tags.GlobalMode)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mode.AsInt() != tags.ModeMaintenance {
		t.Fatalf("mode = %d, want MAINTENANCE", mode.AsInt())
	}
	for _, name := range []string{
		tags.PMP101FB, tags.PMP301FB, tags.PMP401FB,
		tags.PMP402FB, tags.PMP501FB, tags.BLW201FB, tags.SCR101FB,
	} {
		if p.b(t, name) {
			t.Fatalf("%s still running one tick after kill", name)
		}
	}
	if q := p.f(t, tags.QOut); q != 0 {
		t.Fatalf("effluent flow = %v after kill, want 0", q)
	}
	if !p.activeCodes()["KILL_SWITCH_ACTIVE"] {
		t.Fatal("kill switch alarm not raised on the same tick")
	}

	// Runtime counters freeze with the equipment.
	runtime := p.f(t, tags.BLW201Runtime)
	p.tick(3)
	if got := p.f(t, tags.BLW201Runtime); got != runtime {
		t.Fatalf("runtime advanced while stopped: %v -> %v", runtime, got)
	}
}

func TestManualPumpMovesWaterThroughTrain(t *testing.T) {
	p := newTestPlant(t, 42)

	if _, err := p.gate.Write(tags.PMP101Auto, false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := p.gate.Write(tags.PMP101CMD, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	p.tick(30)

	if !p.b(t, tags.PMP101FB) {
		t.Fatal("influent pump not running in manual")
	}
	if q := p.f(t, tags.QOut); q < 10 || q > 15 {
		t.Fatalf("effluent flow = %v, want roughly 12.6 with the pump at capacity", q)
	}
	if p.b(t, tags.LT101CtrlActive) {
		t.Fatal("level controller claims control of a manual pump")
	}
}

func TestRunsAreDeterministicPerSeed(t *testing.T) {
	a := newTestPlant(t, 7)
	b := newTestPlant(t, 7)
	a.tick(120)
	b.tick(120)

	snapA, snapB := a.registry.Snapshot(), b.registry.Snapshot()
	if len(snapA) != len(snapB) {
		t.Fatalf("snapshot sizes differ: %d vs %d", len(snapA), len(snapB))
	}
	for i := range snapA {
		if snapA[i].Name != snapB[i].Name || snapA[i].Value != snapB[i].Value {
			t.Fatalf("tag %s diverged between identical runs: %v vs %v",
				snapA[i].Name, snapA[i].Value, snapB[i].Value)
		}
	}

	c := newTestPlant(t, 8)
	diverged := false
	for i := 0; i < 5 && !diverged; i++ {
		a.tick(1)
		c.tick(1)
		diverged = a.f(t, tags.QIn) != c.f(t, tags.QIn)
	}
	if !diverged {
		t.Fatal("different seeds produced identical influent noise")
	}
}

func TestStormScenarioRampsInflowAndRestores(t *testing.T) {
	p := newTestPlant(t, 42)

	if _, err := p.scenarios.Start("storm"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.tick(360) // past the 5 minute ramp

	if q := p.f(t, tags.QIn); q < 30 {
		t.Fatalf("influent = %v under storm, want ramped above 30", q)
	}
	if h := p.engine.Health(); h.Scenario != "storm" {
		t.Fatalf("health scenario = %q, want storm", h.Scenario)
	}

	if _, err := p.scenarios.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	p.tick(2)
	if q := p.f(t, tags.QIn); q > 25 {
		t.Fatalf("influent = %v after stop, want dry-weather level", q)
	}
	if _, running := p.scenarios.Active(); running {
		t.Fatal("scenario still active after stop")
	}
}

func TestVFDFaultScenarioTripsBlowerAndRecovers(t *testing.T) {
	p := newTestPlant(t, 42)

	if _, err := p.scenarios.Start("vfd_fault"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.tick(40)

	if !p.b(t, tags.BLW201Fault) {
		t.Fatal("VFD fault not pinned by scenario")
	}
	if p.b(t, tags.BLW201FB) {
		t.Fatal("blower running through a VFD fault")
	}
	if !p.activeCodes()["VFD_FAULT"] {
		t.Fatalf("VFD_FAULT not active, have %v", p.activeCodes())
	}
	if do := p.f(t, tags.DO301); do >= 2.5 {
		t.Fatalf("DO = %v with aeration down, want decay below 2.5", do)
	}

	if _, err := p.scenarios.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// The cool-down elapsed while the blower sat idle, so the latch
	// releases on the next tick and control re-engages.
	p.tick(2)
	if p.b(t, tags.BLW201Fault) {
		t.Fatal("fault latch held after the scenario released it")
	}
	p.tick(120)
	if !p.b(t, tags.BLW201FB) {
		t.Fatal("blower did not restart after recovery")
	}
	if do := p.f(t, tags.DO301); do < 1.5 {
		t.Fatalf("DO = %v after recovery, want above 1.5", do)
	}
	if p.activeCodes()["VFD_FAULT"] || p.activeCodes()["LOW_DO"] {
		t.Fatalf("alarms still active after recovery: %v", p.activeCodes())
	}
}

func TestScreenBlockageScenarioSelfClears(t *testing.T) {
	p := newTestPlant(t, 42)

	if _, err := p.scenarios.Start("screen_blockage"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.tick(12)

	if got := p.f(t, tags.SCR101DP); got != 0.55 {
		t.Fatalf("screen DP = %v, want pinned 0.55", got)
	}
	codes := p.activeCodes()
	if !codes["SCREEN_FAULT"] || !codes["SCREEN_BLOCKAGE"] {
		t.Fatalf("screen alarms missing: %v", codes)
	}

	if _, err := p.scenarios.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	p.tick(60) // auto-clean brings the pressure back down

	if got := p.f(t, tags.SCR101DP); got >= screenFaultRelease {
		t.Fatalf("screen DP = %v, want cleaned below %v", got, screenFaultRelease)
	}
	if p.b(t, tags.SCR101Fault) {
		t.Fatal("screen fault still latched after cleaning")
	}
	codes = p.activeCodes()
	if codes["SCREEN_FAULT"] || codes["SCREEN_BLOCKAGE"] {
		t.Fatalf("screen alarms still active: %v", codes)
	}
}

func TestDOSensorFailureDrivesBlowerToFullSpeed(t *testing.T) {
	p := newTestPlant(t, 42)

	if _, err := p.scenarios.Start("do_sensor_failure"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.tick(120)

	if got := p.f(t, tags.DO301); got != 0.5 {
		t.Fatalf("DO = %v, want pinned sensor reading 0.5", got)
	}
	if !p.activeCodes()["LOW_DO"] {
		t.Fatalf("LOW_DO not active, have %v", p.activeCodes())
	}
	// The controller chases the stuck reading and winds the blower up.
	if speed := p.f(t, tags.BLW201PV); speed < 99 {
		t.Fatalf("blower speed = %v, want driven to full", speed)
	}

	if _, err := p.scenarios.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	p.tick(3)
	if got := p.f(t, tags.DO301); got >= 1.2 {
		t.Fatalf("DO = %v right after release, want gradual rise from 0.5", got)
	}
	p.tick(30)
	if got := p.f(t, tags.DO301); got < 1.5 {
		t.Fatalf("DO = %v, want recovery above 1.5", got)
	}
	if p.activeCodes()["LOW_DO"] {
		t.Fatal("LOW_DO still active after the sensor recovered")
	}
}

func TestChemicalOverdoseScenario(t *testing.T) {
	p := newTestPlant(t, 42)

	// With the chemical valve wide open the pinned setpoint can actually
	// reach the dosing line.
	if _, err := p.gate.Write(tags.VLV501CMD, 100.0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	p.tick(10)

	tankBefore := p.f(t, tags.Tank501Level)
	if _, err := p.scenarios.Start("chemical_overdose"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.tick(60)

	if rate := p.f(t, tags.DoseFeCl3); rate <= 8 {
		t.Fatalf("dosing rate = %v, want driven above 8", rate)
	}
	if !p.activeCodes()["CHEMICAL_OVERDOSE"] {
		t.Fatalf("CHEMICAL_OVERDOSE not active, have %v", p.activeCodes())
	}
	if p.b(t, tags.PMP501Auto) {
		t.Fatal("dosing pump still in auto under the scenario")
	}
	if got := p.f(t, tags.Tank501Level); got >= tankBefore {
		t.Fatalf("tank level %v did not drain from %v", got, tankBefore)
	}

	if _, err := p.scenarios.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := p.f(t, tags.DoseFeCl3SP); got != 2.5 {
		t.Fatalf("setpoint = %v after stop, want operator baseline 2.5", got)
	}
	if !p.b(t, tags.PMP501Auto) {
		t.Fatal("dosing pump not returned to auto")
	}
	p.tick(10)
	if p.activeCodes()["CHEMICAL_OVERDOSE"] {
		t.Fatal("overdose alarm still active after the rate decayed")
	}
}

func TestScenarioExpiresOnItsOwn(t *testing.T) {
	p := newTestPlant(t, 42)

	if _, err := p.scenarios.Start("ph_calibration"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.tick(60)
	if got := p.f(t, tags.PH302); got != 8.5 {
		t.Fatalf("pH = %v under calibration drift, want pinned 8.5", got)
	}

	p.tick(5 * 60) // past the 5 minute duration
	if _, running := p.scenarios.Active(); running {
		t.Fatal("scenario did not expire")
	}
	if got := p.f(t, tags.PH302); got > 7.5 {
		t.Fatalf("pH = %v after expiry, want back near 7.2", got)
	}
}

func TestResetRestoresCommissioningState(t *testing.T) {
	p := newTestPlant(t, 42)
	ctx := context.Background()

	p.tick(50)
	if _, err := p.scenarios.Start("storm"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.gate.SetKillSwitch(true); err != nil {
		t.Fatalf("SetKillSwitch: %v", err)
	}
	p.tick(5)

	p.engine.Reset(ctx)

	mode, err := p.registry.Get(tags.GlobalMode)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mode.AsInt() != tags.ModeAuto {
		t.Fatalf("mode = %d after reset, want AUTO", mode.AsInt())
	}
	if p.b(t, tags.KillSwitch) {
		t.Fatal("kill switch survived reset")
	}
	if got := p.f(t, tags.LT101); got != 1.2 {
		t.Fatalf("wet well level = %v, want commissioning 1.2", got)
	}
	if got := p.f(t, tags.BLW201Runtime); got != 8760.0 {
		t.Fatalf("runtime = %v, want commissioning 8760", got)
	}
	if n := p.alarmEng.ActiveCount(); n != 0 {
		t.Fatalf("%d alarms survived reset", n)
	}
	if p.trends.Len() != 0 {
		t.Fatal("trend buffer not emptied by reset")
	}
	if _, running := p.scenarios.Active(); running {
		t.Fatal("scenario survived reset")
	}

	// The plant runs normally afterwards.
	p.tick(10)
	if n := p.alarmEng.ActiveCount(); n != 0 {
		t.Fatalf("alarms after post-reset restart: %v", p.activeCodes())
	}
}

func TestHealthReflectsScenario(t *testing.T) {
	p := newTestPlant(t, 42)
	p.tick(10)

	h := p.engine.Health()
	if h.Ticks != 10 || h.Scenario != "" || h.ActiveAlarms != 0 {
		t.Fatalf("unexpected health: %+v", h)
	}
	if h.Uptime != 10*time.Second {
		t.Fatalf("uptime = %v, want 10s of fake time", h.Uptime)
	}

	if _, err := p.scenarios.Start("storm"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := p.engine.Health(); h.Scenario != "storm" {
		t.Fatalf("health scenario = %q, want storm", h.Scenario)
	}
}
