package sim

import (
	"testing"
	"time"

	"github.com/birising/OT-honey/internal/tags"
)

var modelStart = time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, seed int64) (*Model, *tags.Registry) {
	t.Helper()
	registry, err := tags.NewRegistry(tags.Catalog(tags.DefaultCatalogSize, seed), modelStart)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	model, err := NewModel(registry, DefaultParams(), seed)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return model, registry
}

func stepModel(t *testing.T, m *Model, r *tags.Registry, at time.Time) {
	t.Helper()
	if errs := r.Apply(m.Step(at, 1.0, nil, 0), at); len(errs) != 0 {
		t.Fatalf("apply: %v", errs[0].Err)
	}
}

func getF(t *testing.T, r *tags.Registry, name string) float64 {
	t.Helper()
	v, err := r.Get(name)
	if err != nil {
		t.Fatalf("Get(%s): %v", name, err)
	}
	return v.AsFloat()
}

func getB(t *testing.T, r *tags.Registry, name string) bool {
	t.Helper()
	v, err := r.Get(name)
	if err != nil {
		t.Fatalf("Get(%s): %v", name, err)
	}
	return v.AsBool()
}

func TestNewModelRequiresRegistry(t *testing.T) {
	if _, err := NewModel(nil, DefaultParams(), 1); err == nil {
		t.Fatal("expected error for nil registry")
	}
}

func TestStepDoesNotTouchRegistry(t *testing.T) {
	model, registry := newTestModel(t, 1)

	updates := model.Step(modelStart, 1.0, nil, 0)
	if len(updates) == 0 {
		t.Fatal("expected a non-empty update batch")
	}
	// Nothing lands until the caller commits the batch.
	if got := getF(t, registry, tags.QIn); got != 15.0 {
		t.Fatalf("QIn = %v before commit, want default 15.0", got)
	}
}

func TestDailyFactorProfile(t *testing.T) {
	cases := []struct {
		hour int
		want float64
	}{
		{3, 0.7},
		{7, 1.4},
		{12, 1.0},
		{19, 1.3},
		{22, 1.0},
	}
	for _, tc := range cases {
		if got := dailyFactor(tc.hour); got != tc.want {
			t.Fatalf("dailyFactor(%d) = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestParamOverridesRamp(t *testing.T) {
	base := DefaultParams()

	if got := base.withOverrides(map[string]float64{ParamBaseInflow: 35}, 0).BaseInflow; got != 15.0 {
		t.Fatalf("ramp 0: BaseInflow = %v, want 15", got)
	}
	if got := base.withOverrides(map[string]float64{ParamBaseInflow: 35}, 0.5).BaseInflow; got != 25.0 {
		t.Fatalf("ramp 0.5: BaseInflow = %v, want 25", got)
	}
	if got := base.withOverrides(map[string]float64{ParamBaseInflow: 35}, 1).BaseInflow; got != 35.0 {
		t.Fatalf("ramp 1: BaseInflow = %v, want 35", got)
	}
	// Ramp beyond the window clamps to the target, never overshoots.
	if got := base.withOverrides(map[string]float64{ParamBaseInflow: 35}, 2).BaseInflow; got != 35.0 {
		t.Fatalf("ramp 2: BaseInflow = %v, want 35", got)
	}
	// Unknown keys are ignored.
	same := base.withOverrides(map[string]float64{"aeration.magic": 99}, 1)
	if same != base {
		t.Fatalf("unknown key changed params: %+v", same)
	}
}

func TestKnownParamKeys(t *testing.T) {
	for _, key := range []string{ParamBaseInflow, ParamPumpCapacity, ParamInfluentCOD} {
		if !KnownParam(key) {
			t.Fatalf("KnownParam(%s) = false", key)
		}
	}
	if KnownParam("influent.unheard_of") {
		t.Fatal("KnownParam accepted an unknown key")
	}
}

func TestMaintenanceModeStopsEquipment(t *testing.T) {
	model, registry := newTestModel(t, 1)
	if err := registry.Set(tags.GlobalMode, tags.Int(tags.ModeMaintenance), modelStart); err != nil {
		t.Fatalf("Set: %v", err)
	}

	stepModel(t, model, registry, modelStart.Add(time.Second))

	for _, name := range []string{
		tags.PMP101FB, tags.PMP301FB, tags.PMP401FB,
		tags.PMP402FB, tags.PMP501FB, tags.BLW201FB, tags.SCR101FB,
	} {
		if getB(t, registry, name) {
			t.Fatalf("%s still true in MAINTENANCE", name)
		}
	}
	for _, name := range stopCommands {
		if getB(t, registry, name) {
			t.Fatalf("%s still commanded in MAINTENANCE", name)
		}
	}
	// Instrumentation keeps reading even with the plant stopped.
	if getF(t, registry, tags.QIn) <= 0 {
		t.Fatal("influent measurement stopped updating")
	}
}

func TestKillSwitchForcesMaintenance(t *testing.T) {
	model, registry := newTestModel(t, 1)
	if err := registry.Set(tags.KillSwitch, tags.Bool(true), modelStart); err != nil {
		t.Fatalf("Set: %v", err)
	}

	stepModel(t, model, registry, modelStart.Add(time.Second))

	mode, err := registry.Get(tags.GlobalMode)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if mode.AsInt() != tags.ModeMaintenance {
		t.Fatalf("mode = %d after kill switch, want MAINTENANCE", mode.AsInt())
	}
	if getB(t, registry, tags.BLW201FB) {
		t.Fatal("blower still running after kill switch")
	}
}

func TestValveTravelsAtSlewRate(t *testing.T) {
	model, registry := newTestModel(t, 1)
	if err := registry.Set(tags.VLV101CMD, tags.Float(0), modelStart); err != nil {
		t.Fatalf("Set: %v", err)
	}

	at := modelStart
	at = at.Add(time.Second)
	stepModel(t, model, registry, at)
	if got := getF(t, registry, tags.VLV101Pos); got != 80.0 {
		t.Fatalf("position after 1s = %v, want 80 (20%%/s travel)", got)
	}

	for i := 0; i < 6; i++ {
		at = at.Add(time.Second)
		stepModel(t, model, registry, at)
	}
	if got := getF(t, registry, tags.VLV101Pos); got != 0.0 {
		t.Fatalf("position after full travel = %v, want 0", got)
	}
}

func TestBlowerFeedbackBlockedByFault(t *testing.T) {
	model, registry := newTestModel(t, 1)
	if err := registry.Set(tags.BLW201Fault, tags.Bool(true), modelStart); err != nil {
		t.Fatalf("Set: %v", err)
	}

	stepModel(t, model, registry, modelStart.Add(time.Second))

	if getB(t, registry, tags.BLW201FB) {
		t.Fatal("feedback true while faulted")
	}
	if getB(t, registry, tags.BLW201CMD) {
		t.Fatal("command not dropped on fault")
	}
	// A trip with no modeled overload holds until the cool-down elapses.
	if !getB(t, registry, tags.BLW201Fault) {
		t.Fatal("fault released before the reset period")
	}
}

func TestScreenFeedbackBlockedWhileFaulted(t *testing.T) {
	model, registry := newTestModel(t, 1)
	now := modelStart
	if err := registry.Set(tags.SCR101Fault, tags.Bool(true), now); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := registry.Set(tags.SCR101CMD, tags.Bool(true), now); err != nil {
		t.Fatalf("Set: %v", err)
	}

	stepModel(t, model, registry, now.Add(time.Second))

	if getB(t, registry, tags.SCR101FB) {
		t.Fatal("screen feedback true while faulted")
	}
	// At commissioning pressure the blockage latch releases immediately.
	if getB(t, registry, tags.SCR101Fault) {
		t.Fatal("screen fault held below the release pressure")
	}
}

func TestScreenAutoCleanCycle(t *testing.T) {
	model, registry := newTestModel(t, 1)
	if err := registry.Set(tags.SCR101DP, tags.Float(0.36), modelStart); err != nil {
		t.Fatalf("Set: %v", err)
	}

	at := modelStart.Add(time.Second)
	stepModel(t, model, registry, at)
	if !getB(t, registry, tags.SCR101CMD) || !getB(t, registry, tags.SCR101FB) {
		t.Fatal("auto-clean did not start above the trigger pressure")
	}

	start := getF(t, registry, tags.SCR101DP)
	for i := 0; i < 35; i++ {
		at = at.Add(time.Second)
		stepModel(t, model, registry, at)
	}
	if getB(t, registry, tags.SCR101CMD) {
		t.Fatal("auto-clean still running after its cycle time")
	}
	if got := getF(t, registry, tags.SCR101DP); got >= start {
		t.Fatalf("differential pressure did not drop during cleaning: %v -> %v", start, got)
	}
}
