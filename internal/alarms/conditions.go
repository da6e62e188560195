package alarms

import (
	"fmt"
	"time"

	"github.com/birising/OT-honey/internal/tags"
)

// Operator selects the trip comparison of a condition.
type Operator string

const (
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpIsTrue      Operator = "is_true"
	OpOutsideBand Operator = "outside_band"
)

// Condition is one row of the alarm schedule. Delay is the debounce:
// the predicate must hold continuously for at least this long before
// the alarm raises. Zero raises on the same tick.
type Condition struct {
	Code      string
	Tag       string
	Operator  Operator
	Threshold float64
	BandLow   float64 // outside_band only
	BandHigh  float64 // outside_band only
	Delay     time.Duration
	Severity  Severity
	Text      string
}

func (c Condition) validate() error {
	if c.Code == "" {
		return fmt.Errorf("condition without code")
	}
	if c.Tag == "" {
		return fmt.Errorf("condition %s: missing tag", c.Code)
	}
	if c.Delay < 0 {
		return fmt.Errorf("condition %s: negative delay", c.Code)
	}
	switch c.Operator {
	case OpGreaterThan, OpLessThan, OpIsTrue:
		return nil
	case OpOutsideBand:
		if c.BandLow >= c.BandHigh {
			return fmt.Errorf("condition %s: empty band [%g, %g]", c.Code, c.BandLow, c.BandHigh)
		}
		return nil
	default:
		return fmt.Errorf("condition %s: unknown operator %q", c.Code, c.Operator)
	}
}

// tripped reports whether the condition predicate holds for v.
func (c Condition) tripped(v tags.Value) bool {
	switch c.Operator {
	case OpGreaterThan:
		return v.AsFloat() > c.Threshold
	case OpLessThan:
		return v.AsFloat() < c.Threshold
	case OpIsTrue:
		return v.AsBool()
	case OpOutsideBand:
		f := v.AsFloat()
		return f < c.BandLow || f > c.BandHigh
	default:
		return false
	}
}

// Schedule returns the plant alarm schedule.
func Schedule() []Condition {
	return []Condition{
		{Code: "HH_WET_WELL", Tag: tags.LT101, Operator: OpGreaterThan, Threshold: 2.5,
			Delay: 5 * time.Second, Severity: SeverityHigh, Text: "HH Wet Well Level"},
		{Code: "LL_WET_WELL", Tag: tags.LT101, Operator: OpLessThan, Threshold: 0.3,
			Delay: 3 * time.Second, Severity: SeverityMedium, Text: "LL Wet Well Level"},
		{Code: "LOW_DO", Tag: tags.DO301, Operator: OpLessThan, Threshold: 1.5,
			Delay: 10 * time.Second, Severity: SeverityMedium, Text: "Low Dissolved Oxygen"},
		{Code: "HIGH_DO", Tag: tags.DO301, Operator: OpGreaterThan, Threshold: 5.0,
			Delay: 30 * time.Second, Severity: SeverityLow, Text: "High Dissolved Oxygen"},
		{Code: "VFD_FAULT", Tag: tags.BLW201Fault, Operator: OpIsTrue,
			Severity: SeverityHigh, Text: "Blower 201 VFD Fault"},
		{Code: "BLOWER_OVERLOAD", Tag: tags.BLW201Current, Operator: OpGreaterThan, Threshold: 18.0,
			Delay: 5 * time.Second, Severity: SeverityHigh, Text: "Blower 201 Overload"},
		{Code: "HIGH_TURBIDITY", Tag: tags.TUR501, Operator: OpGreaterThan, Threshold: 5.0,
			Delay: 15 * time.Second, Severity: SeverityMedium, Text: "High Effluent Turbidity"},
		{Code: "PH_OUT_RANGE", Tag: tags.PH302, Operator: OpOutsideBand, BandLow: 6.5, BandHigh: 8.0,
			Delay: 20 * time.Second, Severity: SeverityLow, Text: "pH Out of Range"},
		{Code: "HIGH_COD", Tag: tags.COD501, Operator: OpGreaterThan, Threshold: 40.0,
			Delay: time.Minute, Severity: SeverityMedium, Text: "High Effluent COD"},
		{Code: "PUMP_FAULT", Tag: tags.PMP101Fault, Operator: OpIsTrue,
			Severity: SeverityHigh, Text: "Influent Pump Fault"},
		{Code: "SCREEN_BLOCKAGE", Tag: tags.SCR101DP, Operator: OpGreaterThan, Threshold: 0.45,
			Delay: 10 * time.Second, Severity: SeverityMedium, Text: "Screen Blockage"},
		{Code: "SCREEN_FAULT", Tag: tags.SCR101Fault, Operator: OpIsTrue,
			Severity: SeverityHigh, Text: "Screen Fault"},
		{Code: "LOW_CHEMICAL_TANK", Tag: tags.Tank501Level, Operator: OpLessThan, Threshold: 10.0,
			Delay: 30 * time.Second, Severity: SeverityMedium, Text: "Low Chemical Tank Level"},
		{Code: "CHEMICAL_OVERDOSE", Tag: tags.DoseFeCl3, Operator: OpGreaterThan, Threshold: 8.0,
			Delay: 15 * time.Second, Severity: SeverityHigh, Text: "Chemical Overdose"},
		{Code: "KILL_SWITCH_ACTIVE", Tag: tags.KillSwitch, Operator: OpIsTrue,
			Severity: SeverityCritical, Text: "Emergency kill switch activated - all equipment stopped"},
	}
}
