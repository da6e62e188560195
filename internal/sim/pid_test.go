package sim

import (
	"math"
	"testing"
)

func TestPIDSaturatesAtOutputLimits(t *testing.T) {
	c := defaultDOPID()

	if out := c.step(5.0, 0.0, 1.0); out != c.outMax {
		t.Fatalf("large error output = %v, want saturated %v", out, c.outMax)
	}
	c.reset()
	if out := c.step(0.0, 5.0, 1.0); out != c.outMin {
		t.Fatalf("large negative error output = %v, want saturated %v", out, c.outMin)
	}
}

func TestPIDIntegralWindupClamped(t *testing.T) {
	c := defaultDOPID()
	for i := 0; i < 1000; i++ {
		c.step(5.0, 0.0, 1.0)
	}
	if c.integral != c.integralLimit {
		t.Fatalf("integral = %v, want clamped at %v", c.integral, c.integralLimit)
	}
	// Recovery must not have to unwind more than the clamp.
	c.step(0.0, 5.0, 1.0)
	if c.integral >= c.integralLimit {
		t.Fatalf("integral did not move off the clamp: %v", c.integral)
	}
}

func TestPIDZeroDtSkipsDerivative(t *testing.T) {
	c := defaultDOPID()
	out := c.step(3.0, 2.0, 0)
	if math.IsNaN(out) || math.IsInf(out, 0) {
		t.Fatalf("dt=0 output = %v", out)
	}
}

func TestPIDDrivesPlantTowardSetpoint(t *testing.T) {
	c := defaultDOPID()

	// Crude aeration response: DO chases 2 + speed/50 like the model.
	do := 0.5
	for i := 0; i < 900; i++ {
		speed := c.step(2.5, do, 1.0)
		target := 2.0 + speed/100.0*2.0
		if do < target {
			do = math.Min(target, do+0.1)
		} else {
			do = math.Max(target-0.5, do-0.03)
		}
	}
	if math.Abs(do-2.5) > 0.5 {
		t.Fatalf("DO settled at %v, want within 0.5 of setpoint 2.5", do)
	}
}
