package sim

// pidController is a positional PID loop with an output bias and
// anti-windup clamping on the integral term.
type pidController struct {
	kp, ki, kd     float64
	bias           float64
	outMin, outMax float64
	integralLimit  float64

	integral float64
	lastErr  float64
}

func (c *pidController) step(setpoint, pv, dt float64) float64 {
	err := setpoint - pv
	c.integral += err * dt
	if c.integral > c.integralLimit {
		c.integral = c.integralLimit
	}
	if c.integral < -c.integralLimit {
		c.integral = -c.integralLimit
	}
	derivative := 0.0
	if dt > 0 {
		derivative = (err - c.lastErr) / dt
	}
	c.lastErr = err

	out := c.bias + c.kp*err + c.ki*c.integral + c.kd*derivative
	if out > c.outMax {
		out = c.outMax
	}
	if out < c.outMin {
		out = c.outMin
	}
	return out
}

func (c *pidController) reset() {
	c.integral = 0
	c.lastErr = 0
}
