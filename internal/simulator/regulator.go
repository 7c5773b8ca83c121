package simulator

import "time"

type RegulatorParams struct {
	Kp                float64
	Ki                float64
	Kd                float64
	TriggerHysteresis float64 // distance from the setpoint that starts heating or cooling
	TargetHysteresis  float64 // overshoot past the setpoint that stops it
}

func (p RegulatorParams) Validate() error {
	if p.TargetHysteresis > p.TriggerHysteresis {
		return ErrInvalidRegulatorHysteresis
	}
	if p.Kp < 0 || p.Ki < 0 || p.Kd < 0 {
		return ErrInvalidRegulatorCoefficients
	}
	return nil
}

// Regulator is a PID loop gated by hysteresis: it only acts once the
// ambient temperature drifts past the trigger band, and stops once the
// target band is crossed.
type Regulator struct {
	params    RegulatorParams
	prevError float64
	integral  float64
	heating   bool
	cooling   bool
}

func NewRegulator(params RegulatorParams) *Regulator {
	return &Regulator{params: params}
}

func (r *Regulator) activate(setpoint, ambient float64, mode Mode) {
	if mode == ModeFan {
		r.heating, r.cooling = false, false
		return
	}
	canHeat := mode == ModeHeat || mode == ModeAuto
	canCool := mode == ModeCool || mode == ModeAuto

	switch {
	case canHeat && !r.heating && ambient < setpoint-r.params.TriggerHysteresis:
		r.heating, r.cooling = true, false
		r.integral, r.prevError = 0, 0
	case canCool && !r.cooling && ambient > setpoint+r.params.TriggerHysteresis:
		r.heating, r.cooling = false, true
		r.integral, r.prevError = 0, 0
	}

	if r.heating && ambient >= setpoint+r.params.TargetHysteresis {
		r.heating = false
	} else if r.cooling && ambient <= setpoint-r.params.TargetHysteresis {
		r.cooling = false
	}
}

func (r *Regulator) target(setpoint float64) float64 {
	switch {
	case r.heating:
		return setpoint + r.params.TargetHysteresis
	case r.cooling:
		return setpoint - r.params.TargetHysteresis
	default:
		return setpoint
	}
}

// Update returns the ambient temperature after dt of regulation.
func (r *Regulator) Update(setpoint, ambient float64, mode Mode, dt time.Duration) float64 {
	r.activate(setpoint, ambient, mode)
	if !r.heating && !r.cooling {
		return ambient
	}
	if dt <= 0 {
		return ambient
	}

	e := r.target(setpoint) - ambient
	r.integral += e * dt.Seconds()
	derivative := (e - r.prevError) / dt.Seconds()
	r.prevError = e

	return ambient + r.params.Kp*e + r.params.Ki*r.integral + r.params.Kd*derivative
}

// Active reports whether the device is currently heating or cooling.
func (r *Regulator) Active() (heating, cooling bool) {
	return r.heating, r.cooling
}
