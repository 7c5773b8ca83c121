package simulator

import (
	"context"
	"sync"
	"time"
)

// Device is an in-memory stand-in for the remote heating device.
type Device struct {
	mu   sync.RWMutex
	s    State
	reg  *Regulator
	loss *HeatLoss
}

func NewDevice(initial State, reg RegulatorParams, loss HeatLossParams) (*Device, error) {
	if err := validateState(initial); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	hl, err := NewHeatLoss(loss)
	if err != nil {
		return nil, err
	}
	return &Device{s: initial, reg: NewRegulator(reg), loss: hl}, nil
}

func validateState(s State) error {
	if !s.Mode.Valid() {
		return ErrInvalidMode
	}
	if s.SetpointMin > s.SetpointMax {
		return ErrInvalidMinMax
	}
	if s.Setpoint < s.SetpointMin || s.Setpoint > s.SetpointMax {
		return ErrSetpointOutOfRange
	}
	return nil
}

func (d *Device) Get() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.s
}

func (d *Device) SetSetpoint(sp float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sp < d.s.SetpointMin || sp > d.s.SetpointMax {
		return ErrSetpointOutOfRange
	}
	d.s.Setpoint = sp
	return nil
}

func (d *Device) SetMode(m Mode) error {
	if !m.Valid() {
		return ErrInvalidMode
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.s.Mode = m
	return nil
}

// Step advances the simulation by dt.
func (d *Device) Step(dt time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := d.reg.Update(d.s.Setpoint, d.s.Ambient, d.s.Mode, dt)
	d.s.Ambient = next + d.loss.Delta(d.s.Ambient, dt)
}

func (d *Device) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Step(interval)
		}
	}
}
