package simulator

import "errors"

var (
	ErrInvalidMode                  = errors.New("invalid mode")
	ErrInvalidMinMax                = errors.New("invalid min/max setpoints")
	ErrSetpointOutOfRange           = errors.New("setpoint out of range")
	ErrInvalidRegulatorHysteresis   = errors.New("trigger hysteresis must be greater than target hysteresis")
	ErrInvalidRegulatorCoefficients = errors.New("regulator PID coefficients must be greater or equal to zero")
	ErrNegativeHeatLossCoefficient  = errors.New("heat loss coefficient must be greater or equal to zero")
)
