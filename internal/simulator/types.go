package simulator

import "fmt"

// Mode selects which way the simulated device may drive the temperature.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeHeat
	ModeCool
	ModeFan
	ModeAuto
)

func (m Mode) Valid() bool {
	return m == ModeHeat || m == ModeCool || m == ModeFan || m == ModeAuto
}

func (m Mode) String() string {
	switch m {
	case ModeHeat:
		return "heat"
	case ModeCool:
		return "cool"
	case ModeFan:
		return "fan"
	case ModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "heat":
		return ModeHeat, nil
	case "cool":
		return ModeCool, nil
	case "fan":
		return ModeFan, nil
	case "auto":
		return ModeAuto, nil
	default:
		return ModeUnknown, fmt.Errorf("invalid mode: %q", s)
	}
}

// State is what the simulated device exposes on its pins.
type State struct {
	Setpoint    float64
	SetpointMin float64
	SetpointMax float64
	Mode        Mode
	Ambient     float64
}
