package session

import (
	"fmt"
	"math"
)

// UnknownTemperature is shown until the first successful read from the device.
const UnknownTemperature = math.MinInt16

// Mode is the top-level session state.
type Mode int

const (
	ModeCurrent Mode = iota
	ModeSetting
)

func (m Mode) String() string {
	switch m {
	case ModeCurrent:
		return "current"
	case ModeSetting:
		return "setting"
	default:
		return "unknown"
	}
}

// EditSubMode is only meaningful while the session is in ModeSetting.
type EditSubMode int

const (
	EditNone EditSubMode = iota
	EditAdjusting
	EditTimer
)

func (e EditSubMode) String() string {
	switch e {
	case EditNone:
		return "none"
	case EditAdjusting:
		return "adjusting"
	case EditTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Commit is the set-point and timer captured when an edit cycle ends.
type Commit struct {
	SetTemperature int
	TimerHours     int
}

type Snapshot struct {
	DisplayTemperature  int
	SetTemperature      int
	ActualTemperature   int
	Mode                Mode
	EditSubMode         EditSubMode
	TimerHours          int
	NotificationVisible bool
	// PendingSetpoint is set when the device acknowledged a new set-point
	// but has not reached it yet.
	PendingSetpoint   bool
	ConnectivityError bool
	LastCommit        *Commit
}

// View is the rendering case a presentation adapter must handle.
type View int

const (
	ViewCurrent View = iota
	ViewAdjusting
	ViewTimer
	ViewConnectivityError
)

func (v View) String() string {
	switch v {
	case ViewCurrent:
		return "current"
	case ViewAdjusting:
		return "adjusting"
	case ViewTimer:
		return "timer"
	case ViewConnectivityError:
		return "connectivity_error"
	default:
		return "unknown"
	}
}

// View maps the snapshot onto exactly one rendering case.
func (s Snapshot) View() View {
	if s.ConnectivityError {
		return ViewConnectivityError
	}
	if s.Mode == ModeCurrent {
		return ViewCurrent
	}
	if s.EditSubMode == EditTimer {
		return ViewTimer
	}
	return ViewAdjusting
}

// Known reports whether a temperature value came from the device.
func Known(t int) bool {
	return t != UnknownTemperature
}

// IntentKind enumerates what the presentation layer may ask for.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentBeginEdit
	IntentAdjust
	IntentChooseTimer
	IntentChooseAdjust
	IntentSetTimerHours
	IntentDone
)

func (k IntentKind) String() string {
	switch k {
	case IntentBeginEdit:
		return "begin_edit"
	case IntentAdjust:
		return "adjust"
	case IntentChooseTimer:
		return "choose_timer"
	case IntentChooseAdjust:
		return "choose_adjust"
	case IntentSetTimerHours:
		return "set_timer_hours"
	case IntentDone:
		return "done"
	default:
		return "unknown"
	}
}

func ParseIntentKind(s string) (IntentKind, error) {
	switch s {
	case "begin_edit":
		return IntentBeginEdit, nil
	case "adjust":
		return IntentAdjust, nil
	case "choose_timer":
		return IntentChooseTimer, nil
	case "choose_adjust":
		return IntentChooseAdjust, nil
	case "set_timer_hours", "timer_hours":
		return IntentSetTimerHours, nil
	case "done":
		return IntentDone, nil
	default:
		return IntentUnknown, fmt.Errorf("%w: %q", ErrUnknownIntent, s)
	}
}

// Intent is one user action. Value carries the adjust direction or the timer hours.
type Intent struct {
	Kind  IntentKind
	Value int
}
