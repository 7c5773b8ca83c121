package session

import "errors"

var (
	ErrConnectivityLost  = errors.New("device connectivity lost")
	ErrInvalidTransition = errors.New("intent not allowed in current state")
	ErrInvalidDirection  = errors.New("adjust direction must be +1 or -1")
	ErrInvalidTimerHours = errors.New("timer hours must not be negative")
	ErrUnknownIntent     = errors.New("unknown intent")
	ErrStopped           = errors.New("session stopped")
)
