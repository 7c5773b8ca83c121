package session

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/Agrid-Dev/thermoremote/internal/logger"
)

// DefaultSetpoint seeds an edit cycle started before the device reported anything.
const DefaultSetpoint = 69

// Gateway is the device access the machine and the poller need.
type Gateway interface {
	ReadActualTemperature(ctx context.Context) (int, error)
	ReadSetTemperature(ctx context.Context) (int, error)
	WriteSetTemperature(ctx context.Context, value int) error
	CheckConnectivity(ctx context.Context) bool
}

type Config struct {
	NotificationDuration time.Duration
	DefaultSetpoint      int
}

// Machine owns the session model. Every mutation happens on the goroutine
// running Run; callers talk to it through events.
type Machine struct {
	gw  Gateway
	cfg Config
	log *logger.Logger

	events  chan any
	stopped chan struct{}

	// loop-owned
	s            Snapshot
	timerChanged bool
	notify       *Notification

	mu      sync.RWMutex
	pub     Snapshot
	subs    map[int]chan Snapshot
	nextSub int
}

type intentEvent struct {
	intent Intent
	reply  chan intentResult
}

type intentResult struct {
	snap Snapshot
	err  error
}

type pin int

const (
	pinActual pin = iota
	pinSet
)

type readingEvent struct {
	pin   pin
	value int
}

type writeResultEvent struct {
	commit Commit
	err    error
}

type notificationExpired struct {
	gen uint64
}

func New(gw Gateway, cfg Config, log *logger.Logger) *Machine {
	if cfg.NotificationDuration <= 0 {
		cfg.NotificationDuration = DefaultNotificationDuration
	}
	if cfg.DefaultSetpoint == 0 {
		cfg.DefaultSetpoint = DefaultSetpoint
	}
	initial := Snapshot{
		DisplayTemperature: UnknownTemperature,
		SetTemperature:     UnknownTemperature,
		ActualTemperature:  UnknownTemperature,
		Mode:               ModeCurrent,
		EditSubMode:        EditNone,
	}
	m := &Machine{
		gw:      gw,
		cfg:     cfg,
		log:     log.Named("session"),
		events:  make(chan any),
		stopped: make(chan struct{}),
		s:       initial,
		pub:     initial,
		subs:    make(map[int]chan Snapshot),
	}
	m.notify = NewNotification(cfg.NotificationDuration, func(gen uint64) {
		m.post(context.Background(), notificationExpired{gen: gen})
	})
	return m
}

// Run checks connectivity once, then processes events until ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	defer close(m.stopped)

	if !m.gw.CheckConnectivity(ctx) {
		m.log.Errorw("device unreachable at startup, controls disabled", "err", ErrConnectivityLost)
		m.s.ConnectivityError = true
		m.publish()
	}

	for {
		select {
		case <-ctx.Done():
			m.notify.Cancel()
			return ctx.Err()
		case ev := <-m.events:
			m.handle(ctx, ev)
			m.publish()
		}
	}
}

// Dispatch applies one intent and returns the snapshot right after it.
// It blocks until the loop has fully applied the intent.
func (m *Machine) Dispatch(ctx context.Context, in Intent) (Snapshot, error) {
	reply := make(chan intentResult, 1)
	select {
	case m.events <- intentEvent{intent: in, reply: reply}:
	case <-ctx.Done():
		return m.Get(), ctx.Err()
	case <-m.stopped:
		return m.Get(), ErrStopped
	}
	select {
	case r := <-reply:
		return r.snap, r.err
	case <-ctx.Done():
		return m.Get(), ctx.Err()
	}
}

func (m *Machine) BeginEdit(ctx context.Context) (Snapshot, error) {
	return m.Dispatch(ctx, Intent{Kind: IntentBeginEdit})
}

func (m *Machine) Adjust(ctx context.Context, direction int) (Snapshot, error) {
	return m.Dispatch(ctx, Intent{Kind: IntentAdjust, Value: direction})
}

func (m *Machine) ChooseTimer(ctx context.Context) (Snapshot, error) {
	return m.Dispatch(ctx, Intent{Kind: IntentChooseTimer})
}

func (m *Machine) ChooseAdjust(ctx context.Context) (Snapshot, error) {
	return m.Dispatch(ctx, Intent{Kind: IntentChooseAdjust})
}

func (m *Machine) SetTimerHours(ctx context.Context, hours int) (Snapshot, error) {
	return m.Dispatch(ctx, Intent{Kind: IntentSetTimerHours, Value: hours})
}

func (m *Machine) Done(ctx context.Context) (Snapshot, error) {
	return m.Dispatch(ctx, Intent{Kind: IntentDone})
}

// Get returns the last published snapshot.
func (m *Machine) Get() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pub
}

// Subscribe returns a channel receiving the current snapshot and then every
// change. A slow reader only ever sees the latest snapshot.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- m.pub
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Active reports whether polling results are wanted right now.
func (m *Machine) Active() bool {
	s := m.Get()
	return s.Mode == ModeCurrent && !s.ConnectivityError
}

func (m *Machine) ReportActual(ctx context.Context, v int) {
	m.post(ctx, readingEvent{pin: pinActual, value: v})
}

func (m *Machine) ReportSet(ctx context.Context, v int) {
	m.post(ctx, readingEvent{pin: pinSet, value: v})
}

func (m *Machine) post(ctx context.Context, ev any) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	case <-m.stopped:
	}
}

func (m *Machine) handle(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case intentEvent:
		err := m.apply(ctx, e.intent)
		if err != nil {
			m.log.Debugw("intent rejected", "intent", e.intent.Kind.String(), "err", err)
		}
		// Readers see the new snapshot before the caller is released.
		m.publish()
		e.reply <- intentResult{snap: m.s, err: err}
	case readingEvent:
		m.applyReading(e)
	case writeResultEvent:
		m.applyWriteResult(e)
	case notificationExpired:
		if m.notify.Expire(e.gen) {
			m.s.NotificationVisible = false
		}
	}
}

func (m *Machine) apply(ctx context.Context, in Intent) error {
	if m.s.ConnectivityError {
		return ErrConnectivityLost
	}
	switch in.Kind {
	case IntentBeginEdit:
		if m.s.Mode != ModeCurrent {
			return ErrInvalidTransition
		}
		m.beginEdit()
	case IntentAdjust:
		if m.s.Mode != ModeSetting {
			return ErrInvalidTransition
		}
		if in.Value != 1 && in.Value != -1 {
			return ErrInvalidDirection
		}
		m.s.SetTemperature += in.Value
		m.s.DisplayTemperature = m.s.SetTemperature
	case IntentChooseTimer:
		if m.s.Mode != ModeSetting || m.s.EditSubMode != EditAdjusting {
			return ErrInvalidTransition
		}
		m.s.EditSubMode = EditTimer
	case IntentChooseAdjust:
		if m.s.Mode != ModeSetting || m.s.EditSubMode != EditTimer {
			return ErrInvalidTransition
		}
		m.s.EditSubMode = EditAdjusting
	case IntentSetTimerHours:
		if m.s.Mode != ModeSetting || m.s.EditSubMode != EditTimer {
			return ErrInvalidTransition
		}
		if in.Value < 0 {
			return ErrInvalidTimerHours
		}
		m.s.TimerHours = in.Value
		m.timerChanged = true
	case IntentDone:
		if m.s.Mode != ModeSetting {
			return ErrInvalidTransition
		}
		m.commit(ctx)
	default:
		return ErrUnknownIntent
	}
	return nil
}

func (m *Machine) beginEdit() {
	m.notify.Cancel()
	m.s.NotificationVisible = false
	m.s.PendingSetpoint = false
	m.s.Mode = ModeSetting
	m.s.EditSubMode = EditAdjusting
	m.timerChanged = false

	if !Known(m.s.SetTemperature) {
		if Known(m.s.ActualTemperature) {
			m.s.SetTemperature = m.s.ActualTemperature
		} else {
			m.s.SetTemperature = m.cfg.DefaultSetpoint
		}
	}
	m.s.DisplayTemperature = m.s.SetTemperature
}

// commit ends the edit cycle. The write runs on its own goroutine and its
// result comes back as an event; the session is already CURRENT by then.
func (m *Machine) commit(ctx context.Context) {
	if !m.timerChanged {
		m.s.TimerHours = 0
	}
	c := Commit{SetTemperature: m.s.SetTemperature, TimerHours: m.s.TimerHours}
	m.s.LastCommit = &Commit{SetTemperature: c.SetTemperature, TimerHours: c.TimerHours}

	m.s.Mode = ModeCurrent
	m.s.EditSubMode = EditNone
	m.s.PendingSetpoint = false
	m.s.NotificationVisible = true
	m.notify.Arm()

	if Known(m.s.ActualTemperature) {
		m.s.DisplayTemperature = m.s.ActualTemperature
	} else {
		m.s.DisplayTemperature = m.s.SetTemperature
	}

	m.log.Infow("committing set-point", "set_temperature", c.SetTemperature, "timer_hours", c.TimerHours)
	go func() {
		err := m.gw.WriteSetTemperature(ctx, c.SetTemperature)
		m.post(ctx, writeResultEvent{commit: c, err: err})
	}()
}

func (m *Machine) applyWriteResult(e writeResultEvent) {
	if e.err != nil {
		m.log.Warnw("set-point write failed", "set_temperature", e.commit.SetTemperature, "err", e.err)
		return
	}
	if m.s.Mode != ModeCurrent {
		return
	}
	m.s.PendingSetpoint = e.commit.SetTemperature != m.s.ActualTemperature
}

func (m *Machine) applyReading(e readingEvent) {
	if m.s.ConnectivityError || m.s.Mode != ModeCurrent {
		m.log.Debugw("reading discarded", "mode", m.s.Mode.String(), "value", e.value)
		return
	}
	switch e.pin {
	case pinActual:
		m.s.ActualTemperature = e.value
		m.s.DisplayTemperature = e.value
	case pinSet:
		m.s.SetTemperature = e.value
	}
	if m.s.PendingSetpoint && m.s.ActualTemperature == m.s.SetTemperature {
		m.s.PendingSetpoint = false
	}
}

func (m *Machine) publish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reflect.DeepEqual(m.pub, m.s) {
		return
	}
	m.pub = m.s
	for _, ch := range m.subs {
		select {
		case ch <- m.s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- m.s
		}
	}
}
