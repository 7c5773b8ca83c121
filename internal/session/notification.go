package session

import "time"

const DefaultNotificationDuration = 3 * time.Second

type stopper interface {
	Stop() bool
}

// Notification schedules the hide of the "temperature set" confirmation.
// It is either idle or armed with a deadline. Every Arm bumps a generation;
// an expiry only counts if it carries the current generation, so a hide
// scheduled before a Cancel or a re-Arm is ignored.
//
// Not safe for concurrent use: the machine loop is the only caller, and the
// expire callback runs on a timer goroutine that must hand the generation
// back to that loop.
type Notification struct {
	duration  time.Duration
	expire    func(gen uint64)
	afterFunc func(time.Duration, func()) stopper
	now       func() time.Time

	gen      uint64
	armed    bool
	deadline time.Time
	timer    stopper
}

func NewNotification(d time.Duration, expire func(gen uint64)) *Notification {
	if d <= 0 {
		d = DefaultNotificationDuration
	}
	return &Notification{
		duration: d,
		expire:   expire,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		now: time.Now,
	}
}

// Arm cancels any outstanding hide and schedules a new one.
func (n *Notification) Arm() {
	n.Cancel()
	n.gen++
	gen := n.gen
	n.armed = true
	n.deadline = n.now().Add(n.duration)
	n.timer = n.afterFunc(n.duration, func() { n.expire(gen) })
}

// Cancel clears a pending hide without firing it.
func (n *Notification) Cancel() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.armed = false
	n.deadline = time.Time{}
}

// Expire consumes a fired timer. It returns true only for the hide that is
// currently armed; stale or repeated firings return false.
func (n *Notification) Expire(gen uint64) bool {
	if !n.armed || gen != n.gen {
		return false
	}
	n.armed = false
	n.deadline = time.Time{}
	n.timer = nil
	return true
}

func (n *Notification) Armed() bool {
	return n.armed
}

// Deadline returns when the armed hide is due.
func (n *Notification) Deadline() (time.Time, bool) {
	return n.deadline, n.armed
}
