package testutil

import (
	"context"
	"sync"

	"github.com/Agrid-Dev/thermoremote/internal/session"
)

// FakeSessionService is a reusable fake implementing ports.SessionService.
// Put ONLY what multiple test packages need here.
type FakeSessionService struct {
	mu sync.Mutex
	S  session.Snapshot

	Intents     []session.Intent
	DispatchErr error

	subs []chan session.Snapshot
}

func NewFakeSessionService() *FakeSessionService {
	return &FakeSessionService{
		S: session.Snapshot{
			DisplayTemperature: 69,
			SetTemperature:     70,
			ActualTemperature:  69,
			Mode:               session.ModeCurrent,
			EditSubMode:        session.EditNone,
		},
	}
}

func (f *FakeSessionService) Get() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.S
}

func (f *FakeSessionService) Dispatch(_ context.Context, in session.Intent) (session.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Intents = append(f.Intents, in)
	return f.S, f.DispatchErr
}

func (f *FakeSessionService) Subscribe() (<-chan session.Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan session.Snapshot, 8)
	ch <- f.S
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

// Publish replaces the snapshot and pushes it to every subscriber.
func (f *FakeSessionService) Publish(s session.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.S = s
	for _, ch := range f.subs {
		ch <- s
	}
}

// LastIntent returns the most recent dispatched intent.
func (f *FakeSessionService) LastIntent() (session.Intent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Intents) == 0 {
		return session.Intent{}, false
	}
	return f.Intents[len(f.Intents)-1], true
}

// DispatchedIntents returns a copy of every dispatched intent, oldest first.
func (f *FakeSessionService) DispatchedIntents() []session.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Intent(nil), f.Intents...)
}
