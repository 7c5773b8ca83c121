package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Agrid-Dev/thermoremote/internal/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	active bool
	actual []int
	set    []int
}

func (s *recordingSink) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *recordingSink) ReportActual(_ context.Context, v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actual = append(s.actual, v)
}

func (s *recordingSink) ReportSet(_ context.Context, v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = append(s.set, v)
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actual), len(s.set)
}

func TestTickReportsBothReadings(t *testing.T) {
	sink := &recordingSink{active: true}
	NewPoller(newFakeGateway(68, 70), sink, logger.Nop()).Tick(context.Background())

	if len(sink.actual) != 1 || sink.actual[0] != 68 {
		t.Fatalf("actual = %v", sink.actual)
	}
	if len(sink.set) != 1 || sink.set[0] != 70 {
		t.Fatalf("set = %v", sink.set)
	}
}

func TestTickSkippedWhenInactive(t *testing.T) {
	sink := &recordingSink{active: false}
	NewPoller(newFakeGateway(68, 70), sink, logger.Nop()).Tick(context.Background())

	if a, s := sink.counts(); a != 0 || s != 0 {
		t.Fatalf("expected no readings, got %d/%d", a, s)
	}
}

func TestTickPartialFailure(t *testing.T) {
	tests := []struct {
		name       string
		actualErr  error
		setErr     error
		wantActual int
		wantSet    int
	}{
		{"actual fails", errors.New("timeout"), nil, 0, 1},
		{"set fails", nil, errors.New("timeout"), 1, 0},
		{"both fail", errors.New("timeout"), errors.New("timeout"), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway(68, 70)
			gw.actualErr = tt.actualErr
			gw.setErr = tt.setErr
			sink := &recordingSink{active: true}
			NewPoller(gw, sink, logger.Nop()).Tick(context.Background())

			a, s := sink.counts()
			if a != tt.wantActual || s != tt.wantSet {
				t.Fatalf("got %d/%d readings, want %d/%d", a, s, tt.wantActual, tt.wantSet)
			}
		})
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	sink := &recordingSink{active: true}
	p := NewPoller(newFakeGateway(68, 70), sink, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, 5*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a, _ := sink.counts(); a >= 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if a, _ := sink.counts(); a < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", a)
	}
}

func TestPollerWithMachineReconciles(t *testing.T) {
	gw := newFakeGateway(60, 62)
	m, ctx := startMachine(t, gw, Config{})
	go func() { _ = NewPoller(gw, m, logger.Nop()).Run(ctx, 5*time.Millisecond) }()

	waitFor(t, m, "first reading", func(s Snapshot) bool { return s.ActualTemperature == 60 })

	gw.setValues(61, 62)
	s := waitFor(t, m, "reconciled", func(s Snapshot) bool { return s.ActualTemperature == 61 })
	if s.DisplayTemperature != 61 || s.SetTemperature != 62 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}
