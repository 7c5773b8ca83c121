package session

import (
	"context"
	"sync"
	"time"

	"github.com/Agrid-Dev/thermoremote/internal/logger"
)

const DefaultPollInterval = 1 * time.Second

// Reader is the read half of the device gateway.
type Reader interface {
	ReadActualTemperature(ctx context.Context) (int, error)
	ReadSetTemperature(ctx context.Context) (int, error)
}

// Sink receives fresh readings. Active gates whole ticks.
type Sink interface {
	Active() bool
	ReportActual(ctx context.Context, v int)
	ReportSet(ctx context.Context, v int)
}

// Poller reconciles the session with the device on a fixed period.
// Failed reads are dropped; the next tick is the retry.
type Poller struct {
	r    Reader
	sink Sink
	log  *logger.Logger
}

func NewPoller(r Reader, sink Sink, log *logger.Logger) *Poller {
	return &Poller{r: r, sink: sink, log: log.Named("poller")}
}

// Run ticks immediately, then every interval, until ctx is done.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs both reads concurrently and reports each success on its own.
func (p *Poller) Tick(ctx context.Context) {
	if !p.sink.Active() {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		v, err := p.r.ReadActualTemperature(ctx)
		if err != nil {
			p.log.Debugw("actual temperature read failed", "err", err)
			return
		}
		p.sink.ReportActual(ctx, v)
	}()
	go func() {
		defer wg.Done()
		v, err := p.r.ReadSetTemperature(ctx)
		if err != nil {
			p.log.Debugw("set temperature read failed", "err", err)
			return
		}
		p.sink.ReportSet(ctx, v)
	}()
	wg.Wait()
}
