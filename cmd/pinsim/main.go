package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/thermoremote/cmd/app"
	"github.com/Agrid-Dev/thermoremote/internal/device"
	"github.com/Agrid-Dev/thermoremote/internal/logger"
	"github.com/Agrid-Dev/thermoremote/internal/simulator"
)

// pinsim serves a simulated heating device over the pin protocol, using the
// device and simulator sections of the thermoremote config.
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Get(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config, log *logger.Logger) error {
	state, err := cfg.SimulatorState()
	if err != nil {
		return err
	}
	dev, err := simulator.NewDevice(state, cfg.RegulatorParams(), cfg.HeatLossParams())
	if err != nil {
		return err
	}

	actualPin, setPin := device.Pin(cfg.Device.ActualPin), device.Pin(cfg.Device.SetPin)
	srv := &http.Server{
		Addr:              cfg.Simulator.Addr,
		Handler:           simulator.NewHandler(dev, cfg.Device.Token, actualPin, setPin, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dev.Run(ctx, cfg.Simulator.Interval) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})

	log.Infow("pin simulator listening",
		"addr", cfg.Simulator.Addr,
		"token", cfg.Device.Token,
		"actual_pin", actualPin,
		"set_pin", setPin,
	)
	return g.Wait()
}
