package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/thermoremote/cmd/app"
	httpctrl "github.com/Agrid-Dev/thermoremote/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/thermoremote/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/thermoremote/internal/controllers/mqtt"
	"github.com/Agrid-Dev/thermoremote/internal/gateway"
	"github.com/Agrid-Dev/thermoremote/internal/logger"
	"github.com/Agrid-Dev/thermoremote/internal/session"
)

func main() {
	var configPath string
	var printConfig bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective config and exit")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if printConfig {
		b, err := cfg.Dump()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(b)
		return
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
	dev, err := cfg.RemoteDevice()
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	gw, err := gateway.New(dev, cfg.Device.Timeout, log)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	machine := session.New(gw, cfg.SessionConfig(), log)
	poller := session.NewPoller(gw, machine, log)

	// Controllers are built before anything starts.
	var runners []func(context.Context) error

	if c := cfg.Controllers.HTTP; c.Enabled {
		runners = append(runners, httpctrl.New(machine, c.Addr, dev.ID, log).Run)
	}

	if c := cfg.Controllers.MQTT; c.Enabled {
		ctrl, err := mqttctrl.New(machine, mqttctrl.Config{
			DeviceID:       dev.ID,
			BrokerURL:      c.BrokerURL,
			ClientID:       c.ClientID,
			BaseTopic:      c.BaseTopic,
			QoS:            c.QoS,
			RetainSnapshot: c.RetainSnapshot,
			Username:       c.Username,
			Password:       c.Password,
		}, log)
		if err != nil {
			return err
		}
		runners = append(runners, ctrl.Run)
	}

	if c := cfg.Controllers.MODBUS; c.Enabled {
		ctrl, err := modbusctrl.New(machine, modbusctrl.Config{
			DeviceID: dev.ID,
			Addr:     c.Addr,
			UnitID:   c.UnitID,
		}, log)
		if err != nil {
			return err
		}
		runners = append(runners, ctrl.Run)
	}

	if len(runners) == 0 {
		log.Warnw("no controller enabled, the session is only visible in logs")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return machine.Run(ctx) })
	g.Go(func() error { return poller.Run(ctx, cfg.Session.PollInterval) })
	for _, start := range runners {
		g.Go(func() error { return start(ctx) })
	}

	log.Infow("thermoremote started",
		"device_id", dev.ID,
		"device_url", dev.BaseURL,
		"poll_interval", cfg.Session.PollInterval,
	)
	return g.Wait()
}
