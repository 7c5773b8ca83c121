package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Agrid-Dev/thermoremote/cmd/app"
	"github.com/Agrid-Dev/thermoremote/internal/simulator"
)

// SetpointCommand changes the simulated set-point before the given step.
type SetpointCommand struct {
	Step  int
	Value float64
}

// SimulateDevice steps the pin simulator with the config's regulator and
// heat-loss parameters and writes one CSV row per step.
func SimulateDevice(cfg app.Config, steps int, dt time.Duration, filename string, commands []SetpointCommand) error {
	state, err := cfg.SimulatorState()
	if err != nil {
		return err
	}
	reg := cfg.RegulatorParams()
	dev, err := simulator.NewDevice(state, reg, cfg.HeatLossParams())
	if err != nil {
		return fmt.Errorf("create simulator: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Step", "Ambient", "Setpoint", "TriggerLow", "TriggerHigh", "TargetLow", "TargetHigh"}); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for i := 1; i <= steps; i++ {
		for _, cmd := range commands {
			if cmd.Step == i {
				if err := dev.SetSetpoint(cmd.Value); err != nil {
					return fmt.Errorf("step %d: set-point %.1f: %w", i, cmd.Value, err)
				}
			}
		}

		s := dev.Get()
		if err := writer.Write([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%.2f", s.Ambient),
			fmt.Sprintf("%.2f", s.Setpoint),
			fmt.Sprintf("%.2f", s.Setpoint-reg.TriggerHysteresis),
			fmt.Sprintf("%.2f", s.Setpoint+reg.TriggerHysteresis),
			fmt.Sprintf("%.2f", s.Setpoint-reg.TargetHysteresis),
			fmt.Sprintf("%.2f", s.Setpoint+reg.TargetHysteresis),
		}); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}

		dev.Step(dt)
	}
	return writer.Error()
}

func main() {
	var (
		configPath string
		out        string
		steps      int
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.StringVar(&out, "out", "pinsim.csv", "CSV output path")
	flag.IntVar(&steps, "steps", 1000, "number of simulation steps")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	commands := []SetpointCommand{
		{Step: 200, Value: cfg.Simulator.Setpoint + 3},
		{Step: 600, Value: cfg.Simulator.Setpoint - 2},
	}
	if err := SimulateDevice(cfg, steps, cfg.Simulator.Interval, out, commands); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
