package simulator_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Agrid-Dev/thermoremote/internal/device"
	"github.com/Agrid-Dev/thermoremote/internal/gateway"
	"github.com/Agrid-Dev/thermoremote/internal/logger"
	"github.com/Agrid-Dev/thermoremote/internal/session"
	"github.com/Agrid-Dev/thermoremote/internal/simulator"
)

// TestRemoteAgainstSimulator drives a full edit cycle through the real
// gateway against the simulated device.
func TestRemoteAgainstSimulator(t *testing.T) {
	require := require.New(t)
	log := logger.Nop()

	dev, err := simulator.NewDevice(simulator.State{
		Setpoint:    69,
		SetpointMin: 50,
		SetpointMax: 100,
		Mode:        simulator.ModeHeat,
		Ambient:     69,
	}, simulator.RegulatorParams{Kp: 0.5, TriggerHysteresis: 0.5, TargetHysteresis: 0.2}, simulator.HeatLossParams{})
	require.NoError(err)

	srv := httptest.NewServer(simulator.NewHandler(dev, "tok", device.DefaultActualPin, device.DefaultSetPin, log))
	t.Cleanup(srv.Close)

	gw, err := gateway.New(device.New("sim", srv.URL, "tok"), time.Second, log)
	require.NoError(err)

	m := session.New(gw, session.Config{NotificationDuration: 50 * time.Millisecond}, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = m.Run(ctx) }()
	go func() { _ = session.NewPoller(gw, m, log).Run(ctx, 10*time.Millisecond) }()

	require.Eventually(func() bool {
		s := m.Get()
		return s.ActualTemperature == 69 && s.SetTemperature == 69
	}, 2*time.Second, 5*time.Millisecond)

	_, err = m.BeginEdit(ctx)
	require.NoError(err)
	_, err = m.Adjust(ctx, 1)
	require.NoError(err)
	_, err = m.ChooseTimer(ctx)
	require.NoError(err)
	_, err = m.SetTimerHours(ctx, 2)
	require.NoError(err)
	s, err := m.Done(ctx)
	require.NoError(err)
	require.Equal(70, s.SetTemperature)
	require.Equal(2, s.TimerHours)
	require.True(s.NotificationVisible)

	require.Eventually(func() bool { return dev.Get().Setpoint == 70 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(func() bool { return !m.Get().NotificationVisible }, 2*time.Second, 5*time.Millisecond)

	// The simulated device heats towards the new set-point and the poller follows it.
	go func() { _ = dev.Run(ctx, 5*time.Millisecond) }()
	require.Eventually(func() bool {
		s := m.Get()
		return s.ActualTemperature == 70 && !s.PendingSetpoint
	}, 3*time.Second, 5*time.Millisecond)
}

func TestRemoteWithUnreachableDevice(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	log := logger.Nop()
	gw, err := gateway.New(device.New("sim", url, "tok"), 200*time.Millisecond, log)
	require.NoError(t, err)

	m := session.New(gw, session.Config{}, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = m.Run(ctx) }()

	_, err = m.BeginEdit(ctx)
	require.ErrorIs(t, err, session.ErrConnectivityLost)
	require.Equal(t, session.ViewConnectivityError, m.Get().View())
}
