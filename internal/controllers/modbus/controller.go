package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/Agrid-Dev/thermoremote/internal/logger"
	"github.com/Agrid-Dev/thermoremote/internal/ports"
	"github.com/Agrid-Dev/thermoremote/internal/session"
)

// Input registers (function 4), read only.
const (
	IRDisplayTemperature = iota
	IRSetTemperature
	IRActualTemperature
	IRSessionMode
	IREditSubMode
	IRTimerHours
	IRNotificationVisible
	IRPendingSetpoint
	IRConnectivityError

	inputRegisterCount
)

// Holding registers (functions 3, 6, 16).
const (
	HRIntent = iota
	HRTimerHours

	holdingRegisterCount
)

// Intent codes accepted by HRIntent.
const (
	CodeBeginEdit    uint16 = 1
	CodeAdjustUp     uint16 = 2
	CodeAdjustDown   uint16 = 3
	CodeChooseTimer  uint16 = 4
	CodeChooseAdjust uint16 = 5
	CodeDone         uint16 = 6
)

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
	// DispatchTimeout bounds how long a register write waits for the session.
	DispatchTimeout time.Duration
}

type Controller struct {
	svc ports.SessionService
	cfg Config
	log *logger.Logger

	ctx  context.Context
	serv *mbserver.Server
}

func New(svc ports.SessionService, cfg Config, log *logger.Logger) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 5 * time.Second
	}
	return &Controller{svc: svc, cfg: cfg, log: log.Named("modbus"), ctx: context.Background()}, nil
}

// Run starts the Modbus server. Reads are served from the session snapshot,
// writes become intents. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	serv.RegisterFunctionHandler(3, c.readHolding)
	serv.RegisterFunctionHandler(4, c.readInput)
	serv.RegisterFunctionHandler(6, c.writeSingle)
	serv.RegisterFunctionHandler(16, c.writeMultiple)

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}
	c.log.Infow("listening", "addr", c.cfg.Addr, "unit_id", c.cfg.UnitID)

	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

func (c *Controller) readInput(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	snap := c.svc.Get()
	return readRegisters(frame.GetData(), inputRegisterCount, func(addr int) uint16 {
		return inputRegister(snap, addr)
	})
}

// HRIntent always reads back as 0; it is a command register.
func (c *Controller) readHolding(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	snap := c.svc.Get()
	return readRegisters(frame.GetData(), holdingRegisterCount, func(addr int) uint16 {
		if addr == HRTimerHours {
			return uint16(snap.TimerHours)
		}
		return 0
	})
}

func (c *Controller) writeSingle(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if ex := c.writeRegister(int(addr), value); ex != nil {
		return []byte{}, ex
	}

	// echo request (address + value)
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

func (c *Controller) writeMultiple(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	d := frame.GetData()
	if len(d) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := binary.BigEndian.Uint16(d[0:2])
	quantity := binary.BigEndian.Uint16(d[2:4])
	byteCount := int(d[4])
	if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if int(start)+int(quantity) > holdingRegisterCount {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	// Registers apply in address order, so HRTimerHours lands after HRIntent.
	for i := 0; i < int(quantity); i++ {
		val := binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
		if ex := c.writeRegister(int(start)+i, val); ex != nil {
			return []byte{}, ex
		}
	}

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], start)
	binary.BigEndian.PutUint16(resp[2:4], quantity)
	return resp, &mbserver.Success
}

func (c *Controller) writeRegister(addr int, value uint16) *mbserver.Exception {
	var in session.Intent
	switch addr {
	case HRIntent:
		var ok bool
		if in, ok = intentForCode(value); !ok {
			return &mbserver.IllegalDataValue
		}
	case HRTimerHours:
		in = session.Intent{Kind: session.IntentSetTimerHours, Value: int(value)}
	default:
		return &mbserver.IllegalDataAddress
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.DispatchTimeout)
	defer cancel()
	if _, err := c.svc.Dispatch(ctx, in); err != nil {
		c.log.Infow("intent rejected", "intent", in.Kind.String(), "register", addr, "err", err)
		return exceptionFor(err)
	}
	return nil
}

func intentForCode(code uint16) (session.Intent, bool) {
	switch code {
	case CodeBeginEdit:
		return session.Intent{Kind: session.IntentBeginEdit}, true
	case CodeAdjustUp:
		return session.Intent{Kind: session.IntentAdjust, Value: 1}, true
	case CodeAdjustDown:
		return session.Intent{Kind: session.IntentAdjust, Value: -1}, true
	case CodeChooseTimer:
		return session.Intent{Kind: session.IntentChooseTimer}, true
	case CodeChooseAdjust:
		return session.Intent{Kind: session.IntentChooseAdjust}, true
	case CodeDone:
		return session.Intent{Kind: session.IntentDone}, true
	default:
		return session.Intent{}, false
	}
}

func exceptionFor(err error) *mbserver.Exception {
	switch {
	case errors.Is(err, session.ErrConnectivityLost),
		errors.Is(err, session.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return &mbserver.SlaveDeviceFailure
	default:
		return &mbserver.IllegalDataValue
	}
}

func inputRegister(s session.Snapshot, addr int) uint16 {
	switch addr {
	case IRDisplayTemperature:
		return encodeTemp(s.DisplayTemperature)
	case IRSetTemperature:
		return encodeTemp(s.SetTemperature)
	case IRActualTemperature:
		return encodeTemp(s.ActualTemperature)
	case IRSessionMode:
		return uint16(s.Mode)
	case IREditSubMode:
		return uint16(s.EditSubMode)
	case IRTimerHours:
		return uint16(s.TimerHours)
	case IRNotificationVisible:
		return encodeBool(s.NotificationVisible)
	case IRPendingSetpoint:
		return encodeBool(s.PendingSetpoint)
	case IRConnectivityError:
		return encodeBool(s.ConnectivityError)
	default:
		return 0
	}
}

// readRegisters validates a read request against count registers and builds
// the byte count + register bytes response.
func readRegisters(data []byte, count int, value func(addr int) uint16) ([]byte, *mbserver.Exception) {
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := int(binary.BigEndian.Uint16(data[0:2]))
	qty := int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > 125 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if start+qty > count {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	byteCount := qty * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i := 0; i < qty; i++ {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], value(start+i))
	}
	return resp, &mbserver.Success
}

// encodeTemp stores whole degrees as int16; UnknownTemperature becomes 0x8000.
func encodeTemp(v int) uint16 {
	r := min(max(v, math.MinInt16), math.MaxInt16)
	return uint16(int16(r))
}

func decodeTemp(u uint16) int {
	return int(int16(u))
}

func encodeBool(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
