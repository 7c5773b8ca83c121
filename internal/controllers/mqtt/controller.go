package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/thermoremote/internal/logger"
	"github.com/Agrid-Dev/thermoremote/internal/ports"
	"github.com/Agrid-Dev/thermoremote/internal/session"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS            byte
	RetainSnapshot bool

	Username string
	Password string
}

type Controller struct {
	svc ports.SessionService
	cfg Config
	log *logger.Logger

	client mqtt.Client
}

func New(svc ports.SessionService, cfg Config, log *logger.Logger) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "thermoremote/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "thermoremote-" + cfg.DeviceID
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		log: log.Named("mqtt"),
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		topic := c.topic("intent/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Errorw("subscribe failed", "topic", topic, "err", err)
		}
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.log.Infow("connected", "broker", c.cfg.BrokerURL, "base_topic", c.cfg.BaseTopic)

	return c.publishLoop(ctx)
}

// publishLoop publishes every snapshot change until ctx is done. The first
// value from the subscription is the current snapshot.
func (c *Controller) publishLoop(ctx context.Context) error {
	updates, cancel := c.svc.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case s, ok := <-updates:
			if !ok {
				c.client.Disconnect(250)
				return nil
			}
			c.publishSnapshot(s)
		}
	}
}

func (c *Controller) publishSnapshot(s session.Snapshot) {
	b, err := json.Marshal(toDTO(s))
	if err != nil {
		c.log.Errorw("encode snapshot", "err", err)
		return
	}
	c.client.Publish(c.topic("snapshot"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

type snapshotDTO struct {
	View                string  `json:"view"`
	DisplayTemperature  *int    `json:"display_temperature"`
	SetTemperature      *int    `json:"set_temperature"`
	ActualTemperature   *int    `json:"actual_temperature"`
	SessionMode         string  `json:"session_mode"`
	EditSubMode         *string `json:"edit_sub_mode"`
	TimerHours          int     `json:"timer_hours"`
	NotificationVisible bool    `json:"notification_visible"`
	PendingSetpoint     bool    `json:"pending_setpoint"`
	ConnectivityError   bool    `json:"connectivity_error"`
}

func toDTO(s session.Snapshot) snapshotDTO {
	dto := snapshotDTO{
		View:                s.View().String(),
		DisplayTemperature:  temperature(s.DisplayTemperature),
		SetTemperature:      temperature(s.SetTemperature),
		ActualTemperature:   temperature(s.ActualTemperature),
		SessionMode:         s.Mode.String(),
		TimerHours:          s.TimerHours,
		NotificationVisible: s.NotificationVisible,
		PendingSetpoint:     s.PendingSetpoint,
		ConnectivityError:   s.ConnectivityError,
	}
	if s.Mode == session.ModeSetting {
		sub := s.EditSubMode.String()
		dto.EditSubMode = &sub
	}
	return dto
}

func temperature(t int) *int {
	if !session.Known(t) {
		return nil
	}
	return &t
}

// Intent payload format: {"value": ...}, optional for intents without argument.
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/intent/<kind>
	t := msg.Topic()
	prefix := strings.TrimRight(c.cfg.BaseTopic, "/") + "/intent/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	kind, err := session.ParseIntentKind(strings.TrimPrefix(t, prefix))
	if err != nil {
		c.log.Debugw("unknown intent topic", "topic", t)
		return
	}

	in := session.Intent{Kind: kind}
	switch kind {
	case session.IntentAdjust, session.IntentSetTimerHours:
		v, err := decodeValueStrict[int](msg.Payload())
		if err != nil {
			c.log.Debugw("bad intent payload", "topic", t, "err", err)
			return
		}
		in.Value = v
	default:
		if err := decodeEmpty(msg.Payload()); err != nil {
			c.log.Debugw("bad intent payload", "topic", t, "err", err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.svc.Dispatch(ctx, in); err != nil {
		c.log.Infow("intent rejected", "intent", kind.String(), "err", err)
	}
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}

// decodeEmpty accepts an empty payload or a JSON object without fields.
func decodeEmpty(b []byte) error {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req struct{}
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
