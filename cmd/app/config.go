package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	koanfjson "github.com/knadh/koanf/parsers/json"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/thermoremote/internal/device"
	"github.com/Agrid-Dev/thermoremote/internal/gateway"
	"github.com/Agrid-Dev/thermoremote/internal/logger"
	"github.com/Agrid-Dev/thermoremote/internal/session"
	"github.com/Agrid-Dev/thermoremote/internal/simulator"
)

// EnvPrefix is stripped from environment variables before key mapping.
const EnvPrefix = "THERMOREMOTE_"

type Config struct {
	Device      DeviceConfig  `koanf:"device" yaml:"device"`
	Session     SessionConfig `koanf:"session" yaml:"session"`
	Controllers struct {
		HTTP   HTTPConfig   `koanf:"http" yaml:"http"`
		MQTT   MQTTConfig   `koanf:"mqtt" yaml:"mqtt"`
		MODBUS ModbusConfig `koanf:"modbus" yaml:"modbus"`
	} `koanf:"controllers" yaml:"controllers"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Simulator SimulatorConfig `koanf:"simulator" yaml:"simulator"`
}

type DeviceConfig struct {
	ID        string        `koanf:"id" yaml:"id"`
	BaseURL   string        `koanf:"base_url" yaml:"base_url"`
	Token     string        `koanf:"token" yaml:"token"`
	ActualPin string        `koanf:"actual_pin" yaml:"actual_pin"`
	SetPin    string        `koanf:"set_pin" yaml:"set_pin"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
}

type SessionConfig struct {
	PollInterval         time.Duration `koanf:"poll_interval" yaml:"poll_interval"`
	NotificationDuration time.Duration `koanf:"notification_duration" yaml:"notification_duration"`
	DefaultSetpoint      int           `koanf:"default_setpoint" yaml:"default_setpoint"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
}

type MQTTConfig struct {
	Enabled        bool   `koanf:"enabled" yaml:"enabled"`
	BrokerURL      string `koanf:"broker_url" yaml:"broker_url"`
	ClientID       string `koanf:"client_id" yaml:"client_id"`
	BaseTopic      string `koanf:"base_topic" yaml:"base_topic"`
	QoS            byte   `koanf:"qos" yaml:"qos"`
	RetainSnapshot bool   `koanf:"retain_snapshot" yaml:"retain_snapshot"`
	Username       string `koanf:"username" yaml:"username"`
	Password       string `koanf:"password" yaml:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
	UnitID  byte   `koanf:"unit_id" yaml:"unit_id"`
}

type LogConfig struct {
	Level string `koanf:"level" yaml:"level"`
}

type SimulatorConfig struct {
	Addr     string        `koanf:"addr" yaml:"addr"`
	Interval time.Duration `koanf:"interval" yaml:"interval"`

	Setpoint    float64 `koanf:"setpoint" yaml:"setpoint"`
	SetpointMin float64 `koanf:"setpoint_min" yaml:"setpoint_min"`
	SetpointMax float64 `koanf:"setpoint_max" yaml:"setpoint_max"`
	Ambient     float64 `koanf:"ambient" yaml:"ambient"`
	Mode        string  `koanf:"mode" yaml:"mode"` // "heat" | "cool" | "fan" | "auto"

	Regulator RegulatorConfig `koanf:"regulator" yaml:"regulator"`
	HeatLoss  HeatLossConfig  `koanf:"heat_loss" yaml:"heat_loss"`
}

type RegulatorConfig struct {
	Kp                float64 `koanf:"kp" yaml:"kp"`
	Ki                float64 `koanf:"ki" yaml:"ki"`
	Kd                float64 `koanf:"kd" yaml:"kd"`
	TriggerHysteresis float64 `koanf:"trigger_hysteresis" yaml:"trigger_hysteresis"`
	TargetHysteresis  float64 `koanf:"target_hysteresis" yaml:"target_hysteresis"`
}

type HeatLossConfig struct {
	OutdoorTemperature float64 `koanf:"outdoor_temperature" yaml:"outdoor_temperature"`
	Coefficient        float64 `koanf:"coefficient" yaml:"coefficient"`
}

// Default is the configuration used before any file or environment override.
func Default() Config {
	var cfg Config
	cfg.Device = DeviceConfig{
		ID:        "default",
		BaseURL:   "http://127.0.0.1:8081",
		Token:     "local",
		ActualPin: string(device.DefaultActualPin),
		SetPin:    string(device.DefaultSetPin),
		Timeout:   gateway.DefaultTimeout,
	}
	cfg.Session = SessionConfig{
		PollInterval:         session.DefaultPollInterval,
		NotificationDuration: session.DefaultNotificationDuration,
		DefaultSetpoint:      session.DefaultSetpoint,
	}
	cfg.Controllers.HTTP = HTTPConfig{Enabled: true, Addr: ":8080"}
	cfg.Controllers.MQTT = MQTTConfig{BrokerURL: "tcp://localhost:1883"}
	cfg.Controllers.MODBUS = ModbusConfig{Addr: "127.0.0.1:1502", UnitID: 1}
	cfg.Log = LogConfig{Level: logger.InfoLevel}
	cfg.Simulator = SimulatorConfig{
		Addr:        ":8081",
		Interval:    time.Second,
		Setpoint:    70,
		SetpointMin: 50,
		SetpointMax: 90,
		Ambient:     65,
		Mode:        "auto",
		Regulator: RegulatorConfig{
			Kp:                0.02,
			Ki:                0.0005,
			Kd:                0.01,
			TriggerHysteresis: 1.0,
			TargetHysteresis:  0.5,
		},
		HeatLoss: HeatLossConfig{
			OutdoorTemperature: 40,
			Coefficient:        0.001,
		},
	}
	return cfg
}

// LoadConfig layers defaults, the config file and THERMOREMOTE_* variables.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	return loadConfig(path, os.Environ)
}

func loadConfig(path string, environ func() []string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			parser, err := parserFor(path)
			if err != nil {
				return Config{}, err
			}
			if err := k.Load(file.Provider(path), parser); err != nil {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(k, EnvPrefix)), v
		},
		EnvironFunc: environ,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return koanfyaml.Parser(), nil
	case ".json":
		return koanfjson.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
}

// envKeyTransform maps an unprefixed variable name to a dotted config key:
//
//	CONTROLLERS_MQTT_BROKER_URL -> controllers.mqtt.broker_url
//	SESSION_POLL_INTERVAL       -> session.poll_interval
//	SIMULATOR_REGULATOR_KP      -> simulator.regulator.kp
//
// Names that match no section are lowercased and passed through.
func envKeyTransform(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return ""
	}

	if strings.HasPrefix(k, "controllers_") {
		parts := strings.SplitN(k, "_", 3)
		if len(parts) < 3 {
			return k
		}
		return parts[0] + "." + parts[1] + "." + parts[2]
	}

	for _, nested := range []string{"simulator_regulator_", "simulator_heat_loss_"} {
		if rest, ok := strings.CutPrefix(k, nested); ok && rest != "" {
			return "simulator." + strings.TrimSuffix(strings.TrimPrefix(nested, "simulator_"), "_") + "." + rest
		}
	}

	for _, section := range []string{"device", "session", "log", "simulator"} {
		if rest, ok := strings.CutPrefix(k, section+"_"); ok && rest != "" {
			return section + "." + rest
		}
	}
	return k
}

// Dump renders the effective configuration as YAML.
func (c Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) RemoteDevice() (*device.Device, error) {
	d := device.New(c.Device.ID, c.Device.BaseURL, c.Device.Token)
	if c.Device.ActualPin != "" {
		d.ActualPin = device.Pin(c.Device.ActualPin)
	}
	if c.Device.SetPin != "" {
		d.SetPin = device.Pin(c.Device.SetPin)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (c Config) SessionConfig() session.Config {
	return session.Config{
		NotificationDuration: c.Session.NotificationDuration,
		DefaultSetpoint:      c.Session.DefaultSetpoint,
	}
}

func (c Config) SimulatorState() (simulator.State, error) {
	mode, err := simulator.ParseMode(c.Simulator.Mode)
	if err != nil {
		return simulator.State{}, err
	}
	return simulator.State{
		Setpoint:    c.Simulator.Setpoint,
		SetpointMin: c.Simulator.SetpointMin,
		SetpointMax: c.Simulator.SetpointMax,
		Mode:        mode,
		Ambient:     c.Simulator.Ambient,
	}, nil
}

func (c Config) RegulatorParams() simulator.RegulatorParams {
	r := c.Simulator.Regulator
	return simulator.RegulatorParams{
		Kp:                r.Kp,
		Ki:                r.Ki,
		Kd:                r.Kd,
		TriggerHysteresis: r.TriggerHysteresis,
		TargetHysteresis:  r.TargetHysteresis,
	}
}

func (c Config) HeatLossParams() simulator.HeatLossParams {
	return simulator.HeatLossParams{
		OutdoorTemperature: c.Simulator.HeatLoss.OutdoorTemperature,
		Coefficient:        c.Simulator.HeatLoss.Coefficient,
	}
}
