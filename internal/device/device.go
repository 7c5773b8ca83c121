package device

import (
	"errors"
	"net/url"
	"strings"
)

// Pin identifies a value slot on the remote device.
type Pin string

const (
	DefaultActualPin Pin = "V1"
	DefaultSetPin    Pin = "V2"
)

// Device is the fixed remote endpoint the remote talks to.
type Device struct {
	ID        string
	BaseURL   string
	Token     string
	ActualPin Pin
	SetPin    Pin
}

func New(id, baseURL, token string) *Device {
	return &Device{
		ID:        id,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		ActualPin: DefaultActualPin,
		SetPin:    DefaultSetPin,
	}
}

func (d *Device) Validate() error {
	if d.BaseURL == "" {
		return errors.New("device: base URL is required")
	}
	u, err := url.Parse(d.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("device: base URL must be absolute")
	}
	if d.Token == "" {
		return errors.New("device: token is required")
	}
	if d.ActualPin == "" || d.SetPin == "" {
		return errors.New("device: pins are required")
	}
	return nil
}
