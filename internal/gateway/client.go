package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Agrid-Dev/thermoremote/internal/device"
	"github.com/Agrid-Dev/thermoremote/internal/logger"
)

// ErrUnavailable is returned for any failed round trip: network error,
// non-success status or a body that does not carry a value.
var ErrUnavailable = errors.New("gateway unavailable")

const DefaultTimeout = 5 * time.Second

// Client talks to one fixed device over the pin protocol. It keeps no
// state between calls.
type Client struct {
	dev  *device.Device
	http *http.Client
	log  *logger.Logger
}

func New(dev *device.Device, timeout time.Duration, log *logger.Logger) (*Client, error) {
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		dev:  dev,
		http: &http.Client{Timeout: timeout},
		log:  log.Named("gateway"),
	}, nil
}

func (c *Client) ReadActualTemperature(ctx context.Context) (int, error) {
	return c.readPin(ctx, c.dev.ActualPin)
}

func (c *Client) ReadSetTemperature(ctx context.Context) (int, error) {
	return c.readPin(ctx, c.dev.SetPin)
}

func (c *Client) WriteSetTemperature(ctx context.Context, value int) error {
	q := url.Values{}
	q.Set("value", strconv.Itoa(value))
	resp, err := c.get(ctx, c.path("update", string(c.dev.SetPin))+"?"+q.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CheckConnectivity reports whether the device endpoint answered at all.
// Any HTTP response counts as reachable.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.path("isAppConnected"), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugw("connectivity check failed", "err", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return true
}

func (c *Client) readPin(ctx context.Context, pin device.Pin) (int, error) {
	resp, err := c.get(ctx, c.path("get", string(pin)))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var values []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		return 0, fmt.Errorf("%w: decode pin %s: %v", ErrUnavailable, pin, err)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: pin %s: empty response", ErrUnavailable, pin)
	}
	v, err := parseScalar(values[0])
	if err != nil {
		return 0, fmt.Errorf("%w: pin %s: %v", ErrUnavailable, pin, err)
	}
	return v, nil
}

// get performs the request and only returns a response on 2xx.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	}
	return resp, nil
}

func (c *Client) path(parts ...string) string {
	p := c.dev.BaseURL + "/" + url.PathEscape(c.dev.Token)
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// parseScalar accepts either a JSON number or a JSON string holding a number.
// Fractional values are rounded to the nearest integer.
func parseScalar(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("unexpected value %s", string(raw))
		}
		f, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unexpected value %q", s)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("unexpected value %v", f)
	}
	return int(math.Round(f)), nil
}
