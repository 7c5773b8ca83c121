package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/Agrid-Dev/thermoremote/internal/device"
	"github.com/Agrid-Dev/thermoremote/internal/logger"
)

type fakeDevice struct {
	mu      sync.Mutex
	pins    map[string]json.RawMessage
	updates []string
	status  int
}

func newFakeDevice(t *testing.T) (*fakeDevice, *httptest.Server) {
	t.Helper()
	fd := &fakeDevice{
		pins: map[string]json.RawMessage{
			"V1": json.RawMessage(`["68"]`),
			"V2": json.RawMessage(`[70]`),
		},
		status: http.StatusOK,
	}
	r := mux.NewRouter()
	r.HandleFunc("/tok/get/{pin}", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		if fd.status != http.StatusOK {
			w.WriteHeader(fd.status)
			return
		}
		body, ok := fd.pins[mux.Vars(req)["pin"]]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write(body)
	})
	r.HandleFunc("/tok/update/{pin}", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		if fd.status != http.StatusOK {
			w.WriteHeader(fd.status)
			return
		}
		fd.updates = append(fd.updates, mux.Vars(req)["pin"]+"="+req.URL.Query().Get("value"))
	})
	r.HandleFunc("/tok/isAppConnected", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("true"))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fd, srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(device.New("test", baseURL, "tok"), 0, logger.Nop())
	require.NoError(t, err)
	return c
}

func TestNewRejectsInvalidDevice(t *testing.T) {
	_, err := New(device.New("test", "", "tok"), 0, logger.Nop())
	require.Error(t, err)
}

func TestReadTemperatures(t *testing.T) {
	require := require.New(t)
	_, srv := newFakeDevice(t)
	c := newTestClient(t, srv.URL)

	actual, err := c.ReadActualTemperature(context.Background())
	require.NoError(err)
	require.Equal(68, actual)

	set, err := c.ReadSetTemperature(context.Background())
	require.NoError(err)
	require.Equal(70, set)
}

func TestReadRoundsFractionalValues(t *testing.T) {
	fd, srv := newFakeDevice(t)
	fd.pins["V1"] = json.RawMessage(`["21.6"]`)
	c := newTestClient(t, srv.URL)

	v, err := c.ReadActualTemperature(context.Background())
	require.NoError(t, err)
	require.Equal(t, 22, v)
}

func TestReadFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty array", `[]`, http.StatusOK},
		{"not an array", `{"value":1}`, http.StatusOK},
		{"garbage string", `["warm"]`, http.StatusOK},
		{"server error", `["1"]`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd, srv := newFakeDevice(t)
			fd.pins["V1"] = json.RawMessage(tt.body)
			fd.status = tt.status
			c := newTestClient(t, srv.URL)

			_, err := c.ReadActualTemperature(context.Background())
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
		})
	}
}

func TestWriteSetTemperature(t *testing.T) {
	fd, srv := newFakeDevice(t)
	c := newTestClient(t, srv.URL)

	require.NoError(t, c.WriteSetTemperature(context.Background(), 72))

	fd.mu.Lock()
	defer fd.mu.Unlock()
	require.Equal(t, []string{"V2=72"}, fd.updates)
}

func TestWriteFailureIsUnavailable(t *testing.T) {
	fd, srv := newFakeDevice(t)
	fd.status = http.StatusBadRequest
	c := newTestClient(t, srv.URL)

	err := c.WriteSetTemperature(context.Background(), 72)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCheckConnectivity(t *testing.T) {
	_, srv := newFakeDevice(t)
	c := newTestClient(t, srv.URL)
	require.True(t, c.CheckConnectivity(context.Background()))

	srv.Close()
	require.False(t, c.CheckConnectivity(context.Background()))
}

func TestNetworkErrorIsUnavailable(t *testing.T) {
	_, srv := newFakeDevice(t)
	c := newTestClient(t, srv.URL)
	srv.Close()

	_, err := c.ReadSetTemperature(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{`69`, 69, false},
		{`"69"`, 69, false},
		{`69.4`, 69, false},
		{`"-3.5"`, -4, false},
		{`true`, 0, true},
		{`""`, 0, true},
	}
	for _, tt := range tests {
		got, err := parseScalar(json.RawMessage(tt.in))
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseScalar(%s) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("parseScalar(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
