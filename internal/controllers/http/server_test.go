package httpctrl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Agrid-Dev/thermoremote/internal/logger"
	"github.com/Agrid-Dev/thermoremote/internal/session"
	"github.com/Agrid-Dev/thermoremote/internal/testutil"
)

func TestGET_v1_Snapshot(t *testing.T) {
	srv, _ := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	assertStatus(t, rr, http.StatusOK)

	got := decodeJSON[map[string]any](t, rr)
	if got["device_id"] != "default" {
		t.Fatalf("expected device_id=default, got %v", got["device_id"])
	}
	if got["view"] != "current" {
		t.Fatalf("expected view=current, got %v", got["view"])
	}
	if got["session_mode"] != "current" {
		t.Fatalf("expected session_mode=current, got %v", got["session_mode"])
	}
	if got["edit_sub_mode"] != nil {
		t.Fatalf("expected null edit_sub_mode, got %v", got["edit_sub_mode"])
	}
	if got["display_temperature"] != 69.0 {
		t.Fatalf("expected display_temperature=69, got %v", got["display_temperature"])
	}
}

func TestGET_v1_UnknownTemperaturesAreNull(t *testing.T) {
	srv, f := newTestServer()
	f.S.DisplayTemperature = session.UnknownTemperature
	f.S.ActualTemperature = session.UnknownTemperature

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	got := decodeJSON[map[string]any](t, rr)
	if got["display_temperature"] != nil || got["actual_temperature"] != nil {
		t.Fatalf("expected nulls, got %v / %v", got["display_temperature"], got["actual_temperature"])
	}
	if got["set_temperature"] != 70.0 {
		t.Fatalf("expected set_temperature=70, got %v", got["set_temperature"])
	}
}

func TestGET_v1_TimerView(t *testing.T) {
	srv, f := newTestServer()
	f.S.Mode = session.ModeSetting
	f.S.EditSubMode = session.EditTimer
	f.S.TimerHours = 2

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodGet, "/v1", nil)
	got := decodeJSON[snapshotDTO](t, rr)
	if got.View != "timer" || got.EditSubMode == nil || *got.EditSubMode != "timer" {
		t.Fatalf("unexpected view %+v", got)
	}
	if len(got.Controls) != 4 || got.Controls[1] != "timer_hours" {
		t.Fatalf("unexpected controls %v", got.Controls)
	}
}

func TestPOST_begin_edit(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/begin_edit", nil)
	assertStatus(t, rr, http.StatusOK)

	in, ok := f.LastIntent()
	if !ok || in.Kind != session.IntentBeginEdit {
		t.Fatalf("expected begin_edit dispatched, got %+v", in)
	}
}

func TestPOST_adjust(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/adjust", -1)
	assertStatus(t, rr, http.StatusOK)

	in, _ := f.LastIntent()
	if in.Kind != session.IntentAdjust || in.Value != -1 {
		t.Fatalf("expected adjust(-1), got %+v", in)
	}
}

func TestPOST_adjust_InvalidPayload(t *testing.T) {
	srv, f := newTestServer()

	rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/adjust", map[string]any{
		"direction": 1,
	})
	assertStatus(t, rr, http.StatusBadRequest)
	_ = assertErrorResponse(t, rr)

	if len(f.Intents) != 0 {
		t.Fatalf("expected nothing dispatched, got %+v", f.Intents)
	}
}

func TestPOST_timer_hours(t *testing.T) {
	srv, f := newTestServer()

	rr := postValueEndpoint(t, srv, "/v1/timer_hours", 2)
	assertStatus(t, rr, http.StatusOK)

	in, _ := f.LastIntent()
	if in.Kind != session.IntentSetTimerHours || in.Value != 2 {
		t.Fatalf("expected set_timer_hours(2), got %+v", in)
	}
}

func TestPOST_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid transition", session.ErrInvalidTransition, http.StatusConflict},
		{"invalid direction", session.ErrInvalidDirection, http.StatusBadRequest},
		{"negative timer", session.ErrInvalidTimerHours, http.StatusBadRequest},
		{"connectivity lost", session.ErrConnectivityLost, http.StatusServiceUnavailable},
		{"stopped", session.ErrStopped, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, f := newTestServer()
			f.DispatchErr = tt.err

			rr := doJSONRequest(t, srv.srv.Handler, http.MethodPost, "/v1/done", nil)
			assertStatus(t, rr, tt.want)
			if msg := assertErrorResponse(t, rr); msg != tt.err.Error() {
				t.Fatalf("expected error %q, got %q", tt.err.Error(), msg)
			}
		})
	}
}

func TestGET_healthz(t *testing.T) {
	srv, _ := newTestServer()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.srv.Handler.ServeHTTP(rr, req)

	assertStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "ok" {
		t.Fatalf("expected body 'ok', got %s", rr.Body.String())
	}
}

func TestControlsCoverEveryView(t *testing.T) {
	for _, v := range []session.View{session.ViewCurrent, session.ViewAdjusting, session.ViewTimer, session.ViewConnectivityError} {
		if controlsFor(v) == nil {
			t.Fatalf("no controls for %s", v)
		}
	}
}

// ---- test helpers ----

func newTestServer() (*Server, *testutil.FakeSessionService) {
	f := testutil.NewFakeSessionService()
	deviceID := "default"
	return New(f, ":0", deviceID, logger.Nop()), f
}

func doJSONRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("json.Unmarshal: %v body=%s", err, rr.Body.String())
	}
	return v
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeJSON[struct {
		Error string `json:"error"`
	}](t, rr)
	if resp.Error == "" {
		t.Fatalf("expected non-empty error field, got body=%s", rr.Body.String())
	}
	return resp.Error
}

func postValueEndpoint[T any](t *testing.T, srv *Server, path string, value T) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONRequest(t, srv.srv.Handler, http.MethodPost, path, struct {
		Value T `json:"value"`
	}{Value: value})
}
