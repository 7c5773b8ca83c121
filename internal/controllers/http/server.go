package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Agrid-Dev/thermoremote/internal/logger"
	"github.com/Agrid-Dev/thermoremote/internal/ports"
	"github.com/Agrid-Dev/thermoremote/internal/session"
)

type Server struct {
	svc      ports.SessionService
	srv      *http.Server
	deviceID string
	log      *logger.Logger
}

// New returns a runnable server.
func New(svc ports.SessionService, addr string, deviceID string, log *logger.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{svc: svc, deviceID: deviceID, log: log.Named("http")}

	mux.HandleFunc("GET /v1", s.handleGet)

	// One endpoint per intent.
	mux.HandleFunc("POST /v1/begin_edit", s.handleIntent(session.IntentBeginEdit))
	mux.HandleFunc("POST /v1/choose_timer", s.handleIntent(session.IntentChooseTimer))
	mux.HandleFunc("POST /v1/choose_adjust", s.handleIntent(session.IntentChooseAdjust))
	mux.HandleFunc("POST /v1/done", s.handleIntent(session.IntentDone))
	mux.HandleFunc("POST /v1/adjust", s.handleValueIntent(session.IntentAdjust))
	mux.HandleFunc("POST /v1/timer_hours", s.handleValueIntent(session.IntentSetTimerHours))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.log.Infow("listening", "addr", s.srv.Addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type commitDTO struct {
	SetTemperature int `json:"set_temperature"`
	TimerHours     int `json:"timer_hours"`
}

type snapshotDTO struct {
	DeviceID            string     `json:"device_id"`
	View                string     `json:"view"`
	Controls            []string   `json:"controls"`
	DisplayTemperature  *int       `json:"display_temperature"`
	SetTemperature      *int       `json:"set_temperature"`
	ActualTemperature   *int       `json:"actual_temperature"`
	SessionMode         string     `json:"session_mode"`
	EditSubMode         *string    `json:"edit_sub_mode"`
	TimerHours          int        `json:"timer_hours"`
	NotificationVisible bool       `json:"notification_visible"`
	PendingSetpoint     bool       `json:"pending_setpoint"`
	ConnectivityError   bool       `json:"connectivity_error"`
	LastCommit          *commitDTO `json:"last_commit,omitempty"`
}

func toDTO(s session.Snapshot) snapshotDTO {
	dto := snapshotDTO{
		View:                s.View().String(),
		Controls:            controlsFor(s.View()),
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
	if s.LastCommit != nil {
		dto.LastCommit = &commitDTO{SetTemperature: s.LastCommit.SetTemperature, TimerHours: s.LastCommit.TimerHours}
	}
	return dto
}

// controlsFor lists the endpoints a client can offer for a view.
func controlsFor(v session.View) []string {
	switch v {
	case session.ViewCurrent:
		return []string{"begin_edit"}
	case session.ViewAdjusting:
		return []string{"adjust", "choose_timer", "done"}
	case session.ViewTimer:
		return []string{"adjust", "timer_hours", "choose_adjust", "done"}
	case session.ViewConnectivityError:
		return []string{}
	default:
		panic(fmt.Sprintf("httpctrl: unhandled view %d", v))
	}
}

func temperature(t int) *int {
	if !session.Known(t) {
		return nil
	}
	return &t
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondSnapshot(w, s.svc.Get())
}

func (s *Server) handleIntent(kind session.IntentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, session.Intent{Kind: kind})
	}
}

func (s *Server) handleValueIntent(kind session.IntentKind) http.HandlerFunc {
	// body: {"value": 1}
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := decodeValue[int](r.Body)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		s.dispatch(w, r, session.Intent{Kind: kind, Value: v})
	}
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, in session.Intent) {
	snap, err := s.svc.Dispatch(r.Context(), in)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	s.respondSnapshot(w, snap)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidDirection),
		errors.Is(err, session.ErrInvalidTimerHours),
		errors.Is(err, session.ErrUnknownIntent):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrConnectivityLost),
		errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ---- generic helpers ----

func (s *Server) respondSnapshot(w http.ResponseWriter, snap session.Snapshot) {
	dto := toDTO(snap)
	dto.DeviceID = s.deviceID
	writeJSON(w, http.StatusOK, dto)
}

func decodeValue[T any](body io.Reader) (T, error) {
	var zero T
	var req struct {
		Value *T `json:"value"`
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return zero, errors.New("invalid json")
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
