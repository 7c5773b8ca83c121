package simulator

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Agrid-Dev/thermoremote/internal/device"
	"github.com/Agrid-Dev/thermoremote/internal/logger"
)

type handler struct {
	dev       *Device
	actualPin device.Pin
	setPin    device.Pin
	log       *logger.Logger
}

// NewHandler serves the pin protocol for dev under /<token>/...
//
//	GET /<token>/get/<pin>              -> ["<value>"]
//	GET /<token>/update/<pin>?value=<v> -> 200
//	GET /<token>/isAppConnected         -> true
func NewHandler(dev *Device, token string, actualPin, setPin device.Pin, log *logger.Logger) http.Handler {
	h := &handler{dev: dev, actualPin: actualPin, setPin: setPin, log: log.Named("simulator")}

	r := mux.NewRouter()
	sub := r.PathPrefix("/{token}").Subrouter()
	sub.Use(tokenMiddleware(token))
	sub.HandleFunc("/get/{pin}", h.handleGet).Methods(http.MethodGet)
	sub.HandleFunc("/update/{pin}", h.handleUpdate).Methods(http.MethodGet, http.MethodPut)
	sub.HandleFunc("/isAppConnected", h.handleConnected).Methods(http.MethodGet)
	return r
}

func tokenMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mux.Vars(r)["token"] != token {
				http.Error(w, "Invalid token.", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	s := h.dev.Get()
	var v float64
	switch device.Pin(mux.Vars(r)["pin"]) {
	case h.actualPin:
		v = s.Ambient
	case h.setPin:
		v = s.Setpoint
	default:
		http.Error(w, "Wrong pin format.", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode([]string{strconv.FormatFloat(v, 'f', 1, 64)})
}

func (h *handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if device.Pin(mux.Vars(r)["pin"]) != h.setPin {
		http.Error(w, "Pin is read only.", http.StatusBadRequest)
		return
	}
	v, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil {
		http.Error(w, "Wrong value.", http.StatusBadRequest)
		return
	}
	if err := h.dev.SetSetpoint(v); err != nil {
		h.log.Infow("rejected setpoint", "value", v, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Infow("setpoint updated", "value", v)
	w.WriteHeader(http.StatusOK)
}

func (h *handler) handleConnected(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("true"))
}
