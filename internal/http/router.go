package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const apiPrefix = "/telemetry/api/v1"

// Router gorilla/mux with method matching and path variables
type Router struct {
	mux    *mux.Router
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    mux.NewRouter(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc, methods ...string) {
	route := r.mux.HandleFunc(pattern, h)
	if len(methods) > 0 {
		route.Methods(methods...)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes liveness probe
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	}, http.MethodGet)
}

// RegisterTelemetryRoutes device, source, alarm, export and stream endpoints
func (r *Router) RegisterTelemetryRoutes(h *TelemetryHandler) {
	// pair is registered before {id} so it is not captured as a device id
	r.Handle(apiPrefix+"/devices/pair", h.PairDevice, http.MethodPost)
	r.Handle(apiPrefix+"/devices", h.ListDevices, http.MethodGet)
	r.Handle(apiPrefix+"/devices/{id}", h.GetDevice, http.MethodGet)
	r.Handle(apiPrefix+"/devices/{id}/vitals", h.GetVitals, http.MethodGet)
	r.Handle(apiPrefix+"/devices/{id}/mute", h.ToggleMute, http.MethodPost)
	r.Handle(apiPrefix+"/devices/{id}/command", h.SendCommand, http.MethodPost)

	r.Handle(apiPrefix+"/summary", h.GetSummary, http.MethodGet)
	r.Handle(apiPrefix+"/source", h.GetSource, http.MethodGet)
	r.Handle(apiPrefix+"/source", h.SetSource, http.MethodPost)

	r.Handle(apiPrefix+"/alarms", h.ListAlarms, http.MethodGet)
	r.Handle(apiPrefix+"/export", h.Export, http.MethodGet)

	if h.hub != nil {
		r.Handle(apiPrefix+"/stream", h.hub.ServeWS, http.MethodGet)
	}
}
