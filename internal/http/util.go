package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"wisefido-telemetry/internal/registry"
	"wisefido-telemetry/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidCategory),
		errors.Is(err, service.ErrUnknownMode),
		errors.Is(err, service.ErrUnknownTransport),
		errors.Is(err, service.ErrMissingTarget),
		errors.Is(err, service.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMQTTUnavailable),
		errors.Is(err, service.ErrCommandUnavailable),
		errors.Is(err, service.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), Fail(err.Error()))
}
