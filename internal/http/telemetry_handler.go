package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
	"wisefido-telemetry/internal/service"
)

const maxBodyBytes = 64 << 10

// TelemetryAPI operations the handlers call
type TelemetryAPI interface {
	Devices() []models.Device
	Device(deviceID string) (models.Device, error)
	Readings(deviceID string) ([]models.Reading, error)
	Summary() models.Summary
	Pair(ctx context.Context, name string, category models.Category) (service.PairResult, error)
	ToggleMute(deviceID string) (bool, error)
	SendCommand(ctx context.Context, deviceID string, cmd service.Command) error
	SourceStatus() models.SourceStatus
	SetSource(req service.SourceRequest) (models.SourceStatus, error)
}

// AlarmLister recent alarm events, newest first
type AlarmLister interface {
	ListAlarmEvents(ctx context.Context, deviceID string, limit int) ([]models.AlarmEvent, error)
}

// TelemetryHandler display API
type TelemetryHandler struct {
	svc    TelemetryAPI
	alarms AlarmLister
	hub    *StreamHub
	logger *zap.Logger
}

// NewTelemetryHandler alarms and hub may be nil
func NewTelemetryHandler(svc TelemetryAPI, alarms AlarmLister, hub *StreamHub, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{svc: svc, alarms: alarms, hub: hub, logger: logger}
}

func (h *TelemetryHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.svc.Devices()
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": devices,
		"total": len(devices),
	}))
}

func (h *TelemetryHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Device(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(d))
}

// GetVitals reading history, newest first
func (h *TelemetryHandler) GetVitals(w http.ResponseWriter, r *http.Request) {
	readings, err := h.svc.Readings(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), len(readings))
	if limit <= 0 || limit > len(readings) {
		limit = len(readings)
	}
	items := make([]models.Reading, 0, limit)
	for i := len(readings) - 1; i >= 0 && len(items) < limit; i-- {
		items = append(items, readings[i])
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": items,
		"total": len(items),
	}))
}

func (h *TelemetryHandler) PairDevice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string          `json:"name"`
		Category models.Category `json:"category"`
	}
	if err := readBodyJSON(r, maxBodyBytes, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	res, err := h.svc.Pair(r.Context(), payload.Name, payload.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"device_id":   res.Device.ID,
		"device":      res.Device,
		"provisioned": res.Provisioned,
	}))
}

func (h *TelemetryHandler) ToggleMute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	muted, err := h.svc.ToggleMute(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"device_id": id, "muted": muted}))
}

func (h *TelemetryHandler) SendCommand(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var cmd service.Command
	if err := readBodyJSON(r, maxBodyBytes, &cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if err := h.svc.SendCommand(r.Context(), id, cmd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"device_id": id, "command": cmd.Command, "sent": true}))
}

func (h *TelemetryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.svc.Summary()))
}

func (h *TelemetryHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.svc.SourceStatus()))
}

func (h *TelemetryHandler) SetSource(w http.ResponseWriter, r *http.Request) {
	var req service.SourceRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	status, err := h.svc.SetSource(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}

func (h *TelemetryHandler) ListAlarms(w http.ResponseWriter, r *http.Request) {
	if h.alarms == nil {
		writeJSON(w, http.StatusServiceUnavailable, Fail("alarm store is not configured"))
		return
	}
	q := r.URL.Query()
	events, err := h.alarms.ListAlarmEvents(r.Context(), q.Get("device_id"), parseInt(q.Get("limit"), 50))
	if err != nil {
		h.logger.Error("Failed to list alarm events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list alarm events"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": events,
		"total": len(events),
	}))
}

// Export every device's history as xlsx (default), csv or json
func (h *TelemetryHandler) Export(w http.ResponseWriter, r *http.Request) {
	rows := BuildExportRows(h.svc.Devices())
	stamp := time.Now().UTC().Format("20060102-150405")

	switch format := r.URL.Query().Get("format"); format {
	case "", "xlsx":
		data, err := GenerateTelemetryExport(rows)
		if err != nil {
			h.logger.Error("Failed to generate telemetry export", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=telemetry-%s.xlsx", stamp))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case "csv":
		var buf bytes.Buffer
		if err := WriteTelemetryCSV(&buf, rows); err != nil {
			h.logger.Error("Failed to generate telemetry csv", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=telemetry-%s.csv", stamp))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=telemetry-%s.json", stamp))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(rows)
	default:
		writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("unsupported export format %q", format)))
	}
}
