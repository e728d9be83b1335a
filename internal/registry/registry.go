package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
)

// OfflineAfter a device with no reading for longer than this is offline
const OfflineAfter = 15 * time.Second

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInvalidCategory = errors.New("invalid device category")
)

// StatusChange one liveness transition, produced by PushReading or RecheckLiveness
type StatusChange struct {
	DeviceID string        `json:"device_id"`
	From     models.Status `json:"from"`
	To       models.Status `json:"to"`
}

type entry struct {
	device  models.Device // Vitals unused; history holds readings
	history history
}

// Registry in-memory device registry. Every method is one critical section, so an
// append together with its last_seen/status update is atomic with respect to
// RecheckLiveness.
type Registry struct {
	mu      sync.Mutex
	order   []string // display order, most recently paired first
	devices map[string]*entry

	newID  func() string
	logger *zap.Logger
}

// Option customises a Registry
type Option func(*Registry)

// WithIDGenerator overrides the pairing id generator
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		r.newID = fn
	}
}

// New creates an empty registry
func New(logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		devices: make(map[string]*entry),
		newID:   randomDeviceID,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func randomDeviceID() string {
	return "dev-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// InitialDevices the fixed starting set
func InitialDevices() []models.Device {
	return []models.Device{
		{
			ID:       "dev-001",
			Name:     "Wearable - John Doe",
			Category: models.CategoryWearable,
			Location: &models.Location{Lat: 6.5244, Lng: 3.3792},
		},
		{
			ID:       "dev-ambulance-01",
			Name:     "Ambulance - Lagos Central",
			Category: models.CategoryAmbulance,
			Location: &models.Location{Lat: 6.4500, Lng: 3.3990},
		},
		{
			ID:       "dev-drone-01",
			Name:     "Response Drone - Sector 5",
			Category: models.CategoryDrone,
			Location: &models.Location{Lat: 6.5300, Lng: 3.3600},
		},
	}
}

// Seed installs InitialDevices when the registry is empty. Returns false if devices
// already existed.
func (r *Registry) Seed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.devices) > 0 {
		return false
	}
	for _, d := range InitialDevices() {
		r.appendLocked(d)
	}
	r.logger.Info("Registry seeded", zap.Int("device_count", len(r.devices)))
	return true
}

func (r *Registry) appendLocked(d models.Device) {
	d.Status = models.StatusOffline
	d.LastSeen = nil
	d.Vitals = nil
	r.devices[d.ID] = &entry{device: d}
	r.order = append(r.order, d.ID)
}

// Pair creates a device with a fresh id and puts it at the front of the list.
// Empty name and category default to "New Device <id>" and wearable.
func (r *Registry) Pair(name string, category models.Category) (models.Device, error) {
	if category == "" {
		category = models.CategoryWearable
	}
	if !category.Valid() {
		return models.Device{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for {
		if _, taken := r.devices[id]; !taken {
			break
		}
		id = r.newID()
	}
	if name == "" {
		name = "New Device " + id
	}

	e := &entry{device: models.Device{
		ID:       id,
		Name:     name,
		Category: category,
		Status:   models.StatusOffline,
	}}
	r.devices[id] = e
	r.order = append([]string{id}, r.order...)
	return r.viewLocked(e), nil
}

// PushReading appends reading to the device history, evicting the oldest beyond
// HistorySize, and marks the device online with last_seen = reading.Timestamp.
// The returned change is non-nil when the device was offline before the push.
// Unknown ids return ErrDeviceNotFound and change nothing.
func (r *Registry) PushReading(deviceID string, reading models.Reading) (*StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}

	e.history.push(reading.Clone())
	ts := reading.Timestamp
	e.device.LastSeen = &ts

	var change *StatusChange
	if e.device.Status != models.StatusOnline {
		change = &StatusChange{DeviceID: deviceID, From: e.device.Status, To: models.StatusOnline}
	}
	e.device.Status = models.StatusOnline
	return change, nil
}

// RecheckLiveness recomputes every device status at now and returns the transitions
func (r *Registry) RecheckLiveness(now time.Time) []StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()

	nowMs := now.UnixMilli()
	var changes []StatusChange
	for _, id := range r.order {
		e := r.devices[id]
		next := liveness(e.device.LastSeen, nowMs)
		if next != e.device.Status {
			changes = append(changes, StatusChange{DeviceID: id, From: e.device.Status, To: next})
			e.device.Status = next
		}
	}
	return changes
}

func liveness(lastSeen *int64, nowMs int64) models.Status {
	if lastSeen == nil {
		return models.StatusOffline
	}
	if nowMs-*lastSeen > OfflineAfter.Milliseconds() {
		return models.StatusOffline
	}
	return models.StatusOnline
}

// ToggleMute flips the alert-mute flag and returns the new value
func (r *Registry) ToggleMute(deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[deviceID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	e.device.Muted = !e.device.Muted
	return e.device.Muted, nil
}

// IDs returns device ids in display order
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Devices returns copies of every device in display order
func (r *Registry) Devices() []models.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.viewLocked(r.devices[id]))
	}
	return out
}

// Device returns a copy of one device
func (r *Registry) Device(deviceID string) (models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[deviceID]
	if !ok {
		return models.Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return r.viewLocked(e), nil
}

// Readings returns the device history, oldest first
func (r *Registry) Readings(deviceID string) ([]models.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return e.history.snapshot(), nil
}

// Summary online/total counts
func (r *Registry) Summary() models.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := models.Summary{Total: len(r.devices)}
	for _, e := range r.devices {
		if e.device.Status == models.StatusOnline {
			s.Online++
		}
	}
	return s
}

func (r *Registry) viewLocked(e *entry) models.Device {
	d := e.device.Clone()
	d.Vitals = e.history.snapshot()
	return d
}
