package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-telemetry/internal/clock"
	"wisefido-telemetry/internal/config"
	"wisefido-telemetry/internal/live"
	"wisefido-telemetry/internal/models"
	"wisefido-telemetry/internal/registry"
	"wisefido-telemetry/internal/simulator"
)

var (
	ErrUnknownMode        = errors.New("unknown source mode")
	ErrUnknownTransport   = errors.New("unknown live transport")
	ErrMissingTarget      = errors.New("live source target is required")
	ErrMQTTUnavailable    = errors.New("mqtt is not configured")
	ErrCommandUnavailable = errors.New("remote command transport is not configured")
	ErrInvalidCommand     = errors.New("command is required")
	ErrNotRunning         = errors.New("telemetry service is not running")
	ErrAlreadyRunning     = errors.New("telemetry service already running")
)

// Source the active telemetry input
type Source interface {
	Start(ctx context.Context) error
	Stop()
	Status() models.SourceStatus
}

// ReadingObserver receives a copy of every accepted reading
type ReadingObserver interface {
	OnReading(ctx context.Context, deviceID string, reading models.Reading) error
}

// StatusObserver receives liveness transitions
type StatusObserver interface {
	OnStatusChange(ctx context.Context, changes []registry.StatusChange)
}

// MQTTClient live subscription plus command publishing
type MQTTClient interface {
	live.Subscriber
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Provisioner registers paired devices with a backend
type Provisioner interface {
	RegisterDevice(ctx context.Context, d models.Device) error
}

// Options optional collaborators; nil fields disable the feature
type Options struct {
	MQTT             MQTTClient
	Provisioner      Provisioner
	ReadingObservers []ReadingObserver
	StatusObservers  []StatusObserver
	NewTicker        clock.TickerFactory
}

// SourceRequest selects the input mode. Transport and Target apply to live mode;
// empty values fall back to configuration.
type SourceRequest struct {
	Mode      models.SourceMode `json:"mode"`
	Transport string            `json:"transport,omitempty"`
	Target    string            `json:"target,omitempty"`
}

// PairResult newly paired device plus backend registration outcome
type PairResult struct {
	Device      models.Device `json:"device"`
	Provisioned bool          `json:"provisioned"`
}

// Command remote command sent to a device over MQTT
type Command struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

type readingEvent struct {
	deviceID string
	reading  models.Reading
}

// TelemetryService owns the registry, the liveness schedule, the single active source
// and the downstream sinks
type TelemetryService struct {
	cfg       *config.Config
	registry  *registry.Registry
	opts      Options
	newTicker clock.TickerFactory
	logger    *zap.Logger

	events chan readingEvent

	runMu        sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	livenessDone chan struct{}
	dispatchDone chan struct{}

	srcMu  sync.Mutex
	source Source
}

// NewTelemetryService creates a stopped service around reg
func NewTelemetryService(cfg *config.Config, reg *registry.Registry, logger *zap.Logger, opts Options) *TelemetryService {
	newTicker := opts.NewTicker
	if newTicker == nil {
		newTicker = clock.NewTicker
	}
	buffer := cfg.Telemetry.EventBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &TelemetryService{
		cfg:       cfg,
		registry:  reg,
		opts:      opts,
		newTicker: newTicker,
		logger:    logger,
		events:    make(chan readingEvent, buffer),
	}
}

// Start seeds the registry, starts the liveness schedule and the configured source
func (s *TelemetryService) Start(ctx context.Context) error {
	s.runMu.Lock()
	if s.cancel != nil {
		s.runMu.Unlock()
		return ErrAlreadyRunning
	}
	s.registry.Seed()

	runCtx, cancel := context.WithCancel(ctx)
	s.ctx, s.cancel = runCtx, cancel
	s.livenessDone = make(chan struct{})
	s.dispatchDone = make(chan struct{})
	go s.livenessLoop(runCtx, s.newTicker(s.cfg.Telemetry.RecheckInterval), s.livenessDone)
	go s.dispatchLoop(runCtx, s.dispatchDone)
	s.runMu.Unlock()

	s.logger.Info("Telemetry service started",
		zap.String("mode", s.cfg.Telemetry.Mode),
		zap.Duration("recheck_interval", s.cfg.Telemetry.RecheckInterval),
	)

	_, err := s.SetSource(SourceRequest{
		Mode:      models.SourceMode(s.cfg.Telemetry.Mode),
		Transport: s.cfg.Telemetry.Transport,
		Target:    s.cfg.Telemetry.Target,
	})
	if err != nil {
		s.Stop()
		return fmt.Errorf("failed to start telemetry source: %w", err)
	}
	return nil
}

// Stop marks the service stopped, tears down the source, then the liveness and dispatch
// loops. It waits for all of them.
func (s *TelemetryService) Stop() {
	s.runMu.Lock()
	cancel, livenessDone, dispatchDone := s.cancel, s.livenessDone, s.dispatchDone
	s.cancel, s.ctx = nil, nil
	s.runMu.Unlock()

	s.srcMu.Lock()
	if s.source != nil {
		s.source.Stop()
		s.source = nil
	}
	s.srcMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-livenessDone
	<-dispatchDone
	s.logger.Info("Telemetry service stopped")
}

func (s *TelemetryService) runContext() (context.Context, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.ctx == nil {
		return nil, ErrNotRunning
	}
	return s.ctx, nil
}

func (s *TelemetryService) livenessLoop(ctx context.Context, ticker clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			s.RecheckLiveness(now)
		}
	}
}

func (s *TelemetryService) dispatchLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			for _, o := range s.opts.ReadingObservers {
				if err := o.OnReading(ctx, ev.deviceID, ev.reading); err != nil {
					s.logger.Warn("Reading sink failed",
						zap.String("sink", fmt.Sprintf("%T", o)),
						zap.String("device_id", ev.deviceID),
						zap.Error(err),
					)
				}
			}
		}
	}
}

// PushReading records a reading and queues it for the sinks. Sinks never block or fail the push.
func (s *TelemetryService) PushReading(deviceID string, reading models.Reading) error {
	change, err := s.registry.PushReading(deviceID, reading)
	if err != nil {
		return err
	}
	if change != nil {
		s.notifyStatus([]registry.StatusChange{*change})
	}
	if len(s.opts.ReadingObservers) == 0 {
		return nil
	}
	select {
	case s.events <- readingEvent{deviceID: deviceID, reading: reading.Clone()}:
	default:
		s.logger.Warn("Reading sink queue full, dropping", zap.String("device_id", deviceID))
	}
	return nil
}

// RecheckLiveness re-evaluates every device against now and notifies transitions
func (s *TelemetryService) RecheckLiveness(now time.Time) []registry.StatusChange {
	changes := s.registry.RecheckLiveness(now)
	if len(changes) == 0 {
		return nil
	}
	s.notifyStatus(changes)
	return changes
}

func (s *TelemetryService) notifyStatus(changes []registry.StatusChange) {
	for _, c := range changes {
		s.logger.Info("Device status changed",
			zap.String("device_id", c.DeviceID),
			zap.String("from", string(c.From)),
			zap.String("to", string(c.To)),
		)
	}

	ctx, err := s.runContext()
	if err != nil {
		ctx = context.Background()
	}
	for _, o := range s.opts.StatusObservers {
		o.OnStatusChange(ctx, changes)
	}
}

// SetSource switches the active source. The previous source is fully stopped before the
// new one starts. Invalid requests leave the current source running.
func (s *TelemetryService) SetSource(req SourceRequest) (models.SourceStatus, error) {
	ctx, err := s.runContext()
	if err != nil {
		return models.SourceStatus{}, err
	}

	next, err := s.buildSource(req)
	if err != nil {
		return models.SourceStatus{}, err
	}

	s.srcMu.Lock()
	defer s.srcMu.Unlock()

	// Stop may have run between runContext and srcMu
	if cur, err := s.runContext(); err != nil || cur != ctx {
		return models.SourceStatus{}, ErrNotRunning
	}
	if s.source != nil {
		s.source.Stop()
	}
	s.source = next

	// connection problems surface through Status, not as a failed switch
	if err := next.Start(ctx); err != nil {
		s.logger.Warn("Telemetry source failed to start", zap.Error(err))
	}

	status := next.Status()
	s.logger.Info("Telemetry source switched",
		zap.String("mode", string(status.Mode)),
		zap.String("transport", status.Transport),
		zap.String("target", status.Target),
	)
	return status, nil
}

func (s *TelemetryService) buildSource(req SourceRequest) (Source, error) {
	switch req.Mode {
	case models.SourceSimulated:
		return simulator.New(s.registry, s, s.cfg.Telemetry.TickInterval, s.newTicker, s.logger), nil

	case models.SourceLive:
		transport := req.Transport
		if transport == "" {
			transport = s.cfg.Telemetry.Transport
		}
		switch transport {
		case live.TransportWebSocket:
			if req.Target == "" {
				return nil, ErrMissingTarget
			}
			return live.NewWebSocketSource(req.Target, s, s.logger), nil
		case live.TransportMQTT:
			if s.opts.MQTT == nil {
				return nil, ErrMQTTUnavailable
			}
			topic := req.Target
			if topic == "" {
				topic = s.cfg.MQTT.VitalsTopic
			}
			return live.NewMQTTSource(s.opts.MQTT, topic, s.cfg.MQTT.QoS, s, s.logger), nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, transport)
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

// SourceStatus reports the active source
func (s *TelemetryService) SourceStatus() models.SourceStatus {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	if s.source == nil {
		return models.SourceStatus{Mode: models.SourceMode(s.cfg.Telemetry.Mode)}
	}
	return s.source.Status()
}

// Pair registers a new device and, when configured, provisions it with the backend.
// A provisioning failure leaves the device paired.
func (s *TelemetryService) Pair(ctx context.Context, name string, category models.Category) (PairResult, error) {
	d, err := s.registry.Pair(name, category)
	if err != nil {
		return PairResult{}, err
	}
	s.logger.Info("Device paired",
		zap.String("device_id", d.ID),
		zap.String("category", string(d.Category)),
	)

	res := PairResult{Device: d}
	if s.opts.Provisioner == nil {
		return res, nil
	}
	if err := s.opts.Provisioner.RegisterDevice(ctx, d); err != nil {
		s.logger.Warn("Device provisioning failed", zap.String("device_id", d.ID), zap.Error(err))
		return res, nil
	}
	res.Provisioned = true
	return res, nil
}

// ToggleMute flips the device's alert mute flag
func (s *TelemetryService) ToggleMute(deviceID string) (bool, error) {
	muted, err := s.registry.ToggleMute(deviceID)
	if err != nil {
		return false, err
	}
	s.logger.Info("Device mute toggled", zap.String("device_id", deviceID), zap.Bool("muted", muted))
	return muted, nil
}

// SendCommand publishes cmd to the device's command topic
func (s *TelemetryService) SendCommand(ctx context.Context, deviceID string, cmd Command) error {
	if cmd.Command == "" {
		return ErrInvalidCommand
	}
	if _, err := s.registry.Device(deviceID); err != nil {
		return err
	}
	if s.opts.MQTT == nil {
		return ErrCommandUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(struct {
		DeviceID string         `json:"device_id"`
		Command  string         `json:"command"`
		Params   map[string]any `json:"params,omitempty"`
		IssuedAt int64          `json:"issued_at"`
	}{deviceID, cmd.Command, cmd.Params, time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	topic := fmt.Sprintf(s.cfg.MQTT.CommandTopicPattern, deviceID)
	if err := s.opts.MQTT.Publish(topic, s.cfg.MQTT.QoS, false, payload); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	s.logger.Info("Command sent",
		zap.String("device_id", deviceID),
		zap.String("command", cmd.Command),
		zap.String("topic", topic),
	)
	return nil
}

// Devices lists devices in registry order
func (s *TelemetryService) Devices() []models.Device { return s.registry.Devices() }

// Device returns one device
func (s *TelemetryService) Device(deviceID string) (models.Device, error) {
	return s.registry.Device(deviceID)
}

// Readings returns the device's history, oldest first
func (s *TelemetryService) Readings(deviceID string) ([]models.Reading, error) {
	return s.registry.Readings(deviceID)
}

// Summary online/total counters
func (s *TelemetryService) Summary() models.Summary { return s.registry.Summary() }
