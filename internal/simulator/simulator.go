package simulator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-telemetry/internal/clock"
	"wisefido-telemetry/internal/models"
)

// DefaultInterval gateway broadcast cadence
const DefaultInterval = 3 * time.Second

var ErrAlreadyRunning = errors.New("simulator already running")

// DeviceLister yields the ids to broadcast to
type DeviceLister interface {
	IDs() []string
}

// Sink accepts readings
type Sink interface {
	PushReading(deviceID string, reading models.Reading) error
}

// Simulator the simulated telemetry source. Each tick it acts as a single gateway
// broadcasting one fresh reading to every registered device at once; it does not
// model independent per-device arrival.
type Simulator struct {
	devices   DeviceLister
	sink      Sink
	interval  time.Duration
	newTicker clock.TickerFactory
	now       func() time.Time
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped simulator. A nil factory uses wall-clock tickers.
func New(devices DeviceLister, sink Sink, interval time.Duration, newTicker clock.TickerFactory, logger *zap.Logger) *Simulator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if newTicker == nil {
		newTicker = clock.NewTicker
	}
	return &Simulator{
		devices:   devices,
		sink:      sink,
		interval:  interval,
		newTicker: newTicker,
		now:       time.Now,
		logger:    logger,
	}
}

// Start launches the tick loop. The ticker is owned by the loop and stopped with it.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := s.newTicker(s.interval)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				s.Tick()
			}
		}
	}()

	s.logger.Info("Simulator started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for it to exit; no reading is pushed after Stop returns
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Simulator stopped")
}

// Tick broadcasts one generated reading to every registered device and returns
// how many were accepted
func (s *Simulator) Tick() int {
	pushed := 0
	for _, id := range s.devices.IDs() {
		if err := s.sink.PushReading(id, GenerateReading(s.now())); err != nil {
			s.logger.Warn("Simulated reading rejected", zap.String("device_id", id), zap.Error(err))
			continue
		}
		pushed++
	}
	return pushed
}

// Status implements the service source contract
func (s *Simulator) Status() models.SourceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SourceStatus{Mode: models.SourceSimulated, Connected: s.cancel != nil}
}
