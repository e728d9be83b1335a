package clock

import (
	"sync"
	"time"
)

// ManualTicker is driven by Fire instead of wall time. Used by schedule tests.
type ManualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

// C implements Ticker
func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Stop implements Ticker
func (m *ManualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// Stopped reports whether Stop was called
func (m *ManualTicker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Fire delivers one tick and reports whether a consumer received it within wait.
// A false result means nothing is listening any more.
func (m *ManualTicker) Fire(now time.Time, wait time.Duration) bool {
	select {
	case m.ch <- now:
		return true
	case <-time.After(wait):
		return false
	}
}

// ManualTickers hands out ManualTickers and remembers them per interval
type ManualTickers struct {
	mu      sync.Mutex
	tickers []*ManualTicker
	byDur   map[time.Duration][]*ManualTicker
}

// NewManualTickers creates an empty set
func NewManualTickers() *ManualTickers {
	return &ManualTickers{byDur: make(map[time.Duration][]*ManualTicker)}
}

// Factory returns a TickerFactory backed by this set
func (m *ManualTickers) Factory() TickerFactory {
	return func(d time.Duration) Ticker {
		t := &ManualTicker{ch: make(chan time.Time)}
		m.mu.Lock()
		m.tickers = append(m.tickers, t)
		m.byDur[d] = append(m.byDur[d], t)
		m.mu.Unlock()
		return t
	}
}

// Latest returns the most recent ticker created for interval d, or nil
func (m *ManualTickers) Latest(d time.Duration) *ManualTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.byDur[d]
	if len(ts) == 0 {
		return nil
	}
	return ts[len(ts)-1]
}

// Count returns how many tickers were created for interval d
func (m *ManualTickers) Count(d time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byDur[d])
}
