// Package flow orchestrates Tranquil's user-facing flows: breathing sessions
// driven by a tick source, stress check-ins, and check-in reminders.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BTreeMap/Tranquil/internal/models"
)

// ErrInvalidInterval is returned when a tick interval is not positive.
var ErrInvalidInterval = errors.New("tick interval must be positive")

// TickSource runs a function at a fixed interval until cancelled.
type TickSource interface {
	Every(interval time.Duration, description string, fn func()) (string, error)
	Cancel(id string) error
}

// tickerEntry tracks information about a running ticker
type tickerEntry struct {
	ticker      *time.Ticker
	done        chan struct{}
	startedAt   time.Time
	interval    time.Duration
	ticks       atomic.Int64
	description string
}

// SimpleTicker implements TickSource using Go's standard time package.
type SimpleTicker struct {
	tickers map[string]*tickerEntry
	mu      sync.RWMutex
	nextID  int64
}

// NewSimpleTicker creates a new SimpleTicker.
func NewSimpleTicker() *SimpleTicker {
	slog.Debug("Creating SimpleTicker")
	return &SimpleTicker{
		tickers: make(map[string]*tickerEntry),
	}
}

// Every runs fn every interval on its own goroutine until Cancel or Stop.
// Calls to fn are never concurrent with each other.
func (t *SimpleTicker) Every(interval time.Duration, description string, fn func()) (string, error) {
	if interval <= 0 {
		return "", ErrInvalidInterval
	}

	t.mu.Lock()
	t.nextID++
	id := fmt.Sprintf("ticker_%d", t.nextID)
	entry := &tickerEntry{
		ticker:      time.NewTicker(interval),
		done:        make(chan struct{}),
		startedAt:   time.Now(),
		interval:    interval,
		description: description,
	}
	t.tickers[id] = entry
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-entry.done:
				return
			case <-entry.ticker.C:
				// Cancel may race with a pending tick.
				select {
				case <-entry.done:
					return
				default:
				}
				entry.ticks.Add(1)
				fn()
			}
		}
	}()

	slog.Debug("SimpleTicker Every started", "id", id, "interval", interval, "description", description)
	return id, nil
}

// Cancel stops a ticker by ID. Unknown IDs are ignored.
func (t *SimpleTicker) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.tickers[id]; exists {
		entry.ticker.Stop()
		close(entry.done)
		delete(t.tickers, id)
		slog.Debug("SimpleTicker Cancel succeeded", "id", id, "ticks", entry.ticks.Load())
		return nil
	}

	slog.Debug("SimpleTicker Cancel: ticker not found", "id", id)
	return nil
}

// Stop cancels all running tickers.
func (t *SimpleTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slog.Debug("SimpleTicker stopping all tickers", "count", len(t.tickers))
	for _, entry := range t.tickers {
		entry.ticker.Stop()
		close(entry.done)
	}
	t.tickers = make(map[string]*tickerEntry)
	slog.Info("SimpleTicker stopped all tickers")
}

// ListActive returns information about all running tickers.
func (t *SimpleTicker) ListActive() []models.TimerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.TimerInfo, 0, len(t.tickers))
	for id, entry := range t.tickers {
		result = append(result, entry.info(id))
	}
	slog.Debug("SimpleTicker ListActive", "count", len(result))
	return result
}

// GetTimer returns information about a specific ticker by ID.
func (t *SimpleTicker) GetTimer(id string) (*models.TimerInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.tickers[id]
	if !exists {
		return nil, fmt.Errorf("ticker with ID %s not found", id)
	}
	info := entry.info(id)
	return &info, nil
}

func (e *tickerEntry) info(id string) models.TimerInfo {
	return models.TimerInfo{
		ID:          id,
		StartedAt:   e.startedAt,
		Interval:    e.interval,
		Ticks:       e.ticks.Load(),
		Description: e.description,
	}
}

// ManualTicker is a TickSource that only fires when Fire is called.
type ManualTicker struct {
	mu     sync.Mutex
	fns    map[string]func()
	nextID int64
}

// NewManualTicker creates an empty ManualTicker.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{fns: make(map[string]func())}
}

func (m *ManualTicker) Every(interval time.Duration, description string, fn func()) (string, error) {
	if interval <= 0 {
		return "", ErrInvalidInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("manual_%d", m.nextID)
	m.fns[id] = fn
	return id, nil
}

func (m *ManualTicker) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fns, id)
	return nil
}

// Fire invokes the function registered under id once. It reports whether
// id was active.
func (m *ManualTicker) Fire(id string) bool {
	m.mu.Lock()
	fn, ok := m.fns[id]
	m.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

// Active returns the number of registered functions.
func (m *ManualTicker) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fns)
}
