// Package cache provides a size-bounded, TTL-expiring LRU cache and a
// manager that sweeps expired entries in the background.
package cache

import (
	"sync"
	"time"

	applog "tipsplit/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Len() int
}

// Cleaner is implemented by caches that can drop expired entries on demand
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans every registered cache
type Manager struct {
	logger   *applog.Logger
	caches   []Cleaner
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewManager(logger *applog.Logger) *Manager {
	return &Manager{
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a cache to the sweep. Call before Start.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Start begins the periodic sweep in its own goroutine.
func (m *Manager) Start(interval time.Duration) {
	go m.run(interval)
}

func (m *Manager) run(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 && m.logger != nil {
				m.logger.Debug("Cache cleanup completed", "entries_removed", n)
			}
		case <-m.stop:
			return
		}
	}
}

// Sweep cleans all registered caches once and returns how many entries went.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the sweep and waits for it to exit. Safe to call more than once;
// must only be called after Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
}
