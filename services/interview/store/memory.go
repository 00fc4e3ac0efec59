// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/calderahealth/intake/services/interview/flow"
)

// Clock abstracts time for TTL decisions, so tests can drive eviction
// deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// MemoryConfig configures the in-process session cache.
type MemoryConfig struct {
	// TTL is how long an untouched session stays cached.
	// Default: 30 minutes. Zero disables eviction.
	TTL time.Duration

	// SweepInterval is how often the janitor scans for expired
	// entries. Default: 1 minute.
	SweepInterval time.Duration

	// Clock defaults to the wall clock.
	Clock Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// MemoryStore is the low-latency session cache. Entries are deep copies
// of the engine's state, so callers can never observe concurrent
// mutation through a shared pointer.
//
// Eviction is silent by design: the engine treats a cache miss as
// recoverable and reconstructs the session from the checkpoint.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	clock    Clock
	logger   *slog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	state   *flow.SessionState
	touched time.Time
}

// NewMemoryStore creates the cache and starts its eviction janitor.
// Call Close during shutdown.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.TTL == 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      cfg.TTL,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		stop:     make(chan struct{}),
	}
	if cfg.TTL > 0 {
		go m.janitor(cfg.SweepInterval)
	}
	return m
}

// Load implements flow.StateStore.
func (m *MemoryStore) Load(_ context.Context, sessionID string) (*flow.SessionState, error) {
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, flow.ErrStateNotFound
	}
	return entry.state.Clone(), nil
}

// Save implements flow.StateStore.
func (m *MemoryStore) Save(_ context.Context, sessionID string, state *flow.SessionState) error {
	m.mu.Lock()
	m.sessions[sessionID] = &memoryEntry{
		state:   state.Clone(),
		touched: m.clock.Now(),
	}
	m.mu.Unlock()
	return nil
}

// Delete implements flow.StateStore. Deleting an absent session is not
// an error.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts every entry untouched for longer than the TTL and
// returns the eviction count. The janitor calls this on a timer; tests
// call it directly.
func (m *MemoryStore) Sweep() int {
	cutoff := m.clock.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, entry := range m.sessions {
		if entry.touched.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info("evicted idle interview sessions from cache", "count", evicted)
	}
	return evicted
}

// Close stops the janitor.
func (m *MemoryStore) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}
