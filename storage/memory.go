// Package storage provides checkpoint stores for the engine: in-memory,
// NATS JetStream KV, SQLite and Badger.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/c360studio/semfolio/engine"
)

// Memory is a process-local checkpoint store. Versions equal sequence numbers.
type Memory struct {
	mu      sync.RWMutex
	threads map[string][]*engine.Checkpoint
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{threads: make(map[string][]*engine.Checkpoint)}
}

// Latest implements engine.Store.
func (m *Memory) Latest(_ context.Context, threadID string) (*engine.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[threadID]
	if len(history) == 0 {
		return nil, engine.ErrNoCheckpoint
	}
	return history[len(history)-1].Clone(), nil
}

// Append implements engine.Store.
func (m *Memory) Append(_ context.Context, cp *engine.Checkpoint, expectedVersion uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.threads[cp.ThreadID]
	if current := uint64(len(history)); current != expectedVersion {
		return 0, fmt.Errorf("%w: thread %s at version %d, expected %d",
			engine.ErrConflict, cp.ThreadID, current, expectedVersion)
	}

	stored := cp.Clone()
	stored.Version = expectedVersion + 1
	m.threads[cp.ThreadID] = append(history, stored)
	return stored.Version, nil
}

// History implements engine.Store.
func (m *Memory) History(_ context.Context, threadID string) ([]*engine.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.threads[threadID]
	out := make([]*engine.Checkpoint, len(history))
	for i, cp := range history {
		out[i] = cp.Clone()
	}
	return out, nil
}

// Threads returns the ids of every thread with at least one checkpoint.
func (m *Memory) Threads() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.threads))
	for id := range m.threads {
		ids = append(ids, id)
	}
	return ids
}

// Paused lists threads whose latest checkpoint is paused, sorted by id.
func (m *Memory) Paused(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, history := range m.threads {
		if len(history) > 0 && history[len(history)-1].Status == engine.StatusPaused {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
