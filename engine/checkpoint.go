// Package engine executes a graph.Graph against a checkpoint Store, pausing
// at interrupts and resuming exactly where a thread stopped.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is the position of a thread in its lifecycle.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
)

// Checkpoint is an immutable snapshot written after every node.
type Checkpoint struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Seq      int    `json:"seq"`

	// Initialized marks a thread that has been started. Stores never
	// infer it from state contents.
	Initialized bool `json:"initialized"`

	Status Status `json:"status"`

	// Node is the node to run next while running, or the node the thread is
	// paused at. It is empty once completed.
	Node string `json:"node,omitempty"`

	// Payload is the interrupt payload handed to the caller.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Error is set when the thread stopped because of a halt or node failure.
	Error string `json:"error,omitempty"`

	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`

	// Version is the store's concurrency token for this checkpoint.
	Version uint64 `json:"-"`
}

// Clone returns a deep copy.
func (c *Checkpoint) Clone() *Checkpoint {
	cp := *c
	cp.Payload = append(json.RawMessage(nil), c.Payload...)
	cp.State = append(json.RawMessage(nil), c.State...)
	return &cp
}

// Store persists checkpoints append-only, one history per thread.
type Store interface {
	// Latest returns the newest checkpoint or ErrNoCheckpoint.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// Append writes cp if the thread's latest version still equals
	// expectedVersion (0 for a thread without checkpoints). It returns the
	// new version or ErrConflict.
	Append(ctx context.Context, cp *Checkpoint, expectedVersion uint64) (uint64, error)

	// History returns all checkpoints for a thread, oldest first.
	History(ctx context.Context, threadID string) ([]*Checkpoint, error)
}

// Store errors.
var (
	ErrNoCheckpoint = errors.New("no checkpoint for thread")
	ErrConflict     = errors.New("checkpoint version conflict")
)
