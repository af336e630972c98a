package engine

import (
	"errors"
	"fmt"
)

// Guard violations returned by Start and Resume.
var (
	ErrAlreadyStarted = errors.New("thread already started")
	ErrNotStarted     = errors.New("thread not started")
	ErrNotPaused      = errors.New("thread is not paused")
	ErrNodeMismatch   = errors.New("resume node does not match paused node")
	ErrCompleted      = errors.New("thread already completed")
	ErrStepLimit      = errors.New("step limit exceeded")
)

// NodeError reports a node that failed. The thread is left paused at the
// node with the error recorded, so it can be retried with Resume.
type NodeError struct {
	ThreadID string
	Node     string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("thread %s: node %s: %v", e.ThreadID, e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
