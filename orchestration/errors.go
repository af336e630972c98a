package orchestration

import (
	"errors"
	"fmt"
)

// Guard violations reported before the workflow is touched.
var (
	ErrNoCompletedMessages = errors.New("conversation has no completed user messages")
	ErrMessagesPending     = errors.New("conversation has messages still processing")
)

// Kind categorises an orchestration failure for the transport layer.
type Kind string

const (
	KindBadRequest Kind = "bad_request"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Error is returned by every Service method.
type Error struct {
	Kind           Kind
	Op             string
	ConversationID string
	Err            error
}

func (e *Error) Error() string {
	if e.ConversationID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindInternal
}
