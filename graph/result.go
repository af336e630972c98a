package graph

import "encoding/json"

// Kind tags the outcome of a node invocation.
type Kind int

const (
	// KindContinue applies the update and follows the node's outgoing edge.
	KindContinue Kind = iota
	// KindInterrupt applies the update and suspends at the node until resumed.
	KindInterrupt
	// KindHalt applies the update and stops at the node without a payload.
	// The run can be retried at the same node by a resume.
	KindHalt
)

func (k Kind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindInterrupt:
		return "interrupt"
	case KindHalt:
		return "halt"
	}
	return "unknown"
}

// Result is what a node returns. Suspension is a value, never an error.
type Result[U any] struct {
	Kind    Kind
	Update  U
	Payload any
	Reason  string
}

// Continue moves on to the next node.
func Continue[U any](update U) Result[U] {
	return Result[U]{Kind: KindContinue, Update: update}
}

// Interrupt suspends the run and hands payload to the caller. The update is
// applied before the checkpoint is written.
func Interrupt[U any](payload any, update U) Result[U] {
	return Result[U]{Kind: KindInterrupt, Update: update, Payload: payload}
}

// Halt stops the run at the current node with a reason.
func Halt[U any](reason string, update U) Result[U] {
	return Result[U]{Kind: KindHalt, Update: update, Reason: reason}
}

// Input is what the engine passes to a node besides state.
type Input struct {
	// Resume is the caller-supplied value when the node is re-entered after
	// an interrupt. It is nil on a normal pass.
	Resume json.RawMessage

	// Payload is the interrupt payload this node stored on its previous pass.
	Payload json.RawMessage
}

// Resumed reports whether the node is being re-entered after an interrupt.
func (in Input) Resumed() bool {
	return in.Resume != nil
}
