// Package orchestration is the boundary the transport layer talks to. It
// guards start and resume requests and maps engine failures onto request
// categories.
package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semfolio/conversation"
	"github.com/c360studio/semfolio/engine"
	"github.com/c360studio/semfolio/specialty"
	"github.com/c360studio/semfolio/workflow"
)

// Runner drives workflow threads. *engine.Engine[workflow.State, workflow.Update]
// satisfies it.
type Runner interface {
	Start(ctx context.Context, threadID string, initial workflow.State) (*engine.Run[workflow.State], error)
	Resume(ctx context.Context, threadID string, req engine.ResumeRequest) (*engine.Run[workflow.State], error)
	Recover(ctx context.Context, threadID string) (*engine.Run[workflow.State], error)
	Status(ctx context.Context, threadID string) (*engine.Run[workflow.State], error)
}

// GraphState is the externally visible position of a conversation.
type GraphState struct {
	ConversationID string          `json:"conversationId"`
	Status         engine.Status   `json:"status"`
	Node           string          `json:"node,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Error          string          `json:"error,omitempty"`
	State          *workflow.State `json:"state,omitempty"`
}

// Service starts and resumes portfolio workflows.
type Service struct {
	runner       Runner
	messages     conversation.Repository
	specialties  *specialty.Registry
	messageLimit int
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMessageLimit caps how many messages guards inspect.
func WithMessageLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.messageLimit = n
		}
	}
}

// NewService creates a Service. A nil registry uses specialty.Global().
func NewService(runner Runner, messages conversation.Repository, specialties *specialty.Registry, opts ...Option) *Service {
	if specialties == nil {
		specialties = specialty.Global()
	}
	s := &Service{
		runner:       runner,
		messages:     messages,
		specialties:  specialties,
		messageLimit: workflow.DefaultTuning().MessageLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartGraph validates req and runs a new thread until its first pause.
func (s *Service) StartGraph(ctx context.Context, req StartRequest) (*GraphState, error) {
	const op = "start graph"
	if err := requestValidate.Struct(req); err != nil {
		return nil, &Error{Kind: KindBadRequest, Op: op, Err: errors.New(describeValidation(err))}
	}
	if !s.specialties.Has(req.Specialty) {
		return nil, &Error{Kind: KindBadRequest, Op: op, ConversationID: req.ConversationID,
			Err: fmt.Errorf("%w: unknown specialty %q", specialty.ErrConfiguration, req.Specialty)}
	}

	msgs, err := s.messages.ListMessages(ctx, conversation.ListOptions{ConversationID: req.ConversationID, Limit: s.messageLimit})
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: op, ConversationID: req.ConversationID, Err: err}
	}
	if len(workflow.UserTranscript(msgs)) == 0 {
		return nil, &Error{Kind: KindBadRequest, Op: op, ConversationID: req.ConversationID, Err: ErrNoCompletedMessages}
	}

	initial := workflow.Initial(req.ConversationID, req.ArtefactID, req.UserID, req.Specialty)
	run, err := s.runner.Start(ctx, req.ConversationID, initial)
	if err != nil {
		return s.failure(op, req.ConversationID, run, err)
	}

	s.logger.Info("Portfolio graph started",
		"conversation_id", req.ConversationID, "specialty", req.Specialty, "status", run.Status, "node", run.Node)
	return stateOf(run), nil
}

// ResumeGraph answers the interrupt conversationID is paused at and runs
// until the next pause or completion.
func (s *Service) ResumeGraph(ctx context.Context, conversationID string, req ResumeRequest) (*GraphState, error) {
	const op = "resume graph"
	if conversationID == "" {
		return nil, &Error{Kind: KindBadRequest, Op: op, Err: errors.New("conversation id is required")}
	}
	if err := requestValidate.Struct(req); err != nil {
		return nil, &Error{Kind: KindBadRequest, Op: op, ConversationID: conversationID, Err: errors.New(describeValidation(err))}
	}

	msgs, err := s.messages.ListMessages(ctx, conversation.ListOptions{ConversationID: conversationID, Limit: s.messageLimit})
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: op, ConversationID: conversationID, Err: err}
	}
	for _, m := range msgs {
		if !m.ProcessingStatus.Terminal() {
			return nil, &Error{Kind: KindConflict, Op: op, ConversationID: conversationID,
				Err: fmt.Errorf("%w: message %s is %s", ErrMessagesPending, m.ID, m.ProcessingStatus)}
		}
	}

	run, err := s.runner.Resume(ctx, conversationID, engine.ResumeRequest{Node: req.Node, Value: req.Value})
	if err != nil {
		return s.failure(op, conversationID, run, err)
	}

	s.logger.Info("Portfolio graph resumed",
		"conversation_id", conversationID, "status", run.Status, "node", run.Node)
	return stateOf(run), nil
}

// RecoverGraph continues a thread left running by a process that stopped
// between nodes.
func (s *Service) RecoverGraph(ctx context.Context, conversationID string) (*GraphState, error) {
	const op = "recover graph"
	run, err := s.runner.Recover(ctx, conversationID)
	if err != nil {
		return s.failure(op, conversationID, run, err)
	}
	return stateOf(run), nil
}

// HasCheckpoint reports whether the conversation has been started.
func (s *Service) HasCheckpoint(ctx context.Context, conversationID string) (bool, error) {
	st, err := s.GetGraphState(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return st.Status != engine.StatusNotStarted, nil
}

// GetGraphState reports where the conversation's workflow is.
func (s *Service) GetGraphState(ctx context.Context, conversationID string) (*GraphState, error) {
	run, err := s.runner.Status(ctx, conversationID)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: "graph state", ConversationID: conversationID, Err: err}
	}
	return stateOf(run), nil
}

// failure classifies err. Node failures still carry the run so callers can
// show where the thread stopped.
func (s *Service) failure(op, conversationID string, run *engine.Run[workflow.State], err error) (*GraphState, error) {
	kind := KindInternal
	switch {
	case errors.Is(err, engine.ErrNotStarted):
		kind = KindNotFound
	case errors.Is(err, engine.ErrAlreadyStarted),
		errors.Is(err, engine.ErrNodeMismatch),
		errors.Is(err, engine.ErrCompleted),
		errors.Is(err, engine.ErrNotPaused),
		errors.Is(err, engine.ErrConflict):
		kind = KindConflict
	}

	if kind == KindInternal {
		s.logger.Error("Portfolio graph failed", "op", op, "conversation_id", conversationID, "error", err)
	}
	var st *GraphState
	if run != nil {
		st = stateOf(run)
	}
	return st, &Error{Kind: kind, Op: op, ConversationID: conversationID, Err: err}
}

func stateOf(run *engine.Run[workflow.State]) *GraphState {
	st := &GraphState{
		ConversationID: run.ThreadID,
		Status:         run.Status,
		Node:           run.Node,
		Payload:        run.Payload,
		Error:          run.Error,
	}
	if run.Status != engine.StatusNotStarted {
		state := run.State
		st.State = &state
	}
	return st
}
