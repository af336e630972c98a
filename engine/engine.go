package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semfolio/graph"
	"github.com/google/uuid"
)

// Observer receives execution events. metrics.Metrics implements it.
type Observer interface {
	NodeFinished(node, outcome string, d time.Duration)
	Interrupted(node string)
	Completed()
}

type options struct {
	logger   *slog.Logger
	observer Observer
	maxSteps int
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver sets the execution observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithMaxSteps bounds the number of nodes one Start or Resume call may run.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithClock overrides the checkpoint timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Engine drives a graph for many independent threads. It holds no per-thread
// state; everything lives in the Store.
type Engine[S, U any] struct {
	graph *graph.Graph[S, U]
	store Store
	opts  options
}

// New creates an engine for g persisting to store.
func New[S, U any](g *graph.Graph[S, U], store Store, opts ...Option) *Engine[S, U] {
	o := options{
		logger:   slog.Default(),
		maxSteps: 100,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[S, U]{graph: g, store: store, opts: o}
}

// Run is the observable outcome of a thread after a call returns.
type Run[S any] struct {
	ThreadID string          `json:"threadId"`
	Status   Status          `json:"status"`
	Node     string          `json:"node,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Error    string          `json:"error,omitempty"`
	Seq      int             `json:"seq"`
	State    S               `json:"state"`
}

// ResumeRequest names the paused node and carries the caller's answer.
type ResumeRequest struct {
	// Node must equal the paused node when set.
	Node string
	// Value is delivered to the node as graph.Input.Resume. Empty means null.
	Value json.RawMessage
}

// Start begins a new thread at the entry node.
func (e *Engine[S, U]) Start(ctx context.Context, threadID string, initial S) (*Run[S], error) {
	latest, err := e.store.Latest(ctx, threadID)
	switch {
	case err == nil && latest.Initialized:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyStarted, threadID)
	case err != nil && !errors.Is(err, ErrNoCheckpoint):
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var (
		version uint64
		seq     int
	)
	if latest != nil {
		version, seq = latest.Version, latest.Seq
	}

	c := &cursor[S]{threadID: threadID, version: version, seq: seq, state: initial}
	if err := e.persist(ctx, c, StatusRunning, e.graph.Entry(), nil, ""); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyStarted, threadID)
		}
		return nil, err
	}

	e.opts.logger.Info("Thread started", "thread_id", threadID, "node", e.graph.Entry())
	return e.run(ctx, c, e.graph.Entry(), graph.Input{})
}

// Resume continues a paused thread at the node it stopped on.
func (e *Engine[S, U]) Resume(ctx context.Context, threadID string, req ResumeRequest) (*Run[S], error) {
	latest, err := e.latestInitialized(ctx, threadID)
	if err != nil {
		return nil, err
	}

	switch latest.Status {
	case StatusCompleted:
		return nil, fmt.Errorf("%w: %s", ErrCompleted, threadID)
	case StatusPaused:
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPaused, threadID, latest.Status)
	}
	if req.Node != "" && req.Node != latest.Node {
		return nil, fmt.Errorf("%w: paused at %q, got %q", ErrNodeMismatch, latest.Node, req.Node)
	}

	c, err := e.cursorFrom(latest)
	if err != nil {
		return nil, err
	}

	var in graph.Input
	if len(latest.Payload) > 0 {
		value := req.Value
		if len(value) == 0 {
			value = json.RawMessage("null")
		}
		in = graph.Input{Resume: value, Payload: latest.Payload}
	}

	e.opts.logger.Info("Thread resumed", "thread_id", threadID, "node", latest.Node, "seq", latest.Seq)
	return e.run(ctx, c, latest.Node, in)
}

// Recover continues a thread whose last checkpoint is still running, which
// happens when a process dies between nodes.
func (e *Engine[S, U]) Recover(ctx context.Context, threadID string) (*Run[S], error) {
	latest, err := e.latestInitialized(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if latest.Status != StatusRunning {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPaused, threadID, latest.Status)
	}
	c, err := e.cursorFrom(latest)
	if err != nil {
		return nil, err
	}
	e.opts.logger.Warn("Recovering running thread", "thread_id", threadID, "node", latest.Node, "seq", latest.Seq)
	return e.run(ctx, c, latest.Node, graph.Input{})
}

// Status reports where a thread is. Threads without checkpoints report
// StatusNotStarted.
func (e *Engine[S, U]) Status(ctx context.Context, threadID string) (*Run[S], error) {
	latest, err := e.store.Latest(ctx, threadID)
	if errors.Is(err, ErrNoCheckpoint) || (err == nil && !latest.Initialized) {
		return &Run[S]{ThreadID: threadID, Status: StatusNotStarted}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	c, err := e.cursorFrom(latest)
	if err != nil {
		return nil, err
	}
	return c.run(latest.Status, latest.Node, latest.Payload, latest.Error), nil
}

// History returns every checkpoint of a thread, oldest first.
func (e *Engine[S, U]) History(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	return e.store.History(ctx, threadID)
}

// Graph returns the topology the engine runs.
func (e *Engine[S, U]) Graph() *graph.Graph[S, U] {
	return e.graph
}

func (e *Engine[S, U]) latestInitialized(ctx context.Context, threadID string) (*Checkpoint, error) {
	latest, err := e.store.Latest(ctx, threadID)
	if errors.Is(err, ErrNoCheckpoint) || (err == nil && !latest.Initialized) {
		return nil, fmt.Errorf("%w: %s", ErrNotStarted, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return latest, nil
}

// cursor tracks a thread between checkpoint writes.
type cursor[S any] struct {
	threadID string
	version  uint64
	seq      int
	state    S
}

func (c *cursor[S]) run(status Status, node string, payload json.RawMessage, errMsg string) *Run[S] {
	return &Run[S]{
		ThreadID: c.threadID,
		Status:   status,
		Node:     node,
		Payload:  payload,
		Error:    errMsg,
		Seq:      c.seq,
		State:    c.state,
	}
}

func (e *Engine[S, U]) cursorFrom(cp *Checkpoint) (*cursor[S], error) {
	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, fmt.Errorf("decode state of %s seq %d: %w", cp.ThreadID, cp.Seq, err)
	}
	return &cursor[S]{threadID: cp.ThreadID, version: cp.Version, seq: cp.Seq, state: state}, nil
}

func (e *Engine[S, U]) persist(ctx context.Context, c *cursor[S], status Status, node string, payload json.RawMessage, errMsg string) error {
	state, err := json.Marshal(c.state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	cp := &Checkpoint{
		ID:          uuid.NewString(),
		ThreadID:    c.threadID,
		Seq:         c.seq + 1,
		Initialized: true,
		Status:      status,
		Node:        node,
		Payload:     payload,
		Error:       errMsg,
		State:       state,
		CreatedAt:   e.opts.now().UTC(),
	}
	version, err := e.store.Append(ctx, cp, c.version)
	if err != nil {
		return fmt.Errorf("append checkpoint %d: %w", cp.Seq, err)
	}
	c.version = version
	c.seq = cp.Seq
	return nil
}

// run executes nodes from node until the graph ends, a node suspends or
// halts, or a node fails.
func (e *Engine[S, U]) run(ctx context.Context, c *cursor[S], node string, in graph.Input) (*Run[S], error) {
	log := e.opts.logger.With("thread_id", c.threadID)

	for steps := 0; ; steps++ {
		if steps >= e.opts.maxSteps {
			if err := e.persist(ctx, c, StatusPaused, node, nil, ErrStepLimit.Error()); err != nil {
				return nil, err
			}
			return c.run(StatusPaused, node, nil, ErrStepLimit.Error()), &NodeError{ThreadID: c.threadID, Node: node, Err: ErrStepLimit}
		}

		fn, ok := e.graph.Node(node)
		if !ok {
			return nil, fmt.Errorf("thread %s: unknown node %q", c.threadID, node)
		}

		log.Debug("Node started", "node", node, "seq", c.seq, "resumed", in.Resumed())
		started := time.Now()
		res, nodeErr := fn(ctx, c.state, in)
		elapsed := time.Since(started)

		if nodeErr != nil {
			e.observe(node, "error", elapsed)
			log.Warn("Node failed", "node", node, "seq", c.seq, "error", nodeErr)
			// Keep the payload so a retry re-enters the node as resumed.
			if err := e.persist(ctx, c, StatusPaused, node, in.Payload, nodeErr.Error()); err != nil {
				return nil, errors.Join(&NodeError{ThreadID: c.threadID, Node: node, Err: nodeErr}, err)
			}
			return c.run(StatusPaused, node, in.Payload, nodeErr.Error()), &NodeError{ThreadID: c.threadID, Node: node, Err: nodeErr}
		}

		c.state = e.graph.Reduce(c.state, res.Update)
		e.observe(node, res.Kind.String(), elapsed)

		switch res.Kind {
		case graph.KindInterrupt:
			payload, err := json.Marshal(res.Payload)
			if err != nil {
				return nil, &NodeError{ThreadID: c.threadID, Node: node, Err: fmt.Errorf("encode interrupt payload: %w", err)}
			}
			if err := e.persist(ctx, c, StatusPaused, node, payload, ""); err != nil {
				return nil, err
			}
			if e.opts.observer != nil {
				e.opts.observer.Interrupted(node)
			}
			log.Info("Thread interrupted", "node", node, "seq", c.seq)
			return c.run(StatusPaused, node, payload, ""), nil

		case graph.KindHalt:
			if err := e.persist(ctx, c, StatusPaused, node, nil, res.Reason); err != nil {
				return nil, err
			}
			log.Warn("Thread halted", "node", node, "seq", c.seq, "reason", res.Reason)
			return c.run(StatusPaused, node, nil, res.Reason), nil
		}

		next, err := e.graph.Next(node, c.state)
		if err != nil {
			if perr := e.persist(ctx, c, StatusPaused, node, nil, err.Error()); perr != nil {
				return nil, errors.Join(err, perr)
			}
			return c.run(StatusPaused, node, nil, err.Error()), &NodeError{ThreadID: c.threadID, Node: node, Err: err}
		}

		if next == graph.End {
			if err := e.persist(ctx, c, StatusCompleted, "", nil, ""); err != nil {
				return nil, err
			}
			if e.opts.observer != nil {
				e.opts.observer.Completed()
			}
			log.Info("Thread completed", "seq", c.seq)
			return c.run(StatusCompleted, "", nil, ""), nil
		}

		if err := e.persist(ctx, c, StatusRunning, next, nil, ""); err != nil {
			return nil, err
		}
		log.Debug("Node finished", "node", node, "next", next, "seq", c.seq)
		node, in = next, graph.Input{}
	}
}

func (e *Engine[S, U]) observe(node, outcome string, d time.Duration) {
	if e.opts.observer != nil {
		e.opts.observer.NodeFinished(node, outcome, d)
	}
}
