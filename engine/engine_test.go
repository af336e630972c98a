package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semfolio/engine"
	"github.com/c360studio/semfolio/graph"
	"github.com/c360studio/semfolio/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trail struct {
	Visited []string `json:"visited"`
	Answer  string   `json:"answer,omitempty"`
	Fail    bool     `json:"fail,omitempty"`
	Halt    bool     `json:"halt,omitempty"`
}

type mark struct {
	Node   string
	Answer string
}

func reduce(s trail, u mark) trail {
	if u.Node != "" {
		s.Visited = append(append([]string(nil), s.Visited...), u.Node)
	}
	if u.Answer != "" {
		s.Answer = u.Answer
	}
	return s
}

type recorder struct {
	mu          sync.Mutex
	finished    []string
	interrupted []string
	completed   int
}

func (r *recorder) NodeFinished(node, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, node+":"+outcome)
}

func (r *recorder) Interrupted(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interrupted = append(r.interrupted, node)
}

func (r *recorder) Completed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

// testGraph runs first -> ask -> last. ask interrupts once and records the
// resume value as the answer.
func testGraph(t *testing.T, askCalls *int) *graph.Graph[trail, mark] {
	t.Helper()
	g, err := graph.NewBuilder[trail, mark](reduce).
		AddNode("first", func(_ context.Context, s trail, _ graph.Input) (graph.Result[mark], error) {
			if s.Fail {
				return graph.Result[mark]{}, errors.New("boom")
			}
			if s.Halt {
				return graph.Halt("upstream unavailable", mark{Node: "first"}), nil
			}
			return graph.Continue(mark{Node: "first"}), nil
		}).
		AddNode("ask", func(_ context.Context, _ trail, in graph.Input) (graph.Result[mark], error) {
			*askCalls++
			if !in.Resumed() {
				return graph.Interrupt(map[string]string{"question": "why?"}, mark{}), nil
			}
			var payload map[string]string
			if err := json.Unmarshal(in.Payload, &payload); err != nil {
				return graph.Result[mark]{}, err
			}
			var answer string
			_ = json.Unmarshal(in.Resume, &answer)
			return graph.Continue(mark{Node: "ask", Answer: payload["question"] + answer}), nil
		}).
		AddNode("last", func(context.Context, trail, graph.Input) (graph.Result[mark], error) {
			return graph.Continue(mark{Node: "last"}), nil
		}).
		AddEdge("first", "ask").
		AddEdge("ask", "last").
		AddEdge("last", graph.End).
		SetEntry("first").
		Build()
	require.NoError(t, err)
	return g
}

func TestInterruptAndResume(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	obs := &recorder{}
	calls := 0
	e := engine.New(testGraph(t, &calls), store, engine.WithObserver(obs))

	run, err := e.Start(ctx, "t1", trail{})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaused, run.Status)
	assert.Equal(t, "ask", run.Node)
	assert.JSONEq(t, `{"question":"why?"}`, string(run.Payload))
	assert.Equal(t, []string{"first"}, run.State.Visited)

	status, err := e.Status(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaused, status.Status)
	assert.Equal(t, "ask", status.Node)

	run, err = e.Resume(ctx, "t1", engine.ResumeRequest{Node: "ask", Value: json.RawMessage(`" because"`)})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, run.Status)
	assert.Equal(t, []string{"first", "ask", "last"}, run.State.Visited)
	assert.Equal(t, "why? because", run.State.Answer)
	assert.Equal(t, 2, calls)

	history, err := e.History(ctx, "t1")
	require.NoError(t, err)
	require.NotEmpty(t, history)
	for i, cp := range history {
		assert.Equal(t, i+1, cp.Seq)
		assert.True(t, cp.Initialized)
	}
	assert.Equal(t, engine.StatusCompleted, history[len(history)-1].Status)

	assert.Equal(t, []string{"ask"}, obs.interrupted)
	assert.Equal(t, 1, obs.completed)
	assert.Contains(t, obs.finished, "ask:interrupt")
}

func TestGuards(t *testing.T) {
	ctx := context.Background()
	calls := 0
	e := engine.New(testGraph(t, &calls), storage.NewMemory())

	_, err := e.Resume(ctx, "nope", engine.ResumeRequest{})
	assert.ErrorIs(t, err, engine.ErrNotStarted)

	status, err := e.Status(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusNotStarted, status.Status)

	_, err = e.Start(ctx, "t", trail{})
	require.NoError(t, err)

	_, err = e.Start(ctx, "t", trail{})
	assert.ErrorIs(t, err, engine.ErrAlreadyStarted)

	_, err = e.Resume(ctx, "t", engine.ResumeRequest{Node: "first"})
	assert.ErrorIs(t, err, engine.ErrNodeMismatch)

	_, err = e.Resume(ctx, "t", engine.ResumeRequest{})
	require.NoError(t, err)

	_, err = e.Resume(ctx, "t", engine.ResumeRequest{})
	assert.ErrorIs(t, err, engine.ErrCompleted)
}

func TestResumeWithoutValueDeliversNull(t *testing.T) {
	ctx := context.Background()
	calls := 0
	e := engine.New(testGraph(t, &calls), storage.NewMemory())

	_, err := e.Start(ctx, "t", trail{})
	require.NoError(t, err)

	run, err := e.Resume(ctx, "t", engine.ResumeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "why?", run.State.Answer)
}

func TestHaltPausesWithReason(t *testing.T) {
	ctx := context.Background()
	calls := 0
	store := storage.NewMemory()
	e := engine.New(testGraph(t, &calls), store)

	run, err := e.Start(ctx, "t", trail{Halt: true})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaused, run.Status)
	assert.Equal(t, "first", run.Node)
	assert.Equal(t, "upstream unavailable", run.Error)
	assert.Empty(t, run.Payload)
	assert.Equal(t, 0, calls)
}

func TestNodeErrorIsRetryable(t *testing.T) {
	ctx := context.Background()
	calls := 0
	e := engine.New(testGraph(t, &calls), storage.NewMemory())

	run, err := e.Start(ctx, "t", trail{Fail: true})
	var nodeErr *engine.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "first", nodeErr.Node)
	require.NotNil(t, run)
	assert.Equal(t, engine.StatusPaused, run.Status)
	assert.Equal(t, "boom", run.Error)

	status, err := e.Status(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "boom", status.Error)

	// Retrying re-runs the failing node fresh.
	_, err = e.Resume(ctx, "t", engine.ResumeRequest{})
	assert.ErrorAs(t, err, &nodeErr)
}

func TestStepLimit(t *testing.T) {
	g, err := graph.NewBuilder[trail, mark](reduce).
		AddNode("loop", func(context.Context, trail, graph.Input) (graph.Result[mark], error) {
			return graph.Continue(mark{Node: "loop"}), nil
		}).
		AddRouter("loop", func(trail) string { return "loop" }, "loop").
		SetEntry("loop").
		Build()
	require.NoError(t, err)

	e := engine.New(g, storage.NewMemory(), engine.WithMaxSteps(5))
	run, err := e.Start(context.Background(), "t", trail{})
	assert.ErrorIs(t, err, engine.ErrStepLimit)
	assert.Equal(t, engine.StatusPaused, run.Status)
	assert.Len(t, run.State.Visited, 5)
}

func TestRecoverRunningThread(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	calls := 0
	e := engine.New(testGraph(t, &calls), store, engine.WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	}))

	state, err := json.Marshal(trail{Visited: []string{"first"}})
	require.NoError(t, err)
	_, err = store.Append(ctx, &engine.Checkpoint{
		ID: "c1", ThreadID: "t", Seq: 1, Initialized: true,
		Status: engine.StatusRunning, Node: "ask", State: state,
	}, 0)
	require.NoError(t, err)

	_, err = e.Resume(ctx, "t", engine.ResumeRequest{})
	assert.ErrorIs(t, err, engine.ErrNotPaused)

	run, err := e.Recover(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaused, run.Status)
	assert.Equal(t, "ask", run.Node)

	latest, err := store.Latest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), latest.CreatedAt)
}

func TestUninitializedCheckpointIsNotStarted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	_, err := store.Append(ctx, &engine.Checkpoint{ThreadID: "t", Seq: 1, State: json.RawMessage(`{}`)}, 0)
	require.NoError(t, err)

	calls := 0
	e := engine.New(testGraph(t, &calls), store)
	_, err = e.Resume(ctx, "t", engine.ResumeRequest{})
	assert.ErrorIs(t, err, engine.ErrNotStarted)

	run, err := e.Start(ctx, "t", trail{})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaused, run.Status)
}

func TestStaleVersionRejected(t *testing.T) {
	ctx := context.Background()
	calls := 0
	store := storage.NewMemory()
	e := engine.New(testGraph(t, &calls), store)
	_, err := e.Start(ctx, "t", trail{})
	require.NoError(t, err)

	// Simulate a writer that advanced the thread after we read it.
	latest, err := store.Latest(ctx, "t")
	require.NoError(t, err)
	next := latest.Clone()
	next.Seq++
	_, err = store.Append(ctx, next, latest.Version)
	require.NoError(t, err)
	_, err = store.Append(ctx, next, latest.Version)
	assert.ErrorIs(t, err, engine.ErrConflict)
}
