package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/c360studio/semfolio/conversation"
	"github.com/c360studio/semfolio/engine"
	"github.com/c360studio/semfolio/llm/testutil"
	"github.com/c360studio/semfolio/specialty"
	"github.com/c360studio/semfolio/storage"
	"github.com/c360studio/semfolio/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conv = "conv-9"

func message(id string, role conversation.Role, status conversation.ProcessingStatus, text string) conversation.Message {
	return conversation.Message{
		ID:               id,
		ConversationID:   conv,
		Role:             role,
		ProcessingStatus: status,
		Content:          &text,
		CreatedAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	svc   *Service
	repo  *conversation.MemoryRepository
	model *testutil.ScriptedModel
}

func newFixture(t *testing.T, msgs ...conversation.Message) *fixture {
	t.Helper()
	reg, err := specialty.NewDefaultRegistry()
	require.NoError(t, err)

	model := testutil.NewScriptedModel().
		Reply(workflow.SchemaClassification, map[string]any{
			"entryType":    "clinical_case_review",
			"confidence":   0.8,
			"reasoning":    "a patient encounter",
			"signalsFound": []string{"patient", "diagnosis"},
			"alternatives": []any{},
		}).
		Reply(workflow.SchemaCoverage, map[string]any{"sections": []any{}}).
		Reply(workflow.SchemaFollowUp, map[string]any{"questions": []any{}})

	repo := conversation.NewMemoryRepository(msgs...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := workflow.Definition(&workflow.Deps{
		Messages:    repo,
		Model:       model,
		Specialties: reg,
		Logger:      logger,
	})
	require.NoError(t, err)

	runner := engine.New(g, storage.NewMemory(), engine.WithLogger(logger))
	return &fixture{
		svc:   NewService(runner, repo, reg, WithLogger(logger)),
		repo:  repo,
		model: model,
	}
}

func startRequest() StartRequest {
	return StartRequest{ConversationID: conv, ArtefactID: "art-1", UserID: "user-1", Specialty: "gp"}
}

func completedUser() conversation.Message {
	return message("m1", conversation.RoleUser, conversation.StatusComplete, "I reviewed a patient with chest pain.")
}

func TestStartGraphPausesForClassification(t *testing.T) {
	f := newFixture(t, completedUser())
	ctx := context.Background()

	has, err := f.svc.HasCheckpoint(ctx, conv)
	require.NoError(t, err)
	assert.False(t, has)

	st, err := f.svc.StartGraph(ctx, startRequest())
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaused, st.Status)
	assert.Equal(t, workflow.NodePresentClassification, st.Node)
	require.NotNil(t, st.State)
	assert.Equal(t, "art-1", st.State.ArtefactID)

	var payload workflow.ClassificationPayload
	require.NoError(t, json.Unmarshal(st.Payload, &payload))
	assert.Equal(t, "clinical_case_review", payload.SuggestedEntryType)

	has, err = f.svc.HasCheckpoint(ctx, conv)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = f.svc.StartGraph(ctx, startRequest())
	assert.Equal(t, KindConflict, KindOf(err))
	assert.ErrorIs(t, err, engine.ErrAlreadyStarted)
}

func TestStartGraphRejections(t *testing.T) {
	tests := []struct {
		name    string
		msgs    []conversation.Message
		modify  func(*StartRequest)
		wantErr error
	}{
		{
			name:   "missing user",
			msgs:   []conversation.Message{completedUser()},
			modify: func(r *StartRequest) { r.UserID = "" },
		},
		{
			name:    "unknown specialty",
			msgs:    []conversation.Message{completedUser()},
			modify:  func(r *StartRequest) { r.Specialty = "dentistry" },
			wantErr: specialty.ErrConfiguration,
		},
		{
			name:    "no messages",
			modify:  func(*StartRequest) {},
			wantErr: ErrNoCompletedMessages,
		},
		{
			name: "only pending and assistant messages",
			msgs: []conversation.Message{
				message("m1", conversation.RoleUser, conversation.StatusProcessing, "still transcribing"),
				message("m2", conversation.RoleAssistant, conversation.StatusComplete, "Tell me more."),
			},
			modify:  func(*StartRequest) {},
			wantErr: ErrNoCompletedMessages,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.msgs...)
			req := startRequest()
			tt.modify(&req)

			st, err := f.svc.StartGraph(context.Background(), req)
			assert.Nil(t, st)
			assert.Equal(t, KindBadRequest, KindOf(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Zero(t, f.model.CallCount())

			state, err := f.svc.GetGraphState(context.Background(), conv)
			require.NoError(t, err)
			assert.Equal(t, engine.StatusNotStarted, state.Status)
			assert.Nil(t, state.State)
		})
	}
}

func TestResumeGraphGuards(t *testing.T) {
	f := newFixture(t, completedUser())
	ctx := context.Background()

	_, err := f.svc.ResumeGraph(ctx, conv, ResumeRequest{})
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.ErrorIs(t, err, engine.ErrNotStarted)

	_, err = f.svc.StartGraph(ctx, startRequest())
	require.NoError(t, err)

	_, err = f.svc.ResumeGraph(ctx, "", ResumeRequest{})
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = f.svc.ResumeGraph(ctx, conv, ResumeRequest{Value: json.RawMessage(`{"entryType":`)})
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = f.svc.ResumeGraph(ctx, conv, ResumeRequest{Node: workflow.NodeAskFollowUp})
	assert.Equal(t, KindConflict, KindOf(err))
	assert.ErrorIs(t, err, engine.ErrNodeMismatch)

	f.repo.Add(message("m2", conversation.RoleUser, conversation.StatusPending, ""))
	_, err = f.svc.ResumeGraph(ctx, conv, ResumeRequest{Node: workflow.NodePresentClassification})
	assert.Equal(t, KindConflict, KindOf(err))
	assert.ErrorIs(t, err, ErrMessagesPending)

	state, err := f.svc.GetGraphState(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, workflow.NodePresentClassification, state.Node)
}

func TestResumeGraphAdvances(t *testing.T) {
	f := newFixture(t, completedUser())
	ctx := context.Background()

	_, err := f.svc.StartGraph(ctx, startRequest())
	require.NoError(t, err)

	st, err := f.svc.ResumeGraph(ctx, conv, ResumeRequest{
		Node:  workflow.NodePresentClassification,
		Value: json.RawMessage(`{"entryType":"significant_event_analysis"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaused, st.Status)
	assert.Equal(t, workflow.NodeAskFollowUp, st.Node)
	assert.Equal(t, "significant_event_analysis", st.State.EntryTypeCode())
	assert.Equal(t, workflow.SourceUserConfirmed, st.State.ClassificationSource)
}

func TestNodeFailureIsInternalAndKeepsState(t *testing.T) {
	f := newFixture(t, completedUser())
	f.model = testutil.NewScriptedModel()
	reg, err := specialty.NewDefaultRegistry()
	require.NoError(t, err)
	g, err := workflow.Definition(&workflow.Deps{Messages: f.repo, Model: f.model, Specialties: reg})
	require.NoError(t, err)
	svc := NewService(engine.New(g, storage.NewMemory()), f.repo, reg)

	st, err := svc.StartGraph(context.Background(), startRequest())
	assert.Equal(t, KindInternal, KindOf(err))
	var nodeErr *engine.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, workflow.NodeClassify, nodeErr.Node)
	require.NotNil(t, st)
	assert.Equal(t, engine.StatusPaused, st.Status)
	assert.Equal(t, workflow.NodeClassify, st.Node)
}

type stuckRunner struct {
	Runner
}

func (stuckRunner) Status(context.Context, string) (*engine.Run[workflow.State], error) {
	return nil, errors.New("store unavailable")
}

func TestGraphStateStoreFailure(t *testing.T) {
	svc := NewService(stuckRunner{}, conversation.NewMemoryRepository(), nil)
	_, err := svc.HasCheckpoint(context.Background(), conv)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorContains(t, err, "store unavailable")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	wrapped := fmt.Errorf("handler: %w", &Error{Kind: KindConflict, Op: "start graph", Err: ErrMessagesPending})
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, "start graph: conversation has messages still processing", (&Error{Op: "start graph", Err: ErrMessagesPending}).Error())
}
