package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/semfolio/conversation"
	"github.com/c360studio/semfolio/engine"
	"github.com/c360studio/semfolio/llm/testutil"
	"github.com/c360studio/semfolio/orchestration"
	"github.com/c360studio/semfolio/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t          *testing.T
	model      *testutil.ScriptedModel
	configPath string
	transcript string
}

func newHarness(t *testing.T, backend string) *harness {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "semfolio.yaml")
	storePath := filepath.Join(dir, "state")
	if backend == "sqlite" {
		storePath = filepath.Join(dir, "checkpoints.db")
	}
	cfg := "checkpoint:\n  backend: " + backend + "\n  path: " + storePath + "\nmetrics:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))

	text := "I saw a patient with chest pain, took a history, recorded an ECG and arranged admission."
	msgs := []conversation.Message{{
		ID:               "m1",
		ConversationID:   "conv-cli",
		Role:             conversation.RoleUser,
		ProcessingStatus: conversation.StatusComplete,
		Content:          &text,
		CreatedAt:        time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC),
	}}
	data, err := json.Marshal(msgs)
	require.NoError(t, err)
	transcript := filepath.Join(dir, "transcript.json")
	require.NoError(t, os.WriteFile(transcript, data, 0644))

	model := testutil.NewScriptedModel().
		Reply(workflow.SchemaClassification, map[string]any{
			"entryType":    "clinical_case_review",
			"confidence":   0.9,
			"reasoning":    "patient encounter",
			"signalsFound": []string{"chest pain", "ECG"},
			"alternatives": []any{},
		}).
		Reply(workflow.SchemaCoverage, map[string]any{"sections": []map[string]any{
			{"sectionId": "presentation", "covered": true, "evidence": "chest pain"},
			{"sectionId": "clinical_reasoning", "covered": true, "evidence": "ECG"},
			{"sectionId": "learning", "covered": true, "evidence": "admission"},
			{"sectionId": "future_practice", "covered": true, "evidence": "admission"},
		}}).
		Reply(workflow.SchemaCapabilities, map[string]any{"capabilities": []map[string]any{
			{"code": "data_gathering", "confidence": 0.9, "evidence": []string{"took a history"}},
			{"code": "making_decisions", "confidence": 0.8, "evidence": []string{"arranged admission"}},
		}}).
		Reply(workflow.SchemaReflection, map[string]string{"reflection": "<h2>Learning</h2><p>Escalate early.</p>"}).
		Reply(workflow.SchemaPDP, map[string]any{"actions": []map[string]string{{"action": "Audit ECG use", "timeframe": "3 months"}}})

	return &harness{t: t, model: model, configPath: configPath, transcript: transcript}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&cli{out: &out, errOut: &errOut, model: h.model})
	cmd.SetArgs(append([]string{"--config", h.configPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) state(args ...string) *orchestration.GraphState {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	var st orchestration.GraphState
	require.NoError(h.t, json.Unmarshal([]byte(out), &st), out)
	return &st
}

func TestCLIWorkflowAcrossInvocations(t *testing.T) {
	for _, backend := range []string{"sqlite", "badger"} {
		t.Run(backend, func(t *testing.T) {
			h := newHarness(t, backend)

			st := h.state("status", "--conversation", "conv-cli")
			assert.Equal(t, engine.StatusNotStarted, st.Status)

			st = h.state("start", "--conversation", "conv-cli", "--artefact", "a1", "--user", "u1",
				"--specialty", "gp", "--transcript", h.transcript)
			assert.Equal(t, engine.StatusPaused, st.Status)
			assert.Equal(t, workflow.NodePresentClassification, st.Node)

			st = h.state("resume", "--conversation", "conv-cli", "--node", workflow.NodePresentClassification,
				"--value", `"clinical_case_review"`, "--transcript", h.transcript)
			assert.Equal(t, workflow.NodePresentCapabilities, st.Node)

			st = h.state("resume", "--conversation", "conv-cli", "--node", workflow.NodePresentCapabilities,
				"--value", `{"selected":["making_decisions"]}`, "--transcript", h.transcript)
			assert.Equal(t, engine.StatusCompleted, st.Status)
			require.NotNil(t, st.State)
			require.Len(t, st.State.Capabilities, 1)
			assert.Equal(t, "making_decisions", st.State.Capabilities[0].Code)
			require.NotNil(t, st.State.Reflection)
			assert.Equal(t, "## Learning\n\nEscalate early.", *st.State.Reflection)
			assert.True(t, st.State.Saved)

			st = h.state("status", "--conversation", "conv-cli")
			assert.Equal(t, engine.StatusCompleted, st.Status)

			out, err := h.run("history", "--conversation", "conv-cli")
			require.NoError(t, err)
			assert.Contains(t, out, "SEQ")
			assert.Contains(t, out, "completed")
			assert.Contains(t, out, workflow.NodePresentCapabilities)

			_, err = h.run("start", "--conversation", "conv-cli", "--artefact", "a1", "--user", "u1",
				"--specialty", "gp", "--transcript", h.transcript)
			assert.Equal(t, orchestration.KindConflict, orchestration.KindOf(err))
		})
	}
}

func TestCLIRejectsWrongNode(t *testing.T) {
	h := newHarness(t, "sqlite")
	h.state("start", "--conversation", "conv-cli", "--artefact", "a1", "--user", "u1",
		"--specialty", "gp", "--transcript", h.transcript)

	_, err := h.run("resume", "--conversation", "conv-cli", "--node", workflow.NodeAskFollowUp,
		"--transcript", h.transcript)
	assert.ErrorIs(t, err, engine.ErrNodeMismatch)
}

func TestCLIPausedListsWaitingConversations(t *testing.T) {
	for _, backend := range []string{"sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			h := newHarness(t, backend)
			out, err := h.run("paused")
			require.NoError(t, err)
			assert.Empty(t, strings.TrimSpace(out))
		})
	}

	h := newHarness(t, "sqlite")
	h.state("start", "--conversation", "conv-cli", "--artefact", "a1", "--user", "u1",
		"--specialty", "gp", "--transcript", h.transcript)
	out, err := h.run("paused")
	require.NoError(t, err)
	assert.Equal(t, "conv-cli", strings.TrimSpace(out))
}

func TestCLIPausedUnsupportedBackend(t *testing.T) {
	h := newHarness(t, "badger")
	_, err := h.run("paused")
	assert.ErrorContains(t, err, "cannot list paused")
}

func TestCLIRequiredFlags(t *testing.T) {
	h := newHarness(t, "sqlite")
	_, err := h.run("start", "--conversation", "conv-cli")
	assert.ErrorContains(t, err, "transcript")
}

func TestCLIInformationalCommands(t *testing.T) {
	h := newHarness(t, "sqlite")

	out, err := h.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "semfolio version "+Version)
	assert.Contains(t, out, "openai")

	out, err = h.run("graph")
	require.NoError(t, err)
	assert.Contains(t, out, "flowchart TD")
	assert.Contains(t, out, workflow.NodeAskFollowUp)

	out, err = h.run("specialties")
	require.NoError(t, err)
	assert.Contains(t, out, "gp\tGeneral Practice")
	assert.Contains(t, out, "clinical_case_review")

	out, err = h.run("config")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: sqlite")
	assert.Contains(t, out, "max_followup_rounds: 2")
}

func TestCLIBadConfig(t *testing.T) {
	h := newHarness(t, "sqlite")
	require.NoError(t, os.WriteFile(h.configPath, []byte("checkpoint:\n  backend: postgres\n"), 0644))
	_, err := h.run("status", "--conversation", "conv-cli")
	assert.ErrorContains(t, err, "checkpoint.backend")
}
