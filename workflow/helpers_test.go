package workflow

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/c360studio/semfolio/conversation"
	"github.com/c360studio/semfolio/llm/testutil"
	"github.com/c360studio/semfolio/specialty"
	"github.com/stretchr/testify/require"
)

const testConversation = "conv-1"

var baseTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func userMessage(n int, text string) conversation.Message {
	return conversation.Message{
		ID:               fmt.Sprintf("m%02d", n),
		ConversationID:   testConversation,
		Role:             conversation.RoleUser,
		ProcessingStatus: conversation.StatusComplete,
		Content:          &text,
		CreatedAt:        baseTime.Add(time.Duration(n) * time.Minute),
	}
}

func newTestDeps(t *testing.T, model *testutil.ScriptedModel, msgs ...conversation.Message) (*Deps, *conversation.MemoryRepository) {
	t.Helper()
	reg, err := specialty.NewDefaultRegistry()
	require.NoError(t, err)
	repo := conversation.NewMemoryRepository(msgs...)
	return &Deps{
		Messages:    repo,
		Model:       model,
		Specialties: reg,
		Tuning:      DefaultTuning(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, repo
}

func gpState() State {
	s := Initial(testConversation, "art-1", "user-1", "gp")
	s.FullTranscript = longTranscript
	return s
}

func withEntryType(s State, code string) State {
	s.EntryType = &code
	return s
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

const longTranscript = `I saw a 58 year old man with two days of central chest pain radiating to his
left arm. He was sweaty and anxious. I took a focused history, checked his observations and
recorded an ECG which showed ST depression in the lateral leads. I considered acute coronary
syndrome as the main differential and arranged an urgent ambulance transfer. I learned to act
on red flags early and will review the chest pain pathway with my supervisor next week.`

func classification(code string, confidence float64, signals []string, alts ...Alternative) map[string]any {
	if alts == nil {
		alts = []Alternative{}
	}
	return map[string]any{
		"entryType":    code,
		"confidence":   confidence,
		"reasoning":    "clinical encounter with reasoning",
		"signalsFound": signals,
		"alternatives": alts,
	}
}

func coverage(covered map[string]bool) map[string]any {
	var sections []map[string]any
	for id, ok := range covered {
		sections = append(sections, map[string]any{"sectionId": id, "covered": ok, "evidence": "quote for " + id})
	}
	return map[string]any{"sections": sections}
}

// caseReviewCovered marks every assessable case_review section covered
// except the listed ones.
func caseReviewCovered(missing ...string) map[string]any {
	covered := map[string]bool{
		"presentation":       true,
		"clinical_reasoning": true,
		"learning":           true,
		"future_practice":    true,
	}
	for _, id := range missing {
		covered[id] = false
	}
	return coverage(covered)
}
