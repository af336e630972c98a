package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyIdentityIsWriteOnce(t *testing.T) {
	s := Initial("conv", "art", "user", "gp")
	s = s.Apply(Update{ConversationID: ptr("other"), Specialty: ptr("psych")})

	assert.Equal(t, "conv", s.ConversationID)
	assert.Equal(t, "gp", s.Specialty)
	assert.Equal(t, "art", s.ArtefactID)
}

func TestApplyFollowUpRoundNeverDecreases(t *testing.T) {
	s := State{}.Apply(Update{FollowUpRound: ptr(2)})
	s = s.Apply(Update{FollowUpRound: ptr(1)})
	assert.Equal(t, 2, s.FollowUpRound)

	s = s.Apply(Update{FollowUpRound: ptr(3)})
	assert.Equal(t, 3, s.FollowUpRound)
}

func TestApplyUserConfirmedIsSticky(t *testing.T) {
	s := State{}.Apply(Update{ClassificationSource: ptr(SourceLLM)})
	assert.Equal(t, SourceLLM, s.ClassificationSource)

	s = s.Apply(Update{ClassificationSource: ptr(SourceUserConfirmed)})
	s = s.Apply(Update{ClassificationSource: ptr(SourceLLM)})
	assert.Equal(t, SourceUserConfirmed, s.ClassificationSource)
}

func TestApplyReplacesOtherFields(t *testing.T) {
	s := State{}.Apply(Update{MissingSections: &[]string{"a", "b"}, HasEnoughInfo: ptr(false)})
	s = s.Apply(Update{MissingSections: &[]string{}, HasEnoughInfo: ptr(true)})
	assert.Empty(t, s.MissingSections)
	assert.True(t, s.HasEnoughInfo)

	s = s.Apply(Update{Error: ptr("boom")})
	assert.Equal(t, "boom", s.Error)
	s = s.Apply(Update{Error: ptr("")})
	assert.Empty(t, s.Error)
}

func TestApplyDoesNotAliasPointers(t *testing.T) {
	code := "clinical_case_review"
	s := State{}.Apply(Update{EntryType: &code})
	code = "changed"
	assert.Equal(t, "clinical_case_review", s.EntryTypeCode())
}

func TestStateRoundTripsThroughJSON(t *testing.T) {
	s := withEntryType(gpState(), "clinical_case_review")
	s.FollowUpRound = 1
	s.SectionCoverage = map[string]bool{"learning": false}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestTuningValidate(t *testing.T) {
	require.NoError(t, DefaultTuning().Validate())

	bad := DefaultTuning()
	bad.ShortTranscriptCap = 1.5
	bad.MaxCapabilities = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short_transcript_cap")
	assert.Contains(t, err.Error(), "max_capabilities")
}
