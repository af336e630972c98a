package workflow

import (
	"errors"
	"fmt"
)

// Tuning holds the policy constants of the workflow.
type Tuning struct {
	// MaxFollowUpRounds caps how many times ask_followup may suspend.
	MaxFollowUpRounds int `yaml:"max_followup_rounds" json:"maxFollowUpRounds"`

	ShortTranscriptWords int     `yaml:"short_transcript_words" json:"shortTranscriptWords"`
	ShortTranscriptCap   float64 `yaml:"short_transcript_cap" json:"shortTranscriptCap"`
	MinSignals           int     `yaml:"min_signals" json:"minSignals"`
	FewSignalsCap        float64 `yaml:"few_signals_cap" json:"fewSignalsCap"`
	AlternativeGap       float64 `yaml:"alternative_gap" json:"alternativeGap"`
	AlternativePenalty   float64 `yaml:"alternative_penalty" json:"alternativePenalty"`

	MaxFollowUpQuestions int `yaml:"max_followup_questions" json:"maxFollowUpQuestions"`
	MaxCapabilities      int `yaml:"max_capabilities" json:"maxCapabilities"`
	MaxPDPActions        int `yaml:"max_pdp_actions" json:"maxPdpActions"`
	MessageLimit         int `yaml:"message_limit" json:"messageLimit"`
}

// DefaultTuning returns the production policy.
func DefaultTuning() Tuning {
	return Tuning{
		MaxFollowUpRounds:    2,
		ShortTranscriptWords: 50,
		ShortTranscriptCap:   0.85,
		MinSignals:           2,
		FewSignalsCap:        0.9,
		AlternativeGap:       0.15,
		AlternativePenalty:   0.1,
		MaxFollowUpQuestions: 3,
		MaxCapabilities:      5,
		MaxPDPActions:        2,
		MessageLimit:         500,
	}
}

// Validate reports out-of-range values.
func (t Tuning) Validate() error {
	var errs []error
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	if t.MaxFollowUpRounds < 0 {
		errs = append(errs, fmt.Errorf("max_followup_rounds must not be negative, got %d", t.MaxFollowUpRounds))
	}
	if t.ShortTranscriptWords < 0 || t.MinSignals < 0 {
		errs = append(errs, errors.New("word and signal thresholds must not be negative"))
	}
	unit("short_transcript_cap", t.ShortTranscriptCap)
	unit("few_signals_cap", t.FewSignalsCap)
	unit("alternative_gap", t.AlternativeGap)
	unit("alternative_penalty", t.AlternativePenalty)
	positive("max_followup_questions", t.MaxFollowUpQuestions)
	positive("max_capabilities", t.MaxCapabilities)
	positive("max_pdp_actions", t.MaxPDPActions)
	positive("message_limit", t.MessageLimit)

	return errors.Join(errs...)
}
