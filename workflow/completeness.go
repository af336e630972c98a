package workflow

import (
	"context"
	"strings"

	"github.com/c360studio/semfolio/graph"
	"github.com/c360studio/semfolio/llm"
	"github.com/c360studio/semfolio/workflow/prompts"
)

type coverageAnswer struct {
	Sections []struct {
		SectionID string `json:"sectionId"`
		Covered   bool   `json:"covered"`
		Evidence  string `json:"evidence"`
	} `json:"sections"`
}

// CheckCompleteness asks the model which assessable sections the transcript
// covers. Sections the model does not explicitly mark covered count as
// missing, and ids that were not asked about are ignored.
func CheckCompleteness(d *Deps) graph.NodeFunc[State, Update] {
	return func(ctx context.Context, s State, _ graph.Input) (graph.Result[Update], error) {
		if s.EntryType == nil {
			return graph.Continue(coverageUpdate(map[string]bool{}, map[string]string{}, nil)), nil
		}

		cfg, err := d.config(s.Specialty)
		if err != nil {
			return graph.Result[Update]{}, err
		}
		tmpl, err := cfg.Template(*s.EntryType)
		if err != nil {
			return graph.Result[Update]{}, err
		}

		sections := tmpl.AssessableSections()
		if len(sections) == 0 {
			return graph.Continue(coverageUpdate(map[string]bool{}, map[string]string{}, nil)), nil
		}

		messages := []llm.Message{
			{Role: "system", Content: prompts.CompletenessSystemPrompt(tmpl, sections)},
			{Role: "user", Content: prompts.TranscriptPrompt(s.FullTranscript)},
		}
		var answer coverageAnswer
		if err := d.invoke(ctx, NodeCheckCompleteness, coverageSchema, messages, 0, &answer); err != nil {
			return graph.Result[Update]{}, err
		}

		coverage := make(map[string]bool, len(sections))
		for _, sec := range sections {
			coverage[sec.ID] = false
		}
		evidence := make(map[string]string)
		for _, a := range answer.Sections {
			id := strings.TrimSpace(a.SectionID)
			if _, asked := coverage[id]; !asked {
				continue
			}
			if a.Covered {
				coverage[id] = true
			}
			if ev := strings.TrimSpace(a.Evidence); ev != "" && a.Covered {
				evidence[id] = ev
			}
		}

		var missing []string
		for _, sec := range sections {
			if !coverage[sec.ID] {
				missing = append(missing, sec.ID)
			}
		}

		d.logger().Info("Completeness checked",
			"conversation_id", s.ConversationID,
			"entry_type", *s.EntryType,
			"missing", missing,
			"follow_up_round", s.FollowUpRound)

		return graph.Continue(coverageUpdate(coverage, evidence, missing)), nil
	}
}

func coverageUpdate(coverage map[string]bool, evidence map[string]string, missing []string) Update {
	if missing == nil {
		missing = []string{}
	}
	return Update{
		SectionCoverage: &coverage,
		SectionEvidence: &evidence,
		MissingSections: &missing,
		HasEnoughInfo:   ptr(len(missing) == 0),
	}
}
