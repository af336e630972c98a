package workflow

import (
	"context"
	"slices"
	"strings"

	"github.com/c360studio/semfolio/graph"
	"github.com/c360studio/semfolio/llm"
	"github.com/c360studio/semfolio/specialty"
	"github.com/c360studio/semfolio/workflow/prompts"
)

// FollowUpQuestion asks for one missing section.
type FollowUpQuestion struct {
	SectionID string `json:"sectionId"`
	Label     string `json:"label"`
	Question  string `json:"question"`
}

// FollowUpPayload is handed to the caller when ask_followup suspends.
type FollowUpPayload struct {
	Type            string             `json:"type"`
	Questions       []FollowUpQuestion `json:"questions"`
	MissingSections []string           `json:"missingSections"`
	EntryType       string             `json:"entryType"`
	FollowUpRound   int                `json:"followUpRound"`
}

type followUpAnswer struct {
	Questions []struct {
		SectionID string `json:"sectionId"`
		Question  string `json:"question"`
	} `json:"questions"`
}

// AskFollowUp suspends with questions for the highest weighted missing
// sections. Every pass that offers a round, or finds nothing to ask, counts
// towards FollowUpRound. The resumed pass changes nothing; answers arrive as
// new messages picked up by gather_context.
func AskFollowUp(d *Deps) graph.NodeFunc[State, Update] {
	return func(ctx context.Context, s State, in graph.Input) (graph.Result[Update], error) {
		if in.Resumed() {
			return graph.Continue(Update{}), nil
		}

		round := s.FollowUpRound + 1
		bump := Update{FollowUpRound: &round}

		if s.EntryType == nil {
			return graph.Continue(bump), nil
		}
		cfg, err := d.config(s.Specialty)
		if err != nil {
			return graph.Result[Update]{}, err
		}
		tmpl, err := cfg.Template(*s.EntryType)
		if err != nil {
			return graph.Result[Update]{}, err
		}

		sections := askableSections(tmpl, s.MissingSections, d.Tuning.MaxFollowUpQuestions)
		if len(sections) == 0 {
			return graph.Continue(bump), nil
		}

		entryName := *s.EntryType
		if et, ok := cfg.EntryType(entryName); ok {
			entryName = et.Name
		}

		rephrased := map[string]string{}
		messages := []llm.Message{
			{Role: "system", Content: prompts.FollowUpSystemPrompt(entryName, sections)},
			{Role: "user", Content: prompts.TranscriptPrompt(s.FullTranscript)},
		}
		var answer followUpAnswer
		if err := d.invoke(ctx, NodeAskFollowUp, followUpSchema, messages, 0, &answer); err != nil {
			d.logger().Warn("Follow-up rephrasing failed, using default questions",
				"conversation_id", s.ConversationID, "error", err)
		} else {
			for _, q := range answer.Questions {
				id := strings.TrimSpace(q.SectionID)
				if _, dup := rephrased[id]; dup {
					continue
				}
				if text := strings.TrimSpace(q.Question); text != "" {
					rephrased[id] = text
				}
			}
		}

		questions := make([]FollowUpQuestion, 0, len(sections))
		for _, sec := range sections {
			text, ok := rephrased[sec.ID]
			if !ok {
				text = *sec.ExtractionQuestion
			}
			questions = append(questions, FollowUpQuestion{SectionID: sec.ID, Label: sec.Label, Question: text})
		}

		payload := FollowUpPayload{
			Type:            "followup",
			Questions:       questions,
			MissingSections: append([]string{}, s.MissingSections...),
			EntryType:       *s.EntryType,
			FollowUpRound:   round,
		}
		return graph.Interrupt(payload, bump), nil
	}
}

// askableSections returns up to limit missing sections that carry an
// extraction question, highest weight first. Ties keep template order.
func askableSections(tmpl *specialty.Template, missing []string, limit int) []specialty.Section {
	var out []specialty.Section
	for _, sec := range tmpl.AssessableSections() {
		if slices.Contains(missing, sec.ID) {
			out = append(out, sec)
		}
	}
	slices.SortStableFunc(out, func(a, b specialty.Section) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
