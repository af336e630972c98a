package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/semfolio/graph"
	"github.com/c360studio/semfolio/llm"
	"github.com/c360studio/semfolio/specialty"
	"github.com/c360studio/semfolio/workflow/prompts"
)

type classificationAnswer struct {
	EntryType    string        `json:"entryType"`
	Confidence   float64       `json:"confidence"`
	Reasoning    string        `json:"reasoning"`
	SignalsFound []string      `json:"signalsFound"`
	Alternatives []Alternative `json:"alternatives"`
}

// Classify asks the model for the entry type and deflates its confidence.
func Classify(d *Deps) graph.NodeFunc[State, Update] {
	return func(ctx context.Context, s State, _ graph.Input) (graph.Result[Update], error) {
		cfg, err := d.config(s.Specialty)
		if err != nil {
			return graph.Result[Update]{}, err
		}

		messages := []llm.Message{
			{Role: "system", Content: prompts.ClassifySystemPrompt(cfg)},
			{Role: "user", Content: prompts.TranscriptPrompt(s.FullTranscript)},
		}
		var answer classificationAnswer
		if err := d.invoke(ctx, NodeClassify, classificationSchema, messages, 0, &answer); err != nil {
			return graph.Result[Update]{}, err
		}

		code := strings.TrimSpace(answer.EntryType)
		if !cfg.IsEntryType(code) {
			return graph.Result[Update]{}, fmt.Errorf("%w: %q is not defined for specialty %s",
				ErrUnrecognizedEntryType, answer.EntryType, cfg.Specialty)
		}

		signals := nonEmpty(answer.SignalsFound)
		alternatives := knownAlternatives(cfg, code, answer.Alternatives)
		confidence := AdjustConfidence(answer.Confidence, len(strings.Fields(s.FullTranscript)),
			len(signals), alternatives, d.Tuning)

		d.logger().Info("Entry classified",
			"conversation_id", s.ConversationID,
			"entry_type", code,
			"raw_confidence", answer.Confidence,
			"confidence", confidence)

		return graph.Continue(Update{
			EntryType:                &code,
			ClassificationConfidence: &confidence,
			ClassificationReasoning:  &answer.Reasoning,
			ClassificationSignals:    &signals,
			Alternatives:             &alternatives,
			ClassificationSource:     ptr(SourceLLM),
		}), nil
	}
}

// knownAlternatives keeps alternatives naming a defined entry type other than
// primary, first occurrence wins.
func knownAlternatives(cfg *specialty.Config, primary string, alts []Alternative) []Alternative {
	seen := map[string]bool{primary: true}
	out := make([]Alternative, 0, len(alts))
	for _, alt := range alts {
		code := strings.TrimSpace(alt.EntryType)
		if seen[code] || !cfg.IsEntryType(code) {
			continue
		}
		seen[code] = true
		alt.EntryType = code
		out = append(out, alt)
	}
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ClassificationOption is one selectable entry type.
type ClassificationOption struct {
	EntryType  string  `json:"entryType"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ClassificationPayload is handed to the caller when present_classification
// suspends.
type ClassificationPayload struct {
	Type               string                 `json:"type"`
	Options            []ClassificationOption `json:"options"`
	SuggestedEntryType string                 `json:"suggestedEntryType"`
	Reasoning          string                 `json:"reasoning"`
}

// ClassificationChoice is the object form of the resume value.
type ClassificationChoice struct {
	EntryType string `json:"entryType"`
}

// PresentClassification suspends with the suggested entry type and its
// alternatives. On resume a known entry type code overrides the suggestion;
// either way the classification becomes user confirmed.
func PresentClassification(d *Deps) graph.NodeFunc[State, Update] {
	return func(_ context.Context, s State, in graph.Input) (graph.Result[Update], error) {
		cfg, err := d.config(s.Specialty)
		if err != nil {
			return graph.Result[Update]{}, err
		}

		if !in.Resumed() {
			return graph.Interrupt(classificationPayload(cfg, s), Update{}), nil
		}

		update := Update{ClassificationSource: ptr(SourceUserConfirmed)}
		chosen := parseEntryTypeChoice(in.Resume)
		if cfg.IsEntryType(chosen) {
			update.EntryType = &chosen
			update.ClassificationConfidence = ptr(1.0)
		} else {
			d.logger().Info("Ignoring unknown entry type selection",
				"conversation_id", s.ConversationID, "selection", chosen, "kept", s.EntryTypeCode())
		}
		return graph.Continue(update), nil
	}
}

func classificationPayload(cfg *specialty.Config, s State) ClassificationPayload {
	label := func(code string) string {
		if et, ok := cfg.EntryType(code); ok {
			return et.Name
		}
		return code
	}

	suggested := s.EntryTypeCode()
	options := make([]ClassificationOption, 0, 1+len(s.Alternatives))
	seen := map[string]bool{}
	if suggested != "" {
		seen[suggested] = true
		options = append(options, ClassificationOption{
			EntryType:  suggested,
			Label:      label(suggested),
			Confidence: s.ClassificationConfidence,
		})
	}
	for _, alt := range s.Alternatives {
		if seen[alt.EntryType] || !cfg.IsEntryType(alt.EntryType) {
			continue
		}
		seen[alt.EntryType] = true
		options = append(options, ClassificationOption{
			EntryType:  alt.EntryType,
			Label:      label(alt.EntryType),
			Confidence: alt.Confidence,
		})
	}

	return ClassificationPayload{
		Type:               "classification",
		Options:            options,
		SuggestedEntryType: suggested,
		Reasoning:          s.ClassificationReasoning,
	}
}

// parseEntryTypeChoice accepts "code" or {"entryType": "code"}.
func parseEntryTypeChoice(raw json.RawMessage) string {
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return strings.TrimSpace(code)
	}
	var choice ClassificationChoice
	if err := json.Unmarshal(raw, &choice); err == nil {
		return strings.TrimSpace(choice.EntryType)
	}
	return ""
}
