package workflow

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/c360studio/semfolio/graph"
	"github.com/c360studio/semfolio/llm"
	"github.com/c360studio/semfolio/specialty"
	"github.com/c360studio/semfolio/workflow/prompts"
)

type capabilityAnswer struct {
	Capabilities []Capability `json:"capabilities"`
}

// TagCapabilities maps the transcript onto the specialty's capability
// taxonomy.
func TagCapabilities(d *Deps) graph.NodeFunc[State, Update] {
	return func(ctx context.Context, s State, _ graph.Input) (graph.Result[Update], error) {
		cfg, err := d.config(s.Specialty)
		if err != nil {
			return graph.Result[Update]{}, err
		}

		entryName := s.EntryTypeCode()
		if et, ok := cfg.EntryType(entryName); ok {
			entryName = et.Name
		}

		messages := []llm.Message{
			{Role: "system", Content: prompts.CapabilitySystemPrompt(cfg, entryName, d.Tuning.MaxCapabilities)},
			{Role: "user", Content: prompts.TranscriptPrompt(s.FullTranscript)},
		}
		var answer capabilityAnswer
		if err := d.invoke(ctx, NodeTagCapabilities, capabilitySchema, messages, 0, &answer); err != nil {
			return graph.Result[Update]{}, err
		}

		tags := ValidateCapabilities(cfg, answer.Capabilities, d.Tuning.MaxCapabilities)
		d.logger().Info("Capabilities tagged",
			"conversation_id", s.ConversationID,
			"proposed", len(answer.Capabilities),
			"kept", len(tags))

		return graph.Continue(Update{Capabilities: &tags}), nil
	}
}

// ValidateCapabilities drops unknown codes, repeated codes and tags without
// evidence, orders the rest by confidence descending, keeps at most limit
// and replaces names with the taxonomy's canonical names.
func ValidateCapabilities(cfg *specialty.Config, proposed []Capability, limit int) []Capability {
	seen := map[string]bool{}
	out := make([]Capability, 0, len(proposed))
	for _, c := range proposed {
		code := strings.TrimSpace(c.Code)
		known, ok := cfg.Capability(code)
		if !ok || seen[code] {
			continue
		}
		evidence := nonEmpty(c.Evidence)
		if len(evidence) == 0 {
			continue
		}
		seen[code] = true
		out = append(out, Capability{
			Code:       code,
			Name:       known.Name,
			Evidence:   evidence,
			Confidence: c.Confidence,
		})
	}

	slices.SortStableFunc(out, func(a, b Capability) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CapabilityPayload is handed to the caller when present_capabilities
// suspends.
type CapabilityPayload struct {
	Type      string       `json:"type"`
	Options   []Capability `json:"options"`
	EntryType string       `json:"entryType"`
}

// CapabilitySelection is the object form of the resume value.
type CapabilitySelection struct {
	Selected []string `json:"selected"`
}

// PresentCapabilities suspends with the tagged capabilities. On resume only
// presented codes that were selected are kept; an empty selection keeps all.
func PresentCapabilities(d *Deps) graph.NodeFunc[State, Update] {
	return func(_ context.Context, s State, in graph.Input) (graph.Result[Update], error) {
		if !in.Resumed() {
			options := append([]Capability{}, s.Capabilities...)
			return graph.Interrupt(CapabilityPayload{
				Type:      "capabilities",
				Options:   options,
				EntryType: s.EntryTypeCode(),
			}, Update{}), nil
		}

		selected := parseSelection(in.Resume)
		kept := make([]Capability, 0, len(s.Capabilities))
		for _, c := range s.Capabilities {
			if slices.Contains(selected, c.Code) {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			d.logger().Info("No valid capability selection, keeping all",
				"conversation_id", s.ConversationID, "selection", selected)
			return graph.Continue(Update{}), nil
		}
		return graph.Continue(Update{Capabilities: &kept}), nil
	}
}

// parseSelection accepts ["code", ...] or {"selected": ["code", ...]}.
func parseSelection(raw json.RawMessage) []string {
	var codes []string
	if err := json.Unmarshal(raw, &codes); err == nil {
		return nonEmpty(codes)
	}
	var sel CapabilitySelection
	if err := json.Unmarshal(raw, &sel); err == nil {
		return nonEmpty(sel.Selected)
	}
	return nil
}

func capabilityRefs(caps []Capability) []prompts.CapabilityRef {
	refs := make([]prompts.CapabilityRef, len(caps))
	for i, c := range caps {
		refs[i] = prompts.CapabilityRef{Code: c.Code, Name: c.Name}
	}
	return refs
}
