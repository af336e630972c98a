package workflow

import (
	"context"
	"math"
	"strings"

	"github.com/c360studio/semfolio/graph"
	"github.com/c360studio/semfolio/llm"
	"github.com/c360studio/semfolio/workflow/prompts"
)

// ReflectionTokenBudget converts a word ceiling into a completion token
// budget, leaving room for headings and markup.
func ReflectionTokenBudget(maxWords int) int {
	return int(math.Ceil(float64(maxWords) / 0.75 * 1.4))
}

type reflectionAnswer struct {
	Reflection string `json:"reflection"`
}

// Reflect writes the narrative following the entry type's template.
func Reflect(d *Deps) graph.NodeFunc[State, Update] {
	normalizer := newMarkdownNormalizer()

	return func(ctx context.Context, s State, _ graph.Input) (graph.Result[Update], error) {
		cfg, err := d.config(s.Specialty)
		if err != nil {
			return graph.Result[Update]{}, err
		}
		tmpl, err := cfg.Template(s.EntryTypeCode())
		if err != nil {
			return graph.Result[Update]{}, err
		}

		messages := []llm.Message{
			{Role: "system", Content: prompts.ReflectionSystemPrompt(tmpl, capabilityRefs(s.Capabilities))},
			{Role: "user", Content: prompts.TranscriptPrompt(s.FullTranscript)},
		}
		var answer reflectionAnswer
		budget := ReflectionTokenBudget(tmpl.WordCountRange.Max)
		if err := d.invoke(ctx, NodeReflect, reflectionSchema, messages, budget, &answer); err != nil {
			return graph.Result[Update]{}, err
		}

		text := normalizer.Normalize(answer.Reflection)
		d.logger().Info("Reflection written",
			"conversation_id", s.ConversationID,
			"template", tmpl.ID,
			"words", len(strings.Fields(text)))

		return graph.Continue(Update{Reflection: &text}), nil
	}
}

type pdpAnswer struct {
	Actions []PDPAction `json:"actions"`
}

// GeneratePDP proposes development actions grounded in the reflection.
// Without a reflection it records an empty plan.
func GeneratePDP(d *Deps) graph.NodeFunc[State, Update] {
	return func(ctx context.Context, s State, _ graph.Input) (graph.Result[Update], error) {
		if s.Reflection == nil || strings.TrimSpace(*s.Reflection) == "" {
			return graph.Continue(Update{PDPActions: &[]PDPAction{}}), nil
		}

		messages := []llm.Message{
			{Role: "system", Content: prompts.PDPSystemPrompt(capabilityRefs(s.Capabilities), d.Tuning.MaxPDPActions)},
			{Role: "user", Content: prompts.ReflectionPrompt(*s.Reflection)},
		}
		var answer pdpAnswer
		if err := d.invoke(ctx, NodeGeneratePDP, pdpSchema, messages, 0, &answer); err != nil {
			return graph.Result[Update]{}, err
		}

		actions := make([]PDPAction, 0, len(answer.Actions))
		for _, a := range answer.Actions {
			a.Action = strings.TrimSpace(a.Action)
			a.Timeframe = strings.TrimSpace(a.Timeframe)
			if a.Action == "" || a.Timeframe == "" {
				continue
			}
			actions = append(actions, a)
		}
		if len(actions) > d.Tuning.MaxPDPActions {
			actions = actions[:d.Tuning.MaxPDPActions]
		}
		return graph.Continue(Update{PDPActions: &actions}), nil
	}
}
