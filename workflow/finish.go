package workflow

import (
	"context"

	"github.com/c360studio/semfolio/graph"
)

// QualityCheck records that no quality policy ran.
func QualityCheck(*Deps) graph.NodeFunc[State, Update] {
	return func(context.Context, State, graph.Input) (graph.Result[Update], error) {
		return graph.Continue(Update{QualityResult: &QualityResult{Checked: false}}), nil
	}
}

// Repair counts a repair round. It is unreachable while quality_check never
// fails an entry.
func Repair(*Deps) graph.NodeFunc[State, Update] {
	return func(_ context.Context, s State, _ graph.Input) (graph.Result[Update], error) {
		return graph.Continue(Update{RepairRound: ptr(s.RepairRound + 1)}), nil
	}
}

// Save marks the entry finished. Persisting the artefact belongs to the caller.
func Save(d *Deps) graph.NodeFunc[State, Update] {
	return func(_ context.Context, s State, _ graph.Input) (graph.Result[Update], error) {
		d.logger().Info("Portfolio entry ready",
			"conversation_id", s.ConversationID,
			"artefact_id", s.ArtefactID,
			"entry_type", s.EntryTypeCode(),
			"capabilities", len(s.Capabilities),
			"pdp_actions", len(s.PDPActions))
		return graph.Continue(Update{Saved: ptr(true)}), nil
	}
}
