package workflow

import (
	"fmt"

	"github.com/c360studio/semfolio/graph"
)

// Graph is the compiled portfolio workflow.
type Graph = graph.Graph[State, Update]

// Definition builds the portfolio workflow graph around d.
//
//	gather_context -> classify | check_completeness
//	classify -> present_classification -> check_completeness
//	check_completeness -> ask_followup | tag_capabilities
//	ask_followup -> gather_context
//	tag_capabilities -> present_capabilities -> reflect -> generate_pdp
//	generate_pdp -> quality_check -> repair | save
//	repair -> quality_check
//	save -> end
//
// A zero Tuning is replaced by DefaultTuning.
func Definition(d *Deps) (*Graph, error) {
	if d.Tuning == (Tuning{}) {
		d.Tuning = DefaultTuning()
	}
	if err := d.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("workflow tuning: %w", err)
	}
	if d.Messages == nil || d.Model == nil {
		return nil, fmt.Errorf("workflow needs a message repository and a model")
	}

	return graph.NewBuilder[State, Update](Reduce).
		AddNode(NodeGatherContext, GatherContext(d)).
		AddNode(NodeClassify, Classify(d)).
		AddNode(NodePresentClassification, PresentClassification(d)).
		AddNode(NodeCheckCompleteness, CheckCompleteness(d)).
		AddNode(NodeAskFollowUp, AskFollowUp(d)).
		AddNode(NodeTagCapabilities, TagCapabilities(d)).
		AddNode(NodePresentCapabilities, PresentCapabilities(d)).
		AddNode(NodeReflect, Reflect(d)).
		AddNode(NodeGeneratePDP, GeneratePDP(d)).
		AddNode(NodeQualityCheck, QualityCheck(d)).
		AddNode(NodeRepair, Repair(d)).
		AddNode(NodeSave, Save(d)).
		AddRouter(NodeGatherContext, RouteAfterGather, NodeClassify, NodeCheckCompleteness).
		AddEdge(NodeClassify, NodePresentClassification).
		AddEdge(NodePresentClassification, NodeCheckCompleteness).
		AddRouter(NodeCheckCompleteness, RouteAfterCompleteness(d.Tuning.MaxFollowUpRounds),
			NodeAskFollowUp, NodeTagCapabilities).
		AddEdge(NodeAskFollowUp, NodeGatherContext).
		AddEdge(NodeTagCapabilities, NodePresentCapabilities).
		AddEdge(NodePresentCapabilities, NodeReflect).
		AddEdge(NodeReflect, NodeGeneratePDP).
		AddEdge(NodeGeneratePDP, NodeQualityCheck).
		AddRouter(NodeQualityCheck, RouteAfterQuality, NodeRepair, NodeSave).
		AddEdge(NodeRepair, NodeQualityCheck).
		AddEdge(NodeSave, graph.End).
		SetEntry(NodeGatherContext).
		Build()
}
