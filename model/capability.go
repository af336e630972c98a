// Package model provides capability-based model selection for workflow nodes.
// Nodes ask for a capability (classification, assessment, writing) and the
// registry resolves it to configured endpoints with fallback chains.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityClassification is for picking codes from a closed catalogue.
	CapabilityClassification Capability = "classification"

	// CapabilityAssessment is for judging transcript coverage against a template.
	CapabilityAssessment Capability = "assessment"

	// CapabilityWriting is for narrative reflection and development plans.
	CapabilityWriting Capability = "writing"

	// CapabilityFast is for short rephrasing tasks.
	CapabilityFast Capability = "fast"
)

// NodeCapabilities maps workflow node names to the capability they request.
var NodeCapabilities = map[string]Capability{
	"classify":           CapabilityClassification,
	"check_completeness": CapabilityAssessment,
	"ask_followup":       CapabilityFast,
	"tag_capabilities":   CapabilityClassification,
	"reflect":            CapabilityWriting,
	"generate_pdp":       CapabilityWriting,
}

// CapabilityForNode returns the capability used by a workflow node.
// Unknown nodes get CapabilityFast.
func CapabilityForNode(node string) Capability {
	if cap, ok := NodeCapabilities[node]; ok {
		return cap
	}
	return CapabilityFast
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityClassification, CapabilityAssessment, CapabilityWriting, CapabilityFast:
		return true
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
