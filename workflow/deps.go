package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semfolio/conversation"
	"github.com/c360studio/semfolio/llm"
	"github.com/c360studio/semfolio/metrics"
	"github.com/c360studio/semfolio/model"
	"github.com/c360studio/semfolio/specialty"
)

// Node names.
const (
	NodeGatherContext         = "gather_context"
	NodeClassify              = "classify"
	NodePresentClassification = "present_classification"
	NodeCheckCompleteness     = "check_completeness"
	NodeAskFollowUp           = "ask_followup"
	NodeTagCapabilities       = "tag_capabilities"
	NodePresentCapabilities   = "present_capabilities"
	NodeReflect               = "reflect"
	NodeGeneratePDP           = "generate_pdp"
	NodeQualityCheck          = "quality_check"
	NodeRepair                = "repair"
	NodeSave                  = "save"
)

// ErrUnrecognizedEntryType is returned when the model names an entry type the
// specialty does not define.
var ErrUnrecognizedEntryType = errors.New("unrecognized entry type")

// Deps bundles the collaborators every node needs.
type Deps struct {
	Messages    conversation.Repository
	Model       llm.StructuredInvoker
	Specialties *specialty.Registry
	Tuning      Tuning
	Logger      *slog.Logger
	Metrics     *metrics.Metrics

	// Temperature is passed to every model call when set.
	Temperature *float64
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) config(code string) (*specialty.Config, error) {
	reg := d.Specialties
	if reg == nil {
		reg = specialty.Global()
	}
	return reg.Config(code)
}

// invoke runs one structured call for node and decodes the answer into out.
func (d *Deps) invoke(ctx context.Context, node string, schema llm.Schema, messages []llm.Message, maxTokens int, out any) error {
	resp, err := d.Model.InvokeStructured(ctx, llm.StructuredRequest{
		Capability:  model.CapabilityForNode(node).String(),
		Messages:    messages,
		Schema:      schema,
		Temperature: d.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		d.Metrics.LLMCall(schema.Name, "error")
		return fmt.Errorf("%s: %w", schema.Name, err)
	}
	d.Metrics.LLMCall(schema.Name, "ok")

	d.logger().Debug("Structured call completed",
		"node", node, "schema", schema.Name, "model", resp.Model, "tokens", resp.TokensUsed)

	return resp.Decode(out)
}
