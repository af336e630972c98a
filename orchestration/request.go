package orchestration

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// StartRequest begins processing a conversation into a portfolio entry.
type StartRequest struct {
	ConversationID string `json:"conversationId" validate:"required,max=256"`
	ArtefactID     string `json:"artefactId" validate:"required,max=256"`
	UserID         string `json:"userId" validate:"required,max=256"`
	Specialty      string `json:"specialty" validate:"required,max=64"`
}

// ResumeRequest answers the interrupt a conversation is paused at. Node is
// optional; when set it must name the paused node.
type ResumeRequest struct {
	Node  string          `json:"node,omitempty" validate:"omitempty,max=64"`
	Value json.RawMessage `json:"value,omitempty" validate:"omitempty,rawjson"`
}

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("rawjson", validateRawJSON)
}

func validateRawJSON(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(json.RawMessage)
	if !ok {
		return false
	}
	return json.Valid(raw)
}

// describeValidation flattens validator errors into one readable line.
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fe.Field()+" fails "+fe.Tag()+"="+fe.Param())
		} else {
			parts = append(parts, fe.Field()+" fails "+fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}
