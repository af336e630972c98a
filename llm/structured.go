package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Schema names and describes the JSON shape a structured call must return.
type Schema struct {
	Name        string
	Description string

	// Definition is a JSON Schema document.
	Definition json.RawMessage
}

// StructuredRequest is a completion request whose answer must match Schema.
type StructuredRequest struct {
	Capability  string
	Messages    []Message
	Schema      Schema
	Temperature *float64
	MaxTokens   int
}

// StructuredResponse carries the schema-shaped answer.
type StructuredResponse struct {
	Data       json.RawMessage
	Model      string
	TokensUsed int
}

// Decode unmarshals Data into v.
func (r *StructuredResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

// StructuredInvoker is the language-model capability the workflow depends on.
// Implementations guarantee syntactically valid JSON; semantic validation is
// left to the caller.
type StructuredInvoker interface {
	InvokeStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error)
}

// Structured implements StructuredInvoker over a text Completer. The schema is
// appended to the system prompt and JSON is extracted from the reply; a
// reply that cannot be parsed earns one corrective follow-up turn.
type Structured struct {
	completer Completer
	logger    *slog.Logger
	repairs   int
}

// StructuredOption configures Structured.
type StructuredOption func(*Structured)

// WithStructuredLogger sets the logger.
func WithStructuredLogger(l *slog.Logger) StructuredOption {
	return func(s *Structured) {
		s.logger = l
	}
}

// WithRepairAttempts sets how many corrective turns follow an unparseable reply.
func WithRepairAttempts(n int) StructuredOption {
	return func(s *Structured) {
		if n >= 0 {
			s.repairs = n
		}
	}
}

// NewStructured wraps a Completer.
func NewStructured(c Completer, opts ...StructuredOption) *Structured {
	s := &Structured{
		completer: c,
		logger:    slog.Default(),
		repairs:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InvokeStructured implements StructuredInvoker.
func (s *Structured) InvokeStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	if req.Schema.Name == "" {
		return nil, fmt.Errorf("schema name is required")
	}

	messages := withSchemaInstruction(req.Messages, req.Schema)
	tokens := 0

	for attempt := 0; ; attempt++ {
		resp, err := s.completer.Complete(ctx, Request{
			Capability:  req.Capability,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			JSON:        true,
		})
		if err != nil {
			return nil, err
		}
		tokens += resp.TokensUsed

		data, perr := parseObject(resp.Content)
		if perr == nil {
			return &StructuredResponse{Data: data, Model: resp.Model, TokensUsed: tokens}, nil
		}

		if attempt >= s.repairs {
			return nil, &SchemaError{Schema: req.Schema.Name, Content: resp.Content, Err: perr}
		}

		s.logger.Debug("Structured output unreadable, asking for correction",
			"schema", req.Schema.Name,
			"model", resp.Model,
			"error", perr)

		messages = append(messages,
			Message{Role: "assistant", Content: resp.Content},
			Message{Role: "user", Content: fmt.Sprintf(
				"Your previous reply was not valid JSON (%v). Reply again with only the JSON object for %q.",
				perr, req.Schema.Name)},
		)
	}
}

var errNoJSON = errors.New("no JSON object found")

func parseObject(content string) (json.RawMessage, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return nil, errNoJSON
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// withSchemaInstruction folds the output contract into the system prompt,
// creating one if the conversation has none.
func withSchemaInstruction(msgs []Message, schema Schema) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Respond with a single JSON object (%s)", schema.Name)
	if schema.Description != "" {
		fmt.Fprintf(&b, ": %s", schema.Description)
	}
	b.WriteString(".\n")
	if len(schema.Definition) > 0 {
		b.WriteString("The object must conform to this JSON Schema:\n")
		b.Write(schema.Definition)
		b.WriteString("\n")
	}
	b.WriteString("Do not include any text outside the JSON object.")
	instruction := b.String()

	out := make([]Message, 0, len(msgs)+1)
	injected := false
	for _, m := range msgs {
		if m.Role == "system" && !injected {
			m.Content = m.Content + "\n\n" + instruction
			injected = true
		}
		out = append(out, m)
	}
	if !injected {
		out = append([]Message{{Role: "system", Content: instruction}}, out...)
	}
	return out
}
