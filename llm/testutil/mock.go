// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/c360studio/semfolio/llm"
)

// MockLLMClient is a thread-safe llm.Completer returning canned responses in order.
//
//	mock := &MockLLMClient{
//	    Responses: []*llm.Response{
//	        {Content: "not json", Model: "test-model"},
//	        {Content: `{"entryType": "clinical_case_review"}`, Model: "test-model"},
//	    },
//	}
type MockLLMClient struct {
	mu            sync.Mutex
	Responses     []*llm.Response
	Err           error // takes precedence over Responses
	requests      []llm.Request
	responseIndex int
}

// Complete implements llm.Completer.
func (m *MockLLMClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// Requests returns the requests seen so far.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// GetCallCount returns the number of Complete calls.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Handler produces the structured answer for one call.
type Handler func(req llm.StructuredRequest) (any, error)

// ScriptedModel is an llm.StructuredInvoker that routes calls by schema name.
// Each schema holds a queue of handlers; the last handler repeats once the
// queue is drained.
type ScriptedModel struct {
	mu     sync.Mutex
	queues map[string][]Handler
	calls  []llm.StructuredRequest
}

// NewScriptedModel creates an empty script.
func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{queues: make(map[string][]Handler)}
}

// On appends handlers for a schema.
func (s *ScriptedModel) On(schema string, handlers ...Handler) *ScriptedModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[schema] = append(s.queues[schema], handlers...)
	return s
}

// Reply appends fixed answers for a schema.
func (s *ScriptedModel) Reply(schema string, answers ...any) *ScriptedModel {
	for _, a := range answers {
		answer := a
		s.On(schema, func(llm.StructuredRequest) (any, error) { return answer, nil })
	}
	return s
}

// Fail appends a failing answer for a schema.
func (s *ScriptedModel) Fail(schema string, err error) *ScriptedModel {
	return s.On(schema, func(llm.StructuredRequest) (any, error) { return nil, err })
}

// InvokeStructured implements llm.StructuredInvoker.
func (s *ScriptedModel) InvokeStructured(_ context.Context, req llm.StructuredRequest) (*llm.StructuredResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	queue := s.queues[req.Schema.Name]
	if len(queue) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("no scripted answer for schema %q", req.Schema.Name)
	}
	h := queue[0]
	if len(queue) > 1 {
		s.queues[req.Schema.Name] = queue[1:]
	}
	s.mu.Unlock()

	answer, err := h(req)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch v := answer.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		data, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}
	return &llm.StructuredResponse{Data: data, Model: "scripted", TokensUsed: len(data)}, nil
}

// Calls returns every request received, in order.
func (s *ScriptedModel) Calls() []llm.StructuredRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.StructuredRequest(nil), s.calls...)
}

// CallCount returns the total number of calls.
func (s *ScriptedModel) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// CallsFor returns the number of calls made with a schema.
func (s *ScriptedModel) CallsFor(schema string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Schema.Name == schema {
			n++
		}
	}
	return n
}
