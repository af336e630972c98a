package providers

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/semfolio/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_BuildURL(t *testing.T) {
	p := &AnthropicProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"empty uses default", "", "https://api.anthropic.com/v1/messages"},
		{"custom base URL", "https://proxy.internal", "https://proxy.internal/v1/messages"},
		{"trailing slash handled", "https://api.anthropic.com/", "https://api.anthropic.com/v1/messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestAnthropicProvider_BuildRequestBody(t *testing.T) {
	p := &AnthropicProvider{}
	temp := 0.0

	body, err := p.BuildRequestBody("claude-sonnet", llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: "You classify portfolio entries."},
			{Role: "system", Content: "Respond with JSON."},
			{Role: "user", Content: "transcript"},
		},
		Temperature: &temp,
		JSON:        true,
	})
	require.NoError(t, err)

	var decoded struct {
		System      string   `json:"system"`
		MaxTokens   int      `json:"max_tokens"`
		Temperature *float64 `json:"temperature"`
		Messages    []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "You classify portfolio entries.\n\nRespond with JSON.", decoded.System)
	assert.Equal(t, anthropicDefaultMaxTokens, decoded.MaxTokens)
	require.NotNil(t, decoded.Temperature)
	assert.Zero(t, *decoded.Temperature)
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, "user", decoded.Messages[0].Role)
	assert.NotContains(t, string(body), "response_format")
}

func TestAnthropicProvider_ParseResponse(t *testing.T) {
	p := &AnthropicProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "claude-sonnet-4-20250514",
		"content": [
			{"type": "text", "text": "{\"entryType\":"},
			{"type": "tool_use", "text": "ignored"},
			{"type": "text", "text": " \"leadership_activity\"}"}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 100, "output_tokens": 20}
	}`), "")
	require.NoError(t, err)

	assert.Equal(t, `{"entryType": "leadership_activity"}`, resp.Content)
	assert.Equal(t, 120, resp.TokensUsed)
	assert.Equal(t, 100, resp.Usage.PromptTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
}

func TestAnthropicProvider_ParseResponse_Invalid(t *testing.T) {
	_, err := (&AnthropicProvider{}).ParseResponse([]byte("not json"), "")
	assert.Error(t, err)
}
