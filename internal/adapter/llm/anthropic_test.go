package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type anthropicRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
	Temperature *float64 `json:"temperature"`
}

func TestAnthropicCreateChatCompletion(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",`+
			`"content":[{"type":"text","text":"hello"},{"type":"text","text":" again"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":7,"output_tokens":2}}`)
	}))
	defer server.Close()

	temp := 0.0
	client := NewAnthropicClient("secret", server.URL)
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model: "claude-test",
		Messages: []ChatMessage{
			{Role: "system", Content: "be kind"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello, how are you?"},
			{Role: "user", Content: "tired"},
		},
		Temperature:    &temp,
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	require.NoError(t, err)

	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, "claude-test", resp.Model)
	assert.Equal(t, "hello again", resp.Text())
	assert.Equal(t, "end_turn", resp.Choices[0].FinishReason)
	assert.Equal(t, 9, resp.Usage.TotalTokens)

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, defaultAnthropicMaxTokens, got.MaxTokens)
	require.Len(t, got.System, 2)
	assert.Equal(t, "be kind", got.System[0].Text)
	assert.Contains(t, got.System[1].Text, "JSON object")
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "tired", got.Messages[2].Content[0].Text)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.0, *got.Temperature)
}

func TestAnthropicMaxTokensOverride(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_2","type":"message","role":"assistant","model":"m","content":[{"type":"text","text":"ok"}],"usage":{}}`)
	}))
	defer server.Close()

	maxTokens := 64
	_, err := NewAnthropicClient("k", server.URL).CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:     "m",
		Messages:  []ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens: &maxTokens,
	})
	require.NoError(t, err)
	assert.Equal(t, 64, got.MaxTokens)
	assert.Empty(t, got.System)
}

func TestAnthropicErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      int
		retryable bool
	}{
		{"rate limited without body", http.StatusTooManyRequests, ``, http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, `{"type":"error","error":{"type":"api_error","message":"boom"}}`, http.StatusInternalServerError, true},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, 529, true},
		{"bad auth", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, http.StatusUnauthorized, false},
		{"invalid model", http.StatusNotFound, `{"type":"error","error":{"type":"not_found_error","message":"model: nope"}}`, http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewAnthropicClient("k", server.URL).CreateChatCompletion(context.Background(), &ChatCompletionRequest{
				Model:    "m",
				Messages: []ChatMessage{{Role: "user", Content: "hi"}},
			})
			require.Error(t, err)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.code, se.StatusCode)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}
