package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientAnalysis(t *testing.T) {
	client := NewMockClient()
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:          "mock",
		Messages:       []ChatMessage{{Role: "user", Content: "I feel anxious about work"}},
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Text()), &out))
	assert.Equal(t, "anxious", out["emotionalState"])
	assert.ElementsMatch(t, []any{"anxiety", "work stress"}, out["themes"])
	assert.EqualValues(t, 3, out["riskLevel"])
}

func TestMockClientAnalysisIgnoresPromptText(t *testing.T) {
	prompt := "Return ONLY a valid JSON object with no markdown formatting or additional text.\n" +
		"Message: hello there\n" +
		"Context: {\"memory\":\"feeling down last week\"}\n"
	resp, err := NewMockClient().CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:          "mock",
		Messages:       []ChatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Text()), &out))
	assert.Equal(t, "neutral", out["emotionalState"])
	assert.EqualValues(t, 0, out["riskLevel"])
	assert.Empty(t, out["themes"])
}

func TestSubjectMessage(t *testing.T) {
	assert.Equal(t, "plain text", subjectMessage("plain text"))
	assert.Equal(t, "I lost my job", subjectMessage("Intro\nMessage: I lost my job\nAnalysis: {}\nGoals: []"))
	assert.Equal(t, "line one\nline two", subjectMessage("Message: line one\nline two\nContext: {}"))
}

func TestMockClientReply(t *testing.T) {
	client := NewMockClient()
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model: "mock",
		Messages: []ChatMessage{
			{Role: "system", Content: "be kind"},
			{Role: "user", Content: "hello there"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text(), "hello there")
}

func TestMockClientCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockClient().CreateChatCompletion(ctx, &ChatCompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLLMClientMockMode(t *testing.T) {
	t.Setenv(EnvGogoMode, ModeMock)
	_, ok := NewLLMClient(ProviderOpenAI, "http://x", "", 0).(*MockClient)
	assert.True(t, ok)

	t.Setenv(EnvGogoMode, "")
	_, ok = NewLLMClient(ProviderAnthropic, "", "k", 0).(*AnthropicClient)
	assert.True(t, ok)
	_, ok = NewLLMClient("", "http://x", "", 0).(*Client)
	assert.True(t, ok)
}
