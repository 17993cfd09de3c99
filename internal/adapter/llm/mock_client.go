package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// MockClient is a deterministic LLMClient for local runs and tests.
// JSON-mode requests get an analysis object derived from whole-word keywords in
// the client's message; other requests get a short supportive reply.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var responseContent string
	if req.JSONMode() {
		responseContent = m.generateMockAnalysis(req)
	} else {
		responseContent = m.generateMockReply(req)
	}

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: responseContent,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     m.estimateTokens(req),
			CompletionTokens: len(responseContent) / 4,
			TotalTokens:      m.estimateTokens(req) + len(responseContent)/4,
		},
	}, nil
}

type mockSignal struct {
	keywords []string
	state    string
	theme    string
	risk     float64
	approach string
}

var mockSignals = []mockSignal{
	{[]string{"hurt myself", "kill myself", "end it all", "suicide"}, "despairing", "self-harm", 9, "crisis support and safety planning"},
	{[]string{"anxious", "anxiety", "worried", "panic", "nervous"}, "anxious", "anxiety", 3, "cognitive restructuring"},
	{[]string{"sad", "down", "depressed", "lonely", "empty"}, "sad", "low mood", 4, "behavioral activation"},
	{[]string{"angry", "furious", "frustrated", "annoyed"}, "frustrated", "anger", 2, "emotion regulation"},
	{[]string{"work", "job", "boss", "deadline"}, "stressed", "work stress", 2, "problem solving"},
}

func (m *MockClient) generateMockAnalysis(req *ChatCompletionRequest) string {
	text := wordText(subjectMessage(lastUserContent(req)))

	out := map[string]any{
		"emotionalState":      "neutral",
		"themes":              []string{},
		"riskLevel":           0,
		"recommendedApproach": "supportive listening",
		"progressIndicators":  []string{},
	}
	themes := []string{}
	for _, sig := range mockSignals {
		for _, kw := range sig.keywords {
			if containsWord(text, kw) {
				if len(themes) == 0 {
					out["emotionalState"] = sig.state
					out["riskLevel"] = sig.risk
					out["recommendedApproach"] = sig.approach
				}
				themes = append(themes, sig.theme)
				break
			}
		}
	}
	out["themes"] = themes
	if containsWord(text, "better") || containsWord(text, "helped") {
		out["progressIndicators"] = []string{"reports improvement"}
	}

	b, _ := json.Marshal(out)
	return string(b)
}

func (m *MockClient) generateMockReply(req *ChatCompletionRequest) string {
	user := subjectMessage(lastUserContent(req))
	if user == "" {
		return "I'm here with you. What would you like to talk about today?"
	}
	if len(user) > 80 {
		user = user[:80] + "..."
	}
	return fmt.Sprintf("Thank you for sharing that. It sounds like \"%s\" has been on your mind. "+
		"What feels most important to explore about it right now?", user)
}

// lastUserContent returns the content of the last user message, or the last
// message when none is tagged as user.
func lastUserContent(req *ChatCompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	if n := len(req.Messages); n > 0 {
		return req.Messages[n-1].Content
	}
	return ""
}

// promptLabels are the section headers that follow "Message:" in stage prompts.
var promptLabels = []string{"\nContext:", "\nAnalysis:", "\nMemory:", "\nGoals:"}

// subjectMessage extracts the client's text from a stage prompt. Prompts carry
// it on a "Message:" line; content without one is returned unchanged.
func subjectMessage(content string) string {
	idx := strings.Index(content, "Message: ")
	if idx < 0 || (idx > 0 && content[idx-1] != '\n') {
		return strings.TrimSpace(content)
	}
	rest := content[idx+len("Message: "):]
	end := len(rest)
	for _, label := range promptLabels {
		if i := strings.Index(rest, label); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end])
}

// wordText lowercases s and collapses every run of non-letters into one space,
// padding both ends so containsWord can match on word boundaries.
func wordText(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	return " " + strings.Join(fields, " ") + " "
}

func containsWord(text, phrase string) bool {
	return strings.Contains(text, " "+phrase+" ")
}

// estimateTokens estimates token count for the request.
func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}
