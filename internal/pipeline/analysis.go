// Package pipeline implements the two model-backed stages of a chat turn:
// analysis of the user's message and generation of the therapeutic reply.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/xiaot623/gogo/therapy/internal/adapter/llm"
	"github.com/xiaot623/gogo/therapy/internal/domain"
)

// AnalysisInput is what the analysis stage sees of a turn.
type AnalysisInput struct {
	Message string
	Memory  map[string]any
	Goals   []domain.Goal
}

// Analyzer classifies a user message.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalysisInput) (domain.Analysis, error)
}

// analysisSchema is the structural contract for model output.
const analysisSchema = `{
  "type": "object",
  "required": ["emotionalState", "themes", "riskLevel", "recommendedApproach", "progressIndicators"],
  "properties": {
    "emotionalState": {"type": "string"},
    "themes": {"type": "array", "items": {"type": "string"}},
    "riskLevel": {"type": "number"},
    "recommendedApproach": {"type": "string"},
    "progressIndicators": {"type": "array", "items": {"type": "string"}}
  }
}`

var analysisSchemaLoader = gojsonschema.NewStringLoader(analysisSchema)

const analysisPromptTemplate = `Analyze this therapy message and provide insights. Return ONLY a valid JSON object with no markdown formatting or additional text.
Message: %s
Context: %s

Required JSON structure:
{
  "emotionalState": "string",
  "themes": ["string"],
  "riskLevel": number,
  "recommendedApproach": "string",
  "progressIndicators": ["string"]
}
riskLevel is a number from 0 (no risk) to 10 (immediate danger).`

// LLMAnalyzer runs the analysis stage against a model provider.
type LLMAnalyzer struct {
	client  llm.LLMClient
	model   string
	timeout time.Duration
}

// NewLLMAnalyzer creates an analyzer. A zero timeout leaves the call bounded only by ctx.
func NewLLMAnalyzer(client llm.LLMClient, model string, timeout time.Duration) *LLMAnalyzer {
	return &LLMAnalyzer{client: client, model: model, timeout: timeout}
}

// Analyze asks the model for a structured analysis. Every failure, provider or
// parse, is returned as *domain.AnalysisParseError.
func (a *LLMAnalyzer) Analyze(ctx context.Context, in AnalysisInput) (domain.Analysis, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	contextJSON, err := json.Marshal(map[string]any{
		"memory": in.Memory,
		"goals":  in.Goals,
	})
	if err != nil {
		return domain.Analysis{}, &domain.AnalysisParseError{Reason: "encode context", Err: err}
	}

	temperature := 0.0
	resp, err := a.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: a.model,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: fmt.Sprintf(analysisPromptTemplate, in.Message, contextJSON)},
		},
		Temperature:    &temperature,
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return domain.Analysis{}, &domain.AnalysisParseError{Reason: "provider call failed", Err: err}
	}

	return ParseAnalysis(resp.Text())
}

// ParseAnalysis decodes and validates raw model output.
func ParseAnalysis(raw string) (domain.Analysis, error) {
	body := StripCodeFence(raw)
	if body == "" {
		return domain.Analysis{}, &domain.AnalysisParseError{Reason: "empty output"}
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return domain.Analysis{}, &domain.AnalysisParseError{Reason: "invalid JSON", Err: err}
	}

	result, err := gojsonschema.Validate(analysisSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return domain.Analysis{}, &domain.AnalysisParseError{Reason: "schema validation", Err: err}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return domain.Analysis{}, &domain.AnalysisParseError{Reason: "schema mismatch: " + strings.Join(msgs, "; ")}
	}

	var analysis domain.Analysis
	if err := json.Unmarshal([]byte(body), &analysis); err != nil {
		return domain.Analysis{}, &domain.AnalysisParseError{Reason: "decode", Err: err}
	}
	return analysis.Normalize(), nil
}

// StripCodeFence removes a surrounding markdown code fence (``` or ```json).
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
