package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient adapts the Anthropic Messages API to LLMClient.
type AnthropicClient struct {
	client *anthropic.Client
}

var _ LLMClient = (*AnthropicClient)(nil)

// NewAnthropicClient creates an Anthropic-backed client. An empty baseURL uses the public API.
func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(baseURL, "/")+"/v1"))
	}
	return &AnthropicClient{client: anthropic.NewClient(apiKey, opts...)}
}

// CreateChatCompletion converts the OpenAI-shaped request into a Messages call.
// System messages become the system prompt; JSON mode is requested through an
// extra system instruction because the Messages API has no response_format.
func (c *AnthropicClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	var systemParts []anthropic.MessageSystemPart
	var msgs []anthropic.Message
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			systemParts = append(systemParts, anthropic.MessageSystemPart{Type: "text", Text: m.Content})
		case "assistant":
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		default:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		}
	}
	if req.JSONMode() {
		systemParts = append(systemParts, anthropic.MessageSystemPart{
			Type: "text",
			Text: "Respond with a single JSON object and nothing else.",
		})
	}

	maxTokens := defaultAnthropicMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}

	mreq := anthropic.MessagesRequest{
		Model:     anthropic.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if len(systemParts) > 0 {
		mreq.MultiSystem = systemParts
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		mreq.Temperature = &t
	}

	resp, err := c.client.CreateMessages(ctx, mreq)
	if err != nil {
		return nil, anthropicError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}

	return &ChatCompletionResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   string(resp.Model),
		Choices: []Choice{{
			Index:        0,
			Message:      &ChatMessage{Role: "assistant", Content: text.String()},
			FinishReason: string(resp.StopReason),
		}},
		Usage: &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// anthropicError converts SDK errors to StatusError so IsRetryable can tell
// rate limits and outages apart from bad requests. The SDK drops the HTTP status
// when the body carries a typed error, so it is recovered from the error type.
func anthropicError(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{StatusCode: reqErr.StatusCode, Message: reqErr.Error()}
	}
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErrorStatus(apiErr), Message: apiErr.Message}
	}
	return fmt.Errorf("anthropic request failed: %w", err)
}

func apiErrorStatus(e *anthropic.APIError) int {
	switch e.Type {
	case anthropic.ErrTypeInvalidRequest:
		return http.StatusBadRequest
	case anthropic.ErrTypeAuthentication:
		return http.StatusUnauthorized
	case anthropic.ErrTypePermission:
		return http.StatusForbidden
	case anthropic.ErrTypeNotFound:
		return http.StatusNotFound
	case anthropic.ErrTypeTooLarge:
		return http.StatusRequestEntityTooLarge
	case anthropic.ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case anthropic.ErrTypeOverloaded:
		return 529
	default:
		return http.StatusInternalServerError
	}
}
