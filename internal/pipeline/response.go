package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xiaot623/gogo/therapy/internal/adapter/llm"
	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
)

// FallbackReply is returned to the user when no reply could be generated.
const FallbackReply = "I'm having trouble connecting right now. Your message has been saved, " +
	"and I'd like to hear more when you're ready to try again. If you are in immediate danger, " +
	"please contact your local emergency services."

const (
	// DefaultRetryInitialInterval is the first backoff delay between response attempts.
	DefaultRetryInitialInterval = 500 * time.Millisecond
	// DefaultRetryMaxInterval caps a single backoff delay.
	DefaultRetryMaxInterval = 5 * time.Second
)

// ResponseInput is what the response stage sees of a turn.
type ResponseInput struct {
	Message      string
	Analysis     domain.Analysis
	Memory       map[string]any
	Goals        []domain.Goal
	SystemPrompt string
	SafetyLevel  domain.SafetyLevel
}

// Responder generates the assistant reply for a turn.
type Responder interface {
	Respond(ctx context.Context, in ResponseInput) (string, error)
}

// ResponderConfig configures an LLMResponder.
type ResponderConfig struct {
	Model                string
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
}

// LLMResponder runs the response stage against a model provider.
type LLMResponder struct {
	client llm.LLMClient
	cfg    ResponderConfig
}

// NewLLMResponder creates a responder.
func NewLLMResponder(client llm.LLMClient, cfg ResponderConfig) *LLMResponder {
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = DefaultRetryInitialInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &LLMResponder{client: client, cfg: cfg}
}

func (r *LLMResponder) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryInitialInterval
	b.MaxInterval = DefaultRetryMaxInterval
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries)), ctx)
}

// Respond generates a reply. Transient provider errors are retried within the
// stage timeout; any failure is returned as *domain.GenerationError.
func (r *LLMResponder) Respond(ctx context.Context, in ResponseInput) (string, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	req := &llm.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: systemDirective(in)},
			{Role: "user", Content: responsePrompt(in)},
		},
	}

	var reply string
	attempt := 0
	op := func() error {
		attempt++
		resp, err := r.client.CreateChatCompletion(ctx, req)
		if err != nil {
			if llm.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		reply = resp.Text()
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logging.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("response generation failed, retrying")
	}

	if err := backoff.RetryNotify(op, r.newBackoff(ctx), notify); err != nil {
		reason := "provider error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		return "", &domain.GenerationError{Reason: reason, Err: err}
	}
	if reply == "" {
		return "", &domain.GenerationError{Reason: "empty output"}
	}
	return reply, nil
}

func systemDirective(in ResponseInput) string {
	directive := in.SystemPrompt
	switch in.SafetyLevel {
	case domain.SafetyLevelCrisis:
		directive += "\n\nSAFETY: The user may be at immediate risk. Respond with calm, direct care. " +
			"Encourage them to contact local emergency services or a crisis line right now, ask whether " +
			"they are safe, and do not offer techniques that could delay getting help."
	case domain.SafetyLevelElevated:
		directive += "\n\nSAFETY: The user shows signs of significant distress. Check in gently about " +
			"their safety and mention that professional support is available if things get harder."
	}
	return directive
}

func responsePrompt(in ResponseInput) string {
	var b strings.Builder
	b.WriteString("Based on the following context, generate a therapeutic response:\n")
	fmt.Fprintf(&b, "Message: %s\n", in.Message)
	fmt.Fprintf(&b, "Analysis: %s\n", mustJSON(in.Analysis))
	fmt.Fprintf(&b, "Memory: %s\n", mustJSON(in.Memory))
	fmt.Fprintf(&b, "Goals: %s\n\n", mustJSON(in.Goals))
	b.WriteString("Provide a response that:\n")
	b.WriteString("1. Addresses the immediate emotional needs\n")
	b.WriteString("2. Uses appropriate therapeutic techniques\n")
	b.WriteString("3. Shows empathy and understanding\n")
	b.WriteString("4. Maintains professional boundaries\n")
	b.WriteString("5. Considers safety and well-being")
	return b.String()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
