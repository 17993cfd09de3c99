// Package policy classifies analysis results into safety levels using OPA.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
)

const (
	// CrisisRiskLevel is the risk level at or above which a turn is a crisis.
	CrisisRiskLevel = 8
	// ElevatedRiskLevel is the risk level at or above which a turn needs extra care.
	ElevatedRiskLevel = 4
)

// Engine is the OPA safety policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.safety_policy.level"),
		rego.Module("safety_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate runs the policy against an analysis and returns the raw level.
func (e *Engine) Evaluate(ctx context.Context, a domain.Analysis) (domain.SafetyLevel, error) {
	themes := make([]any, 0, len(a.Themes))
	for _, t := range a.Themes {
		themes = append(themes, t)
	}
	input := map[string]any{
		"risk_level":      a.RiskLevel,
		"themes":          themes,
		"emotional_state": a.EmotionalState,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.SafetyLevelStandard, nil
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	level := domain.SafetyLevel(s)
	switch level {
	case domain.SafetyLevelStandard, domain.SafetyLevelElevated, domain.SafetyLevelCrisis:
		return level, nil
	}
	return "", fmt.Errorf("unknown safety level %q", s)
}

// Classify returns the safety level for an analysis. Policy failures fall back
// to the built-in thresholds so a broken policy never lowers the level to nothing.
func (e *Engine) Classify(ctx context.Context, a domain.Analysis) domain.SafetyLevel {
	if e == nil {
		return ThresholdLevel(a)
	}
	level, err := e.Evaluate(ctx, a)
	if err != nil {
		logging.Warn().Err(err).Msg("safety policy evaluation failed, using thresholds")
		return ThresholdLevel(a)
	}
	return level
}

// ThresholdLevel mirrors DefaultPolicy without OPA.
func ThresholdLevel(a domain.Analysis) domain.SafetyLevel {
	if a.RiskLevel >= CrisisRiskLevel {
		return domain.SafetyLevelCrisis
	}
	for _, t := range a.Themes {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "self-harm", "suicide", "suicidal ideation":
			return domain.SafetyLevelCrisis
		}
	}
	if a.RiskLevel >= ElevatedRiskLevel {
		return domain.SafetyLevelElevated
	}
	return domain.SafetyLevelStandard
}

// DefaultPolicy is the default safety policy content.
const DefaultPolicy = `
package safety_policy

default level = "standard"

crisis_themes := {"self-harm", "suicide", "suicidal ideation"}

level = "crisis" {
	input.risk_level >= 8
} else = "crisis" {
	crisis_theme
} else = "elevated" {
	input.risk_level >= 4
}

crisis_theme {
	some i
	crisis_themes[trim_space(lower(input.themes[i]))]
}
`
