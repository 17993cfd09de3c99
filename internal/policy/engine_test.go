package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/therapy/internal/domain"
)

func TestEngineClassify(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	cases := []struct {
		name     string
		analysis domain.Analysis
		want     domain.SafetyLevel
	}{
		{"calm", domain.Analysis{RiskLevel: 1}, domain.SafetyLevelStandard},
		{"elevated", domain.Analysis{RiskLevel: 5, Themes: []string{"grief"}}, domain.SafetyLevelElevated},
		{"high risk", domain.Analysis{RiskLevel: 9}, domain.SafetyLevelCrisis},
		{"crisis theme", domain.Analysis{RiskLevel: 2, Themes: []string{"Self-Harm"}}, domain.SafetyLevelCrisis},
		{"boundary", domain.Analysis{RiskLevel: 8}, domain.SafetyLevelCrisis},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Evaluate(ctx, tc.analysis)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want, ThresholdLevel(tc.analysis))
		})
	}
}

func TestEngineInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\nlevel = {")
	assert.Error(t, err)
}

func TestEngineFallsBackOnBadResult(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, "package safety_policy\n\nlevel = \"panic\"\n")
	require.NoError(t, err)

	_, err = engine.Evaluate(ctx, domain.Analysis{RiskLevel: 9})
	assert.Error(t, err)
	assert.Equal(t, domain.SafetyLevelCrisis, engine.Classify(ctx, domain.Analysis{RiskLevel: 9}))

	var nilEngine *Engine
	assert.Equal(t, domain.SafetyLevelElevated, nilEngine.Classify(ctx, domain.Analysis{RiskLevel: 4}))
}
