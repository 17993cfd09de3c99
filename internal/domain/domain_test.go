package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisNormalize(t *testing.T) {
	a := Analysis{RiskLevel: 42}.Normalize()
	assert.Equal(t, float64(MaxRiskLevel), a.RiskLevel)
	assert.Equal(t, "neutral", a.EmotionalState)
	assert.NotNil(t, a.Themes)
	assert.NotNil(t, a.ProgressIndicators)

	a = Analysis{EmotionalState: "sad", RiskLevel: -3}.Normalize()
	assert.Equal(t, 0.0, a.RiskLevel)
	assert.Equal(t, "sad", a.EmotionalState)
}

func TestErrorTaxonomy(t *testing.T) {
	perr := fmt.Errorf("stage: %w", &AnalysisParseError{Reason: "truncated"})
	assert.True(t, errors.Is(perr, ErrAnalysisParse))
	assert.False(t, errors.Is(perr, ErrGeneration))

	gerr := &GenerationError{Reason: "timeout", Err: context.DeadlineExceeded}
	assert.True(t, errors.Is(gerr, ErrGeneration))
	assert.True(t, errors.Is(gerr, context.DeadlineExceeded))

	serr := &StoreError{Op: "append", Err: errors.New("disk full")}
	assert.True(t, errors.Is(serr, ErrStore))
	assert.Contains(t, serr.Error(), "append")
}

func TestSessionOwnership(t *testing.T) {
	s := &Session{SessionID: "s1", UserID: "u1"}
	assert.True(t, s.OwnedBy("u1"))
	assert.False(t, s.OwnedBy("u2"))
	assert.False(t, s.OwnedBy(""))
}

func TestActiveGoal(t *testing.T) {
	ctx := TherapyContext{Goals: []Goal{
		{ID: "g1", Title: "sleep better", Status: "completed"},
		{ID: "g2", Title: "manage stress", Status: "active"},
	}}
	g, ok := ctx.ActiveGoal()
	assert.True(t, ok)
	assert.Equal(t, "g2", g.ID)

	_, ok = TherapyContext{}.ActiveGoal()
	assert.False(t, ok)
}
