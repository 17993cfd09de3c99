package domain

// MaxRiskLevel is the top of the risk scale (0 = none, 10 = crisis).
const MaxRiskLevel = 10

// Analysis is the structured emotional/risk classification of one message.
type Analysis struct {
	EmotionalState      string   `json:"emotionalState"`
	Themes              []string `json:"themes"`
	RiskLevel           float64  `json:"riskLevel"`
	RecommendedApproach string   `json:"recommendedApproach"`
	ProgressIndicators  []string `json:"progressIndicators"`
}

// NeutralAnalysis is substituted when the analysis stage fails.
func NeutralAnalysis() Analysis {
	return Analysis{
		EmotionalState:      "neutral",
		Themes:              []string{},
		RiskLevel:           0,
		RecommendedApproach: "supportive listening",
		ProgressIndicators:  []string{},
	}
}

// Normalize clamps the risk level and replaces nil lists with empty ones.
func (a Analysis) Normalize() Analysis {
	if a.RiskLevel < 0 {
		a.RiskLevel = 0
	}
	if a.RiskLevel > MaxRiskLevel {
		a.RiskLevel = MaxRiskLevel
	}
	if a.EmotionalState == "" {
		a.EmotionalState = "neutral"
	}
	if a.Themes == nil {
		a.Themes = []string{}
	}
	if a.ProgressIndicators == nil {
		a.ProgressIndicators = []string{}
	}
	return a
}

// Progress derives the progress snapshot stored with a reply.
func (a Analysis) Progress() *Progress {
	return &Progress{EmotionalState: a.EmotionalState, RiskLevel: a.RiskLevel}
}
