package domain

import "time"

// Session is one continuous therapy conversation owned by a single user.
type Session struct {
	SessionID string        `json:"sessionId"`
	UserID    string        `json:"userId"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Messages  []Message     `json:"messages"`
}

// OwnedBy reports whether userID owns the session.
func (s *Session) OwnedBy(userID string) bool {
	return s != nil && userID != "" && s.UserID == userID
}

// Message is a single immutable entry in a session ledger.
type Message struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// MessageMetadata is attached to assistant replies.
type MessageMetadata struct {
	Analysis    *Analysis   `json:"analysis,omitempty"`
	Technique   string      `json:"technique,omitempty"`
	Goal        string      `json:"goal,omitempty"`
	Progress    *Progress   `json:"progress,omitempty"`
	SafetyLevel SafetyLevel `json:"safetyLevel,omitempty"`
	Fallback    bool        `json:"fallback,omitempty"`
}

// Progress is the per-reply progress snapshot derived from the analysis.
type Progress struct {
	EmotionalState string  `json:"emotionalState"`
	RiskLevel      float64 `json:"riskLevel"`
}

// User is a registered owner of sessions.
type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Goal is an active therapy goal of a user.
type Goal struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

// TherapyContext is the externally maintained memory and goals of a user.
type TherapyContext struct {
	Memory map[string]any `json:"memory"`
	Goals  []Goal         `json:"goals"`
}

// ActiveGoal returns the first goal that is not completed, if any.
func (c TherapyContext) ActiveGoal() (Goal, bool) {
	for _, g := range c.Goals {
		if g.Status == "" || g.Status == "active" || g.Status == "in_progress" {
			return g, true
		}
	}
	return Goal{}, false
}
