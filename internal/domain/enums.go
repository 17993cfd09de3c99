// Package domain defines the core domain models for the therapy orchestrator.
package domain

// SessionStatus represents the administrative status of a session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the ledger accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// SafetyLevel is the safety classification of an analysis.
type SafetyLevel string

const (
	SafetyLevelStandard SafetyLevel = "standard"
	SafetyLevelElevated SafetyLevel = "elevated"
	SafetyLevelCrisis   SafetyLevel = "crisis"
)

// EventName is the name of an outbound session event.
type EventName string

const (
	EventSessionMessage EventName = "therapy/session.message"
)
