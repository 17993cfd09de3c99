// Package repository defines the session store and its SQLite implementation.
package repository

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/therapy/internal/domain"
)

// Store defines the interface for data persistence.
//
// Getters return (nil, nil) when the record does not exist. AppendMessages is the
// exception: it returns domain.ErrNotFound because it must fail atomically.
type Store interface {
	// User operations
	UpsertUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// Therapy context operations (memory and goals, maintained externally)
	GetTherapyContext(ctx context.Context, userID string) (domain.TherapyContext, error)
	PutTherapyContext(ctx context.Context, userID string, tc domain.TherapyContext) error

	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error)
	SetSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error

	// Message operations
	AppendMessages(ctx context.Context, sessionID string, messages []domain.Message) error
	GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error)
	LastMessageTime(ctx context.Context, sessionID string) (time.Time, error)

	// Lifecycle
	Close() error
}
