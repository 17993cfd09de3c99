// Package helpers holds shared test fixtures.
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedSession registers userID and creates an empty active session owned by it.
func SeedSession(t *testing.T, s repository.Store, sessionID, userID string) *domain.Session {
	t.Helper()
	ctx := context.Background()

	if err := s.UpsertUser(ctx, &domain.User{UserID: userID}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	now := time.Now()
	session := &domain.Session{
		SessionID: sessionID,
		UserID:    userID,
		Status:    domain.SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session
}
