package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/therapy/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *SQLiteStore, sessionID, userID string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.UpsertUser(ctx, &domain.User{UserID: userID, Name: "Ada"}))
	require.NoError(t, store.CreateSession(ctx, &domain.Session{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: at,
	}))
}

func TestSQLiteStoreUsers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	got, err := store.GetUser(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.UpsertUser(ctx, &domain.User{UserID: "u1", Name: "Ada"}))
	require.NoError(t, store.UpsertUser(ctx, &domain.User{UserID: "u1", Name: "Ada L."}))

	got, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada L.", got.Name)
}

func TestSQLiteStoreSessionAndMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	created := time.Now().Add(-time.Hour)
	seed(t, store, "s1", "u1", created)

	session, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, domain.SessionStatusActive, session.Status)

	messages, err := store.GetMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, messages)

	last, err := store.LastMessageTime(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	now := time.UnixMilli(time.Now().UnixMilli()).UTC()
	analysis := domain.Analysis{EmotionalState: "anxious", Themes: []string{"work"}, RiskLevel: 2}
	err = store.AppendMessages(ctx, "s1", []domain.Message{
		{Role: domain.RoleUser, Content: "I can't sleep", Timestamp: now},
		{Role: domain.RoleAssistant, Content: "That sounds exhausting.", Timestamp: now.Add(time.Millisecond),
			Metadata: &domain.MessageMetadata{Analysis: &analysis, Progress: analysis.Progress()}},
	})
	require.NoError(t, err)

	messages, err = store.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, "I can't sleep", messages[0].Content)
	assert.True(t, messages[0].Timestamp.Equal(now))
	assert.Nil(t, messages[0].Metadata)
	require.NotNil(t, messages[1].Metadata)
	assert.Equal(t, "anxious", messages[1].Metadata.Analysis.EmotionalState)
	assert.Equal(t, 2.0, messages[1].Metadata.Progress.RiskLevel)

	session, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, session.UpdatedAt.Equal(now.Add(time.Millisecond)))

	last, err = store.LastMessageTime(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, last.Equal(now.Add(time.Millisecond)))
}

func TestSQLiteStoreAppendMissingSession(t *testing.T) {
	store := newTestStore(t)

	err := store.AppendMessages(context.Background(), "nope", []domain.Message{
		{Role: domain.RoleUser, Content: "hello", Timestamp: time.Now()},
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLiteStoreListSessionsByUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	seed(t, store, "old", "u1", base)
	seed(t, store, "new", "u1", base.Add(time.Minute))
	seed(t, store, "other", "u2", base)

	// Touch "old" so it becomes the most recently updated.
	require.NoError(t, store.AppendMessages(ctx, "old", []domain.Message{
		{Role: domain.RoleUser, Content: "back again", Timestamp: base.Add(10 * time.Minute)},
	}))

	sessions, err := store.ListSessionsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "old", sessions[0].SessionID)
	assert.Len(t, sessions[0].Messages, 1)
	assert.Equal(t, "new", sessions[1].SessionID)
	assert.NotNil(t, sessions[1].Messages)
}

func TestSQLiteStoreTherapyContext(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.UpsertUser(ctx, &domain.User{UserID: "u1"}))

	tc, err := store.GetTherapyContext(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tc.Memory)
	assert.Empty(t, tc.Goals)

	require.NoError(t, store.PutTherapyContext(ctx, "u1", domain.TherapyContext{
		Memory: map[string]any{"pet": "a cat named Miso"},
		Goals:  []domain.Goal{{ID: "g1", Title: "sleep 7 hours", Status: "active"}},
	}))

	tc, err = store.GetTherapyContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a cat named Miso", tc.Memory["pet"])
	require.Len(t, tc.Goals, 1)
	assert.Equal(t, "sleep 7 hours", tc.Goals[0].Title)
}

func TestSQLiteStoreSetSessionStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.UpsertUser(ctx, &domain.User{UserID: "u1"}))
	now := time.Now()
	require.NoError(t, store.CreateSession(ctx, &domain.Session{SessionID: "s1", UserID: "u1", CreatedAt: now}))

	require.NoError(t, store.SetSessionStatus(ctx, "s1", domain.SessionStatusClosed))
	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusClosed, got.Status)

	assert.ErrorIs(t, store.SetSessionStatus(ctx, "missing", domain.SessionStatusClosed), domain.ErrNotFound)
}

func TestSQLiteStoreAppendToClosedSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.UpsertUser(ctx, &domain.User{UserID: "u1"}))
	require.NoError(t, store.CreateSession(ctx, &domain.Session{SessionID: "s1", UserID: "u1", CreatedAt: time.Now()}))
	require.NoError(t, store.SetSessionStatus(ctx, "s1", domain.SessionStatusClosed))

	err := store.AppendMessages(ctx, "s1", []domain.Message{{Role: domain.RoleUser, Content: "hi", Timestamp: time.Now()}})
	assert.ErrorIs(t, err, domain.ErrConflict)

	messages, err := store.GetMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}
