package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/tests/helpers"
)

func TestAppendThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	helpers.SeedSession(t, db, "s1", "u1")
	l := New(db)

	var want []domain.Message
	for i := 0; i < 6; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		stamped, err := l.Append(ctx, "s1", domain.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		want = append(want, stamped...)
	}

	got, err := l.Read(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Role, got[i].Role)
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp), "timestamp %d", i)
	}
}

func TestAppendTimestampsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	helpers.SeedSession(t, db, "s1", "u1")
	l := New(db)

	// A frozen clock would produce equal timestamps without the ledger's correction.
	frozen := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return frozen }

	_, err := l.Append(ctx, "s1",
		domain.Message{Role: domain.RoleUser, Content: "a"},
		domain.Message{Role: domain.RoleAssistant, Content: "b"},
	)
	require.NoError(t, err)

	// A message stamped in the past is moved after the last one.
	_, err = l.Append(ctx, "s1", domain.Message{Role: domain.RoleUser, Content: "c", Timestamp: frozen.Add(-time.Hour)})
	require.NoError(t, err)

	got, err := l.Read(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Timestamp.After(got[i-1].Timestamp), "message %d not after %d", i, i-1)
	}
}

func TestAppendMissingSession(t *testing.T) {
	db := helpers.NewTestSQLiteStore(t)
	l := New(db)

	_, err := l.Append(context.Background(), "nope", domain.Message{Role: domain.RoleUser, Content: "hi"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = l.Read(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	db := helpers.NewTestSQLiteStore(t)
	helpers.SeedSession(t, db, "s1", "u1")
	l := New(db)

	_, err := l.Append(context.Background(), "s1", domain.Message{Role: "system", Content: "x"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	got, err := l.Read(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
