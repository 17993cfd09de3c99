// Package ledger enforces the append-only ordering discipline of session messages.
//
// The ledger stamps every appended message so timestamps are strictly increasing
// within a session, then persists the batch atomically. It does not serialize
// concurrent appends itself; callers hold the session lock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/repository"
)

// Ledger is the append-only message history layered on a Store.
type Ledger struct {
	store repository.Store
	now   func() time.Time
}

// New creates a ledger over store.
func New(store repository.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Append stamps and persists msgs in order as one unit and returns the stamped copies.
func (l *Ledger) Append(ctx context.Context, sessionID string, msgs ...domain.Message) ([]domain.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	for _, m := range msgs {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w: unsupported role %q", domain.ErrInvalidInput, m.Role)
		}
	}

	session, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, &domain.StoreError{Op: "get session", Err: err}
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}

	last, err := l.store.LastMessageTime(ctx, sessionID)
	if err != nil {
		return nil, &domain.StoreError{Op: "last message time", Err: err}
	}

	stamped := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = l.now()
		}
		// Storage resolution is one millisecond.
		ts = time.UnixMilli(ts.UnixMilli()).UTC()
		if !last.IsZero() && !ts.After(last) {
			ts = last.Add(time.Millisecond)
		}
		m.Timestamp = ts
		stamped[i] = m
		last = ts
	}

	if err := l.store.AppendMessages(ctx, sessionID, stamped); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, &domain.StoreError{Op: "append messages", Err: err}
	}
	return stamped, nil
}

// Read returns the ordered messages of a session.
func (l *Ledger) Read(ctx context.Context, sessionID string) ([]domain.Message, error) {
	session, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, &domain.StoreError{Op: "get session", Err: err}
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}

	messages, err := l.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, &domain.StoreError{Op: "get messages", Err: err}
	}
	return messages, nil
}
