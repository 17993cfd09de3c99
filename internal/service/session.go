package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/therapy/internal/domain"
	"github.com/xiaot623/gogo/therapy/internal/logging"
)

// CreateSession starts an empty active session for a registered user.
func (s *Service) CreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, &domain.StoreError{Op: "get user", Err: err}
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}

	now := time.UnixMilli(time.Now().UnixMilli()).UTC()
	session := &domain.Session{
		SessionID: uuid.New().String(),
		UserID:    userID,
		Status:    domain.SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []domain.Message{},
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, &domain.StoreError{Op: "create session", Err: err}
	}

	logging.Info().Str("session_id", session.SessionID).Str("user_id", userID).Msg("session created")
	return session, nil
}

// ListSessions returns the user's sessions with messages, most recently updated first.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.store.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, &domain.StoreError{Op: "list sessions", Err: err}
	}
	return sessions, nil
}

// GetSession returns the full session document.
func (s *Service) GetSession(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	session, err := s.authorize(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.ledger.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Messages = messages
	return session, nil
}

// GetHistory returns the ordered messages of a session.
func (s *Service) GetHistory(ctx context.Context, sessionID, userID string) ([]domain.Message, error) {
	if _, err := s.authorize(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.ledger.Read(ctx, sessionID)
}

// Authorize checks that the session exists and belongs to userID.
func (s *Service) Authorize(ctx context.Context, sessionID, userID string) error {
	_, err := s.authorize(ctx, sessionID, userID)
	return err
}

// CloseSession marks a session closed. Closed sessions stay readable.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	if err := s.store.SetSessionStatus(ctx, sessionID, domain.SessionStatusClosed); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return &domain.StoreError{Op: "close session", Err: err}
	}
	logging.Info().Str("session_id", sessionID).Msg("session closed")
	return nil
}

func (s *Service) authorize(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, &domain.StoreError{Op: "get session", Err: err}
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	if !session.OwnedBy(userID) {
		logging.Warn().Str("session_id", sessionID).Str("user_id", userID).Msg("unauthorized session access")
		return nil, domain.ErrForbidden
	}
	return session, nil
}
