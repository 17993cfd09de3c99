package service

import (
	"context"

	"github.com/xiaot623/gogo/therapy/internal/domain"
)

// RegisterUser creates or renames a user. Called by the identity collaborator.
func (s *Service) RegisterUser(ctx context.Context, userID, name string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	user := &domain.User{UserID: userID, Name: name}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, &domain.StoreError{Op: "upsert user", Err: err}
	}
	return user, nil
}

// PutTherapyContext replaces the memory and goals used to condition replies.
func (s *Service) PutTherapyContext(ctx context.Context, userID string, tc domain.TherapyContext) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return &domain.StoreError{Op: "get user", Err: err}
	}
	if user == nil {
		return domain.ErrNotFound
	}
	if tc.Memory == nil {
		tc.Memory = map[string]any{}
	}
	if tc.Goals == nil {
		tc.Goals = []domain.Goal{}
	}
	if err := s.store.PutTherapyContext(ctx, userID, tc); err != nil {
		return &domain.StoreError{Op: "put therapy context", Err: err}
	}
	return nil
}

// GetTherapyContext returns the memory and goals of a user.
func (s *Service) GetTherapyContext(ctx context.Context, userID string) (domain.TherapyContext, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.TherapyContext{}, &domain.StoreError{Op: "get user", Err: err}
	}
	if user == nil {
		return domain.TherapyContext{}, domain.ErrNotFound
	}
	tc, err := s.store.GetTherapyContext(ctx, userID)
	if err != nil {
		return domain.TherapyContext{}, &domain.StoreError{Op: "get therapy context", Err: err}
	}
	return tc, nil
}
