package service

import (
	"context"
	"errors"

	"github.com/AdamBeresnev/courtside/internal/store"
	"github.com/google/uuid"
)

type NotificationService struct {
	store *store.NotificationStore
}

func NewNotificationService(store *store.NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID) ([]store.Notification, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	return s.store.ListForUser(ctx, userID)
}

// MarkRead flags one of the user's notifications as read. Notifications of
// other users and ones already read are reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrUnauthenticated
	}
	if err := s.store.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNoRowsAffected) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}
