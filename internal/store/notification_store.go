package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type NotificationKind string

const NotificationUmpireAssigned NotificationKind = "umpire_assigned"

type Notification struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	UserID       uuid.UUID        `db:"user_id" json:"user_id"`
	Kind         NotificationKind `db:"kind" json:"kind"`
	TournamentID *uuid.UUID       `db:"tournament_id" json:"tournament_id,omitempty"`
	MatchID      *uuid.UUID       `db:"match_id" json:"match_id,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	ReadAt       *time.Time       `db:"read_at" json:"read_at,omitempty"`
}

type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(db *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) CreateNotificationTx(ctx context.Context, tx *sqlx.Tx, n *Notification) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO notifications (id, user_id, kind, tournament_id, match_id)
		VALUES (:id, :user_id, :kind, :tournament_id, :match_id)`, n)
	return err
}

func (s *NotificationStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	var notifications []Notification
	err := s.db.SelectContext(ctx, &notifications, `SELECT id, user_id, kind, tournament_id, match_id, created_at, read_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
	return notifications, err
}

func (s *NotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET read_at = ? WHERE id = ? AND user_id = ? AND read_at IS NULL", time.Now().UTC(), id, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrNoRowsAffected)
}
