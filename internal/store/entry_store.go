package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type EntryStore struct {
	db *sqlx.DB
}

func NewEntryStore(db *sqlx.DB) *EntryStore {
	return &EntryStore{db: db}
}

func (s *EntryStore) GetEntryTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Entry, error) {
	var entry bracket.Entry
	if err := tx.GetContext(ctx, &entry, "SELECT "+entryColumns+" FROM tournament_entries WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *EntryStore) GetEntryByToken(ctx context.Context, tournamentID uuid.UUID, token string) (*bracket.Entry, error) {
	var entry bracket.Entry
	err := s.db.GetContext(ctx, &entry, "SELECT "+entryColumns+" FROM tournament_entries WHERE tournament_id = ? AND day_token = ? AND is_active = 1", tournamentID, token)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DayTokenInUseTx reports whether an active entry of the tournament already holds token.
func (s *EntryStore) DayTokenInUseTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, token string) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM tournament_entries WHERE tournament_id = ? AND day_token = ? AND is_active = 1", tournamentID, token)
	return count > 0, err
}

// CheckInTx marks the entry checked in with token. ErrNoRowsAffected means
// the entry was checked in concurrently; ErrDuplicate means the token was taken.
func (s *EntryStore) CheckInTx(ctx context.Context, tx *sqlx.Tx, entryID uuid.UUID, token string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE tournament_entries SET is_checked_in = 1, day_token = ?, checked_in_at = ?
		WHERE id = ? AND is_checked_in = 0`, token, at, entryID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return checkAffectedRows(res, ErrNoRowsAffected)
}

// SetActiveTx toggles whether the entry takes part in the tournament.
func (s *EntryStore) SetActiveTx(ctx context.Context, tx *sqlx.Tx, entryID uuid.UUID, active bool) error {
	res, err := tx.ExecContext(ctx, "UPDATE tournament_entries SET is_active = ? WHERE id = ?", active, entryID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return checkAffectedRows(res, ErrNoRowsAffected)
}
