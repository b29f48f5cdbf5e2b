package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/store"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const maxTokenAttempts = 5

var dayTokenSpace = big.NewInt(1_000_000)

// generateDayToken returns six random digits.
func generateDayToken() (string, error) {
	n, err := rand.Int(rand.Reader, dayTokenSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

type CheckinService struct {
	db          *sqlx.DB
	entries     *store.EntryStore
	tournaments *store.TournamentStore
	permissions *PermissionService
	newToken    func() (string, error)
}

func NewCheckinService(db *sqlx.DB, entries *store.EntryStore, tournaments *store.TournamentStore, permissions *PermissionService) *CheckinService {
	return &CheckinService{
		db:          db,
		entries:     entries,
		tournaments: tournaments,
		permissions: permissions,
		newToken:    generateDayToken,
	}
}

type CheckinResult struct {
	EntryID  uuid.UUID `json:"entry_id"`
	DayToken string    `json:"day_token"`
}

// CheckIn marks an entry present for the day and issues it a day token that
// is unique among the tournament's active entries.
func (s *CheckinService) CheckIn(ctx context.Context, tournamentID, entryID, actorID uuid.UUID) (*CheckinResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}

	entry, err := s.entries.GetEntryTx(ctx, tx, entryID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && entry.TournamentID != tournament.ID) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	checks := append([]Check{{Role: users.RoleTeamAdmin, Scope: users.TeamScope(entry.TeamID)}}, tournamentAdmins(tournament.ID)...)
	if err := s.permissions.authorize(ctx, tx, actorID, checks...); err != nil {
		return nil, err
	}

	switch {
	case tournament.Status != bracket.TournamentPublished:
		return nil, ErrTournamentNotOpen
	case !entry.IsActive:
		return nil, ErrEntryInactive
	case entry.IsCheckedIn:
		return nil, ErrAlreadyCheckedIn
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate day token: %w", err)
		}

		inUse, err := s.entries.DayTokenInUseTx(ctx, tx, tournament.ID, token)
		if err != nil {
			return nil, fmt.Errorf("failed to check day token: %w", err)
		}
		if inUse {
			continue
		}

		err = s.entries.CheckInTx(ctx, tx, entry.ID, token, time.Now().UTC())
		switch {
		case errors.Is(err, store.ErrDuplicate):
			continue
		case errors.Is(err, store.ErrNoRowsAffected):
			return nil, ErrAlreadyCheckedIn
		case err != nil:
			return nil, fmt.Errorf("failed to check in entry: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &CheckinResult{EntryID: entry.ID, DayToken: token}, nil
	}

	return nil, ErrTokenExhausted
}
