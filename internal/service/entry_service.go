package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/store"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type EntryService struct {
	db          *sqlx.DB
	store       *store.EntryStore
	tournaments *store.TournamentStore
	permissions *PermissionService
}

func NewEntryService(db *sqlx.DB, store *store.EntryStore, tournaments *store.TournamentStore, permissions *PermissionService) *EntryService {
	return &EntryService{db: db, store: store, tournaments: tournaments, permissions: permissions}
}

// SetActive withdraws an entry from a tournament or reinstates it. A
// withdrawn entry keeps its bracket position but can no longer check in.
// Reinstating fails with a conflict if its day token was reissued meanwhile.
func (s *EntryService) SetActive(ctx context.Context, actorID, tournamentID, entryID uuid.UUID, active bool) (*bracket.Entry, error) {
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
		return nil, err
	}

	entry, err := s.store.GetEntryTx(ctx, tx, entryID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && entry.TournamentID != tournament.ID) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	checks := append([]Check{{Role: users.RoleTeamAdmin, Scope: users.TeamScope(entry.TeamID)}}, tournamentAdmins(tournament.ID)...)
	if err := s.permissions.authorize(ctx, tx, actorID, checks...); err != nil {
		return nil, err
	}
	if tournament.Status == bracket.TournamentFinished {
		return nil, ErrTournamentStatus
	}
	if entry.IsActive == active {
		return entry, nil
	}

	if err := s.store.SetActiveTx(ctx, tx, entry.ID, active); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDayTokenTaken
		}
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	entry.IsActive = active
	return entry, tx.Commit()
}
