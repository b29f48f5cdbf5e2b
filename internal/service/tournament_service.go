package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/store"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentService struct {
	db          *sqlx.DB
	store       *store.TournamentStore
	matches     *store.MatchStore
	grants      *store.PermissionStore
	permissions *PermissionService
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, matches *store.MatchStore, grants *store.PermissionStore, permissions *PermissionService) *TournamentService {
	return &TournamentService{db: db, store: store, matches: matches, grants: grants, permissions: permissions}
}

type TournamentData struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Entries    []bracket.Entry     `json:"entries"`
	Matches    []bracket.Match     `json:"matches"`
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	entries, err := s.store.GetEntries(ctx, id)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.GetMatches(ctx, id)
	if err != nil {
		return nil, err
	}

	return &TournamentData{
		Tournament: tournament,
		Entries:    entries,
		Matches:    matches,
	}, nil
}

func (s *TournamentService) GetTournamentsForUser(ctx context.Context, userID uuid.UUID) ([]bracket.Tournament, error) {
	return s.store.GetTournamentsByOwner(ctx, userID)
}

// CreateTeam registers a team. The manager, or the actor when no manager is
// given, becomes the team's admin.
func (s *TournamentService) CreateTeam(ctx context.Context, actorID uuid.UUID, name string, managerID *uuid.UUID) (*bracket.Team, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if managerID == nil {
		managerID = &actorID
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	team := &bracket.Team{ID: uuid.New(), Name: name, ManagerID: managerID}
	if err := s.store.CreateTeamTx(ctx, tx, team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	grant := &users.Permission{
		ID:       uuid.New(),
		UserID:   *managerID,
		RoleType: users.RoleTeamAdmin,
		TeamID:   &team.ID,
	}
	if err := s.grants.CreatePermissionTx(ctx, tx, grant); err != nil {
		return nil, fmt.Errorf("failed to grant team admin: %w", err)
	}

	return team, tx.Commit()
}

type CreateTournamentInput struct {
	Name       string
	UmpireMode bracket.UmpireMode
	IsPublic   bool
	// TeamIDs in seed order, top seed first.
	TeamIDs []uuid.UUID
}

// CreateTournament stores a draft tournament with its entries and a
// generated single-elimination bracket, and makes the actor its admin.
func (s *TournamentService) CreateTournament(ctx context.Context, actorID uuid.UUID, input CreateTournamentInput) (uuid.UUID, error) {
	if actorID == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return uuid.Nil, ErrNameRequired
	}
	if input.UmpireMode == "" {
		input.UmpireMode = bracket.UmpireFree
	}
	if !input.UmpireMode.Valid() {
		return uuid.Nil, ErrInvalidUmpireMode
	}

	seen := make(map[uuid.UUID]bool, len(input.TeamIDs))
	for _, id := range input.TeamIDs {
		if seen[id] {
			return uuid.Nil, ErrDuplicateTeamEntry
		}
		seen[id] = true
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	for _, id := range input.TeamIDs {
		if _, err := s.store.GetTeamTx(ctx, tx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return uuid.Nil, ErrTeamNotFound
			}
			return uuid.Nil, err
		}
	}

	tournamentID := uuid.New()
	tournament := bracket.Tournament{
		ID:         tournamentID,
		OwnerID:    actorID,
		Name:       name,
		Status:     bracket.TournamentDraft,
		UmpireMode: input.UmpireMode,
		IsPublic:   input.IsPublic,
	}

	if err := s.store.CreateTournament(ctx, tx, &tournament); err != nil {
		return uuid.Nil, err
	}

	var entries []bracket.Entry
	for i, teamID := range input.TeamIDs {
		e := bracket.Entry{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			TeamID:       teamID,
			Seed:         i + 1,
			IsActive:     true,
		}

		entries = append(entries, e)
	}

	if err := s.store.CreateEntries(ctx, tx, entries); err != nil {
		return uuid.Nil, err
	}

	generated := generateSingleElimBracket(tournamentID, entries)
	if err := s.store.CreateMatches(ctx, tx, generated.Matches); err != nil {
		return uuid.Nil, err
	}
	if err := s.matches.CreateScores(ctx, tx, generated.Scores); err != nil {
		return uuid.Nil, err
	}
	if err := s.matches.CreatePairs(ctx, tx, generated.Pairs); err != nil {
		return uuid.Nil, err
	}

	grant := &users.Permission{
		ID:           uuid.New(),
		UserID:       actorID,
		RoleType:     users.RoleTournamentAdmin,
		TournamentID: &tournamentID,
	}
	if err := s.grants.CreatePermissionTx(ctx, tx, grant); err != nil {
		return uuid.Nil, fmt.Errorf("failed to grant tournament admin: %w", err)
	}

	return tournamentID, tx.Commit()
}

// Publish opens a draft tournament for play. It needs at least one active entry.
func (s *TournamentService) Publish(ctx context.Context, actorID, tournamentID uuid.UUID) error {
	return s.advanceStatus(ctx, actorID, tournamentID, bracket.TournamentPublished, func(tx *sqlx.Tx) error {
		count, err := s.store.CountActiveEntriesTx(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNoActiveEntries
		}
		return nil
	})
}

func (s *TournamentService) FinishTournament(ctx context.Context, actorID, tournamentID uuid.UUID) error {
	return s.advanceStatus(ctx, actorID, tournamentID, bracket.TournamentFinished, nil)
}

func (s *TournamentService) advanceStatus(ctx context.Context, actorID, tournamentID uuid.UUID, to bracket.TournamentStatus, precondition func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTournamentNotFound
		}
		return err
	}
	if err := s.permissions.authorize(ctx, tx, actorID, tournamentAdmins(tournament.ID)...); err != nil {
		return err
	}
	if !tournament.Status.CanAdvanceTo(to) {
		return ErrTournamentStatus
	}
	if precondition != nil {
		if err := precondition(tx); err != nil {
			return err
		}
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, tournament.Status, to); err != nil {
		if errors.Is(err, store.ErrNoRowsAffected) {
			return ErrTournamentStatus
		}
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	return tx.Commit()
}
