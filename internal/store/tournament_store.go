package store

import (
	"context"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	tournamentColumns = `id, owner_id, name, status, umpire_mode, is_public, created_at`
	entryColumns      = `id, tournament_id, team_id, seed, is_active, is_checked_in, day_token, checked_in_at, created_at`
	teamColumns       = `id, name, manager_id, created_at`
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, owner_id, name, status, umpire_mode, is_public)
        VALUES (:id, :owner_id, :name, :status, :umpire_mode, :is_public)`, tournament)
	return err
}

const createTeamQuery = `INSERT INTO teams (id, name, manager_id) VALUES (:id, :name, :manager_id)`

func (s *TournamentStore) CreateTeam(ctx context.Context, team *bracket.Team) error {
	_, err := s.db.NamedExecContext(ctx, createTeamQuery, team)
	return err
}

func (s *TournamentStore) CreateTeamTx(ctx context.Context, tx *sqlx.Tx, team *bracket.Team) error {
	_, err := tx.NamedExecContext(ctx, createTeamQuery, team)
	return err
}

func (s *TournamentStore) GetTeam(ctx context.Context, id uuid.UUID) (*bracket.Team, error) {
	return getTeam(ctx, s.db, id)
}

func (s *TournamentStore) GetTeamTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Team, error) {
	return getTeam(ctx, tx, id)
}

func getTeam(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	if err := sqlx.GetContext(ctx, q, &team, "SELECT "+teamColumns+" FROM teams WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *TournamentStore) CreateEntries(ctx context.Context, tx *sqlx.Tx, entries []bracket.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournament_entries (id, tournament_id, team_id, seed, is_active)
            VALUES (:id, :tournament_id, :team_id, :seed, :is_active)`, entries)
	return err
}

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, round_number, slot_index, status, next_match_id, winner_source_match_a, winner_source_match_b, is_confirmed, is_bye)
		VALUES (:id, :tournament_id, :round_number, :slot_index, :status, :next_match_id, :winner_source_match_a, :winner_source_match_b, :is_confirmed, :is_bye)`, matches)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, s.db, id)
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, tx, id)
}

func getTournament(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := sqlx.GetContext(ctx, q, &tournament, "SELECT "+tournamentColumns+" FROM tournaments WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, "SELECT "+tournamentColumns+" FROM tournaments WHERE owner_id = ? ORDER BY created_at DESC", ownerID)
	return tournaments, err
}

// UpdateTournamentStatusTx moves the tournament from one status to the next
// and fails with ErrNoRowsAffected when it is no longer in from.
func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to bracket.TournamentStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE tournaments SET status = ? WHERE id = ? AND status = ?", to, id, from)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrNoRowsAffected)
}

func (s *TournamentStore) GetEntries(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Entry, error) {
	var entries []bracket.Entry
	err := s.db.SelectContext(ctx, &entries, "SELECT "+entryColumns+" FROM tournament_entries WHERE tournament_id = ? ORDER BY seed ASC", tournamentID)
	return entries, err
}

func (s *TournamentStore) CountActiveEntriesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM tournament_entries WHERE tournament_id = ? AND is_active = 1", tournamentID)
	return count, err
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, "SELECT "+matchColumns+" FROM matches WHERE tournament_id = ? ORDER BY round_number ASC, slot_index ASC", tournamentID)
	return matches, err
}
