package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	matchColumns = `id, tournament_id, round_number, slot_index, status, version, court_number, umpire_id,
		next_match_id, winner_source_match_a, winner_source_match_b, is_confirmed, is_bye, started_at, created_at`
	scoreColumns = `match_id, game_count_a, game_count_b, final_score, winner_id, ended_at, winning_reason, updated_at`
	pairColumns  = `match_id, pair_number, team_id, player_1_id, player_2_id`

	// The version guard makes every match write a compare-and-swap against
	// the version the caller read.
	updateMatchQuery = `
		UPDATE matches SET
		status = :status,
		court_number = :court_number,
		umpire_id = :umpire_id,
		is_confirmed = :is_confirmed,
		started_at = :started_at,
		version = version + 1
		WHERE id = :id AND version = :version
	`
	updateScoreQuery = `
		UPDATE match_scores SET
		game_count_a = :game_count_a,
		game_count_b = :game_count_b,
		final_score = :final_score,
		winner_id = :winner_id,
		ended_at = :ended_at,
		winning_reason = :winning_reason,
		updated_at = :updated_at
		WHERE match_id = :match_id
	`
	upsertPairQuery = `
		INSERT INTO match_pairs (match_id, pair_number, team_id, player_1_id, player_2_id)
		VALUES (:match_id, :pair_number, :team_id, :player_1_id, :player_2_id)
		ON CONFLICT (match_id, pair_number) DO UPDATE SET
		team_id = excluded.team_id,
		player_1_id = excluded.player_1_id,
		player_2_id = excluded.player_2_id
	`
)

type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

func (s *MatchStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, s.db, id)
}

func (s *MatchStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, tx, id)
}

func getMatch(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := sqlx.GetContext(ctx, q, &match, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetMatchTournamentID resolves the tournament a match belongs to.
func (s *MatchStore) GetMatchTournamentID(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (uuid.UUID, error) {
	var tournamentID uuid.UUID
	err := sqlx.GetContext(ctx, q, &tournamentID, "SELECT tournament_id FROM matches WHERE id = ?", id)
	return tournamentID, err
}

// UpdateMatchTx writes the mutable match columns if the stored version still
// equals match.Version, then bumps match.Version to the stored value.
func (s *MatchStore) UpdateMatchTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	res, err := tx.NamedExecContext(ctx, updateMatchQuery, match)
	if err != nil {
		return err
	}
	if err := checkAffectedRows(res, ErrStaleVersion); err != nil {
		return err
	}
	match.Version++
	return nil
}

func (s *MatchStore) CreateScores(ctx context.Context, tx *sqlx.Tx, scores []bracket.MatchScore) error {
	if len(scores) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO match_scores (match_id, game_count_a, game_count_b, final_score, winner_id, ended_at, winning_reason)
		VALUES (:match_id, :game_count_a, :game_count_b, :final_score, :winner_id, :ended_at, :winning_reason)`, scores)
	return err
}

func (s *MatchStore) GetScore(ctx context.Context, matchID uuid.UUID) (*bracket.MatchScore, error) {
	return getScore(ctx, s.db, matchID)
}

func (s *MatchStore) GetScoreTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) (*bracket.MatchScore, error) {
	return getScore(ctx, tx, matchID)
}

func getScore(ctx context.Context, q sqlx.QueryerContext, matchID uuid.UUID) (*bracket.MatchScore, error) {
	var score bracket.MatchScore
	if err := sqlx.GetContext(ctx, q, &score, "SELECT "+scoreColumns+" FROM match_scores WHERE match_id = ?", matchID); err != nil {
		return nil, err
	}
	return &score, nil
}

func (s *MatchStore) UpdateScoreTx(ctx context.Context, tx *sqlx.Tx, score *bracket.MatchScore) error {
	score.UpdatedAt = time.Now().UTC()
	res, err := tx.NamedExecContext(ctx, updateScoreQuery, score)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrNoRowsAffected)
}

func (s *MatchStore) GetPairs(ctx context.Context, matchID uuid.UUID) ([]bracket.MatchPair, error) {
	return getPairs(ctx, s.db, matchID)
}

func (s *MatchStore) GetPairsTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) ([]bracket.MatchPair, error) {
	return getPairs(ctx, tx, matchID)
}

func getPairs(ctx context.Context, q sqlx.QueryerContext, matchID uuid.UUID) ([]bracket.MatchPair, error) {
	var pairs []bracket.MatchPair
	err := sqlx.SelectContext(ctx, q, &pairs, "SELECT "+pairColumns+" FROM match_pairs WHERE match_id = ? ORDER BY pair_number ASC", matchID)
	return pairs, err
}

func (s *MatchStore) CreatePairs(ctx context.Context, tx *sqlx.Tx, pairs []bracket.MatchPair) error {
	if len(pairs) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO match_pairs (match_id, pair_number, team_id, player_1_id, player_2_id)
		VALUES (:match_id, :pair_number, :team_id, :player_1_id, :player_2_id)`, pairs)
	return err
}

func (s *MatchStore) UpsertPairTx(ctx context.Context, tx *sqlx.Tx, pair *bracket.MatchPair) error {
	_, err := tx.NamedExecContext(ctx, upsertPairQuery, pair)
	return err
}

// DeletePairTx removes the pair in the given slot. When teamID is set the row
// is only removed if that team still occupies the slot.
func (s *MatchStore) DeletePairTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, pairNumber int, teamID *uuid.UUID) (int64, error) {
	query := "DELETE FROM match_pairs WHERE match_id = ? AND pair_number = ?"
	args := []any{matchID, pairNumber}
	if teamID != nil {
		query += " AND team_id = ?"
		args = append(args, *teamID)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MatchStore) UpdatePairPlayersTx(ctx context.Context, tx *sqlx.Tx, pair *bracket.MatchPair) error {
	res, err := tx.NamedExecContext(ctx, `UPDATE match_pairs SET player_1_id = :player_1_id, player_2_id = :player_2_id
		WHERE match_id = :match_id AND pair_number = :pair_number AND team_id = :team_id`, pair)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrNoRowsAffected)
}
