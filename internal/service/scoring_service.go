package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/store"
	"github.com/AdamBeresnev/courtside/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ScoringService owns the point ledger of a match and the score derived from it.
type ScoringService struct {
	db          *sqlx.DB
	matches     *store.MatchStore
	points      *store.PointStore
	permissions *PermissionService
}

func NewScoringService(db *sqlx.DB, matches *store.MatchStore, points *store.PointStore, permissions *PermissionService) *ScoringService {
	return &ScoringService{db: db, matches: matches, points: points, permissions: permissions}
}

type SubmitPointInput struct {
	MatchID uuid.UUID
	ActorID uuid.UUID
	Side    bracket.Side
	// ClientKey is optional; a retry carrying the same key is recorded once.
	ClientKey string
}

// SubmitPoint appends a point for one side and returns the re-aggregated
// score. The match version is left alone so scorers can keep appending
// without refreshing.
func (s *ScoringService) SubmitPoint(ctx context.Context, input SubmitPointInput) (*bracket.AggregateScore, error) {
	if !input.Side.Valid() {
		return nil, ErrInvalidSide
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchTx(ctx, tx, s.matches, input.MatchID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.authorize(ctx, tx, input.ActorID, matchOperators(match)...); err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchFinished {
		return nil, ErrMatchClosed
	}

	clientKey := utils.StringOrNil(input.ClientKey)
	duplicate := false
	if clientKey != nil {
		existing, err := s.points.FindActiveByClientKeyTx(ctx, tx, match.ID, *clientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to look up client key: %w", err)
		}
		duplicate = existing != nil
	}

	if !duplicate {
		point := &bracket.Point{
			MatchID:          match.ID,
			PointType:        input.Side.PointType(),
			ClientKey:        clientKey,
			ActorID:          input.ActorID,
			ServerReceivedAt: time.Now().UTC(),
		}
		err := s.points.InsertPointTx(ctx, tx, point)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			duplicate = true
		case err != nil:
			return nil, fmt.Errorf("failed to insert point: %w", err)
		}
	}

	score, err := aggregateTx(ctx, tx, s.matches, s.points, match.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result := aggregateOf(match, score)
	result.Duplicate = duplicate
	return result, nil
}

// UndoPoint flags the most recently received live point as undone and bumps
// the match version so clients holding the old ledger resynchronise.
func (s *ScoringService) UndoPoint(ctx context.Context, matchID, actorID uuid.UUID, expectedVersion *int) (*bracket.AggregateScore, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchTx(ctx, tx, s.matches, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.authorize(ctx, tx, actorID, matchOperators(match)...); err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchFinished {
		return nil, ErrMatchClosed
	}
	if err := checkVersion(match, expectedVersion); err != nil {
		return nil, err
	}

	latest, err := s.points.LatestActivePointTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest point: %w", err)
	}
	if latest == nil {
		return nil, ErrNothingToUndo
	}

	if err := s.points.MarkUndoneTx(ctx, tx, latest.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNoRowsAffected) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to undo point: %w", err)
	}

	score, err := aggregateTx(ctx, tx, s.matches, s.points, match.ID)
	if err != nil {
		return nil, err
	}
	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}

	return aggregateOf(match, score), tx.Commit()
}

// Aggregate recomputes the score of an unfinished match from its ledger. A
// finished match returns its stored result untouched.
func (s *ScoringService) Aggregate(ctx context.Context, matchID uuid.UUID) (*bracket.AggregateScore, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchTx(ctx, tx, s.matches, matchID)
	if err != nil {
		return nil, err
	}

	var score *bracket.MatchScore
	if match.Status == bracket.MatchFinished {
		score, err = s.matches.GetScoreTx(ctx, tx, match.ID)
	} else {
		score, err = aggregateTx(ctx, tx, s.matches, s.points, match.ID)
	}
	if err != nil {
		return nil, err
	}

	return aggregateOf(match, score), tx.Commit()
}

type OverrideInput struct {
	MatchID         uuid.UUID
	ActorID         uuid.UUID
	GameCountA      int
	GameCountB      int
	ExpectedVersion *int
}

type scoreSnapshot struct {
	GameCountA int `json:"game_count_a"`
	GameCountB int `json:"game_count_b"`
	Version    int `json:"version"`
}

// OverrideScore lets a tournament admin set the game counts directly. The
// change is written to the audit trail and lasts until the ledger is next
// aggregated.
func (s *ScoringService) OverrideScore(ctx context.Context, input OverrideInput) (*bracket.AggregateScore, error) {
	if input.GameCountA < 0 || input.GameCountB < 0 {
		return nil, ErrInvalidScore
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchTx(ctx, tx, s.matches, input.MatchID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.authorize(ctx, tx, input.ActorID, tournamentAdmins(match.TournamentID)...); err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchFinished {
		return nil, ErrMatchClosed
	}
	if err := checkVersion(match, input.ExpectedVersion); err != nil {
		return nil, err
	}

	score, err := s.matches.GetScoreTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	before, err := json.Marshal(scoreSnapshot{GameCountA: score.GameCountA, GameCountB: score.GameCountB, Version: match.Version})
	if err != nil {
		return nil, err
	}

	score.GameCountA = input.GameCountA
	score.GameCountB = input.GameCountB
	if err := s.matches.UpdateScoreTx(ctx, tx, score); err != nil {
		return nil, fmt.Errorf("failed to update score: %w", err)
	}
	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}

	after, err := json.Marshal(scoreSnapshot{GameCountA: score.GameCountA, GameCountB: score.GameCountB, Version: match.Version})
	if err != nil {
		return nil, err
	}
	audit := &bracket.ScoreAudit{
		MatchID:        match.ID,
		ActorID:        input.ActorID,
		BeforeSnapshot: string(before),
		AfterSnapshot:  string(after),
	}
	if err := s.points.CreateScoreAuditTx(ctx, tx, audit); err != nil {
		return nil, fmt.Errorf("failed to write score audit: %w", err)
	}

	return aggregateOf(match, score), tx.Commit()
}

// ListPoints returns the full ledger of a match, undone points included.
func (s *ScoringService) ListPoints(ctx context.Context, matchID uuid.UUID) ([]bracket.Point, error) {
	if _, err := s.matches.GetMatch(ctx, matchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return s.points.ListPoints(ctx, matchID)
}

func (s *ScoringService) ListAudits(ctx context.Context, matchID uuid.UUID) ([]bracket.ScoreAudit, error) {
	return s.points.GetScoreAudits(ctx, matchID)
}

// aggregateTx counts the live points of a match and writes the counts to its score.
func aggregateTx(ctx context.Context, tx *sqlx.Tx, matches *store.MatchStore, points *store.PointStore, matchID uuid.UUID) (*bracket.MatchScore, error) {
	a, b, err := points.CountActiveTx(ctx, tx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to count points: %w", err)
	}

	score, err := matches.GetScoreTx(ctx, tx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	score.GameCountA = a
	score.GameCountB = b

	if err := matches.UpdateScoreTx(ctx, tx, score); err != nil {
		return nil, fmt.Errorf("failed to update score: %w", err)
	}
	return score, nil
}

func aggregateOf(match *bracket.Match, score *bracket.MatchScore) *bracket.AggregateScore {
	return &bracket.AggregateScore{
		MatchID:    match.ID,
		GameCountA: score.GameCountA,
		GameCountB: score.GameCountB,
		Version:    match.Version,
	}
}
