package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/store"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/AdamBeresnev/courtside/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const defaultWinningReason = "normal"

type MatchService struct {
	db            *sqlx.DB
	matches       *store.MatchStore
	points        *store.PointStore
	permissions   *PermissionService
	grants        *store.PermissionStore
	notifications *store.NotificationStore
	propagator    *Propagator
	logger        *slog.Logger
}

func NewMatchService(
	db *sqlx.DB,
	matches *store.MatchStore,
	points *store.PointStore,
	permissions *PermissionService,
	grants *store.PermissionStore,
	notifications *store.NotificationStore,
	propagator *Propagator,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		db:            db,
		matches:       matches,
		points:        points,
		permissions:   permissions,
		grants:        grants,
		notifications: notifications,
		propagator:    propagator,
		logger:        logger,
	}
}

type MatchView struct {
	Match *bracket.Match      `json:"match"`
	Score *bracket.MatchScore `json:"score"`
	Pairs []bracket.MatchPair `json:"pairs"`
}

func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*MatchView, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	score, err := s.matches.GetScore(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}

	pairs, err := s.matches.GetPairs(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pairs: %w", err)
	}

	return &MatchView{Match: match, Score: score, Pairs: pairs}, nil
}

// UpdateStatus moves a match along pending -> inprogress <-> paused. Finishing
// and reopening go through Finish and Revert.
func (s *MatchService) UpdateStatus(ctx context.Context, matchID, actorID uuid.UUID, target bracket.MatchStatus, expectedVersion *int) (*bracket.Match, error) {
	switch target {
	case bracket.MatchPending, bracket.MatchInProgress, bracket.MatchPaused, bracket.MatchFinished:
	default:
		return nil, ErrInvalidStatus
	}

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
	if !match.Status.CanTransitionTo(target) {
		return nil, ErrInvalidTransition
	}
	if err := checkVersion(match, expectedVersion); err != nil {
		return nil, err
	}

	match.Status = target
	if target == bracket.MatchInProgress && match.StartedAt == nil {
		match.StartedAt = utils.Ptr(time.Now().UTC())
	}

	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}
	return match, tx.Commit()
}

type FinishInput struct {
	MatchID         uuid.UUID
	ActorID         uuid.UUID
	ExpectedVersion *int
	// Reason is stored as the winning reason; empty means a normal finish.
	Reason string
}

// FinishResult carries the committed finish and the outcome of propagating
// it. A propagation failure does not undo the finish; it is reported in
// PropagationErr.
type FinishResult struct {
	Match          *bracket.Match      `json:"match"`
	Score          *bracket.MatchScore `json:"score"`
	Propagation    *PropagationResult  `json:"propagation,omitempty"`
	PropagationErr error               `json:"-"`
}

func (s *MatchService) Finish(ctx context.Context, input FinishInput) (*FinishResult, error) {
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
	if !match.Status.CanFinish() {
		return nil, ErrInvalidTransition
	}
	if err := checkVersion(match, input.ExpectedVersion); err != nil {
		return nil, err
	}

	score, err := aggregateTx(ctx, tx, s.matches, s.points, match.ID)
	if err != nil {
		return nil, err
	}
	side, ok := score.Leader()
	if !ok {
		return nil, ErrNoWinner
	}

	pairs, err := s.matches.GetPairsTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pairs: %w", err)
	}
	winner := bracket.PairFor(pairs, side.PairNumber())
	if winner == nil {
		return nil, ErrSideVacant
	}

	reason := input.Reason
	if reason == "" {
		reason = defaultWinningReason
	}
	score.WinnerID = utils.Ptr(winner.TeamID)
	score.EndedAt = utils.Ptr(time.Now().UTC())
	score.WinningReason = &reason
	score.FinalScore = score.Summary()
	if err := s.matches.UpdateScoreTx(ctx, tx, score); err != nil {
		return nil, fmt.Errorf("failed to update score: %w", err)
	}

	match.Status = bracket.MatchFinished
	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result := &FinishResult{Match: match, Score: score}
	result.Propagation, result.PropagationErr = s.propagator.Propagate(ctx, match.ID)
	if result.PropagationErr != nil {
		s.logger.Error("propagation failed after finish",
			"match_id", match.ID,
			"tournament_id", match.TournamentID,
			"error", result.PropagationErr,
		)
	}
	return result, nil
}

// Confirm marks a finished result as confirmed.
func (s *MatchService) Confirm(ctx context.Context, matchID, actorID uuid.UUID, expectedVersion *int) (*bracket.Match, error) {
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
	if match.Status != bracket.MatchFinished {
		return nil, ErrNotFinished
	}
	if err := checkVersion(match, expectedVersion); err != nil {
		return nil, err
	}

	match.IsConfirmed = true
	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}
	return match, tx.Commit()
}

// Revert reopens a finished match and removes the pair it propagated into
// the downstream match. The point ledger is kept, and umpire grants issued
// by propagation stay in place.
func (s *MatchService) Revert(ctx context.Context, matchID, actorID uuid.UUID, expectedVersion *int) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchTx(ctx, tx, s.matches, matchID)
	if err != nil {
		return nil, err
	}

	checks := matchOperators(match)
	if match.IsConfirmed {
		checks = tournamentAdmins(match.TournamentID)
	}
	if err := s.permissions.authorize(ctx, tx, actorID, checks...); err != nil {
		return nil, err
	}
	if match.Status != bracket.MatchFinished {
		return nil, ErrNotFinished
	}
	if match.IsBye {
		return nil, ErrInvalidTransition
	}
	if err := checkVersion(match, expectedVersion); err != nil {
		return nil, err
	}

	score, err := s.matches.GetScoreTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}

	if match.NextMatchID != nil {
		if err := s.retractWinnerTx(ctx, tx, match, score.WinnerID); err != nil {
			return nil, err
		}
	}

	score.WinnerID = nil
	score.EndedAt = nil
	score.WinningReason = nil
	score.FinalScore = ""
	if err := s.matches.UpdateScoreTx(ctx, tx, score); err != nil {
		return nil, fmt.Errorf("failed to update score: %w", err)
	}

	match.Status = bracket.MatchInProgress
	match.IsConfirmed = false
	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("match reverted", "match_id", match.ID, "actor_id", actorID, "version", match.Version)
	return match, nil
}

// retractWinnerTx deletes the downstream pair written for winnerID. A slot
// that no longer holds the winner is left alone.
func (s *MatchService) retractWinnerTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match, winnerID *uuid.UUID) error {
	next, err := s.matches.GetMatchTx(ctx, tx, *match.NextMatchID)
	if err != nil {
		return fmt.Errorf("failed to get next match: %w", err)
	}
	if next.Status == bracket.MatchFinished {
		return ErrDownstreamFinished
	}
	if winnerID == nil {
		return nil
	}

	slot, ok := match.FeedSlot(next)
	if !ok {
		return fmt.Errorf("%w: match %s is not a winner source of %s", ErrPropagation, match.ID, next.ID)
	}

	removed, err := s.matches.DeletePairTx(ctx, tx, next.ID, slot, winnerID)
	if err != nil {
		return fmt.Errorf("failed to remove downstream pair: %w", err)
	}
	if removed == 0 {
		return nil
	}
	return saveMatchTx(ctx, tx, s.matches, next)
}

// AssignUmpire sets the umpire of a match and grants them umpire rights on it.
func (s *MatchService) AssignUmpire(ctx context.Context, matchID, actorID, umpireID uuid.UUID, expectedVersion *int) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchTx(ctx, tx, s.matches, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.authorize(ctx, tx, actorID, tournamentAdmins(match.TournamentID)...); err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchFinished {
		return nil, ErrMatchClosed
	}
	if err := checkVersion(match, expectedVersion); err != nil {
		return nil, err
	}
	if err := s.permissions.requireUserTx(ctx, tx, umpireID); err != nil {
		return nil, err
	}

	if _, err := issueUmpireGrantTx(ctx, tx, s.grants, s.notifications, umpireID, match, false); err != nil {
		return nil, err
	}

	match.UmpireID = &umpireID
	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}
	return match, tx.Commit()
}

func (s *MatchService) AssignCourt(ctx context.Context, matchID, actorID uuid.UUID, court int, expectedVersion *int) (*bracket.Match, error) {
	if court <= 0 {
		return nil, ErrInvalidCourt
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchTx(ctx, tx, s.matches, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.permissions.authorize(ctx, tx, actorID, tournamentAdmins(match.TournamentID)...); err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchFinished {
		return nil, ErrMatchClosed
	}
	if err := checkVersion(match, expectedVersion); err != nil {
		return nil, err
	}

	match.CourtNumber = &court
	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}
	return match, tx.Commit()
}

type OrderInput struct {
	MatchID         uuid.UUID
	ActorID         uuid.UUID
	TeamID          uuid.UUID
	Player1ID       *uuid.UUID
	Player2ID       *uuid.UUID
	ExpectedVersion *int
}

// SubmitOrder records which players a team fields, before the match starts.
func (s *MatchService) SubmitOrder(ctx context.Context, input OrderInput) (*bracket.MatchPair, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchTx(ctx, tx, s.matches, input.MatchID)
	if err != nil {
		return nil, err
	}

	checks := append([]Check{{Role: users.RoleTeamAdmin, Scope: users.TeamScope(input.TeamID)}}, tournamentAdmins(match.TournamentID)...)
	if err := s.permissions.authorize(ctx, tx, input.ActorID, checks...); err != nil {
		return nil, err
	}

	pairs, err := s.matches.GetPairsTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pairs: %w", err)
	}
	var pair *bracket.MatchPair
	for i := range pairs {
		if pairs[i].TeamID == input.TeamID {
			pair = &pairs[i]
			break
		}
	}
	if pair == nil {
		return nil, ErrTeamNotInMatch
	}
	if match.Status != bracket.MatchPending {
		return nil, ErrMatchStarted
	}
	if err := checkVersion(match, input.ExpectedVersion); err != nil {
		return nil, err
	}

	pair.Player1ID = input.Player1ID
	pair.Player2ID = input.Player2ID
	if err := s.matches.UpdatePairPlayersTx(ctx, tx, pair); err != nil {
		return nil, fmt.Errorf("failed to update pair: %w", err)
	}
	if err := saveMatchTx(ctx, tx, s.matches, match); err != nil {
		return nil, err
	}
	return pair, tx.Commit()
}

func loadMatchTx(ctx context.Context, tx *sqlx.Tx, matches *store.MatchStore, id uuid.UUID) (*bracket.Match, error) {
	match, err := matches.GetMatchTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

// checkVersion compares against the caller's expected version when one is
// given. Without it the conditional update still rejects concurrent writers.
func checkVersion(match *bracket.Match, expected *int) error {
	if expected != nil && match.Version != *expected {
		return ErrVersionConflict
	}
	return nil
}

// saveMatchTx writes match guarded by its version and bumps it by one.
func saveMatchTx(ctx context.Context, tx *sqlx.Tx, matches *store.MatchStore, match *bracket.Match) error {
	if err := matches.UpdateMatchTx(ctx, tx, match); err != nil {
		if errors.Is(err, store.ErrStaleVersion) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to update match: %w", err)
	}
	return nil
}
