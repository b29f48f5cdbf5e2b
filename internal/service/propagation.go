package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/store"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Propagator moves the winner of a finished match into the match it feeds.
type Propagator struct {
	db            *sqlx.DB
	matches       *store.MatchStore
	tournaments   *store.TournamentStore
	permissions   *store.PermissionStore
	notifications *store.NotificationStore
	logger        *slog.Logger
}

func NewPropagator(db *sqlx.DB, matches *store.MatchStore, tournaments *store.TournamentStore, permissions *store.PermissionStore, notifications *store.NotificationStore, logger *slog.Logger) *Propagator {
	return &Propagator{
		db:            db,
		matches:       matches,
		tournaments:   tournaments,
		permissions:   permissions,
		notifications: notifications,
		logger:        logger,
	}
}

// PropagationResult describes what a propagation wrote.
type PropagationResult struct {
	NextMatchID  uuid.UUID  `json:"next_match_id"`
	Slot         int        `json:"slot"`
	WinnerTeamID uuid.UUID  `json:"winner_team_id"`
	UmpireID     *uuid.UUID `json:"umpire_id,omitempty"`
	// Notification is the umpire notice written under LOSER mode, if any.
	Notification *store.Notification `json:"notification,omitempty"`
}

// Propagate writes the winner of a finished match into its downstream slot
// and, under LOSER mode, hands umpire duty for that match to the losing
// team's manager. It runs in its own transaction; a nil result with a nil
// error means the match feeds nothing. Failures wrap ErrPropagation.
func (p *Propagator) Propagate(ctx context.Context, matchID uuid.UUID) (*PropagationResult, error) {
	result, err := p.propagate(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPropagation, err)
	}
	return result, nil
}

func (p *Propagator) propagate(ctx context.Context, matchID uuid.UUID) (*PropagationResult, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := p.matches.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if match.Status != bracket.MatchFinished {
		return nil, fmt.Errorf("match %s is %s", match.ID, match.Status)
	}
	if match.NextMatchID == nil {
		return nil, nil
	}

	score, err := p.matches.GetScoreTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	if score.WinnerID == nil {
		return nil, errors.New("finished match has no winner")
	}

	next, err := p.matches.GetMatchTx(ctx, tx, *match.NextMatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get next match: %w", err)
	}
	slot, ok := match.FeedSlot(next)
	if !ok {
		return nil, fmt.Errorf("match %s is not a winner source of %s", match.ID, next.ID)
	}

	pair := &bracket.MatchPair{MatchID: next.ID, PairNumber: slot, TeamID: *score.WinnerID}
	if err := p.matches.UpsertPairTx(ctx, tx, pair); err != nil {
		return nil, fmt.Errorf("failed to write pair: %w", err)
	}

	result := &PropagationResult{NextMatchID: next.ID, Slot: slot, WinnerTeamID: *score.WinnerID}

	tournament, err := p.tournaments.GetTournamentTx(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament.UmpireMode == bracket.UmpireLoser {
		notification, err := p.assignLoserUmpire(ctx, tx, match, next, *score.WinnerID)
		if err != nil {
			return nil, err
		}
		result.UmpireID = next.UmpireID
		result.Notification = notification
	}

	if err := p.matches.UpdateMatchTx(ctx, tx, next); err != nil {
		return nil, fmt.Errorf("failed to update next match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	p.logger.Info("winner propagated",
		"match_id", match.ID,
		"next_match_id", next.ID,
		"slot", slot,
		"winner_team_id", result.WinnerTeamID,
	)
	return result, nil
}

// assignLoserUmpire makes the manager of the losing team the umpire of next.
// A team without a manager leaves next untouched.
func (p *Propagator) assignLoserUmpire(ctx context.Context, tx *sqlx.Tx, match, next *bracket.Match, winnerID uuid.UUID) (*store.Notification, error) {
	pairs, err := p.matches.GetPairsTx(ctx, tx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pairs: %w", err)
	}
	loserID := bracket.Loser(pairs, winnerID)
	if loserID == nil {
		return nil, nil
	}

	team, err := p.tournaments.GetTeamTx(ctx, tx, *loserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get losing team: %w", err)
	}
	if team.ManagerID == nil {
		return nil, nil
	}

	notification, err := issueUmpireGrantTx(ctx, tx, p.permissions, p.notifications, *team.ManagerID, next, true)
	if err != nil {
		return nil, err
	}
	next.UmpireID = team.ManagerID
	return notification, nil
}

// issueUmpireGrantTx gives userID umpire rights on match and records a
// notification for them. With reuseTournamentWide an existing
// tournament-wide umpire grant of the user is narrowed to the match instead
// of adding a row.
func issueUmpireGrantTx(ctx context.Context, tx *sqlx.Tx, permissions *store.PermissionStore, notifications *store.NotificationStore, userID uuid.UUID, match *bracket.Match, reuseTournamentWide bool) (*store.Notification, error) {
	scope := users.MatchScope(match.TournamentID, match.ID)

	existing, err := permissions.FindExactTx(ctx, tx, userID, users.RoleUmpire, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to look up umpire grant: %w", err)
	}

	if existing == nil && reuseTournamentWide {
		wide, err := permissions.FindTournamentWideTx(ctx, tx, userID, users.RoleUmpire, match.TournamentID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up tournament umpire grant: %w", err)
		}
		if wide != nil {
			if err := permissions.AttachMatchTx(ctx, tx, wide.ID, match.ID); err != nil {
				return nil, fmt.Errorf("failed to attach match to umpire grant: %w", err)
			}
			existing = wide
		}
	}

	if existing == nil {
		grant := &users.Permission{
			ID:           uuid.New(),
			UserID:       userID,
			RoleType:     users.RoleUmpire,
			TournamentID: scope.TournamentID,
			MatchID:      scope.MatchID,
		}
		if err := permissions.CreatePermissionTx(ctx, tx, grant); err != nil {
			return nil, fmt.Errorf("failed to create umpire grant: %w", err)
		}
	}

	notification := &store.Notification{
		ID:           uuid.New(),
		UserID:       userID,
		Kind:         store.NotificationUmpireAssigned,
		TournamentID: scope.TournamentID,
		MatchID:      scope.MatchID,
	}
	if err := notifications.CreateNotificationTx(ctx, tx, notification); err != nil {
		return nil, fmt.Errorf("failed to write notification: %w", err)
	}
	return notification, nil
}
