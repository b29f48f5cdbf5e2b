package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "inprogress"
	MatchPaused     MatchStatus = "paused"
	MatchFinished   MatchStatus = "finished"
)

// CanTransitionTo covers the ordinary status path. Finishing and reopening a
// finished match go through their own operations.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	switch s {
	case MatchPending:
		return next == MatchInProgress
	case MatchInProgress:
		return next == MatchPaused
	case MatchPaused:
		return next == MatchInProgress
	}
	return false
}

// CanFinish reports whether a match in this status may be finished.
func (s MatchStatus) CanFinish() bool {
	return s == MatchInProgress || s == MatchPaused
}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the bracket; SlotIndex is 0-based within the round
	RoundNumber int `db:"round_number" json:"round_number"`
	SlotIndex   int `db:"slot_index" json:"slot_index"`

	Status      MatchStatus `db:"status" json:"status"`
	Version     int         `db:"version" json:"version"`
	CourtNumber *int        `db:"court_number" json:"court_number,omitempty"`
	UmpireID    *uuid.UUID  `db:"umpire_id" json:"umpire_id,omitempty"`

	NextMatchID        *uuid.UUID `db:"next_match_id" json:"next_match_id,omitempty"`
	WinnerSourceMatchA *uuid.UUID `db:"winner_source_match_a" json:"winner_source_match_a,omitempty"`
	WinnerSourceMatchB *uuid.UUID `db:"winner_source_match_b" json:"winner_source_match_b,omitempty"`

	IsConfirmed bool       `db:"is_confirmed" json:"is_confirmed"`
	IsBye       bool       `db:"is_bye" json:"is_bye"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// FeedSlot returns the slot of next this match's winner is written into.
// Explicit winner-source links win; without them the slot falls back to the
// parity of this match's position (even feeds slot 1, odd feeds slot 2).
// ok is false when next carries links that do not name this match.
func (m *Match) FeedSlot(next *Match) (slot int, ok bool) {
	switch {
	case next.WinnerSourceMatchA != nil && *next.WinnerSourceMatchA == m.ID:
		return 1, true
	case next.WinnerSourceMatchB != nil && *next.WinnerSourceMatchB == m.ID:
		return 2, true
	case next.WinnerSourceMatchA != nil || next.WinnerSourceMatchB != nil:
		return 0, false
	}
	if m.SlotIndex%2 == 0 {
		return 1, true
	}
	return 2, true
}
