package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft     TournamentStatus = "draft"
	TournamentPublished TournamentStatus = "published"
	TournamentFinished  TournamentStatus = "finished"
)

// rank orders statuses so transitions can only move forward.
func (s TournamentStatus) rank() int {
	switch s {
	case TournamentDraft:
		return 0
	case TournamentPublished:
		return 1
	case TournamentFinished:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether next is exactly one step forward of s.
func (s TournamentStatus) CanAdvanceTo(next TournamentStatus) bool {
	return s.rank() >= 0 && next.rank() == s.rank()+1
}

// UmpireMode decides who referees the next match once a match finishes.
type UmpireMode string

const (
	// The losing team's manager umpires the match its opponent advances into.
	UmpireLoser    UmpireMode = "LOSER"
	UmpireAssigned UmpireMode = "ASSIGNED"
	UmpireFree     UmpireMode = "FREE"
)

func (m UmpireMode) Valid() bool {
	switch m {
	case UmpireLoser, UmpireAssigned, UmpireFree:
		return true
	}
	return false
}

type Tournament struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	OwnerID    uuid.UUID        `db:"owner_id" json:"owner_id"`
	Name       string           `db:"name" json:"name"`
	Status     TournamentStatus `db:"status" json:"status"`
	UmpireMode UmpireMode       `db:"umpire_mode" json:"umpire_mode"`
	IsPublic   bool             `db:"is_public" json:"is_public"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}
