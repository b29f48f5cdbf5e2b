package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a team's registration in a tournament.
type Entry struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	TeamID       uuid.UUID  `db:"team_id" json:"team_id"`
	Seed         int        `db:"seed" json:"seed"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	IsCheckedIn  bool       `db:"is_checked_in" json:"is_checked_in"`
	DayToken     *string    `db:"day_token" json:"day_token,omitempty"`
	CheckedInAt  *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
