package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// PairNumber is the match_pairs slot holding this side.
func (s Side) PairNumber() int {
	if s == SideB {
		return 2
	}
	return 1
}

type PointType string

const (
	PointA PointType = "A_score"
	PointB PointType = "B_score"
)

func (s Side) PointType() PointType {
	if s == SideB {
		return PointB
	}
	return PointA
}

// Point is one row of the append-only scoring ledger.
type Point struct {
	ID               int64      `db:"id" json:"id"`
	MatchID          uuid.UUID  `db:"match_id" json:"match_id"`
	PointType        PointType  `db:"point_type" json:"point_type"`
	IsUndone         bool       `db:"is_undone" json:"is_undone"`
	ClientKey        *string    `db:"client_key" json:"client_key,omitempty"`
	ActorID          uuid.UUID  `db:"actor_id" json:"actor_id"`
	ServerReceivedAt time.Time  `db:"server_received_at" json:"server_received_at"`
	UndoneAt         *time.Time `db:"undone_at" json:"undone_at,omitempty"`
}

type MatchScore struct {
	MatchID       uuid.UUID  `db:"match_id" json:"match_id"`
	GameCountA    int        `db:"game_count_a" json:"game_count_a"`
	GameCountB    int        `db:"game_count_b" json:"game_count_b"`
	FinalScore    string     `db:"final_score" json:"final_score"`
	WinnerID      *uuid.UUID `db:"winner_id" json:"winner_id,omitempty"`
	EndedAt       *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	WinningReason *string    `db:"winning_reason" json:"winning_reason,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Leader returns the side ahead on games, or false on a tie.
func (s *MatchScore) Leader() (Side, bool) {
	switch {
	case s.GameCountA > s.GameCountB:
		return SideA, true
	case s.GameCountB > s.GameCountA:
		return SideB, true
	}
	return "", false
}

func (s *MatchScore) Summary() string {
	return fmt.Sprintf("%d-%d", s.GameCountA, s.GameCountB)
}

// AggregateScore is the score derived from the ledger at a given match version.
type AggregateScore struct {
	MatchID    uuid.UUID `json:"match_id"`
	GameCountA int       `json:"game_count_a"`
	GameCountB int       `json:"game_count_b"`
	Version    int       `json:"version"`
	// Duplicate is set when a point was recognised by its client key and not recorded again.
	Duplicate bool `json:"duplicate,omitempty"`
}

// ScoreAudit records an administrative score override.
type ScoreAudit struct {
	ID             int64     `db:"id" json:"id"`
	MatchID        uuid.UUID `db:"match_id" json:"match_id"`
	ActorID        uuid.UUID `db:"actor_id" json:"actor_id"`
	BeforeSnapshot string    `db:"before_snapshot" json:"before_snapshot"`
	AfterSnapshot  string    `db:"after_snapshot" json:"after_snapshot"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
