package bracket

import "github.com/google/uuid"

// MatchPair places a team on one side of a match: pair 1 plays side A, pair 2 side B.
type MatchPair struct {
	MatchID    uuid.UUID  `db:"match_id" json:"match_id"`
	PairNumber int        `db:"pair_number" json:"pair_number"`
	TeamID     uuid.UUID  `db:"team_id" json:"team_id"`
	Player1ID  *uuid.UUID `db:"player_1_id" json:"player_1_id,omitempty"`
	Player2ID  *uuid.UUID `db:"player_2_id" json:"player_2_id,omitempty"`
}

// PairFor returns the pair occupying the given slot, if any.
func PairFor(pairs []MatchPair, pairNumber int) *MatchPair {
	for i := range pairs {
		if pairs[i].PairNumber == pairNumber {
			return &pairs[i]
		}
	}
	return nil
}

// Loser returns the team that was present in pairs but did not win.
func Loser(pairs []MatchPair, winnerID uuid.UUID) *uuid.UUID {
	for i := range pairs {
		if pairs[i].TeamID != winnerID {
			id := pairs[i].TeamID
			return &id
		}
	}
	return nil
}
