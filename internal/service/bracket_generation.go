package service

import (
	"math"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/utils"
	"github.com/google/uuid"
)

const byeWinningReason = "bye"

// generatedBracket holds every row a new single-elimination bracket needs.
type generatedBracket struct {
	Matches []bracket.Match
	Scores  []bracket.MatchScore
	Pairs   []bracket.MatchPair
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

// generateRound1Pairs returns the seed indices meeting in each round-one
// match, ordered by slot, so the top seeds can only meet in the final rounds.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// generateSingleElimBracket lays out the matches of a single-elimination
// bracket for entries ordered by seed. Each match links to the one its
// winner advances to, and each later-round match names the two matches
// feeding it. Round-one matches with a single team are byes: they are
// finished on the spot and their team is placed in the next round.
func generateSingleElimBracket(tournamentID uuid.UUID, entries []bracket.Entry) *generatedBracket {
	out := &generatedBracket{}

	bracketSize := calcBracketSize(len(entries))
	if bracketSize < 2 {
		return out
	}
	totalRounds := int(math.Log2(float64(bracketSize)))

	// slot index -> position in out.Matches
	nextRoundMatches := make(map[int]int)

	// Significantly easier to start from the last round and work backwards
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := int(math.Pow(2, float64(totalRounds-r)))
		currentRoundMatches := make(map[int]int, matchesInCurrentRound)

		for i := 0; i < matchesInCurrentRound; i++ {
			m := bracket.Match{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				RoundNumber:  r,
				SlotIndex:    i,
				Status:       bracket.MatchPending,
			}

			if r < totalRounds {
				parent := &out.Matches[nextRoundMatches[i/2]]
				m.NextMatchID = utils.Ptr(parent.ID)
				if i%2 == 0 {
					parent.WinnerSourceMatchA = utils.Ptr(m.ID)
				} else {
					parent.WinnerSourceMatchB = utils.Ptr(m.ID)
				}
			}

			out.Matches = append(out.Matches, m)
			currentRoundMatches[i] = len(out.Matches) - 1
		}
		nextRoundMatches = currentRoundMatches
	}

	byID := make(map[uuid.UUID]int, len(out.Matches))
	for i := range out.Matches {
		byID[out.Matches[i].ID] = i
		out.Scores = append(out.Scores, bracket.MatchScore{MatchID: out.Matches[i].ID})
	}

	now := time.Now().UTC()
	for slot, seeds := range generateRound1Pairs(bracketSize) {
		matchIdx, ok := nextRoundMatches[slot]
		if !ok {
			break
		}
		match := &out.Matches[matchIdx]

		var present []bracket.MatchPair
		for side, seed := range seeds {
			if seed >= len(entries) {
				continue
			}
			pair := bracket.MatchPair{MatchID: match.ID, PairNumber: side + 1, TeamID: entries[seed].TeamID}
			present = append(present, pair)
		}
		out.Pairs = append(out.Pairs, present...)

		// Check for byes immediately
		if len(present) != 1 {
			continue
		}
		winner := present[0]
		match.Status = bracket.MatchFinished
		match.IsBye = true
		match.IsConfirmed = true

		score := &out.Scores[matchIdx]
		score.WinnerID = utils.Ptr(winner.TeamID)
		score.EndedAt = utils.Ptr(now)
		score.WinningReason = utils.Ptr(byeWinningReason)
		score.FinalScore = score.Summary()

		// Advance to next match
		if match.NextMatchID == nil {
			continue
		}
		next := &out.Matches[byID[*match.NextMatchID]]
		if nextSlot, ok := match.FeedSlot(next); ok {
			out.Pairs = append(out.Pairs, bracket.MatchPair{MatchID: next.ID, PairNumber: nextSlot, TeamID: winner.TeamID})
		}
	}

	return out
}
