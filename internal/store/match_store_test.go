package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestMatch(t *testing.T, database *sqlx.DB, tournamentID uuid.UUID) *bracket.Match {
	t.Helper()
	ctx := context.Background()
	match := bracket.Match{ID: uuid.New(), TournamentID: tournamentID, RoundNumber: 1, Status: bracket.MatchPending}

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, NewTournamentStore(database).CreateMatches(ctx, tx, []bracket.Match{match}))
	require.NoError(t, NewMatchStore(database).CreateScores(ctx, tx, []bracket.MatchScore{{MatchID: match.ID}}))
	require.NoError(t, tx.Commit())

	fetched, err := NewMatchStore(database).GetMatch(ctx, match.ID)
	require.NoError(t, err)
	return fetched
}

func TestUpdateMatchTx_VersionGuard(t *testing.T) {
	database := setupTestDB(t)
	store := NewMatchStore(database)
	ctx := context.Background()

	tournament := createTestTournament(t, database, createTestUser(t, database))
	match := createTestMatch(t, database, tournament.ID)
	stale := *match

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	match.Status = bracket.MatchInProgress
	match.CourtNumber = utils.Ptr(3)
	require.NoError(t, store.UpdateMatchTx(ctx, tx, match))
	assert.Equal(t, 1, match.Version)

	stale.Status = bracket.MatchPaused
	err = store.UpdateMatchTx(ctx, tx, &stale)
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.Equal(t, 0, stale.Version)
	require.NoError(t, tx.Commit())

	fetched, err := store.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, fetched.Status)
	assert.Equal(t, 1, fetched.Version)
	assert.Equal(t, 3, *fetched.CourtNumber)
}

func TestScoreRoundTrip(t *testing.T) {
	database := setupTestDB(t)
	store := NewMatchStore(database)
	ctx := context.Background()

	tournament := createTestTournament(t, database, createTestUser(t, database))
	match := createTestMatch(t, database, tournament.ID)
	teamID := createTestTeam(t, database, nil)

	score, err := store.GetScore(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, score.GameCountA)
	assert.Nil(t, score.WinnerID)

	ended := time.Now().UTC()
	score.GameCountA = 2
	score.GameCountB = 1
	score.FinalScore = "2-1"
	score.WinnerID = &teamID
	score.EndedAt = &ended
	score.WinningReason = utils.Ptr("normal")

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.UpdateScoreTx(ctx, tx, score))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetScore(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.GameCountA)
	assert.Equal(t, 1, fetched.GameCountB)
	assert.Equal(t, "2-1", fetched.FinalScore)
	assert.Equal(t, teamID, *fetched.WinnerID)
	assert.Equal(t, "normal", *fetched.WinningReason)
	require.NotNil(t, fetched.EndedAt)
	assert.WithinDuration(t, ended, *fetched.EndedAt, time.Second)
}

func TestPairs(t *testing.T) {
	database := setupTestDB(t)
	store := NewMatchStore(database)
	ctx := context.Background()

	tournament := createTestTournament(t, database, createTestUser(t, database))
	match := createTestMatch(t, database, tournament.ID)
	teamX := createTestTeam(t, database, nil)
	teamY := createTestTeam(t, database, nil)

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreatePairs(ctx, tx, []bracket.MatchPair{{MatchID: match.ID, PairNumber: 1, TeamID: teamX}}))
	require.NoError(t, store.UpsertPairTx(ctx, tx, &bracket.MatchPair{MatchID: match.ID, PairNumber: 2, TeamID: teamX}))
	// Upsert replaces the team in an occupied slot.
	require.NoError(t, store.UpsertPairTx(ctx, tx, &bracket.MatchPair{MatchID: match.ID, PairNumber: 2, TeamID: teamY}))

	player := uuid.New()
	require.NoError(t, store.UpdatePairPlayersTx(ctx, tx, &bracket.MatchPair{MatchID: match.ID, PairNumber: 2, TeamID: teamY, Player1ID: &player}))
	err = store.UpdatePairPlayersTx(ctx, tx, &bracket.MatchPair{MatchID: match.ID, PairNumber: 2, TeamID: teamX})
	assert.ErrorIs(t, err, ErrNoRowsAffected)
	require.NoError(t, tx.Commit())

	pairs, err := store.GetPairs(ctx, match.ID)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, teamX, pairs[0].TeamID)
	assert.Equal(t, teamY, pairs[1].TeamID)
	assert.Equal(t, player, *pairs[1].Player1ID)

	tx, err = database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	n, err := store.DeletePairTx(ctx, tx, match.ID, 2, &teamX)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "slot held by another team is left alone")
	n, err = store.DeletePairTx(ctx, tx, match.ID, 2, &teamY)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Commit())

	pairs, err = store.GetPairs(ctx, match.ID)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 1, pairs[0].PairNumber)
}
