package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/db"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/AdamBeresnev/courtside/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	// Every pooled connection would otherwise open its own empty database.
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

func createTestUser(t *testing.T, database *sqlx.DB) uuid.UUID {
	t.Helper()
	u := &users.User{ID: uuid.New(), Email: "owner@courtside.test", Username: "owner"}
	require.NoError(t, NewUserStore(database).CreateUser(context.Background(), u))
	return u.ID
}

func createTestTeam(t *testing.T, database *sqlx.DB, managerID *uuid.UUID) uuid.UUID {
	t.Helper()
	team := &bracket.Team{ID: uuid.New(), Name: "Team " + uuid.NewString()[:8], ManagerID: managerID}
	require.NoError(t, NewTournamentStore(database).CreateTeam(context.Background(), team))
	return team.ID
}

func createTestTournament(t *testing.T, database *sqlx.DB, ownerID uuid.UUID) *bracket.Tournament {
	t.Helper()
	tournament := &bracket.Tournament{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       "Test Tournament",
		Status:     bracket.TournamentDraft,
		UmpireMode: bracket.UmpireFree,
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := database.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, NewTournamentStore(database).CreateTournament(context.Background(), tx, tournament))
	require.NoError(t, tx.Commit())
	return tournament
}

func TestCreateTournament(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ownerID := createTestUser(t, database)

	tournament := createTestTournament(t, database, ownerID)

	fetched, err := store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.OwnerID, fetched.OwnerID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, bracket.TournamentDraft, fetched.Status)
	assert.Equal(t, bracket.UmpireFree, fetched.UmpireMode)
	assert.False(t, fetched.IsPublic)
	assert.WithinDuration(t, tournament.CreatedAt, fetched.CreatedAt, 5*time.Second)
}

func TestUpdateTournamentStatusTx(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()
	tournament := createTestTournament(t, database, createTestUser(t, database))

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, bracket.TournamentDraft, bracket.TournamentPublished))
	// The tournament is no longer a draft.
	err = store.UpdateTournamentStatusTx(ctx, tx, tournament.ID, bracket.TournamentDraft, bracket.TournamentPublished)
	assert.ErrorIs(t, err, ErrNoRowsAffected)
	require.NoError(t, tx.Commit())

	fetched, err := store.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentPublished, fetched.Status)
}

func TestCreateEntries(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()

	tournament := createTestTournament(t, database, createTestUser(t, database))
	team1 := createTestTeam(t, database, nil)
	team2 := createTestTeam(t, database, nil)

	entries := []bracket.Entry{
		{ID: uuid.New(), TournamentID: tournament.ID, TeamID: team1, Seed: 1, IsActive: true},
		{ID: uuid.New(), TournamentID: tournament.ID, TeamID: team2, Seed: 2, IsActive: false},
	}

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateEntries(ctx, tx, entries))

	active, err := store.CountActiveEntriesTx(ctx, tx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
	require.NoError(t, tx.Commit())

	fetched, err := store.GetEntries(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, entries[0].ID, fetched[0].ID)
	assert.Equal(t, team1, fetched[0].TeamID)
	assert.True(t, fetched[0].IsActive)
	assert.False(t, fetched[0].IsCheckedIn)
	assert.Nil(t, fetched[0].DayToken)
	assert.Equal(t, entries[1].ID, fetched[1].ID)
	assert.False(t, fetched[1].IsActive)
}

func TestCreateMatches(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	matchStore := NewMatchStore(database)
	ctx := context.Background()

	tournament := createTestTournament(t, database, createTestUser(t, database))

	finalID := uuid.New()
	semi1 := uuid.New()
	semi2 := uuid.New()

	// Parents are inserted before the matches that point at them.
	matches := []bracket.Match{
		{ID: finalID, TournamentID: tournament.ID, RoundNumber: 2, SlotIndex: 0, Status: bracket.MatchPending,
			WinnerSourceMatchA: utils.Ptr(semi1), WinnerSourceMatchB: utils.Ptr(semi2)},
		{ID: semi1, TournamentID: tournament.ID, RoundNumber: 1, SlotIndex: 0, Status: bracket.MatchPending, NextMatchID: utils.Ptr(finalID)},
		{ID: semi2, TournamentID: tournament.ID, RoundNumber: 1, SlotIndex: 1, Status: bracket.MatchPending, NextMatchID: utils.Ptr(finalID)},
	}

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(ctx, tx, matches))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetMatches(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 3)

	assert.Equal(t, semi1, fetched[0].ID)
	assert.Equal(t, 0, fetched[0].Version)
	assert.Equal(t, finalID, *fetched[0].NextMatchID)
	assert.Equal(t, semi2, fetched[1].ID)
	assert.Equal(t, 1, fetched[1].SlotIndex)
	assert.Equal(t, finalID, fetched[2].ID)
	assert.Nil(t, fetched[2].NextMatchID)
	assert.Equal(t, semi1, *fetched[2].WinnerSourceMatchA)
	assert.Equal(t, semi2, *fetched[2].WinnerSourceMatchB)

	m, err := matchStore.GetMatch(ctx, semi2)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchPending, m.Status)
	assert.Nil(t, m.CourtNumber)
	assert.Nil(t, m.StartedAt)
}
