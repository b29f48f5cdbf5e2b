package store

import (
	"context"
	"database/sql"
	"testing"

	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionStore(t *testing.T) {
	database := setupTestDB(t)
	store := NewPermissionStore(database)
	ctx := context.Background()

	userID := createTestUser(t, database)
	tournament := createTestTournament(t, database, userID)
	match := createTestMatch(t, database, tournament.ID)

	wide := &users.Permission{ID: uuid.New(), UserID: userID, RoleType: users.RoleUmpire, TournamentID: &tournament.ID}
	admin := &users.Permission{ID: uuid.New(), UserID: userID, RoleType: users.RoleAdmin}
	teamAdmin := &users.Permission{ID: uuid.New(), UserID: userID, RoleType: users.RoleTeamAdmin}
	for _, g := range []*users.Permission{wide, admin, teamAdmin} {
		require.NoError(t, store.CreatePermission(ctx, g))
	}

	grants, err := store.GetGrants(ctx, database, userID, users.RoleUmpire)
	require.NoError(t, err)
	assert.Len(t, grants, 2, "umpire grants plus admin grants")

	tx, err := database.BeginTxx(ctx, nil)
	require.NoError(t, err)

	found, err := store.FindTournamentWideTx(ctx, tx, userID, users.RoleUmpire, tournament.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, wide.ID, found.ID)

	exact, err := store.FindExactTx(ctx, tx, userID, users.RoleUmpire, users.MatchScope(tournament.ID, match.ID))
	require.NoError(t, err)
	assert.Nil(t, exact)

	require.NoError(t, store.AttachMatchTx(ctx, tx, wide.ID, match.ID))

	exact, err = store.FindExactTx(ctx, tx, userID, users.RoleUmpire, users.MatchScope(tournament.ID, match.ID))
	require.NoError(t, err)
	require.NotNil(t, exact)
	assert.Equal(t, wide.ID, exact.ID)

	found, err = store.FindTournamentWideTx(ctx, tx, userID, users.RoleUmpire, tournament.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	global, err := store.FindExactTx(ctx, tx, userID, users.RoleAdmin, users.Scope{})
	require.NoError(t, err)
	require.NotNil(t, global)
	assert.Equal(t, admin.ID, global.ID)
	require.NoError(t, tx.Commit())

	require.NoError(t, store.DeletePermission(ctx, teamAdmin.ID))
	assert.ErrorIs(t, store.DeletePermission(ctx, teamAdmin.ID), sql.ErrNoRows)

	all, err := store.ListUserPermissions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
