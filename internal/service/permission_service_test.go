package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasAny(t *testing.T) {
	f := newBracketFixture(t, bracket.UmpireFree)
	ctx := context.Background()
	umpire := f.env.createUser(t, "umpire")
	f.env.grant(t, umpire, users.RoleUmpire, users.MatchScope(f.tournamentID, f.semi1.ID))

	ok, err := f.env.permissions.HasAny(ctx, umpire, matchOperators(f.semi1)...)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.env.permissions.HasAny(ctx, umpire, matchOperators(f.semi2)...)
	require.NoError(t, err)
	assert.False(t, ok, "a match grant does not reach sibling matches")

	ok, err = f.env.permissions.HasAny(ctx, f.owner, matchOperators(f.semi2)...)
	require.NoError(t, err)
	assert.True(t, ok, "tournament admins operate every match")
}

func TestHasPermissionUnknownMatch(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "user")
	matchID := uuid.New()

	ok, err := env.permissions.HasPermission(context.Background(), user, users.RoleUmpire, users.Scope{MatchID: &matchID})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantAndRevoke(t *testing.T) {
	f := newBracketFixture(t, bracket.UmpireFree)
	ctx := context.Background()
	umpire := f.env.createUser(t, "umpire")
	stranger := f.env.createUser(t, "stranger")
	admin := f.env.createUser(t, "admin")
	f.env.grant(t, admin, users.RoleAdmin, users.Scope{})

	scope := users.MatchScope(f.tournamentID, f.semi1.ID)
	input := GrantInput{UserID: umpire, RoleType: users.RoleUmpire, Scope: scope}

	_, err := f.env.permissions.Grant(ctx, stranger, input)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.env.permissions.Grant(ctx, f.owner, GrantInput{UserID: umpire, RoleType: "coach", Scope: scope})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = f.env.permissions.Grant(ctx, f.owner, GrantInput{UserID: umpire, RoleType: users.RoleAdmin})
	assert.ErrorIs(t, err, ErrForbidden, "tournament admins cannot mint global admins")

	_, err = f.env.permissions.Grant(ctx, f.owner, GrantInput{UserID: uuid.New(), RoleType: users.RoleUmpire, Scope: scope})
	assert.ErrorIs(t, err, ErrUserNotFound)

	before, err := f.env.permissions.HasPermission(ctx, umpire, users.RoleUmpire, scope)
	require.NoError(t, err)
	assert.False(t, before)

	grant, err := f.env.permissions.Grant(ctx, f.owner, input)
	require.NoError(t, err)

	again, err := f.env.permissions.Grant(ctx, admin, input)
	require.NoError(t, err)
	assert.Equal(t, grant.ID, again.ID, "granting twice keeps one row")

	// Adding a grant only ever widens access.
	after, err := f.env.permissions.HasPermission(ctx, umpire, users.RoleUmpire, scope)
	require.NoError(t, err)
	assert.True(t, after)

	assert.ErrorIs(t, f.env.permissions.Revoke(ctx, stranger, grant.ID), ErrForbidden)
	require.NoError(t, f.env.permissions.Revoke(ctx, f.owner, grant.ID))
	assert.ErrorIs(t, f.env.permissions.Revoke(ctx, f.owner, grant.ID), ErrPermissionNotFound)

	revoked, err := f.env.permissions.HasPermission(ctx, umpire, users.RoleUmpire, scope)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTournamentWideGrantRevokeIsMonotonic(t *testing.T) {
	f := newBracketFixture(t, bracket.UmpireFree)
	ctx := context.Background()
	umpire := f.env.createUser(t, "umpire")
	matchIDs := []uuid.UUID{f.semi1.ID, f.semi2.ID, f.final.ID}

	allowed := func() []bool {
		var out []bool
		for _, id := range matchIDs {
			ok, err := f.env.permissions.HasPermission(ctx, umpire, users.RoleUmpire, users.MatchScope(f.tournamentID, id))
			require.NoError(t, err)
			out = append(out, ok)
		}
		return out
	}
	assert.Equal(t, []bool{false, false, false}, allowed())

	grant, err := f.env.permissions.Grant(ctx, f.owner, GrantInput{UserID: umpire, RoleType: users.RoleUmpire, Scope: users.TournamentScope(f.tournamentID)})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true}, allowed(), "a tournament-wide grant covers every match")

	require.NoError(t, f.env.permissions.Revoke(ctx, f.owner, grant.ID))
	assert.Equal(t, []bool{false, false, false}, allowed(), "revoking takes every match away again")
}
