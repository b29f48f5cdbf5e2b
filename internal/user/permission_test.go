package users

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func grant(role RoleType, scope Scope) Permission {
	return Permission{
		ID:           uuid.New(),
		RoleType:     role,
		TournamentID: scope.TournamentID,
		TeamID:       scope.TeamID,
		MatchID:      scope.MatchID,
	}
}

func TestAllows(t *testing.T) {
	tournamentID := uuid.New()
	otherTournamentID := uuid.New()
	matchID := uuid.New()
	otherMatchID := uuid.New()
	teamID := uuid.New()

	testCases := []struct {
		name     string
		grants   []Permission
		role     RoleType
		scope    Scope
		expected bool
	}{
		{
			name:     "no grants",
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: false,
		},
		{
			name:     "global admin covers any role and scope",
			grants:   []Permission{grant(RoleAdmin, Scope{})},
			role:     RoleTeamAdmin,
			scope:    TeamScope(teamID),
			expected: true,
		},
		{
			name:     "tournament scoped admin is not a superuser",
			grants:   []Permission{grant(RoleAdmin, TournamentScope(tournamentID))},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: false,
		},
		{
			name:     "umpire granted on the match alone",
			grants:   []Permission{grant(RoleUmpire, Scope{MatchID: &matchID})},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: true,
		},
		{
			name:     "match-only grant stays on its match",
			grants:   []Permission{grant(RoleUmpire, Scope{MatchID: &otherMatchID})},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: false,
		},
		{
			name:     "exact match scoped umpire",
			grants:   []Permission{grant(RoleUmpire, MatchScope(tournamentID, matchID))},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: true,
		},
		{
			name:     "umpire for another match",
			grants:   []Permission{grant(RoleUmpire, MatchScope(tournamentID, otherMatchID))},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: false,
		},
		{
			name:     "role mismatch",
			grants:   []Permission{grant(RoleTeamAdmin, MatchScope(tournamentID, matchID))},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: false,
		},
		{
			name:     "unscoped query only matches unscoped grant",
			grants:   []Permission{grant(RoleTournamentAdmin, TournamentScope(tournamentID))},
			role:     RoleTournamentAdmin,
			scope:    Scope{},
			expected: false,
		},
		{
			name:     "unscoped query with unscoped grant",
			grants:   []Permission{grant(RoleTournamentAdmin, Scope{})},
			role:     RoleTournamentAdmin,
			scope:    Scope{},
			expected: true,
		},
		{
			name:     "global role grant covers scoped query",
			grants:   []Permission{grant(RoleUmpire, Scope{})},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: true,
		},
		{
			name:     "tournament wide umpire covers its matches",
			grants:   []Permission{grant(RoleUmpire, TournamentScope(tournamentID))},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: true,
		},
		{
			name:     "tournament wide umpire does not cover another tournament",
			grants:   []Permission{grant(RoleUmpire, TournamentScope(otherTournamentID))},
			role:     RoleUmpire,
			scope:    MatchScope(tournamentID, matchID),
			expected: false,
		},
		{
			name:     "tournament fallback needs the match tournament",
			grants:   []Permission{grant(RoleUmpire, TournamentScope(tournamentID))},
			role:     RoleUmpire,
			scope:    Scope{MatchID: &matchID},
			expected: false,
		},
		{
			name:     "tournament fallback is only for match queries",
			grants:   []Permission{grant(RoleTeamAdmin, TournamentScope(tournamentID))},
			role:     RoleTeamAdmin,
			scope:    Scope{TournamentID: &tournamentID, TeamID: &teamID},
			expected: false,
		},
		{
			name:     "team admin exact team",
			grants:   []Permission{grant(RoleTeamAdmin, TeamScope(teamID))},
			role:     RoleTeamAdmin,
			scope:    TeamScope(teamID),
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Allows(tc.grants, tc.role, tc.scope))
		})
	}
}

func TestAllows_BroaderScopeIsMonotonic(t *testing.T) {
	tournamentID := uuid.New()
	matches := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	wide := grant(RoleUmpire, TournamentScope(tournamentID))
	for _, m := range matches {
		assert.True(t, Allows([]Permission{wide}, RoleUmpire, MatchScope(tournamentID, m)))
		assert.False(t, Allows(nil, RoleUmpire, MatchScope(tournamentID, m)))
	}
}
