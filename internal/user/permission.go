package users

import (
	"time"

	"github.com/google/uuid"
)

type RoleType string

const (
	RoleAdmin           RoleType = "admin"
	RoleTournamentAdmin RoleType = "tournament_admin"
	RoleTeamAdmin       RoleType = "team_admin"
	RoleUmpire          RoleType = "umpire"
)

func (r RoleType) Valid() bool {
	switch r {
	case RoleAdmin, RoleTournamentAdmin, RoleTeamAdmin, RoleUmpire:
		return true
	}
	return false
}

// Scope narrows a grant or a permission query. A nil column is unscoped.
type Scope struct {
	TournamentID *uuid.UUID `json:"tournament_id,omitempty"`
	TeamID       *uuid.UUID `json:"team_id,omitempty"`
	MatchID      *uuid.UUID `json:"match_id,omitempty"`
}

func (s Scope) IsGlobal() bool {
	return s.TournamentID == nil && s.TeamID == nil && s.MatchID == nil
}

func TournamentScope(id uuid.UUID) Scope {
	return Scope{TournamentID: &id}
}

func TeamScope(id uuid.UUID) Scope {
	return Scope{TeamID: &id}
}

func MatchScope(tournamentID, matchID uuid.UUID) Scope {
	return Scope{TournamentID: &tournamentID, MatchID: &matchID}
}

// Permission is one row of the flat grant table.
type Permission struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	RoleType     RoleType   `db:"role_type" json:"role_type"`
	TournamentID *uuid.UUID `db:"tournament_id" json:"tournament_id,omitempty"`
	TeamID       *uuid.UUID `db:"team_id" json:"team_id,omitempty"`
	MatchID      *uuid.UUID `db:"match_id" json:"match_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

func (p *Permission) Scope() Scope {
	return Scope{TournamentID: p.TournamentID, TeamID: p.TeamID, MatchID: p.MatchID}
}

// Allows decides whether grants give role within scope. Checks run in order
// and stop at the first hit:
//
//  1. a global admin grant covers everything;
//  2. a grant for role whose scope columns equal the query's, with columns the
//     query leaves out required to be null on the grant, or for match queries
//     a grant naming the match alone;
//  3. for scoped queries, a grant for role with no scope at all;
//  4. for match queries, a grant for role scoped to the match's tournament only.
//
// For match queries scope.TournamentID must hold the match's tournament for
// check 4 to apply.
func Allows(grants []Permission, role RoleType, scope Scope) bool {
	for i := range grants {
		if grants[i].RoleType == RoleAdmin && grants[i].Scope().IsGlobal() {
			return true
		}
	}

	for i := range grants {
		g := &grants[i]
		if g.RoleType != role {
			continue
		}
		if sameColumn(g.TournamentID, scope.TournamentID) &&
			sameColumn(g.TeamID, scope.TeamID) &&
			sameColumn(g.MatchID, scope.MatchID) {
			return true
		}
		if scope.MatchID != nil && g.MatchID != nil && *g.MatchID == *scope.MatchID &&
			g.TournamentID == nil && g.TeamID == nil {
			return true
		}
	}

	if scope.IsGlobal() {
		return false
	}

	for i := range grants {
		if grants[i].RoleType == role && grants[i].Scope().IsGlobal() {
			return true
		}
	}

	if scope.MatchID == nil || scope.TournamentID == nil {
		return false
	}

	for i := range grants {
		g := &grants[i]
		if g.RoleType == role && g.TeamID == nil && g.MatchID == nil &&
			g.TournamentID != nil && *g.TournamentID == *scope.TournamentID {
			return true
		}
	}
	return false
}

func sameColumn(grant, query *uuid.UUID) bool {
	if query == nil {
		return grant == nil
	}
	return grant != nil && *grant == *query
}
