package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/AdamBeresnev/courtside/internal/store"
	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PermissionService answers "may this actor act in this scope" against the
// grant table. Every mutating operation authorizes through it.
type PermissionService struct {
	db      *sqlx.DB
	store   *store.PermissionStore
	matches *store.MatchStore
	users   *store.UserStore
}

func NewPermissionService(db *sqlx.DB, store *store.PermissionStore, matches *store.MatchStore, users *store.UserStore) *PermissionService {
	return &PermissionService{db: db, store: store, matches: matches, users: users}
}

// Check is one role a caller may hold, queried in its own scope.
type Check struct {
	Role  users.RoleType
	Scope users.Scope
}

// matchOperators lists who may drive a match: its umpire (or a
// tournament-wide one), the tournament's admins, or a global admin.
func matchOperators(m *bracket.Match) []Check {
	return []Check{
		{Role: users.RoleUmpire, Scope: users.MatchScope(m.TournamentID, m.ID)},
		{Role: users.RoleTournamentAdmin, Scope: users.TournamentScope(m.TournamentID)},
		{Role: users.RoleAdmin},
	}
}

func tournamentAdmins(tournamentID uuid.UUID) []Check {
	return []Check{
		{Role: users.RoleTournamentAdmin, Scope: users.TournamentScope(tournamentID)},
		{Role: users.RoleAdmin},
	}
}

// HasPermission reports whether userID holds role in scope. A missing grant
// is a plain false.
func (s *PermissionService) HasPermission(ctx context.Context, userID uuid.UUID, role users.RoleType, scope users.Scope) (bool, error) {
	return s.hasPermission(ctx, s.db, userID, role, scope)
}

// HasAny evaluates each check independently and succeeds if any one holds.
func (s *PermissionService) HasAny(ctx context.Context, userID uuid.UUID, checks ...Check) (bool, error) {
	return s.hasAny(ctx, s.db, userID, checks)
}

func (s *PermissionService) hasAny(ctx context.Context, q sqlx.QueryerContext, userID uuid.UUID, checks []Check) (bool, error) {
	for _, c := range checks {
		ok, err := s.hasPermission(ctx, q, userID, c.Role, c.Scope)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *PermissionService) hasPermission(ctx context.Context, q sqlx.QueryerContext, userID uuid.UUID, role users.RoleType, scope users.Scope) (bool, error) {
	grants, err := s.store.GetGrants(ctx, q, userID, role)
	if err != nil {
		return false, fmt.Errorf("load grants: %w", err)
	}
	if users.Allows(grants, role, scope) {
		return true, nil
	}

	// A match query without its tournament still gets the tournament-wide fallback.
	if scope.MatchID == nil || scope.TournamentID != nil {
		return false, nil
	}
	tournamentID, err := s.matches.GetMatchTournamentID(ctx, q, *scope.MatchID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve match tournament: %w", err)
	}
	scope.TournamentID = &tournamentID
	return users.Allows(grants, role, scope), nil
}

// authorize fails with ErrForbidden unless one of checks holds for actorID.
func (s *PermissionService) authorize(ctx context.Context, q sqlx.QueryerContext, actorID uuid.UUID, checks ...Check) error {
	if actorID == uuid.Nil {
		return ErrUnauthenticated
	}
	ok, err := s.hasAny(ctx, q, actorID, checks)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

type GrantInput struct {
	UserID   uuid.UUID
	RoleType users.RoleType
	Scope    users.Scope
}

// grantAuthority lists who may hand out or remove a grant: global admins
// always, tournament admins for non-admin grants inside their tournament.
func grantAuthority(role users.RoleType, scope users.Scope) []Check {
	checks := []Check{{Role: users.RoleAdmin}}
	if role != users.RoleAdmin && scope.TournamentID != nil {
		checks = append(checks, Check{Role: users.RoleTournamentAdmin, Scope: users.TournamentScope(*scope.TournamentID)})
	}
	return checks
}

// Grant adds a permission row. Granting an identical row again returns the
// existing one.
func (s *PermissionService) Grant(ctx context.Context, actorID uuid.UUID, input GrantInput) (*users.Permission, error) {
	if !input.RoleType.Valid() {
		return nil, ErrInvalidRole
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.authorize(ctx, tx, actorID, grantAuthority(input.RoleType, input.Scope)...); err != nil {
		return nil, err
	}
	if err := s.requireUserTx(ctx, tx, input.UserID); err != nil {
		return nil, err
	}

	existing, err := s.store.FindExactTx(ctx, tx, input.UserID, input.RoleType, input.Scope)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	grant := &users.Permission{
		ID:           uuid.New(),
		UserID:       input.UserID,
		RoleType:     input.RoleType,
		TournamentID: input.Scope.TournamentID,
		TeamID:       input.Scope.TeamID,
		MatchID:      input.Scope.MatchID,
	}
	if err := s.store.CreatePermissionTx(ctx, tx, grant); err != nil {
		return nil, fmt.Errorf("create permission: %w", err)
	}
	return grant, tx.Commit()
}

// Revoke deletes a grant. Grants are never soft-disabled.
func (s *PermissionService) Revoke(ctx context.Context, actorID, permissionID uuid.UUID) error {
	grant, err := s.store.GetPermission(ctx, permissionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPermissionNotFound
	}
	if err != nil {
		return err
	}

	if err := s.authorize(ctx, s.db, actorID, grantAuthority(grant.RoleType, grant.Scope())...); err != nil {
		return err
	}

	if err := s.store.DeletePermission(ctx, permissionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPermissionNotFound
		}
		return err
	}
	return nil
}

// requireUserTx fails with ErrUserNotFound unless userID names a user.
func (s *PermissionService) requireUserTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	_, err := s.users.GetUserTx(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

func (s *PermissionService) ListForUser(ctx context.Context, userID uuid.UUID) ([]users.Permission, error) {
	return s.store.ListUserPermissions(ctx, userID)
}
