package store

import (
	"context"
	"database/sql"
	"errors"

	users "github.com/AdamBeresnev/courtside/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	permissionColumns = `id, user_id, role_type, tournament_id, team_id, match_id, created_at`

	createPermissionQuery = `
		INSERT INTO user_permissions (id, user_id, role_type, tournament_id, team_id, match_id)
		VALUES (:id, :user_id, :role_type, :tournament_id, :team_id, :match_id)
	`
	// IS compares NULL scope columns as equal.
	exactPermissionQuery = `
		SELECT ` + permissionColumns + ` FROM user_permissions
		WHERE user_id = ? AND role_type = ? AND tournament_id IS ? AND team_id IS ? AND match_id IS ?
		LIMIT 1
	`
	tournamentWidePermissionQuery = `
		SELECT ` + permissionColumns + ` FROM user_permissions
		WHERE user_id = ? AND role_type = ? AND tournament_id = ? AND team_id IS NULL AND match_id IS NULL
		ORDER BY created_at ASC
		LIMIT 1
	`
)

type PermissionStore struct {
	db *sqlx.DB
}

func NewPermissionStore(db *sqlx.DB) *PermissionStore {
	return &PermissionStore{db: db}
}

// GetGrants loads the grants of userID for role together with any admin grants.
func (s *PermissionStore) GetGrants(ctx context.Context, q sqlx.QueryerContext, userID uuid.UUID, role users.RoleType) ([]users.Permission, error) {
	var grants []users.Permission
	err := sqlx.SelectContext(ctx, q, &grants, "SELECT "+permissionColumns+" FROM user_permissions WHERE user_id = ? AND role_type IN (?, ?)", userID, role, users.RoleAdmin)
	return grants, err
}

func (s *PermissionStore) ListUserPermissions(ctx context.Context, userID uuid.UUID) ([]users.Permission, error) {
	var grants []users.Permission
	err := s.db.SelectContext(ctx, &grants, "SELECT "+permissionColumns+" FROM user_permissions WHERE user_id = ? ORDER BY created_at ASC", userID)
	return grants, err
}

func (s *PermissionStore) GetPermission(ctx context.Context, id uuid.UUID) (*users.Permission, error) {
	var grant users.Permission
	if err := s.db.GetContext(ctx, &grant, "SELECT "+permissionColumns+" FROM user_permissions WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &grant, nil
}

func (s *PermissionStore) CreatePermission(ctx context.Context, grant *users.Permission) error {
	_, err := s.db.NamedExecContext(ctx, createPermissionQuery, grant)
	return err
}

func (s *PermissionStore) CreatePermissionTx(ctx context.Context, tx *sqlx.Tx, grant *users.Permission) error {
	_, err := tx.NamedExecContext(ctx, createPermissionQuery, grant)
	return err
}

// FindExactTx returns the grant with exactly this role and scope, or nil.
func (s *PermissionStore) FindExactTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, role users.RoleType, scope users.Scope) (*users.Permission, error) {
	var grant users.Permission
	err := tx.GetContext(ctx, &grant, exactPermissionQuery, userID, role, scope.TournamentID, scope.TeamID, scope.MatchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// FindTournamentWideTx returns the oldest grant of role scoped to the whole
// tournament, or nil.
func (s *PermissionStore) FindTournamentWideTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, role users.RoleType, tournamentID uuid.UUID) (*users.Permission, error) {
	var grant users.Permission
	err := tx.GetContext(ctx, &grant, tournamentWidePermissionQuery, userID, role, tournamentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// AttachMatchTx narrows an existing grant to a single match.
func (s *PermissionStore) AttachMatchTx(ctx context.Context, tx *sqlx.Tx, id, matchID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, "UPDATE user_permissions SET match_id = ? WHERE id = ?", matchID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrNoRowsAffected)
}

func (s *PermissionStore) DeletePermission(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM user_permissions WHERE id = ?", id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, sql.ErrNoRows)
}
