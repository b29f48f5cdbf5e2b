package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AdamBeresnev/courtside/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	pointColumns = `id, match_id, point_type, is_undone, client_key, actor_id, server_received_at, undone_at`

	insertPointQuery = `
		INSERT INTO points (match_id, point_type, is_undone, client_key, actor_id, server_received_at)
		VALUES (:match_id, :point_type, 0, :client_key, :actor_id, :server_received_at)
	`
	// Receipt time orders the ledger; the store-assigned id breaks ties.
	latestActivePointQuery = `
		SELECT ` + pointColumns + ` FROM points
		WHERE match_id = ? AND is_undone = 0
		ORDER BY server_received_at DESC, id DESC
		LIMIT 1
	`
	countActivePointsQuery = `
		SELECT
		COALESCE(SUM(CASE WHEN point_type = 'A_score' THEN 1 ELSE 0 END), 0) AS a,
		COALESCE(SUM(CASE WHEN point_type = 'B_score' THEN 1 ELSE 0 END), 0) AS b
		FROM points
		WHERE match_id = ? AND is_undone = 0
	`
)

type PointStore struct {
	db *sqlx.DB
}

func NewPointStore(db *sqlx.DB) *PointStore {
	return &PointStore{db: db}
}

// InsertPointTx appends a point. A client key already held by a live point of
// the same match yields ErrDuplicate.
func (s *PointStore) InsertPointTx(ctx context.Context, tx *sqlx.Tx, point *bracket.Point) error {
	res, err := tx.NamedExecContext(ctx, insertPointQuery, point)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	point.ID = id
	return nil
}

// FindActiveByClientKeyTx returns the live point carrying key, or nil.
func (s *PointStore) FindActiveByClientKeyTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, key string) (*bracket.Point, error) {
	var point bracket.Point
	err := tx.GetContext(ctx, &point, "SELECT "+pointColumns+" FROM points WHERE match_id = ? AND client_key = ? AND is_undone = 0", matchID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &point, nil
}

// LatestActivePointTx returns the most recently received live point, or nil.
func (s *PointStore) LatestActivePointTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) (*bracket.Point, error) {
	var point bracket.Point
	err := tx.GetContext(ctx, &point, latestActivePointQuery, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &point, nil
}

// MarkUndoneTx flags a live point as undone. It fails with ErrNoRowsAffected
// when the point was already undone.
func (s *PointStore) MarkUndoneTx(ctx context.Context, tx *sqlx.Tx, pointID int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, "UPDATE points SET is_undone = 1, undone_at = ? WHERE id = ? AND is_undone = 0", at, pointID)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrNoRowsAffected)
}

type sideCounts struct {
	A int `db:"a"`
	B int `db:"b"`
}

// CountActiveTx counts live points per side.
func (s *PointStore) CountActiveTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) (a, b int, err error) {
	var counts sideCounts
	if err := tx.GetContext(ctx, &counts, countActivePointsQuery, matchID); err != nil {
		return 0, 0, err
	}
	return counts.A, counts.B, nil
}

func (s *PointStore) ListPoints(ctx context.Context, matchID uuid.UUID) ([]bracket.Point, error) {
	var points []bracket.Point
	err := s.db.SelectContext(ctx, &points, "SELECT "+pointColumns+" FROM points WHERE match_id = ? ORDER BY server_received_at ASC, id ASC", matchID)
	return points, err
}

func (s *PointStore) CreateScoreAuditTx(ctx context.Context, tx *sqlx.Tx, audit *bracket.ScoreAudit) error {
	res, err := tx.NamedExecContext(ctx, `INSERT INTO score_audits (match_id, actor_id, before_snapshot, after_snapshot)
		VALUES (:match_id, :actor_id, :before_snapshot, :after_snapshot)`, audit)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	audit.ID = id
	return nil
}

func (s *PointStore) GetScoreAudits(ctx context.Context, matchID uuid.UUID) ([]bracket.ScoreAudit, error) {
	var audits []bracket.ScoreAudit
	err := s.db.SelectContext(ctx, &audits, `SELECT id, match_id, actor_id, before_snapshot, after_snapshot, created_at
		FROM score_audits WHERE match_id = ? ORDER BY id ASC`, matchID)
	return audits, err
}
