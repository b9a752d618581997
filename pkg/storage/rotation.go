package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yurykabanov/logrotd/pkg/domain"
)

const (
	rotationInsertQuery = `
		INSERT INTO rotations (
			policy, path, generation_path,
			size_bytes, duration_ms,
			status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	rotationSelectLatestPerPolicy = `
		SELECT
			id,
			policy, path, generation_path,
			size_bytes, duration_ms,
			status, error, created_at
		FROM rotations
		WHERE id IN (
			SELECT MAX(id) FROM rotations GROUP BY policy
		)
		ORDER BY policy
	`

	rotationDeleteOlderThan = `
		DELETE FROM rotations WHERE created_at < ?
	`
)

type RotationRepository struct {
	db *sqlx.DB
}

func NewRotationRepository(db *sqlx.DB) *RotationRepository {
	return &RotationRepository{
		db: db,
	}
}

func (r *RotationRepository) Create(ctx context.Context, rotation domain.Rotation) (domain.Rotation, error) {
	stmt, err := r.db.PrepareContext(ctx, rotationInsertQuery)
	if err != nil {
		return rotation, err
	}

	res, err := stmt.ExecContext(
		ctx,
		rotation.Policy, rotation.Path, rotation.GenerationPath,
		rotation.SizeBytes, rotation.DurationMs,
		rotation.Status, rotation.Error, rotation.CreatedAt,
	)
	if err != nil {
		return rotation, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return rotation, err
	}

	rotation.Id = id

	return rotation, nil
}

func (r *RotationRepository) FindLatestPerPolicy(ctx context.Context) ([]domain.Rotation, error) {
	var rotations []domain.Rotation

	err := r.db.SelectContext(ctx, &rotations, rotationSelectLatestPerPolicy)
	if err != nil {
		return nil, err
	}

	return rotations, nil
}

func (r *RotationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, rotationDeleteOlderThan, cutoff)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
