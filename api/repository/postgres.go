package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"imageConverter/api/database"
	"imageConverter/api/models"
)

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateBatch(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO batches (id, trace_id, status, item_count)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		batch.ID,
		batch.TraceID,
		batch.Status,
		batch.ItemCount,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
}

func (r *PostgresRepo) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO batch_items (
			id, batch_id, position, original_filename, original_size,
			format, quality, width, height, maintain_aspect_ratio, resize_mode, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	return r.db.Pool.QueryRow(ctx, query,
		item.ID,
		item.BatchID,
		item.Position,
		item.OriginalFilename,
		item.OriginalSize,
		item.Format,
		item.Quality,
		item.Width,
		item.Height,
		item.MaintainAspectRatio,
		item.ResizeMode,
		item.Status,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
}

func (r *PostgresRepo) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	query := `
		SELECT id, trace_id, status, item_count, created_at, updated_at
		FROM batches
		WHERE id = $1
	`

	var batch models.Batch
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&batch.ID,
		&batch.TraceID,
		&batch.Status,
		&batch.ItemCount,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}

	return &batch, nil
}

func (r *PostgresRepo) GetBatchItems(ctx context.Context, batchID string) ([]models.Item, error) {
	query := `
		SELECT id, batch_id, position, original_filename, original_size,
		       format, quality, width, height, maintain_aspect_ratio, resize_mode,
		       status, error_reason, error_message, result_path, result_preview_handle,
		       created_at, updated_at, completed_at
		FROM batch_items
		WHERE batch_id = $1
		ORDER BY position
	`

	rows, err := r.db.Pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.ID,
			&item.BatchID,
			&item.Position,
			&item.OriginalFilename,
			&item.OriginalSize,
			&item.Format,
			&item.Quality,
			&item.Width,
			&item.Height,
			&item.MaintainAspectRatio,
			&item.ResizeMode,
			&item.Status,
			&item.ErrorReason,
			&item.ErrorMessage,
			&item.ResultPath,
			&item.ResultPreviewHandle,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.CompletedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *PostgresRepo) GetItem(ctx context.Context, id string) (*models.Item, error) {
	query := `
		SELECT id, batch_id, position, original_filename, original_size,
		       format, quality, width, height, maintain_aspect_ratio, resize_mode,
		       status, error_reason, error_message, result_path, result_preview_handle,
		       created_at, updated_at, completed_at
		FROM batch_items
		WHERE id = $1
	`

	var item models.Item
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.BatchID,
		&item.Position,
		&item.OriginalFilename,
		&item.OriginalSize,
		&item.Format,
		&item.Quality,
		&item.Width,
		&item.Height,
		&item.MaintainAspectRatio,
		&item.ResizeMode,
		&item.Status,
		&item.ErrorReason,
		&item.ErrorMessage,
		&item.ResultPath,
		&item.ResultPreviewHandle,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	return &item, nil
}

func (r *PostgresRepo) DeleteBatch(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (r *PostgresRepo) DeleteItem(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM batch_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
