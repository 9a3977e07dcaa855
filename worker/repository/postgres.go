package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBatchNotFound = errors.New("batch not found")

// ItemRecord is the persisted description of one batch item, enough to
// rebuild the pipeline work item in the worker.
type ItemRecord struct {
	ID                  string
	BatchID             string
	OriginalFilename    string
	OriginalSize        int64
	Format              string
	Quality             int
	Width               int
	Height              int
	MaintainAspectRatio bool
	ResizeMode          string
	Status              string
}

type Repository interface {
	GetBatchItems(ctx context.Context, batchID string) ([]ItemRecord, error)
	UpdateItemStatus(ctx context.Context, itemID string, status string, errReason string, errMsg string) error
	SetItemResult(ctx context.Context, itemID string, resultPath string, previewHandle string) error
	UpdateBatchStatus(ctx context.Context, batchID string, status string) error
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetBatchItems(ctx context.Context, batchID string) ([]ItemRecord, error) {
	query := `
		SELECT id, batch_id, original_filename, original_size,
		       format, quality, width, height, maintain_aspect_ratio, resize_mode, status
		FROM batch_items
		WHERE batch_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var rec ItemRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.BatchID,
			&rec.OriginalFilename,
			&rec.OriginalSize,
			&rec.Format,
			&rec.Quality,
			&rec.Width,
			&rec.Height,
			&rec.MaintainAspectRatio,
			&rec.ResizeMode,
			&rec.Status,
		); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrBatchNotFound
	}

	return items, nil
}

func (r *PostgresRepo) UpdateItemStatus(ctx context.Context, itemID string, status string, errReason string, errMsg string) error {
	query := `UPDATE batch_items SET status = $1, error_reason = $2, error_message = $3, updated_at = NOW()`
	if status == "done" || status == "error" {
		query += `, completed_at = NOW()`
	}
	query += ` WHERE id = $4`

	_, err := r.db.Exec(ctx, query, status, errReason, errMsg, itemID)
	return err
}

func (r *PostgresRepo) SetItemResult(ctx context.Context, itemID string, resultPath string, previewHandle string) error {
	query := `
		UPDATE batch_items
		SET status = 'done', error_reason = '', error_message = '',
		    result_path = $1, result_preview_handle = $2,
		    updated_at = NOW(), completed_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, resultPath, previewHandle, itemID)
	return err
}

func (r *PostgresRepo) UpdateBatchStatus(ctx context.Context, batchID string, status string) error {
	query := `UPDATE batches SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, status, batchID)
	return err
}
