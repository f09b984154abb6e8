package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/section-swap-api/internal/models"
)

// SwapRecordRepository persists committed swaps.
type SwapRecordRepository struct {
	db *sqlx.DB
}

// NewSwapRecordRepository constructs a SwapRecordRepository.
func NewSwapRecordRepository(db *sqlx.DB) *SwapRecordRepository {
	return &SwapRecordRepository{db: db}
}

// Create inserts a swap record using the caller's executor so the insert
// joins the section moves in one transaction.
func (r *SwapRecordRepository) Create(ctx context.Context, exec sqlx.ExtContext, record *models.SwapRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO swap_records (id, plan_type, requester_id, target_section, steps, committed_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := exec.ExecContext(ctx, query, record.ID, record.PlanType, record.RequesterID, record.TargetSection, record.Steps, record.CommittedBy, record.CreatedAt); err != nil {
		return fmt.Errorf("create swap record: %w", err)
	}
	return nil
}

// List returns committed swaps, newest first. A student filter matches both
// requesters and any mover named in the steps payload.
func (r *SwapRecordRepository) List(ctx context.Context, filter models.SwapRecordFilter) ([]models.SwapRecord, error) {
	query := "SELECT id, plan_type, requester_id, target_section, steps, committed_by, created_at FROM swap_records"
	args := []interface{}{}

	if filter.StudentID != "" {
		query += " WHERE requester_id = $1 OR steps::text LIKE $2"
		args = append(args, filter.StudentID, fmt.Sprintf("%%%q%%", filter.StudentID))
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var records []models.SwapRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list swap records: %w", err)
	}
	return records, nil
}
