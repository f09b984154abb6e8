package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/section-swap-api/internal/models"
)

// StudentRepository manages persistence for student records. The desired
// section list lives in a JSON array column; rows whose payload fails to
// decode are skipped from eligibility queries rather than failing them.
type StudentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB, logger *zap.Logger) *StudentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentRepository{db: db, logger: logger}
}

type studentRow struct {
	ID             string    `db:"id"`
	NIS            string    `db:"nis"`
	FullName       string    `db:"full_name"`
	Email          string    `db:"email"`
	Phone          string    `db:"phone"`
	Batch          string    `db:"batch"`
	CurrentSection string    `db:"current_section"`
	RawDesired     []byte    `db:"desired_sections"`
	Active         bool      `db:"active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// toStudent decodes the row. ok is false when the desired-section payload is
// present but malformed.
func (r studentRow) toStudent() (models.Student, bool) {
	student := models.Student{
		ID:             r.ID,
		NIS:            r.NIS,
		FullName:       r.FullName,
		Email:          r.Email,
		Phone:          r.Phone,
		Batch:          r.Batch,
		CurrentSection: r.CurrentSection,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if len(r.RawDesired) == 0 {
		return student, true
	}
	if err := json.Unmarshal(r.RawDesired, &student.DesiredSections); err != nil {
		return student, false
	}
	return student, true
}

const studentColumns = "id, nis, full_name, email, phone, batch, current_section, desired_sections, active, created_at, updated_at"

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Batch != "" {
		conditions = append(conditions, fmt.Sprintf("batch = $%d", len(args)+1))
		args = append(args, filter.Batch)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("current_section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(nis) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":       "full_name",
		"nis":             "nis",
		"current_section": "current_section",
		"created_at":      "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "nis"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)

	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		student, ok := row.toStudent()
		if !ok {
			r.logger.Warn("student has malformed desired sections", zap.String("student_id", row.ID))
		}
		students = append(students, student)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var row studentRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	student, ok := row.toStudent()
	if !ok {
		r.logger.Warn("student has malformed desired sections", zap.String("student_id", row.ID))
	}
	return &student, nil
}

// ListEligible returns the swap candidate set: active students with a
// section and a parseable, non-empty desired list, optionally scoped to a
// batch and excluding one student. Ordered ascending by ID so the resolver's
// canonical ordering comes straight from the query.
func (r *StudentRepository) ListEligible(ctx context.Context, batch, excludeID string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE active = true AND current_section <> '' AND desired_sections IS NOT NULL", studentColumns)
	args := []interface{}{}

	if batch != "" {
		query += fmt.Sprintf(" AND batch = $%d", len(args)+1)
		args = append(args, batch)
	}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " ORDER BY id ASC"

	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list eligible students: %w", err)
	}

	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		student, ok := row.toStudent()
		if !ok {
			// malformed preference data excludes the record, never the query
			r.logger.Warn("skipping student with malformed desired sections", zap.String("student_id", row.ID))
			continue
		}
		if len(student.DesiredSections) == 0 {
			continue
		}
		students = append(students, student)
	}
	return students, nil
}

// UpdatePreferences replaces the desired-section list, keeping order.
func (r *StudentRepository) UpdatePreferences(ctx context.Context, id string, desired []string) error {
	payload, err := json.Marshal(desired)
	if err != nil {
		return fmt.Errorf("encode desired sections: %w", err)
	}
	const query = `UPDATE students SET desired_sections = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MoveSection conditionally reassigns a student's section inside the
// caller's transaction. The from-section guard is the commit-time arbiter
// for plans raced stale by a concurrent swap.
func (r *StudentRepository) MoveSection(ctx context.Context, exec sqlx.ExtContext, studentID, fromSection, toSection string) error {
	const query = `UPDATE students SET current_section = $3, updated_at = $4 WHERE id = $1 AND current_section = $2`
	result, err := exec.ExecContext(ctx, query, studentID, fromSection, toSection, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("move section: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("move section result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BeginTxx starts a transaction for multi-step commits.
func (r *StudentRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}
