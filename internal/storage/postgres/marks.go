package postgres

import (
	"context"
	"fmt"

	"github.com/classmark/classmark/internal/ledger"
)

// MarkRepository provides PostgreSQL-backed attendance mark storage.
type MarkRepository struct {
	pool *Pool
}

// NewMarkRepository creates a new PostgreSQL mark repository.
func NewMarkRepository(pool *Pool) *MarkRepository {
	return &MarkRepository{pool: pool}
}

// Insert appends a mark unless one already exists for the same (student,
// subject, day). The unique constraint makes this atomic across processes;
// ON CONFLICT DO NOTHING turns a duplicate into zero affected rows.
func (r *MarkRepository) Insert(ctx context.Context, m ledger.Mark) (bool, error) {
	query := `
		INSERT INTO marks (student_id, subject, day, marked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT marks_once_per_day DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, m.StudentID, m.Subject, m.Day, m.MarkedAt)
	if err != nil {
		return false, fmt.Errorf("insert mark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns all marks.
func (r *MarkRepository) List(ctx context.Context) ([]ledger.Mark, error) {
	query := `
		SELECT student_id, subject, to_char(day, 'YYYY-MM-DD'), marked_at
		FROM marks
		ORDER BY marked_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	defer rows.Close()

	var out []ledger.Mark
	for rows.Next() {
		var m ledger.Mark
		if err := rows.Scan(&m.StudentID, &m.Subject, &m.Day, &m.MarkedAt); err != nil {
			return nil, fmt.Errorf("scan mark: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marks: %w", err)
	}
	return out, nil
}
