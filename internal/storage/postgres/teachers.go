package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/classmark/classmark/internal/storage"
)

// TeacherRepository provides PostgreSQL-backed teacher account storage.
type TeacherRepository struct {
	pool *Pool
}

// NewTeacherRepository creates a new PostgreSQL teacher repository.
func NewTeacherRepository(pool *Pool) *TeacherRepository {
	return &TeacherRepository{pool: pool}
}

// GetTeacher returns the teacher account, or nil when unknown.
func (r *TeacherRepository) GetTeacher(ctx context.Context, username string) (*storage.Teacher, error) {
	query := `
		SELECT username, name, password_hash, created_at
		FROM teachers
		WHERE username = $1
	`
	var t storage.Teacher
	err := r.pool.QueryRow(ctx, query, username).Scan(&t.Username, &t.Name, &t.PasswordHash, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get teacher: %v", storage.ErrUnavailable, err)
	}
	return &t, nil
}

// SaveTeacher creates or replaces a teacher account.
func (r *TeacherRepository) SaveTeacher(ctx context.Context, t storage.Teacher) error {
	query := `
		INSERT INTO teachers (username, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash
	`
	if _, err := r.pool.Exec(ctx, query, t.Username, t.Name, t.PasswordHash, t.CreatedAt); err != nil {
		return fmt.Errorf("save teacher: %w", err)
	}
	return nil
}
