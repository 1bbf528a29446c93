package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/classmark/classmark/internal/storage"
)

// EncodingRepository provides PostgreSQL-backed reference encoding storage
// using pgvector.
type EncodingRepository struct {
	pool *Pool
}

// NewEncodingRepository creates a new PostgreSQL encoding repository.
func NewEncodingRepository(pool *Pool) *EncodingRepository {
	return &EncodingRepository{pool: pool}
}

// SaveEncoding appends one reference encoding.
func (r *EncodingRepository) SaveEncoding(ctx context.Context, enc storage.Encoding) error {
	query := `
		INSERT INTO encodings (student_id, name, embedding, dim, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		enc.StudentID, enc.Name, pgvector.NewVector(enc.Vector), len(enc.Vector), enc.CreatedAt)
	if err != nil {
		return fmt.Errorf("save encoding: %w", err)
	}
	return nil
}

// LoadEncodings returns all reference encodings.
func (r *EncodingRepository) LoadEncodings(ctx context.Context) ([]storage.Encoding, error) {
	query := `
		SELECT student_id, name, embedding, dim, created_at
		FROM encodings
		ORDER BY student_id, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load encodings: %w", err)
	}
	defer rows.Close()

	var out []storage.Encoding
	for rows.Next() {
		var enc storage.Encoding
		var vec pgvector.Vector
		if err := rows.Scan(&enc.StudentID, &enc.Name, &vec, &enc.Dim, &enc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan encoding: %w", err)
		}
		enc.Vector = vec.Slice()
		out = append(out, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encodings: %w", err)
	}
	return out, nil
}

// DeleteEncodings removes every encoding stored for the student.
func (r *EncodingRepository) DeleteEncodings(ctx context.Context, studentID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM encodings WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("delete encodings: %w", err)
	}
	return nil
}

// CountEncodings returns the number of stored encodings.
func (r *EncodingRepository) CountEncodings(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM encodings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count encodings: %w", err)
	}
	return count, nil
}
