package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/storage"
)

// SessionRepository provides PostgreSQL-backed session storage.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	query := `
		INSERT INTO sessions (id, subject, owner, mode, subnet_prefix, token, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.Subject, s.Owner, string(s.Predicate.Mode),
		s.Predicate.SubnetPrefix, s.Predicate.Token, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Get retrieves a session by id, expired or not. Unknown ids return
// session.ErrNotFound; query failures stay distinguishable from it.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	query := `
		SELECT id, subject, owner, mode, subnet_prefix, token, created_at, expires_at
		FROM sessions
		WHERE id = $1
	`

	var s session.Session
	var mode string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Subject, &s.Owner, &mode,
		&s.Predicate.SubnetPrefix, &s.Predicate.Token,
		&s.CreatedAt, &s.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", storage.ErrUnavailable, err)
	}
	s.Predicate.Mode = session.Mode(mode)
	return &s, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns all stored sessions.
func (r *SessionRepository) List(ctx context.Context) ([]session.Session, error) {
	query := `
		SELECT id, subject, owner, mode, subnet_prefix, token, created_at, expires_at
		FROM sessions
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		var s session.Session
		var mode string
		if err := rows.Scan(
			&s.ID, &s.Subject, &s.Owner, &mode,
			&s.Predicate.SubnetPrefix, &s.Predicate.Token,
			&s.CreatedAt, &s.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Predicate.Mode = session.Mode(mode)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// DeleteExpired removes all expired sessions and returns the count deleted.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= NOW()")
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}
