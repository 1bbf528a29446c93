// Package mariadb reads the student roster from an existing school
// information system database. Read-only; classmark never writes here. Used
// by `classmark encode` to attach display names to encodings.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// RosterStudent is one row of the school's student roster.
type RosterStudent struct {
	StudentID string
	Name      string
}

// Roster returns all students known to the school system, keyed by student id.
func (p *Pool) Roster(ctx context.Context) (map[string]RosterStudent, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT student_id, name FROM students")
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	out := make(map[string]RosterStudent)
	for rows.Next() {
		var s RosterStudent
		if err := rows.Scan(&s.StudentID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		out[s.StudentID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return out, nil
}
