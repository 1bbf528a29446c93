// Package session holds the attendance session model and its store. A session
// is a short-lived authorization window a teacher opens for one subject;
// students may submit recognition attempts only while it is live and only if
// they satisfy its access predicate.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode selects which access predicate a session carries.
type Mode string

const (
	// ModeSubnet admits requesters whose address shares the teacher's
	// network prefix. Spoofable via X-Forwarded-For; a convenience filter
	// for classroom hotspots, not a security boundary.
	ModeSubnet Mode = "subnet"
	// ModeToken admits requesters presenting the session's bearer token.
	ModeToken Mode = "token"
)

// Predicate is the access rule attached to a session. Exactly one of
// SubnetPrefix and Token is set, depending on Mode.
type Predicate struct {
	Mode         Mode
	SubnetPrefix string // e.g. "192.168.1.", set when Mode == ModeSubnet
	Token        string // bearer token, set when Mode == ModeToken
}

// Session is immutable once created; it ends by explicit deletion or by
// passing ExpiresAt. Expiry is checked lazily at every lookup, there is no
// background sweeper.
type Session struct {
	ID        string
	Subject   string
	Owner     string // teacher username
	Predicate Predicate
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live reports whether the session still authorizes submissions at the given
// instant.
func (s *Session) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// ErrNotFound is returned by Repository.Get for unknown session ids. Any
// other error from a repository means the store could not be consulted and
// must not be treated as "not found".
var ErrNotFound = errors.New("session not found")

// Repository persists sessions. Implementations must make Delete idempotent.
// DeleteExpired sweeps sessions past their expiry and returns the count
// removed; lookups expire sessions lazily, so the sweep is housekeeping, not
// correctness.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Session, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// Store creates and resolves sessions on top of a Repository.
type Store struct {
	repo       Repository
	defaultTTL time.Duration
	now        func() time.Time
}

// NewStore creates a session store. defaultTTL applies when Create is called
// with a non-positive ttl.
func NewStore(repo Repository, defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &Store{
		repo:       repo,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// SetClock overrides the time source. For tests.
func (st *Store) SetClock(now func() time.Time) {
	st.now = now
}

// Create opens a new session and persists it. The id comes from a 128-bit
// random source, large enough that guessing is infeasible.
func (st *Store) Create(ctx context.Context, subject, owner string, pred Predicate, ttl time.Duration) (*Session, error) {
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	if pred.Mode != ModeSubnet && pred.Mode != ModeToken {
		return nil, fmt.Errorf("unknown predicate mode %q", pred.Mode)
	}
	if ttl <= 0 {
		ttl = st.defaultTTL
	}

	id, err := NewID()
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := st.now()
	s := &Session{
		ID:        id,
		Subject:   subject,
		Owner:     owner,
		Predicate: pred,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := st.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	return s, nil
}

// Get resolves a session by id. Returns ErrNotFound for unknown ids; expired
// sessions are still returned so callers can distinguish "expired" from
// "never existed".
func (st *Store) Get(ctx context.Context, id string) (*Session, error) {
	return st.repo.Get(ctx, id)
}

// Delete stops a session. Deleting an unknown id is not an error.
func (st *Store) Delete(ctx context.Context, id string) error {
	return st.repo.Delete(ctx, id)
}

// List returns all stored sessions, live and expired.
func (st *Store) List(ctx context.Context) ([]Session, error) {
	return st.repo.List(ctx)
}
