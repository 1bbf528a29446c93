// Package engine composes session lookup, access control, face matching and
// attendance marking into single-shot recognition attempts. Each submission
// runs once to a terminal outcome; retrying with another frame is the
// client's decision.
package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/classmark/classmark/internal/extract"
	"github.com/classmark/classmark/internal/gallery"
	"github.com/classmark/classmark/internal/guard"
	"github.com/classmark/classmark/internal/ledger"
	"github.com/classmark/classmark/internal/matcher"
	"github.com/classmark/classmark/internal/session"
)

// maxFrameSize bounds the longer edge of frames forwarded to the embedding
// service.
const maxFrameSize = 1280

// Engine wires the recognition pipeline together. The gallery is read-only
// and shared; sessions and the ledger serialize writes in their persistence
// layer, so the engine itself holds no locks.
type Engine struct {
	sessions  *session.Store
	gallery   *gallery.Gallery
	ledger    *ledger.Ledger
	extractor extract.Extractor
	threshold float64
	now       func() time.Time
}

// New creates an engine over an already-loaded gallery.
func New(sessions *session.Store, g *gallery.Gallery, l *ledger.Ledger, ex extract.Extractor, threshold float64) *Engine {
	return &Engine{
		sessions:  sessions,
		gallery:   g,
		ledger:    l,
		extractor: ex,
		threshold: threshold,
		now:       time.Now,
	}
}

// SetClock overrides the time source. For tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Result is the outcome of one recognition attempt. StudentID, StudentName,
// Distance and MarkedAt are set only for Marked and AlreadyMarked.
type Result struct {
	Outcome     Outcome
	StudentID   string
	StudentName string
	Distance    float64
	MarkedAt    time.Time
}

// CreateSession opens an attendance session for a subject.
func (e *Engine) CreateSession(ctx context.Context, subject, owner string, pred session.Predicate, ttl time.Duration) (*session.Session, error) {
	return e.sessions.Create(ctx, subject, owner, pred, ttl)
}

// StopSession ends a session. Stopping an unknown session is not an error.
func (e *Engine) StopSession(ctx context.Context, id string) error {
	return e.sessions.Delete(ctx, id)
}

// SessionState is the answer to a status query.
type SessionState string

const (
	StateLive     SessionState = "live"
	StateExpired  SessionState = "expired"
	StateNotFound SessionState = "not_found"
)

// SessionStatus reports whether a session can still accept submissions.
type SessionStatus struct {
	State     SessionState
	Subject   string
	Mode      session.Mode
	ExpiresAt time.Time
}

// Status resolves a session id. Expiry is evaluated against the current
// instant on every call; a session reported expired once is never reported
// live again.
func (e *Engine) Status(ctx context.Context, id string) (SessionStatus, error) {
	s, err := e.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return SessionStatus{State: StateNotFound}, nil
	}
	if err != nil {
		return SessionStatus{}, err
	}

	st := SessionStatus{
		Subject:   s.Subject,
		Mode:      s.Predicate.Mode,
		ExpiresAt: s.ExpiresAt,
	}
	if s.Live(e.now()) {
		st.State = StateLive
	} else {
		st.State = StateExpired
	}
	return st, nil
}

// Submit runs one recognition attempt to a terminal outcome. The returned
// error is non-nil only for infrastructure outcomes (StoreUnavailable,
// ExtractionFailed) and carries the cause for logging; Result.Outcome is
// always set.
func (e *Engine) Submit(ctx context.Context, sessionID string, claim guard.Claim, frame []byte) (Result, error) {
	s, err := e.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return Result{Outcome: OutcomeSessionNotFound}, nil
	}
	if err != nil {
		// "Could not check" is not "not found".
		return Result{Outcome: OutcomeStoreUnavailable}, err
	}

	if v := guard.Authorize(s, claim, e.now()); !v.Allowed {
		if v.Reason == guard.ReasonExpired {
			return Result{Outcome: OutcomeExpired}, nil
		}
		return Result{Outcome: OutcomeDenied}, nil
	}

	prepared, err := extract.PrepareFrame(frame, maxFrameSize)
	if err != nil {
		return Result{Outcome: OutcomeExtractionFailed}, err
	}
	detections, err := e.extractor.Extract(ctx, prepared)
	if err != nil {
		return Result{Outcome: OutcomeExtractionFailed}, err
	}
	if len(detections) == 0 {
		return Result{Outcome: OutcomeNoFaceDetected}, nil
	}

	// Several faces may be in frame; take the globally best match.
	best := matcher.Match{Distance: math.Inf(1)}
	found := false
	for _, d := range detections {
		if m, ok := matcher.Best(d.Embedding, e.gallery, e.threshold); ok {
			if m.Distance < best.Distance || (m.Distance == best.Distance && m.StudentID < best.StudentID) {
				best = m
				found = true
			}
		}
	}
	if !found {
		return Result{Outcome: OutcomeNoMatch}, nil
	}

	when := e.now()
	inserted, err := e.ledger.Mark(ctx, best.StudentID, s.Subject, when)
	if err != nil {
		return Result{Outcome: OutcomeStoreUnavailable}, err
	}

	res := Result{
		StudentID:   best.StudentID,
		StudentName: e.gallery.Name(best.StudentID),
		Distance:    best.Distance,
		MarkedAt:    when,
	}
	if inserted {
		res.Outcome = OutcomeMarked
	} else {
		res.Outcome = OutcomeAlreadyMarked
	}
	return res, nil
}

// Summary derives attendance percentages, fresh per call.
func (e *Engine) Summary(ctx context.Context, studentID string) (ledger.Summary, error) {
	return e.ledger.SummaryFor(ctx, studentID)
}
