// Package ledger records attendance marks. The ledger is append-only: marks
// are never updated or deleted here, corrections are an administrative
// concern outside the system.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// DayFormat is the calendar-day granularity of the duplicate-suppression key.
const DayFormat = "2006-01-02"

// Mark is one recorded attendance: this student, this subject, this day.
// At most one mark may exist per (StudentID, Subject, Day).
type Mark struct {
	StudentID string
	Subject   string
	Day       string // DayFormat
	MarkedAt  time.Time
}

// Day reduces an instant to the ledger's calendar-day key.
func Day(t time.Time) string {
	return t.Format(DayFormat)
}

// Repository persists marks. Insert must be atomic per (student, subject,
// day) key across concurrent callers and across processes: a unique
// constraint or conditional insert, not an in-process lock. It reports false
// when the mark already existed.
type Repository interface {
	Insert(ctx context.Context, m Mark) (inserted bool, err error)
	List(ctx context.Context) ([]Mark, error)
}

// SubjectSummary is the derived attendance of one student in one subject.
// TotalClasses is inferred as the highest attendance count any student has
// for the subject; a subject nobody attended never appears, and the
// most-attending student sets everyone's denominator. Fragile, but it is the
// product's accounting rule.
type SubjectSummary struct {
	Attended     int     `json:"attended"`
	TotalClasses int     `json:"total_classes"`
	Percentage   float64 `json:"percentage"`
}

// Summary maps student id -> subject -> derived attendance.
type Summary map[string]map[string]SubjectSummary

// Ledger enforces the at-most-once-per-day invariant and derives summaries.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

func New(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// SetClock overrides the time source. For tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Mark records attendance for the student in the subject on when's calendar
// day. Returns false without error when the mark already existed; that is a
// non-mutating success, not a failure.
func (l *Ledger) Mark(ctx context.Context, studentID, subject string, when time.Time) (bool, error) {
	if when.IsZero() {
		when = l.now()
	}
	inserted, err := l.repo.Insert(ctx, Mark{
		StudentID: studentID,
		Subject:   subject,
		Day:       Day(when),
		MarkedAt:  when,
	})
	if err != nil {
		// A mark that may not have landed is a correctness defect, never
		// swallow it.
		return false, fmt.Errorf("recording mark for %s/%s: %w", studentID, subject, err)
	}
	return inserted, nil
}

// SummaryFor derives attendance percentages fresh from the full mark set.
// Recomputing instead of maintaining counters keeps the numbers drift-free.
// An empty studentID returns every student.
func (l *Ledger) SummaryFor(ctx context.Context, studentID string) (Summary, error) {
	marks, err := l.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing marks: %w", err)
	}

	// attended[student][subject]
	attended := make(map[string]map[string]int)
	// totals[subject] = max attended across students
	totals := make(map[string]int)

	for _, m := range marks {
		if attended[m.StudentID] == nil {
			attended[m.StudentID] = make(map[string]int)
		}
		attended[m.StudentID][m.Subject]++
		if n := attended[m.StudentID][m.Subject]; n > totals[m.Subject] {
			totals[m.Subject] = n
		}
	}

	out := make(Summary)
	for student, subjects := range attended {
		if studentID != "" && student != studentID {
			continue
		}
		out[student] = make(map[string]SubjectSummary, len(subjects))
		for subject, n := range subjects {
			total := totals[subject]
			s := SubjectSummary{Attended: n, TotalClasses: total}
			if total > 0 {
				s.Percentage = float64(n) / float64(total) * 100
			}
			out[student][subject] = s
		}
	}
	return out, nil
}
