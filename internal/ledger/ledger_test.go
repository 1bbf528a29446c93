package ledger_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/classmark/classmark/internal/ledger"
	"github.com/classmark/classmark/internal/storage/mock"
)

var day1 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestMark_FirstMarkInserts(t *testing.T) {
	repo := mock.NewMarkRepository()
	l := ledger.New(repo)

	inserted, err := l.Mark(context.Background(), "jan_novak", "ML", day1)
	if err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if !inserted {
		t.Error("expected first mark to insert")
	}
	if repo.Count() != 1 {
		t.Errorf("expected 1 stored mark, got %d", repo.Count())
	}
}

func TestMark_DuplicateSameDayIsSuppressed(t *testing.T) {
	repo := mock.NewMarkRepository()
	l := ledger.New(repo)

	if _, err := l.Mark(context.Background(), "jan_novak", "ML", day1); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	// Later the same day, any number of times.
	for i := range 5 {
		inserted, err := l.Mark(context.Background(), "jan_novak", "ML", day1.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("Mark failed: %v", err)
		}
		if inserted {
			t.Error("expected duplicate mark to be suppressed")
		}
	}
	if repo.Count() != 1 {
		t.Errorf("expected 1 stored mark, got %d", repo.Count())
	}
}

func TestMark_DifferentKeysInsert(t *testing.T) {
	repo := mock.NewMarkRepository()
	l := ledger.New(repo)
	ctx := context.Background()

	cases := []struct {
		student, subject string
		when             time.Time
	}{
		{"jan_novak", "ML", day1},
		{"eva_mala", "ML", day1},                    // other student
		{"jan_novak", "Databases", day1},            // other subject
		{"jan_novak", "ML", day1.AddDate(0, 0, 1)},  // next day
		{"jan_novak", "ML", day1.AddDate(0, 0, -1)}, // previous day
	}
	for _, c := range cases {
		inserted, err := l.Mark(ctx, c.student, c.subject, c.when)
		if err != nil {
			t.Fatalf("Mark(%s, %s) failed: %v", c.student, c.subject, err)
		}
		if !inserted {
			t.Errorf("expected Mark(%s, %s, %s) to insert", c.student, c.subject, ledger.Day(c.when))
		}
	}
	if repo.Count() != len(cases) {
		t.Errorf("expected %d stored marks, got %d", len(cases), repo.Count())
	}
}

func TestMark_ConcurrentSameKey(t *testing.T) {
	repo := mock.NewMarkRepository()
	l := ledger.New(repo)

	const n = 50
	var wg sync.WaitGroup
	insertedCount := make(chan bool, n)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := l.Mark(context.Background(), "jan_novak", "ML", day1)
			if err != nil {
				t.Errorf("Mark failed: %v", err)
				return
			}
			insertedCount <- inserted
		}()
	}
	wg.Wait()
	close(insertedCount)

	var wins int
	for inserted := range insertedCount {
		if inserted {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 insert among %d concurrent attempts, got %d", n, wins)
	}
	if repo.Count() != 1 {
		t.Errorf("expected 1 stored mark, got %d", repo.Count())
	}
}

func TestMark_StoreErrorPropagates(t *testing.T) {
	repo := mock.NewMarkRepository()
	repo.InsertError = errors.New("disk on fire")
	l := ledger.New(repo)

	inserted, err := l.Mark(context.Background(), "jan_novak", "ML", day1)
	if err == nil {
		t.Error("expected store error to propagate")
	}
	if inserted {
		t.Error("a failed mark must not report inserted")
	}
}

// seed records marks for a student in a subject on n distinct days.
func seed(t *testing.T, l *ledger.Ledger, student, subject string, n int) {
	t.Helper()
	for i := range n {
		if _, err := l.Mark(context.Background(), student, subject, day1.AddDate(0, 0, i)); err != nil {
			t.Fatalf("seeding mark failed: %v", err)
		}
	}
}

func TestSummaryFor_TotalIsMaxAttendance(t *testing.T) {
	repo := mock.NewMarkRepository()
	l := ledger.New(repo)

	seed(t, l, "jan_novak", "ML", 8)
	seed(t, l, "eva_mala", "ML", 10) // eva sets the class total
	seed(t, l, "jan_novak", "Databases", 3)

	summary, err := l.SummaryFor(context.Background(), "")
	if err != nil {
		t.Fatalf("SummaryFor failed: %v", err)
	}

	jan := summary["jan_novak"]["ML"]
	if jan.Attended != 8 || jan.TotalClasses != 10 {
		t.Errorf("expected 8/10 for jan in ML, got %d/%d", jan.Attended, jan.TotalClasses)
	}
	if math.Abs(jan.Percentage-80) > 1e-9 {
		t.Errorf("expected 80%%, got %v", jan.Percentage)
	}

	eva := summary["eva_mala"]["ML"]
	if eva.Attended != 10 || eva.TotalClasses != 10 {
		t.Errorf("expected 10/10 for eva in ML, got %d/%d", eva.Attended, eva.TotalClasses)
	}
	if math.Abs(eva.Percentage-100) > 1e-9 {
		t.Errorf("expected 100%%, got %v", eva.Percentage)
	}

	db := summary["jan_novak"]["Databases"]
	if db.Attended != 3 || db.TotalClasses != 3 {
		t.Errorf("expected 3/3 for jan in Databases, got %d/%d", db.Attended, db.TotalClasses)
	}
}

func TestSummaryFor_FiltersByStudent(t *testing.T) {
	repo := mock.NewMarkRepository()
	l := ledger.New(repo)

	seed(t, l, "jan_novak", "ML", 4)
	seed(t, l, "eva_mala", "ML", 6)

	summary, err := l.SummaryFor(context.Background(), "jan_novak")
	if err != nil {
		t.Fatalf("SummaryFor failed: %v", err)
	}

	if len(summary) != 1 {
		t.Fatalf("expected exactly one student, got %d", len(summary))
	}
	// The denominator still comes from the whole class.
	if got := summary["jan_novak"]["ML"]; got.Attended != 4 || got.TotalClasses != 6 {
		t.Errorf("expected 4/6, got %d/%d", got.Attended, got.TotalClasses)
	}
}

func TestSummaryFor_EmptyLedger(t *testing.T) {
	repo := mock.NewMarkRepository()
	l := ledger.New(repo)

	summary, err := l.SummaryFor(context.Background(), "")
	if err != nil {
		t.Fatalf("SummaryFor failed: %v", err)
	}
	if len(summary) != 0 {
		t.Errorf("expected empty summary, got %v", summary)
	}
}

func TestSummaryFor_Idempotent(t *testing.T) {
	repo := mock.NewMarkRepository()
	l := ledger.New(repo)

	seed(t, l, "jan_novak", "ML", 5)

	first, err := l.SummaryFor(context.Background(), "")
	if err != nil {
		t.Fatalf("SummaryFor failed: %v", err)
	}
	second, err := l.SummaryFor(context.Background(), "")
	if err != nil {
		t.Fatalf("SummaryFor failed: %v", err)
	}
	if first["jan_novak"]["ML"] != second["jan_novak"]["ML"] {
		t.Error("summary must derive the same numbers on every call")
	}
}

func TestDay(t *testing.T) {
	if got := ledger.Day(time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC)); got != "2026-03-02" {
		t.Errorf("expected 2026-03-02, got %s", got)
	}
}
