package engine_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/classmark/classmark/internal/engine"
	"github.com/classmark/classmark/internal/extract"
	"github.com/classmark/classmark/internal/gallery"
	"github.com/classmark/classmark/internal/guard"
	"github.com/classmark/classmark/internal/ledger"
	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/storage"
	"github.com/classmark/classmark/internal/storage/mock"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// stubExtractor returns canned detections regardless of the frame.
type stubExtractor struct {
	detections []extract.Detection
	err        error
}

func (s *stubExtractor) Extract(ctx context.Context, frame []byte) ([]extract.Detection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.detections, nil
}

// testFrame is a tiny but valid PNG so frame preparation succeeds.
func testFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	engine    *engine.Engine
	sessions  *mock.SessionRepository
	marks     *mock.MarkRepository
	extractor *stubExtractor
	frame     []byte
}

// newFixture builds an engine over mock storage with two enrolled students.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	encodings := mock.NewEncodingRepository()
	encodings.AddEncoding(storage.Encoding{StudentID: "jan_novak", Name: "Jan Novák", Vector: []float32{0, 0, 0}})
	encodings.AddEncoding(storage.Encoding{StudentID: "eva_mala", Name: "Eva Malá", Vector: []float32{5, 5, 5}})

	g, err := gallery.Load(context.Background(), encodings, 3)
	if err != nil {
		t.Fatalf("failed to load gallery: %v", err)
	}

	sessions := mock.NewSessionRepository()
	marks := mock.NewMarkRepository()
	extractor := &stubExtractor{}

	store := session.NewStore(sessions, 10*time.Minute)
	store.SetClock(func() time.Time { return now })

	eng := engine.New(store, g, ledger.New(marks), extractor, 0.5)
	eng.SetClock(func() time.Time { return now })

	return &fixture{
		engine:    eng,
		sessions:  sessions,
		marks:     marks,
		extractor: extractor,
		frame:     testFrame(t),
	}
}

func (f *fixture) openSession(t *testing.T, pred session.Predicate) *session.Session {
	t.Helper()
	s, err := f.engine.CreateSession(context.Background(), "ML", "novak", pred, 10*time.Minute)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

func subnetClaim(addr string) guard.Claim {
	return guard.Claim{RemoteAddr: addr}
}

func TestSubmit_Marked(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	// A probe 0.3 away from jan_novak's reference encoding.
	f.extractor.detections = []extract.Detection{{Embedding: []float32{0.3, 0, 0}}}

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if res.Outcome != engine.OutcomeMarked {
		t.Fatalf("expected marked, got %s", res.Outcome)
	}
	if res.StudentID != "jan_novak" {
		t.Errorf("expected jan_novak, got %s", res.StudentID)
	}
	if res.StudentName != "Jan Novák" {
		t.Errorf("expected display name, got %s", res.StudentName)
	}
	if res.Distance < 0.29 || res.Distance > 0.31 {
		t.Errorf("expected distance ~0.3, got %v", res.Distance)
	}
	if !res.MarkedAt.Equal(now) {
		t.Errorf("expected MarkedAt %v, got %v", now, res.MarkedAt)
	}
	if f.marks.Count() != 1 {
		t.Errorf("expected 1 mark, got %d", f.marks.Count())
	}
}

func TestSubmit_AlreadyMarked(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	f.extractor.detections = []extract.Detection{{Embedding: []float32{0.3, 0, 0}}}

	claim := subnetClaim("10.0.0.5:51234")
	if res, _ := f.engine.Submit(context.Background(), s.ID, claim, f.frame); res.Outcome != engine.OutcomeMarked {
		t.Fatalf("expected first submit to mark, got %s", res.Outcome)
	}

	res, err := f.engine.Submit(context.Background(), s.ID, claim, f.frame)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Outcome != engine.OutcomeAlreadyMarked {
		t.Errorf("expected already_marked, got %s", res.Outcome)
	}
	if res.StudentID != "jan_novak" {
		t.Errorf("expected student identification to survive, got %q", res.StudentID)
	}
	if f.marks.Count() != 1 {
		t.Errorf("expected still 1 mark, got %d", f.marks.Count())
	}
}

func TestSubmit_NoMatch(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	// Far from everyone.
	f.extractor.detections = []extract.Detection{{Embedding: []float32{2, 2, 2}}}

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Outcome != engine.OutcomeNoMatch {
		t.Errorf("expected no_match, got %s", res.Outcome)
	}
	if res.StudentID != "" {
		t.Errorf("no_match must not name a student, got %q", res.StudentID)
	}
	if f.marks.Count() != 0 {
		t.Errorf("expected no marks, got %d", f.marks.Count())
	}
}

func TestSubmit_NoFaceDetected(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	f.extractor.detections = nil

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Outcome != engine.OutcomeNoFaceDetected {
		t.Errorf("expected no_face_detected, got %s", res.Outcome)
	}
}

func TestSubmit_SessionNotFound(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Submit(context.Background(), "deadbeef", subnetClaim("10.0.0.5:51234"), f.frame)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Outcome != engine.OutcomeSessionNotFound {
		t.Errorf("expected session_not_found, got %s", res.Outcome)
	}
}

func TestSubmit_Expired(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	f.extractor.detections = []extract.Detection{{Embedding: []float32{0.3, 0, 0}}}

	// Move the clock past expiry.
	later := now.Add(11 * time.Minute)
	f.engine.SetClock(func() time.Time { return later })

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Outcome != engine.OutcomeExpired {
		t.Errorf("expected session_expired, got %s", res.Outcome)
	}
	if f.marks.Count() != 0 {
		t.Errorf("an expired session must never mark, got %d marks", f.marks.Count())
	}
}

func TestSubmit_Denied(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	f.extractor.detections = []extract.Detection{{Embedding: []float32{0.3, 0, 0}}}

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("192.168.1.5:51234"), f.frame)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Outcome != engine.OutcomeDenied {
		t.Errorf("expected access_denied, got %s", res.Outcome)
	}
	if f.marks.Count() != 0 {
		t.Errorf("a denied attempt must never mark, got %d marks", f.marks.Count())
	}
}

func TestSubmit_TokenMode(t *testing.T) {
	f := newFixture(t)
	token := session.NewToken()
	s := f.openSession(t, session.Predicate{Mode: session.ModeToken, Token: token})
	f.extractor.detections = []extract.Detection{{Embedding: []float32{0.3, 0, 0}}}

	res, _ := f.engine.Submit(context.Background(), s.ID, guard.Claim{Token: token}, f.frame)
	if res.Outcome != engine.OutcomeMarked {
		t.Errorf("expected marked with valid token, got %s", res.Outcome)
	}

	res, _ = f.engine.Submit(context.Background(), s.ID, guard.Claim{Token: "wrong"}, f.frame)
	if res.Outcome != engine.OutcomeDenied {
		t.Errorf("expected access_denied with wrong token, got %s", res.Outcome)
	}
}

func TestSubmit_StoreUnavailableIsNotNotFound(t *testing.T) {
	f := newFixture(t)
	f.sessions.GetError = errors.New("connection refused")

	res, err := f.engine.Submit(context.Background(), "any", subnetClaim("10.0.0.5:51234"), f.frame)
	if err == nil {
		t.Error("expected the cause to be surfaced")
	}
	if res.Outcome != engine.OutcomeStoreUnavailable {
		t.Errorf("a store failure must not read as not_found, got %s", res.Outcome)
	}
}

func TestSubmit_MarkInsertFailure(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	f.extractor.detections = []extract.Detection{{Embedding: []float32{0.3, 0, 0}}}
	f.marks.InsertError = errors.New("disk on fire")

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
	if err == nil {
		t.Error("expected the cause to be surfaced")
	}
	if res.Outcome != engine.OutcomeStoreUnavailable {
		t.Errorf("expected store_unavailable, got %s", res.Outcome)
	}
}

func TestSubmit_ExtractionFailed(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	f.extractor.err = errors.New("embedding service down")

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
	if err == nil {
		t.Error("expected the cause to be surfaced")
	}
	if res.Outcome != engine.OutcomeExtractionFailed {
		t.Errorf("expected extraction_failed, got %s", res.Outcome)
	}
}

func TestSubmit_UndecodableFrame(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), []byte("not an image"))
	if err == nil {
		t.Error("expected the cause to be surfaced")
	}
	if res.Outcome != engine.OutcomeExtractionFailed {
		t.Errorf("expected extraction_failed for garbage bytes, got %s", res.Outcome)
	}
}

func TestSubmit_MultipleFacesTakesBest(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	// Two faces in frame: one near eva, one nearer to jan.
	f.extractor.detections = []extract.Detection{
		{Embedding: []float32{5.2, 5, 5}},
		{Embedding: []float32{0.1, 0, 0}},
	}

	res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Outcome != engine.OutcomeMarked {
		t.Fatalf("expected marked, got %s", res.Outcome)
	}
	if res.StudentID != "jan_novak" {
		t.Errorf("expected the closest face to win, got %s", res.StudentID)
	}
}

func TestSubmit_ConcurrentSameStudent(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})
	f.extractor.detections = []extract.Detection{{Embedding: []float32{0.3, 0, 0}}}

	const n = 50
	outcomes := make(chan engine.Outcome, n)
	var wg sync.WaitGroup

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
			if err != nil {
				t.Errorf("Submit failed: %v", err)
				return
			}
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	var marked, already int
	for o := range outcomes {
		switch o {
		case engine.OutcomeMarked:
			marked++
		case engine.OutcomeAlreadyMarked:
			already++
		default:
			t.Errorf("unexpected outcome %s", o)
		}
	}
	if marked != 1 {
		t.Errorf("expected exactly 1 marked among %d concurrent submits, got %d", n, marked)
	}
	if already != n-1 {
		t.Errorf("expected %d already_marked, got %d", n-1, already)
	}
	if f.marks.Count() != 1 {
		t.Errorf("expected exactly 1 stored mark, got %d", f.marks.Count())
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})

	st, err := f.engine.Status(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != engine.StateLive {
		t.Errorf("expected live, got %s", st.State)
	}
	if st.Subject != "ML" {
		t.Errorf("expected subject ML, got %s", st.Subject)
	}

	f.engine.SetClock(func() time.Time { return now.Add(time.Hour) })
	st, err = f.engine.Status(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != engine.StateExpired {
		t.Errorf("expected expired, got %s", st.State)
	}

	st, err = f.engine.Status(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != engine.StateNotFound {
		t.Errorf("expected not_found, got %s", st.State)
	}
}

func TestStopSession(t *testing.T) {
	f := newFixture(t)
	s := f.openSession(t, session.Predicate{Mode: session.ModeSubnet, SubnetPrefix: "10.0.0."})

	if err := f.engine.StopSession(context.Background(), s.ID); err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}

	res, _ := f.engine.Submit(context.Background(), s.ID, subnetClaim("10.0.0.5:51234"), f.frame)
	if res.Outcome != engine.OutcomeSessionNotFound {
		t.Errorf("expected session_not_found after stop, got %s", res.Outcome)
	}

	// Stopping again is fine.
	if err := f.engine.StopSession(context.Background(), s.ID); err != nil {
		t.Fatalf("second StopSession failed: %v", err)
	}
}

func TestOutcomeMessagesDistinct(t *testing.T) {
	outcomes := []engine.Outcome{
		engine.OutcomeMarked, engine.OutcomeAlreadyMarked, engine.OutcomeNoMatch,
		engine.OutcomeNoFaceDetected, engine.OutcomeSessionNotFound, engine.OutcomeExpired,
		engine.OutcomeDenied, engine.OutcomeStoreUnavailable, engine.OutcomeExtractionFailed,
	}
	seen := make(map[string]engine.Outcome)
	for _, o := range outcomes {
		msg := o.Message()
		if msg == "" {
			t.Errorf("outcome %s has no message", o)
		}
		if prev, ok := seen[msg]; ok {
			t.Errorf("outcomes %s and %s share a message", prev, o)
		}
		seen[msg] = o
	}
}
