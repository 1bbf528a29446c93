package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classmark/classmark/internal/engine"
	"github.com/classmark/classmark/internal/extract"
	"github.com/classmark/classmark/internal/gallery"
	"github.com/classmark/classmark/internal/ledger"
	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/storage"
	"github.com/classmark/classmark/internal/storage/mock"
	"github.com/classmark/classmark/internal/web/middleware"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// errFailedStore stands in for an unreachable backend in error-injection tests.
var errFailedStore = errors.New("store failure")

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

// testEnv bundles an engine over mock storage with one enrolled student
// ("jan_novak" at the origin of a 3-d embedding space).
type testEnv struct {
	engine    *engine.Engine
	sessions  *mock.SessionRepository
	marks     *mock.MarkRepository
	teachers  *mock.TeacherRepository
	extractor *stubExtractor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	encodings := mock.NewEncodingRepository()
	encodings.AddEncoding(storage.Encoding{StudentID: "jan_novak", Name: "Jan Novák", Vector: []float32{0, 0, 0}})

	g, err := gallery.Load(context.Background(), encodings, 3)
	if err != nil {
		t.Fatalf("failed to load gallery: %v", err)
	}

	env := &testEnv{
		sessions:  mock.NewSessionRepository(),
		marks:     mock.NewMarkRepository(),
		teachers:  mock.NewTeacherRepository(),
		extractor: &stubExtractor{},
	}

	store := session.NewStore(env.sessions, 10*time.Minute)
	store.SetClock(func() time.Time { return testNow })

	env.engine = engine.New(store, g, ledger.New(env.marks), env.extractor, 0.5)
	env.engine.SetClock(func() time.Time { return testNow })
	return env
}

// openSession creates a live session directly through the engine.
func (env *testEnv) openSession(t *testing.T, pred session.Predicate) *session.Session {
	t.Helper()
	s, err := env.engine.CreateSession(context.Background(), "ML", "novak", pred, 10*time.Minute)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}

// testFrameDataURL returns a tiny valid PNG as a browser-style data URL.
func testFrameDataURL(t *testing.T) string {
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
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// requestWithTeacher creates a request carrying a logged-in teacher session.
func requestWithTeacher(method, path string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	ts := &middleware.TeacherSession{ID: "tsess", Username: "novak", Name: "Petr Novák"}
	return req.WithContext(middleware.SetTeacherInContext(req.Context(), ts))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// sessionCookie builds the signed cookie header value for a teacher session.
func sessionCookie(t *testing.T, sm *middleware.SessionManager, s *middleware.TeacherSession) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	sm.SetSessionCookie(w, s)
	for _, c := range w.Result().Cookies() {
		if c.Name == "classmark_session" {
			return c
		}
	}
	t.Fatal("session cookie was not set")
	return nil
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
