package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fleetobserver/fleetobserver/internal/controller"
	"github.com/fleetobserver/fleetobserver/internal/hub"
	"github.com/fleetobserver/fleetobserver/internal/preferences"
	"github.com/fleetobserver/fleetobserver/internal/transport"
)

func newTestHandler(t *testing.T, basePath string) *Handler {
	t.Helper()
	prefs, err := preferences.Load(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	ts := transport.NewServer(nil, nil)
	h := hub.New([]string{basePath}, 0, ts, nil)
	ctrl := controller.New("/bin/true", nil, nil)
	return New([]string{basePath}, prefs, h, ctrl, nil, nil)
}

func writeSession(t *testing.T, dir, id string, lines []string) {
	t.Helper()
	path := filepath.Join(dir, id+".jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHandleListDirectories(t *testing.T) {
	base := t.TempDir()
	proj := filepath.Join(base, "myproject")
	os.Mkdir(proj, 0o755)
	writeSession(t, proj, "0196f2b4-2b2e-7c3a-9a4e-8e9f1a2b3c4d", []string{
		`{"type":"user","uuid":"u1","sessionId":"x","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"hi"}}`,
	})

	h := newTestHandler(t, base)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/directories", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Directories []struct {
			ID string `json:"id"`
		} `json:"directories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Directories) != 1 || body.Directories[0].ID != "myproject" {
		t.Errorf("got %+v", body.Directories)
	}
}

func TestHandleListSessions_UnknownSlug(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/no-such-project/sessions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleListSessions_KnownSlug(t *testing.T) {
	base := t.TempDir()
	proj := filepath.Join(base, "myproject")
	os.Mkdir(proj, 0o755)
	writeSession(t, proj, "0196f2b4-2b2e-7c3a-9a4e-8e9f1a2b3c4d", []string{
		`{"type":"user","uuid":"u1","sessionId":"x","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"hi"}}`,
	})

	h := newTestHandler(t, base)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Seed preferences through the real handler's store via the PUT endpoint,
	// exactly as a client would.
	putBody := strings.NewReader(`{"projects":[{"title":"My Project","projectDirs":["myproject"]}]}`)
	putReq := httptest.NewRequest(http.MethodPut, "/api/preferences", putBody)
	putRec := httptest.NewRecorder()
	mux.ServeHTTP(putRec, putReq)
	if putRec.Code != http.StatusOK {
		t.Fatalf("PUT preferences status = %d body=%s", putRec.Code, putRec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/projects/my-project/sessions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Sessions []struct {
			SessionID string `json:"sessionId"`
		} `json:"sessions"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Sessions) != 1 {
		t.Fatalf("got %+v", body.Sessions)
	}
}

func TestHandleCreateSession_MissingProjectDir(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStopSession_NotRunning(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/unknown/stop", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleSendMessage_MissingMessage(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/message", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGetSession_NotFound(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/no-such-session", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
