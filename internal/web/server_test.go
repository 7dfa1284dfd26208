package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/bulkindex/internal/blob"
	"github.com/JonMunkholm/bulkindex/internal/config"
	"github.com/JonMunkholm/bulkindex/internal/core"
	"github.com/JonMunkholm/bulkindex/internal/metrics"
	"github.com/JonMunkholm/bulkindex/internal/store/sqlite"
)

const snapshot = `{
  "references": [{"key": 501, "jnumID": "J:12345"}],
  "users": [{"key": 1001, "login": "jdoe"}],
  "markers": [{"key": 7001, "accID": "MGI:98765", "statusKey": 1}],
  "strains": [{"key": 8001, "accID": "MGI:22222"}],
  "alleles": [{"key": 9001, "accID": "MGI:33333", "status": "Approved"}],
  "lastAssocKey": 999
}`

type testEnv struct {
	server   *Server
	archive  *blob.Memory
	recorder *metrics.Recorder
}

func newTestEnv(t *testing.T, mutate func(*config.ServerConfig, *Deps)) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "mgd.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.ImportSnapshot(ctx, strings.NewReader(snapshot)); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}

	archive := blob.NewMemory()
	recorder := metrics.NewRecorder(false)
	cfg := config.ServerConfig{MaxUploadSize: 1 << 20, MaxConcurrentRuns: 2, RunWaitTime: time.Second}
	deps := Deps{
		Runner:   core.NewRunner(store, core.WithObserver(recorder)),
		Archiver: blob.NewArchiver(archive, "bulkindex"),
		Pinger:   store,
		Metrics:  recorder.Handler(),
		Clock:    func() time.Time { return time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	return &testEnv{server: NewServer(cfg, deps), archive: archive, recorder: recorder}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

// ============================================================================
// Preview Tests
// ============================================================================

func TestPreview_CleanFile(t *testing.T) {
	env := newTestEnv(t, nil)
	body := "J:12345\tMGI:98765\tjdoe\nJ:12345\tMGI:22222\tjdoe\n"

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decode[PreviewResponse](t, rec)
	if !resp.Success || resp.Lines != 2 || resp.FatalCount != 0 {
		t.Errorf("summary = %+v", resp.RunSummary)
	}
	if resp.Status != "Sanity check : successful" {
		t.Errorf("status = %q", resp.Status)
	}
	if !resp.Archived {
		t.Error("report not archived")
	}
	if rec.Header().Get("X-Run-ID") != resp.RunID {
		t.Errorf("X-Run-ID = %q, want %q", rec.Header().Get("X-Run-ID"), resp.RunID)
	}
}

func TestPreview_ReportsDiagnostics(t *testing.T) {
	env := newTestEnv(t, nil)
	body := "J:12345\tMGI:00000\tjdoe\nJ:1\tMGI:98765\tnobody\nonly-one-field\n"

	req := httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader(body))
	req.Header.Set("X-Run-ID", "0b9c1d44-5f3e-4a57-9d2a-3c1f6b7e8a90")
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decode[PreviewResponse](t, rec)
	if resp.Success || resp.FatalCount != 4 {
		t.Errorf("success = %v fatal = %d, want false 4", resp.Success, resp.FatalCount)
	}
	if resp.RunID != "0b9c1d44-5f3e-4a57-9d2a-3c1f6b7e8a90" {
		t.Errorf("RunID = %q, want client supplied id", resp.RunID)
	}

	codes := map[string]int{}
	for _, d := range resp.Diagnostics {
		codes[d.Kind.Code]++
	}
	for _, code := range []string{"OBJ001", "REF001", "USR001", "ROW001"} {
		if codes[code] != 1 {
			t.Errorf("diagnostic %s count = %d, want 1 (all: %v)", code, codes[code], codes)
		}
	}

	// The archived report matches the error file layout.
	art := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/"+resp.RunID+"/"+PreviewArtifact, nil))
	if art.Code != http.StatusOK {
		t.Fatalf("artifact status = %d", art.Code)
	}
	for _, want := range []string{"Invalid Object (row 1): MGI:00000", "Sanity check : failed", "Errors must be fixed before file is published."} {
		if !strings.Contains(art.Body.String(), want) {
			t.Errorf("report missing %q:\n%s", want, art.Body.String())
		}
	}
}

func TestPreview_Multipart(t *testing.T) {
	env := newTestEnv(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "bulkindex.txt")
	_, _ = fw.Write([]byte("J:12345\tMGI:33333\tjdoe\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/preview?encoding=utf-8", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decode[PreviewResponse](t, rec); !resp.Success || resp.Lines != 1 {
		t.Errorf("summary = %+v", resp.RunSummary)
	}
}

func TestPreview_BadRequests(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.ServerConfig, _ *Deps) { cfg.MaxUploadSize = 16 })

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"unknown encoding", httptest.NewRequest(http.MethodPost, "/api/preview?encoding=ebcdic", strings.NewReader("x")), http.StatusBadRequest},
		{"body too large", httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader(strings.Repeat("J:12345\tMGI:98765\tjdoe\n", 4))), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(tt.req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestPreview_LimiterFull(t *testing.T) {
	limiter := core.NewRunLimiter(1, 10*time.Millisecond)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire() = false")
	}
	defer limiter.Release()

	env := newTestEnv(t, func(_ *config.ServerConfig, d *Deps) { d.Limiter = limiter })
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader("J:12345\tMGI:98765\tjdoe\n")))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "RUN003" {
		t.Errorf("code = %q, want RUN003", resp.Code)
	}
}

// ============================================================================
// Artifact Tests
// ============================================================================

func TestArtifacts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, _ = env.archive.Put(ctx, "bulkindex/run-1/MGI_Reference_Assoc.bcp", strings.NewReader("1000|501\n"), blob.PutOptions{ContentType: "text/plain"})

	list := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))
	if list.Code != http.StatusOK {
		t.Fatalf("list status = %d", list.Code)
	}
	if infos := decode[[]blob.Info](t, list); len(infos) != 1 {
		t.Errorf("list = %+v", infos)
	}

	get := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/run-1/MGI_Reference_Assoc.bcp", nil))
	if get.Code != http.StatusOK || get.Body.String() != "1000|501\n" {
		t.Errorf("get = %d %q", get.Code, get.Body.String())
	}
	if ct := get.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q", ct)
	}

	if rec := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/run-1/missing", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("missing artifact status = %d, want 404", rec.Code)
	}
	if rec := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/run-2", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d, want 404", rec.Code)
	}
}

func TestArtifacts_ArchiveDisabled(t *testing.T) {
	env := newTestEnv(t, func(_ *config.ServerConfig, d *Deps) { d.Archiver = nil })

	if rec := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader("J:12345\tMGI:98765\tjdoe\n")))
	if resp := decode[PreviewResponse](t, rec); resp.Archived {
		t.Error("Archived = true with archive disabled")
	}
}

func TestAPIRequiresKey(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.ServerConfig, _ *Deps) { cfg.APIKeys = "secret" })

	if rec := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 without key", rec.Code)
	}
}

// ============================================================================
// Health and Metrics Tests
// ============================================================================

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[HealthResponse](t, rec)
	if resp.Status != "ok" || resp.Runs.MaxConcurrent != 2 {
		t.Errorf("health = %+v", resp)
	}

	down := newTestEnv(t, func(_ *config.ServerConfig, d *Deps) { d.Pinger = failingPinger{} })
	rec = down.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp := decode[HealthResponse](t, rec); resp.Status != "degraded" || resp.Database == "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader("J:12345\tMGI:98765\tjdoe\n")))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `bulkindex_runs_total{mode="preview",outcome="successful"} 1`) {
		t.Errorf("metrics missing preview run:\n%s", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options not set")
	}
}
