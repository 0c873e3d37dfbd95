package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/seedexport/internal/config"
	"github.com/JonMunkholm/seedexport/internal/core"
)

func testRegistry(t *testing.T) *core.Registry {
	t.Helper()
	reg, err := core.NewRegistry(
		core.TableSpec{Name: "kv_store", Group: "system", PrimaryKey: "key", JSONColumns: []string{"value"}},
		core.TableSpec{Name: "crypto_assets", Group: "finance", PrimaryKey: "id", UniqueConstraint: "symbol"},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{Kind: config.SourceREST},
		Export: config.ExportConfig{Timeout: 5 * time.Second},
	}
}

// fixedSource serves rows per table; tables not listed fail.
func fixedSource(data map[string][]core.Row) core.RowSource {
	return core.RowSourceFunc(func(ctx context.Context, table core.TableSpec) ([]core.Row, error) {
		rows, ok := data[table.Name]
		if !ok {
			return nil, errors.New("status 503: upstream down")
		}
		return rows, nil
	})
}

func newTestServer(t *testing.T, src core.RowSource, cfg *config.Config) *Server {
	t.Helper()
	exp := core.NewExporter(src, core.DefaultClassifyRules,
		core.WithRunID(func() string { return "run-test" }),
		core.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	return NewServer(exp, testRegistry(t), cfg)
}

func do(s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleIndex(t *testing.T) {
	s := newTestServer(t, fixedSource(nil), testConfig())
	rec := do(s, http.MethodGet, "/", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<h2>finance</h2>", "<code>kv_store</code>", `href="/api/export/crypto_assets"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, fixedSource(nil), testConfig())
	rec := do(s, http.MethodGet, "/healthz", nil)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["tables"] != float64(2) {
		t.Errorf("health = %v", body)
	}
}

func TestHandleListTables(t *testing.T) {
	s := newTestServer(t, fixedSource(nil), testConfig())
	rec := do(s, http.MethodGet, "/api/tables", nil)

	var views []tableView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("tables = %d, want 2", len(views))
	}
	if views[0].Name != "kv_store" || views[1].ConflictColumn != "symbol" {
		t.Errorf("tables = %+v", views)
	}
}

func TestHandleExport(t *testing.T) {
	src := fixedSource(map[string][]core.Row{
		"kv_store":      {core.NewRow("key", "theme", "value", map[string]any{"dark": true})},
		"crypto_assets": {},
	})
	s := newTestServer(t, src, testConfig())
	rec := do(s, http.MethodGet, "/api/export", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(headerRunID); got != "run-test" {
		t.Errorf("%s = %q", headerRunID, got)
	}
	if got := rec.Header().Get(headerChecksum); len(got) != 16 {
		t.Errorf("%s = %q, want 16 hex digits", headerChecksum, got)
	}
	if got := rec.Header().Get(headerTablesFailed); got != "0" {
		t.Errorf("%s = %q, want 0", headerTablesFailed, got)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"-- Run ID: run-test",
		`INSERT INTO kv_store (key, value) VALUES`,
		`('theme', '{"dark":true}'::jsonb)`,
		"-- No data found for crypto_assets",
		"2 of 2 tables exported",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("artifact missing %q:\n%s", want, body)
		}
	}
}

func TestHandleExport_PartialFailure(t *testing.T) {
	src := fixedSource(map[string][]core.Row{
		"crypto_assets": {core.NewRow("id", 1, "symbol", "BTC")},
	})
	s := newTestServer(t, src, testConfig())
	rec := do(s, http.MethodGet, "/api/export", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get(headerTablesFailed); got != "1" {
		t.Errorf("%s = %q, want 1", headerTablesFailed, got)
	}
	body := rec.Body.String()
	if strings.Contains(body, "-- Table: kv_store") {
		t.Error("failed table should have no section")
	}
	if !strings.Contains(body, "1 of 2 tables exported") {
		t.Errorf("footer missing counts:\n%s", body)
	}
}

func TestHandleExport_AllFailed(t *testing.T) {
	s := newTestServer(t, fixedSource(nil), testConfig())
	rec := do(s, http.MethodGet, "/api/export", nil)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "RUN001" {
		t.Errorf("code = %s, want RUN001", resp.Code)
	}
	if len(resp.Tables) != 2 || resp.Tables[0].Status != core.StatusFailed {
		t.Errorf("tables = %+v", resp.Tables)
	}
}

func TestHandleExport_Coalesces(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	src := core.RowSourceFunc(func(ctx context.Context, table core.TableSpec) ([]core.Row, error) {
		if table.Name == "kv_store" {
			calls.Add(1)
			<-release
		}
		return []core.Row{}, nil
	})
	s := newTestServer(t, src, testConfig())

	const n = 4
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(s, http.MethodGet, "/api/export", nil).Code
		}(i)
	}

	// Let every request reach the shared call before the source returns.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, c := range codes {
		if c != http.StatusOK {
			t.Errorf("request %d status = %d", i, c)
		}
	}
	if got := calls.Load(); got < 1 || got > n {
		t.Errorf("runs = %d, want between 1 and %d", got, n)
	}
}

func TestHandleExportTable(t *testing.T) {
	src := fixedSource(map[string][]core.Row{
		"crypto_assets": {core.NewRow("id", 1, "symbol", "BTC", "created_at", "2024-01-01T00:00:00Z")},
	})
	s := newTestServer(t, src, testConfig())

	t.Run("found", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/export/crypto_assets", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		body := rec.Body.String()
		want := "ON CONFLICT (symbol) DO UPDATE SET\n  id = EXCLUDED.id;"
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/export/nope", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		var resp ErrorResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Code != "CFG002" {
			t.Errorf("code = %s, want CFG002", resp.Code)
		}
	})

	t.Run("source failure", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/export/kv_store", nil)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Server.APIKeys = []string{"secret"}
	s := newTestServer(t, fixedSource(nil), cfg)

	if rec := do(s, http.MethodGet, "/api/tables", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/tables", map[string]string{"X-API-Key": "secret"}); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrUnknownTable, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{core.ErrAllTablesFailed, http.StatusBadGateway},
		{&core.TableError{Table: "t", Err: core.ErrSourceUnavailable}, http.StatusBadGateway},
		{&core.TableError{Table: "t", Err: core.ErrDivergentRowShape}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHandleListRuns(t *testing.T) {
	src := fixedSource(map[string][]core.Row{
		"crypto_assets": {core.NewRow("id", 1, "symbol", "BTC")},
	})
	s := newTestServer(t, src, testConfig())

	do(s, http.MethodGet, "/api/export", map[string]string{"User-Agent": "seed-cron/1.0"})
	do(s, http.MethodGet, "/api/export", nil)

	rec := do(s, http.MethodGet, "/api/runs", nil)
	var runs []core.RunRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	oldest := runs[1]
	if oldest.RunID != "run-test" || oldest.Exported != 1 || oldest.Failed != 1 || oldest.Tables != 2 {
		t.Errorf("run = %+v", oldest)
	}
	if oldest.UserAgent != "seed-cron/1.0" || oldest.Checksum == "" {
		t.Errorf("run metadata = %+v", oldest)
	}

	rec = do(s, http.MethodGet, "/api/runs?limit=1", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &runs)
	if len(runs) != 1 {
		t.Errorf("limit=1 returned %d runs", len(runs))
	}

	if rec := do(s, http.MethodGet, "/api/runs?limit=x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want 400", rec.Code)
	}
}
