package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

var (
	kvSpec     = TableSpec{Name: "kv_store", Group: "system", PrimaryKey: "key", JSONColumns: []string{"value"}}
	stocksSpec = TableSpec{Name: "alpaca_stocks", Group: "finance", PrimaryKey: "id", UniqueConstraint: "symbol"}
	schoolSpec = TableSpec{Name: "school_closings", Group: "school", PrimaryKey: "id"}
)

func testExporter(src RowSource, logs *bytes.Buffer) *Exporter {
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewExporter(src, DefaultClassifyRules,
		WithLogger(logger),
		WithClock(func() time.Time { return clock }),
		WithRunID(func() string { return "run-fixed" }),
	)
}

func mapSource(data map[string][]Row, failures map[string]error) RowSource {
	return RowSourceFunc(func(ctx context.Context, table TableSpec) ([]Row, error) {
		if err, ok := failures[table.Name]; ok {
			return nil, err
		}
		return data[table.Name], nil
	})
}

func TestExporter_Run(t *testing.T) {
	src := mapSource(map[string][]Row{
		"kv_store":      {NewRow("key", "theme", "value", "dark")},
		"alpaca_stocks": {NewRow("id", 1, "symbol", "AAPL")},
	}, nil)
	var logs bytes.Buffer

	result, err := testExporter(src, &logs).Run(context.Background(), []TableSpec{kvSpec, stocksSpec, schoolSpec})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Artifact.RunID != "run-fixed" {
		t.Errorf("RunID = %q", result.Artifact.RunID)
	}
	if got := len(result.Artifact.Sections); got != 3 {
		t.Fatalf("sections = %d, want 3", got)
	}
	if result.Failed() != 0 {
		t.Errorf("Failed() = %d, want 0", result.Failed())
	}

	wantStatus := []TableStatus{StatusExported, StatusExported, StatusEmpty}
	for i, o := range result.Outcomes {
		if o.Status != wantStatus[i] {
			t.Errorf("outcome[%d] = %+v, want status %s", i, o, wantStatus[i])
		}
	}

	// A nil slice from the source is an empty table, not a failure.
	if body := result.Artifact.Sections[2].Body; body != "-- No data found for school_closings" {
		t.Errorf("empty section = %q", body)
	}

	for _, want := range []string{"export started", "table exported", "export completed", "run_id=run-fixed"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("logs missing %q", want)
		}
	}
}

func TestExporter_Run_SkipsFailedTable(t *testing.T) {
	src := mapSource(
		map[string][]Row{"alpaca_stocks": {NewRow("id", 1, "symbol", "AAPL")}},
		map[string]error{"kv_store": errors.New("status 503: unavailable")},
	)
	var logs bytes.Buffer

	result, err := testExporter(src, &logs).Run(context.Background(), []TableSpec{kvSpec, stocksSpec})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := len(result.Artifact.Sections); got != 1 || result.Artifact.Sections[0].Table != "alpaca_stocks" {
		t.Errorf("sections = %+v", result.Artifact.Sections)
	}
	if result.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", result.Failed())
	}
	o := result.Outcomes[0]
	if o.Status != StatusFailed || o.Code != "SRC001" || !strings.Contains(o.Error, "status 503") {
		t.Errorf("outcome = %+v", o)
	}
	if len(result.Artifact.Tables) != 2 {
		t.Error("manifest should still list the failed table")
	}
	if !strings.Contains(logs.String(), "table skipped") || !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("expected warning for skipped table:\n%s", logs.String())
	}
}

func TestExporter_Run_DivergentShapeSkipsTable(t *testing.T) {
	src := mapSource(map[string][]Row{
		"kv_store":      {NewRow("key", "a", "value", 1), NewRow("key", "b")},
		"alpaca_stocks": {NewRow("id", 1, "symbol", "AAPL")},
	}, nil)
	var logs bytes.Buffer

	result, err := testExporter(src, &logs).Run(context.Background(), []TableSpec{kvSpec, stocksSpec})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Outcomes[0].Code != "SHP001" {
		t.Errorf("outcome = %+v, want SHP001", result.Outcomes[0])
	}
	if strings.Contains(string(result.Artifact.Bytes()), "-- Table: kv_store") {
		t.Error("divergent table must not be emitted")
	}
}

func TestExporter_Run_AllFailed(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	src := mapSource(nil, map[string]error{"kv_store": boom, "alpaca_stocks": boom})
	var logs bytes.Buffer

	result, err := testExporter(src, &logs).Run(context.Background(), []TableSpec{kvSpec, stocksSpec})
	if !errors.Is(err, ErrAllTablesFailed) {
		t.Fatalf("error = %v, want ErrAllTablesFailed", err)
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Error("error should carry the per-table causes")
	}
	if result == nil || result.Failed() != 2 {
		t.Fatalf("result = %+v, want 2 failed outcomes", result)
	}
	if ErrorCode(err) != "RUN001" {
		t.Errorf("ErrorCode() = %s, want RUN001", ErrorCode(err))
	}
}

func TestExporter_Run_NoTables(t *testing.T) {
	var logs bytes.Buffer
	_, err := testExporter(mapSource(nil, nil), &logs).Run(context.Background(), nil)
	if !errors.Is(err, ErrInvalidRegistry) {
		t.Errorf("error = %v, want ErrInvalidRegistry", err)
	}
}

func TestExporter_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := RowSourceFunc(func(ctx context.Context, table TableSpec) ([]Row, error) {
		cancel()
		return nil, ctx.Err()
	})
	var logs bytes.Buffer

	result, err := testExporter(src, &logs).Run(ctx, []TableSpec{kvSpec, stocksSpec})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if result != nil {
		t.Error("cancelled run should return no result")
	}
}

func TestExporter_ExportTable(t *testing.T) {
	src := mapSource(map[string][]Row{"alpaca_stocks": {NewRow("id", 1, "symbol", "AAPL")}}, nil)
	var logs bytes.Buffer

	stmt, err := testExporter(src, &logs).ExportTable(context.Background(), stocksSpec)
	if err != nil {
		t.Fatalf("ExportTable() error = %v", err)
	}
	if !strings.HasPrefix(stmt.Body, "INSERT INTO alpaca_stocks (id, symbol) VALUES") {
		t.Errorf("Body = %s", stmt.Body)
	}

	_, err = testExporter(mapSource(map[string][]Row{
		"kv_store": {NewRow("key", "a"), NewRow("other", "b")},
	}, nil), &logs).ExportTable(context.Background(), kvSpec)
	var te *TableError
	if !errors.As(err, &te) || te.Table != "kv_store" {
		t.Errorf("error = %v, want *TableError for kv_store", err)
	}
}

func TestFetch(t *testing.T) {
	t.Run("nil becomes empty", func(t *testing.T) {
		rows, err := Fetch(context.Background(), mapSource(nil, nil), kvSpec)
		if err != nil || rows == nil || len(rows) != 0 {
			t.Errorf("Fetch() = %#v, %v", rows, err)
		}
	})

	t.Run("error wrapped", func(t *testing.T) {
		_, err := Fetch(context.Background(), mapSource(nil, map[string]error{"kv_store": errors.New("boom")}), kvSpec)
		if !errors.Is(err, ErrSourceUnavailable) {
			t.Errorf("error = %v, want ErrSourceUnavailable", err)
		}
		var te *TableError
		if !errors.As(err, &te) || te.Table != "kv_store" {
			t.Errorf("error = %v, want *TableError", err)
		}
	})
}
