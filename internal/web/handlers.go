package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/seedexport/internal/core"
	"github.com/JonMunkholm/seedexport/internal/logging"
)

// Response headers carrying run metadata alongside the SQL body.
const (
	headerRunID        = "X-Seed-Run-ID"
	headerChecksum     = "X-Seed-Checksum"
	headerTablesFailed = "X-Seed-Tables-Failed"
	headerShared       = "X-Seed-Shared-Run"
)

// tableView is the JSON form of a registry entry.
type tableView struct {
	Name             string   `json:"name"`
	Group            string   `json:"group,omitempty"`
	PrimaryKey       string   `json:"primary_key"`
	ConflictColumn   string   `json:"conflict_column"`
	UniqueConstraint string   `json:"unique_constraint,omitempty"`
	ExcludeColumns   []string `json:"exclude_columns,omitempty"`
	JSONColumns      []string `json:"json_columns,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"source": s.cfg.Source.Kind,
		"tables": s.registry.Len(),
	})
}

// handleListTables returns the registry in export order.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	all := s.registry.All()
	views := make([]tableView, 0, len(all))
	for _, t := range all {
		views = append(views, tableView{
			Name:             t.Name,
			Group:            t.Group,
			PrimaryKey:       t.PrimaryKey,
			ConflictColumn:   t.ConflictColumn(),
			UniqueConstraint: t.UniqueConstraint,
			ExcludeColumns:   t.ExcludeColumns,
			JSONColumns:      t.JSONColumns,
		})
	}
	writeJSON(w, views)
}

// handleExport runs a full export and returns the artifact. Concurrent
// requests share one run; the run is detached from any single request so a
// disconnecting client does not cancel it for the others.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	v, err, shared := s.exports.Do("export", func() (any, error) {
		ctx := WithRequestMetadata(context.WithoutCancel(r.Context()), r)
		ctx, cancel := context.WithTimeout(ctx, s.exportTimeout())
		defer cancel()

		started := time.Now()
		result, err := s.exporter.Run(ctx, s.registry.All())
		s.history.Record(ctx, started, result, err)
		return result, err
	})
	result, _ := v.(*core.ExportResult)

	if err != nil {
		var outcomes []core.TableOutcome
		if result != nil {
			outcomes = result.Outcomes
		}
		s.respondErrorWithOutcomes(w, r, err, statusFor(err), outcomes)
		return
	}

	body := result.Artifact.Bytes()
	logger.Info("artifact served",
		"run_id", result.Artifact.RunID,
		"shared", shared,
		"bytes", len(body),
	)

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Disposition", `attachment; filename="seed-data.sql"`)
	h.Set(headerRunID, result.Artifact.RunID)
	h.Set(headerChecksum, result.Artifact.Checksum())
	h.Set(headerTablesFailed, strconv.Itoa(result.Failed()))
	h.Set(headerShared, strconv.FormatBool(shared))
	_, _ = w.Write(body)
}

// handleExportTable compiles a single registered table.
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	table, ok := s.registry.Get(name)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrUnknownTable, name), http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.exportTimeout())
	defer cancel()

	stmt, err := s.exporter.ExportTable(ctx, table)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(stmt.Text()))
}

// handleListRuns returns recent export runs, newest first. ?limit=N caps the list.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, r, fmt.Errorf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, s.history.Recent(limit))
}
