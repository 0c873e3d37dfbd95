package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

const (
	headerRule  = "-- ============================================================================"
	sectionRule = "-- ----------------------------------------------------------------------------"
)

// Artifact is the SQL document produced by one run.
type Artifact struct {
	RunID       string
	GeneratedAt time.Time

	// Tables is the full manifest in registry order, including tables that
	// failed and have no section.
	Tables []TableSpec

	// Sections holds one compiled statement per successful table, in registry order.
	Sections []CompiledStatement
}

// Checksum returns an xxh3 digest of the section text. It ignores the header,
// so two runs over identical data produce the same checksum.
func (a *Artifact) Checksum() string {
	h := xxh3.New()
	for _, s := range a.Sections {
		_, _ = io.WriteString(h, s.Text())
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Bytes renders the full document.
func (a *Artifact) Bytes() []byte {
	var b strings.Builder

	b.WriteString(headerRule + "\n")
	b.WriteString("-- Seed data export\n")
	b.WriteString("-- Generated: " + a.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	if a.RunID != "" {
		b.WriteString("-- Run ID: " + a.RunID + "\n")
	}
	b.WriteString("-- Tables (" + strconv.Itoa(len(a.Tables)) + "):\n")
	for i, t := range a.Tables {
		b.WriteString("--   " + strconv.Itoa(i+1) + ". " + manifestLine(t) + "\n")
	}
	b.WriteString(headerRule + "\n")

	for _, s := range a.Sections {
		b.WriteString("\n")
		b.WriteString(s.Text())
	}

	b.WriteString("\n")
	b.WriteString(headerRule + "\n")
	b.WriteString(fmt.Sprintf("-- End of seed data export: %d of %d tables exported\n", len(a.Sections), len(a.Tables)))
	b.WriteString("-- Checksum: xxh3:" + a.Checksum() + "\n")
	b.WriteString(headerRule + "\n")

	return []byte(b.String())
}

// WriteTo writes the full document to w.
func (a *Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.Bytes())
	return int64(n), err
}

func manifestLine(t TableSpec) string {
	var b strings.Builder
	b.WriteString(t.Name)
	if t.Group != "" {
		b.WriteString(" [" + t.Group + "]")
	}
	b.WriteString(" pk=" + t.PrimaryKey)
	b.WriteString(" conflict=" + t.ConflictColumn())
	if len(t.ExcludeColumns) > 0 {
		b.WriteString(" exclude=" + strings.Join(t.ExcludeColumns, ","))
	}
	if len(t.JSONColumns) > 0 {
		b.WriteString(" json=" + strings.Join(t.JSONColumns, ","))
	}
	return b.String()
}

// WriteFile replaces the file at path with data. The data goes to a temporary
// file in the same directory first and is renamed into place, so readers see
// either the old artifact or the new one.
func WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteArtifact, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteArtifact, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrWriteArtifact, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteArtifact, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteArtifact, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteArtifact, err)
	}
	return nil
}
