package core

import (
	"context"
	"sync"
	"time"
)

// DefaultHistorySize is the number of runs kept when NewHistory gets n <= 0.
const DefaultHistorySize = 50

// RunRecord summarizes one export run.
type RunRecord struct {
	RunID      string         `json:"runId,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	DurationMS int64          `json:"durationMs"`
	Tables     int            `json:"tables"`
	Exported   int            `json:"exported"`
	Failed     int            `json:"failed"`
	Checksum   string         `json:"checksum,omitempty"`
	Code       string         `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Outcomes   []TableOutcome `json:"outcomes,omitempty"`
}

// History keeps the most recent runs in memory, newest first.
type History struct {
	mu      sync.RWMutex
	max     int
	records []RunRecord
}

// NewHistory creates a History holding at most n records.
func NewHistory(n int) *History {
	if n <= 0 {
		n = DefaultHistorySize
	}
	return &History{max: n}
}

// Record stores the outcome of a run. result may be nil when the run failed
// before any table was attempted. Client metadata comes from ctx.
func (h *History) Record(ctx context.Context, started time.Time, result *ExportResult, err error) RunRecord {
	rec := RunRecord{
		StartedAt: started.UTC(),
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	}
	if result != nil {
		rec.RunID = result.Artifact.RunID
		rec.DurationMS = result.Duration.Milliseconds()
		rec.Tables = len(result.Artifact.Tables)
		rec.Exported = len(result.Artifact.Sections)
		rec.Failed = result.Failed()
		rec.Outcomes = result.Outcomes
		if err == nil {
			rec.Checksum = result.Artifact.Checksum()
		}
	}
	if err != nil {
		rec.Code = ErrorCode(err)
		rec.Error = err.Error()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append([]RunRecord{rec}, h.records...)
	if len(h.records) > h.max {
		h.records = h.records[:h.max]
	}
	return rec
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (h *History) Recent(limit int) []RunRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RunRecord, n)
	copy(out, h.records[:n])
	return out
}

// Last returns the most recent record, if any.
func (h *History) Last() (RunRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return RunRecord{}, false
	}
	return h.records[0], true
}
