package models

import "time"

// ResultSummary is the terminal RESULT.json record of a run. Exactly one is
// written per run.
type ResultSummary struct {
	OK             bool   `json:"ok"`
	Total          *int   `json:"total,omitempty"`
	PagesProcessed *int   `json:"pagesProcessed,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Succeeded builds the summary of a completed harvest.
func Succeeded(total, pages int) *ResultSummary {
	return &ResultSummary{OK: true, Total: &total, PagesProcessed: &pages}
}

// Failed builds the summary of a run that stopped on a fatal condition.
func Failed(reason string) *ResultSummary {
	return &ResultSummary{OK: false, Reason: reason}
}

// ExtractedRow is one non-empty row of the results table.
type ExtractedRow struct {
	RunID   string   `json:"runId,omitempty"`
	Page    int      `json:"page"`
	Columns []string `json:"columns"`
}

// Run states reported by RunStatus.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunStatus tracks one harvest run for the API.
type RunStatus struct {
	ID         string         `json:"id"`
	State      string         `json:"state"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Checkpoint string         `json:"checkpoint,omitempty"`
	Result     *ResultSummary `json:"result,omitempty"`
	Error      *ErrorDetail   `json:"error,omitempty"`
}
