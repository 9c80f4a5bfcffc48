// Package store provides the queryable run index. The JSONL run log is
// the source of truth; the index is a secondary structure for history
// queries and is rebuildable from the log.
package store

import (
	"context"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// RunSummary is one indexed run, without per-step detail.
type RunSummary struct {
	RunID     string  `json:"run_id"`
	Workflow  string  `json:"workflow"`
	Status    string  `json:"status"`
	StartedAt string  `json:"started_at"`
	EndedAt   string  `json:"ended_at,omitempty"`
	Error     *string `json:"error,omitempty"`
	StepCount int     `json:"step_count"`
}

// RunIndex stores and queries run summaries.
type RunIndex interface {
	// IndexRun upserts the record's summary.
	IndexRun(ctx context.Context, record *schema.RunRecord) error
	// ListRuns returns runs newest-first, optionally filtered by
	// workflow name. limit <= 0 means no limit.
	ListRuns(ctx context.Context, workflow string, limit int) ([]RunSummary, error)
	// LatestRun returns the most recent run of the workflow.
	LatestRun(ctx context.Context, workflow string) (*RunSummary, error)
	Migrate(ctx context.Context) error
	Close() error
}
