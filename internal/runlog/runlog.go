// Package runlog persists run records as JSON Lines, partitioned into
// one file per start date. The JSONL files are the durable source of
// truth for run history; an optional store index accelerates queries
// and is updated best-effort.
package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowt-dev/flowt/internal/store"
	"github.com/flowt-dev/flowt/pkg/schema"
)

const partitionExt = ".jsonl"

// Log appends run records to date-partitioned JSONL files. Append is
// safe for concurrent use; each record lands as exactly one complete
// line.
type Log struct {
	dir    string
	mu     sync.Mutex
	index  store.RunIndex
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithIndex attaches a secondary run index, updated best-effort on
// every append.
func WithIndex(index store.RunIndex) Option {
	return func(l *Log) { l.index = index }
}

// WithLogger sets the process logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates a Log writing under dir, creating it if needed.
func New(dir string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "create runs dir %s: %s", dir, err.Error()).WithCause(err)
	}
	l := &Log{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Append writes the record as one JSON line to the partition named by
// the record's start date. Existing lines are never rewritten. The
// single write under the lock onto an O_APPEND descriptor keeps
// concurrent appends from interleaving.
func (l *Log) Append(record *schema.RunRecord) error {
	if record == nil {
		return schema.NewError(schema.ErrCodeValidation, "record is nil")
	}

	partition, err := l.partitionFor(record)
	if err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "encode run %s: %s", record.RunID, err.Error()).WithCause(err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	err = l.appendLine(partition, line)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if l.index != nil {
		if ierr := l.index.IndexRun(context.Background(), record); ierr != nil {
			l.logger.Warn("run index update failed",
				slog.String("run_id", record.RunID), slog.String("error", ierr.Error()))
		}
	}
	return nil
}

func (l *Log) appendLine(partition string, line []byte) error {
	f, err := os.OpenFile(partition, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "open %s: %s", partition, err.Error()).WithCause(err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "append to %s: %s", partition, err.Error()).WithCause(err)
	}
	return nil
}

// partitionFor derives the partition path from the record's start
// timestamp, in the timestamp's own zone.
func (l *Log) partitionFor(record *schema.RunRecord) (string, error) {
	startedAt, err := time.Parse(time.RFC3339, record.StartedAt)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeValidation,
			"run %s has unparseable started_at %q", record.RunID, record.StartedAt).WithCause(err)
	}
	return filepath.Join(l.dir, startedAt.Format("20060102")+partitionExt), nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Workflow string
	Limit    int
}

// List returns records newest-first. Malformed lines are skipped so one
// corrupt entry never hides the rest of the history.
func (l *Log) List(filter Filter) ([]*schema.RunRecord, error) {
	partitions, err := l.partitions()
	if err != nil {
		return nil, err
	}

	var records []*schema.RunRecord
	// Partitions newest-first; lines within a partition are reversed so
	// the overall order is newest-first too.
	for _, partition := range partitions {
		fromFile, err := l.readPartition(partition)
		if err != nil {
			return nil, err
		}
		for i := len(fromFile) - 1; i >= 0; i-- {
			record := fromFile[i]
			if filter.Workflow != "" && record.Workflow != filter.Workflow {
				continue
			}
			records = append(records, record)
			if filter.Limit > 0 && len(records) >= filter.Limit {
				return records, nil
			}
		}
	}
	return records, nil
}

// LatestRun returns the most recent record for the workflow.
func (l *Log) LatestRun(workflow string) (*schema.RunRecord, error) {
	records, err := l.List(Filter{Workflow: workflow, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no runs for workflow %q", workflow)
	}
	return records[0], nil
}

// partitions lists partition files newest-first.
func (l *Log) partitions() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read runs dir %s: %s", l.dir, err.Error()).WithCause(err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), partitionExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(l.dir, name)
	}
	return paths, nil
}

func (l *Log) readPartition(path string) ([]*schema.RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "open %s: %s", path, err.Error()).WithCause(err)
	}
	defer f.Close()

	var records []*schema.RunRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record schema.RunRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			l.logger.Warn("skipping malformed run log line",
				slog.String("file", path), slog.String("error", err.Error()))
			continue
		}
		records = append(records, &record)
	}
	if err := scanner.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "scan %s: %s", path, err.Error()).WithCause(err)
	}
	return records, nil
}
