package schema

// Trigger types.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

// Workflow is the declarative workflow definition loaded from YAML.
// It is immutable for the duration of a run; edits take effect on the
// next load.
type Workflow struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Folder      string  `yaml:"folder,omitempty" json:"folder,omitempty"`
	Trigger     Trigger `yaml:"trigger" json:"trigger"`
	Steps       []Step  `yaml:"steps" json:"steps"`
	Enabled     *bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the workflow participates in scheduling.
// Unset defaults to enabled.
func (w *Workflow) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Trigger describes how a workflow run starts.
type Trigger struct {
	Type string `yaml:"type" json:"type"`
	Cron string `yaml:"cron,omitempty" json:"cron,omitempty"` // 5-field cron, schedule triggers only
}

// Step is one declared unit of work within a workflow.
type Step struct {
	ID     string         `yaml:"id" json:"id"`
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	When   *Condition     `yaml:"when,omitempty" json:"when,omitempty"`
}

// Condition match modes.
const (
	MatchEquals   = "equals"
	MatchContains = "contains"
)

// DefaultConditionField is the step output field a condition reads when
// none is specified.
const DefaultConditionField = "text"

// Condition gates a step on a prior step's output. Trim and
// CaseInsensitive default to true when unset.
type Condition struct {
	Step            string `yaml:"step" json:"step"`
	Field           string `yaml:"field,omitempty" json:"field,omitempty"`
	Equals          any    `yaml:"equals" json:"equals"`
	Match           string `yaml:"match,omitempty" json:"match,omitempty"`
	Trim            *bool  `yaml:"trim,omitempty" json:"trim,omitempty"`
	CaseInsensitive *bool  `yaml:"case_insensitive,omitempty" json:"case_insensitive,omitempty"`
}

// FieldName returns the output field to compare, applying the default.
func (c *Condition) FieldName() string {
	if c.Field == "" {
		return DefaultConditionField
	}
	return c.Field
}

// MatchMode returns the match mode, applying the default.
func (c *Condition) MatchMode() string {
	if c.Match == "" {
		return MatchEquals
	}
	return c.Match
}

// TrimEnabled reports whether string values are trimmed before comparison.
func (c *Condition) TrimEnabled() bool {
	return c.Trim == nil || *c.Trim
}

// CaseInsensitiveEnabled reports whether string comparison folds case.
func (c *Condition) CaseInsensitiveEnabled() bool {
	return c.CaseInsensitive == nil || *c.CaseInsensitive
}

// Run statuses. A record carries StatusRunning only while in flight;
// the persisted log line always has a terminal status.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusStopped = "stopped"
)

// Step record statuses.
const (
	StepStatusSuccess = "success"
	StepStatusFailed  = "failed"
	StepStatusSkipped = "skipped"
)

// RunRecord is the immutable execution record appended to the run log.
// Timestamps are ISO-8601 strings in the engine's fixed timezone so log
// lines are byte-stable across restarts and hosts.
type RunRecord struct {
	RunID     string       `json:"run_id"`
	Workflow  string       `json:"workflow"`
	Status    string       `json:"status"`
	StartedAt string       `json:"started_at"`
	EndedAt   string       `json:"ended_at,omitempty"`
	Steps     []StepRecord `json:"steps"`
	Error     *string      `json:"error"`
}

// StepRecord is the per-step outcome within a RunRecord.
type StepRecord struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ReservedContextKeys are the context variables seeded at run start.
// Step IDs must not collide with any of these; the loader rejects such
// workflows.
var ReservedContextKeys = []string{
	"run_id",
	"workflow",
	"now",
	"today",
	"yesterday",
	"tomorrow",
	"today_ymd",
	"now_ymd_hms",
	"base_dir",
}

// IsReservedContextKey reports whether name is a reserved context variable.
func IsReservedContextKey(name string) bool {
	for _, k := range ReservedContextKeys {
		if k == name {
			return true
		}
	}
	return false
}
