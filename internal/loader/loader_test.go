package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowt-dev/flowt/pkg/schema"
)

const validWorkflow = `name: daily_report
description: fetch and summarize
trigger:
  type: schedule
  cron: "0 9 * * *"
steps:
  - id: fetch
    type: http.request
    params:
      url: https://example.com/data
  - id: check
    type: judge_contains
    params:
      target: "{{ fetch.text }}"
      text: ok
  - id: save
    type: file_write
    when:
      step: check
      field: result
      equals: "yes"
    params:
      path: "out/{{ today_ymd }}.txt"
      content: "{{ fetch.text }}"
`

func writeWorkflow(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := New(dir, nil)
	require.NoError(t, err)
	return l, dir
}

func TestLoader_Load_Valid(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "daily_report.yaml", validWorkflow)

	wf, err := l.Load("daily_report")
	require.NoError(t, err)

	assert.Equal(t, "daily_report", wf.Name)
	assert.Equal(t, schema.TriggerSchedule, wf.Trigger.Type)
	assert.Equal(t, "0 9 * * *", wf.Trigger.Cron)
	require.Len(t, wf.Steps, 3)
	assert.Equal(t, "https://example.com/data", wf.Steps[0].Params["url"])

	when := wf.Steps[2].When
	require.NotNil(t, when)
	assert.Equal(t, "check", when.Step)
	assert.Equal(t, "result", when.FieldName())
	assert.Equal(t, schema.MatchEquals, when.MatchMode())
	assert.True(t, when.TrimEnabled())
}

func TestLoader_Load_YmlExtension(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "short.yml", "name: short\ntrigger:\n  type: manual\nsteps:\n  - id: s1\n    type: log\n")

	wf, err := l.Load("short")
	require.NoError(t, err)
	assert.Equal(t, "short", wf.Name)
	assert.True(t, wf.IsEnabled())
}

func TestLoader_Load_NotFound(t *testing.T) {
	l, _ := newTestLoader(t)

	_, err := l.Load("ghost")
	require.Error(t, err)

	ferr := err.(*schema.FlowtError)
	assert.Equal(t, schema.ErrCodeNotFound, ferr.Code)
}

func TestLoader_Load_MissingSteps(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "empty.yaml", "name: empty\ntrigger:\n  type: manual\nsteps: []\n")

	_, err := l.Load("empty")
	require.Error(t, err)
}

func TestLoader_Load_DuplicateStepIDs(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "dup.yaml", `name: dup
trigger:
  type: manual
steps:
  - id: same
    type: log
  - id: same
    type: log
`)

	_, err := l.Load("dup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dup")
}

func TestLoader_Load_ReservedStepID(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "reserved.yaml", `name: reserved
trigger:
  type: manual
steps:
  - id: run_id
    type: log
`)

	_, err := l.Load("reserved")
	require.Error(t, err)
}

func TestLoader_Load_InvalidCron(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "badcron.yaml", `name: badcron
trigger:
  type: schedule
  cron: "not a cron"
steps:
  - id: s1
    type: log
`)

	_, err := l.Load("badcron")
	require.Error(t, err)
}

func TestLoader_Load_ScheduleRequiresCron(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "nocron.yaml", `name: nocron
trigger:
  type: schedule
steps:
  - id: s1
    type: log
`)

	_, err := l.Load("nocron")
	require.Error(t, err)
}

func TestLoader_Load_UnknownTriggerType(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "weird.yaml", `name: weird
trigger:
  type: webhook
steps:
  - id: s1
    type: log
`)

	_, err := l.Load("weird")
	require.Error(t, err)
}

func TestLoader_Load_UnknownMatchMode(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "badmatch.yaml", `name: badmatch
trigger:
  type: manual
steps:
  - id: first
    type: log
  - id: second
    type: log
    when:
      step: first
      equals: yes
      match: regex
`)

	_, err := l.Load("badmatch")
	require.Error(t, err)
}

func TestLoader_Load_InvalidYAML(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "broken.yaml", "name: [unclosed\n")

	_, err := l.Load("broken")
	require.Error(t, err)
}

func TestLoader_List(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "beta.yaml", validWorkflow)
	writeWorkflow(t, dir, "alpha.yml", validWorkflow)
	writeWorkflow(t, dir, "notes.txt", "not a workflow")

	names, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)
}

func TestLoader_LoadAll_SkipsInvalid(t *testing.T) {
	l, dir := newTestLoader(t)
	writeWorkflow(t, dir, "good.yaml", validWorkflow)
	writeWorkflow(t, dir, "bad.yaml", "steps: nope\n")

	workflows, err := l.LoadAll()
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "daily_report", workflows[0].Name)
}
