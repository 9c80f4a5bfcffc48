// Package loader reads workflow definitions from a directory of YAML
// files and validates them structurally (JSON Schema) and semantically
// before they reach the engine.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/flowt-dev/flowt/pkg/schema"
)

const schemaID = "https://flowt.dev/schemas/workflow.json"

var yamlExtensions = []string{".yaml", ".yml"}

// cronParser accepts standard 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Loader reads and validates workflows from a directory. A workflow's
// name is its file name without extension. Safe for concurrent use.
type Loader struct {
	dir      string
	compiled *jsonschema.Schema
	logger   *slog.Logger
}

// New creates a Loader for dir, compiling the embedded workflow schema.
func New(dir string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(workflowSchemaJSON))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInternal, "unmarshal workflow schema: %s", err.Error()).WithCause(err)
	}
	if err := compiler.AddResource(schemaID, doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInternal, "add workflow schema: %s", err.Error()).WithCause(err)
	}
	compiled, err := compiler.Compile(schemaID)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInternal, "compile workflow schema: %s", err.Error()).WithCause(err)
	}

	return &Loader{dir: dir, compiled: compiled, logger: logger}, nil
}

// List returns the names of all workflow files in the directory, sorted.
func (l *Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read workflows dir %s: %s", l.dir, err.Error()).WithCause(err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		for _, allowed := range yamlExtensions {
			if ext == allowed {
				names = append(names, strings.TrimSuffix(entry.Name(), ext))
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads, validates and decodes the named workflow.
func (l *Loader) Load(name string) (*schema.Workflow, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read %s: %s", path, err.Error()).WithCause(err)
	}

	return l.Parse(name, data)
}

// LoadAll loads every workflow in the directory, skipping (and logging)
// invalid files so one broken definition does not take down the sweep.
func (l *Loader) LoadAll() ([]*schema.Workflow, error) {
	names, err := l.List()
	if err != nil {
		return nil, err
	}

	workflows := make([]*schema.Workflow, 0, len(names))
	for _, name := range names {
		wf, err := l.Load(name)
		if err != nil {
			l.logger.Warn("skipping invalid workflow",
				slog.String("workflow", name), slog.String("error", err.Error()))
			continue
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// Parse validates and decodes one workflow document.
func (l *Loader) Parse(name string, data []byte) (*schema.Workflow, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"workflow %q: invalid YAML: %s", name, err.Error()).WithCause(err)
	}

	doc, err := toJSONValue(raw)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"workflow %q: not JSON-representable: %s", name, err.Error()).WithCause(err)
	}
	if err := l.compiled.Validate(doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"workflow %q: %s", name, err.Error()).WithCause(err)
	}

	var wf schema.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"workflow %q: decode: %s", name, err.Error()).WithCause(err)
	}

	if err := validateSemantics(&wf).ToError(); err != nil {
		ferr := err.(*schema.FlowtError)
		ferr.Message = fmt.Sprintf("workflow %q: %s", name, ferr.Message)
		return nil, ferr
	}
	return &wf, nil
}

// validateSemantics covers the rules JSON Schema cannot express.
func validateSemantics(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	seen := make(map[string]struct{}, len(wf.Steps))
	for i, step := range wf.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		if _, dup := seen[step.ID]; dup {
			result.AddError(path, "duplicate_step_id",
				fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = struct{}{}

		if schema.IsReservedContextKey(step.ID) {
			result.AddError(path, "reserved_step_id",
				fmt.Sprintf("step id %q collides with a reserved context variable", step.ID))
		}
	}

	switch wf.Trigger.Type {
	case schema.TriggerSchedule:
		if wf.Trigger.Cron == "" {
			result.AddError("trigger", "missing_cron", "schedule trigger requires a cron expression")
		} else if _, err := cronParser.Parse(wf.Trigger.Cron); err != nil {
			result.AddError("trigger", "invalid_cron",
				fmt.Sprintf("invalid cron expression %q: %s", wf.Trigger.Cron, err.Error()))
		}
	case schema.TriggerManual:
		if wf.Trigger.Cron != "" {
			result.AddError("trigger", "unexpected_cron", "manual trigger must not set a cron expression")
		}
	}

	return result
}

// resolve finds the file backing a workflow name, trying each allowed
// extension.
func (l *Loader) resolve(name string) (string, error) {
	for _, ext := range yamlExtensions {
		path := filepath.Join(l.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found in %s", name, l.dir)
}

// toJSONValue round-trips a decoded YAML document through JSON so the
// schema validator sees json.Number values.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
