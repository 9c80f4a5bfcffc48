package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flowt-dev/flowt/internal/runlog"
	"github.com/flowt-dev/flowt/pkg/schema"
)

// historyScanLimit bounds how far back a run_id lookup searches.
const historyScanLimit = 500

// handleRun launches a workflow run, optionally waiting for its record.
func (s *FlowtServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := req.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError("workflow is required"), nil
	}
	inputs := mcp.ParseStringMap(req, "inputs", nil)
	wait := req.GetBool("wait", false)

	runID, launchErr := s.manager.Launch(ctx, workflow, inputs)
	if launchErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("launch failed: %v", launchErr)), nil
	}

	if !wait {
		return marshalResult(map[string]any{
			"run_id":   runID,
			"workflow": workflow,
			"status":   schema.RunStatusRunning,
		})
	}

	if waitErr := s.manager.WaitFor(ctx, runID); waitErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("wait interrupted: %v", waitErr)), nil
	}

	record, findErr := s.findRecord(runID, workflow)
	if findErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %s finished but its record was not found: %v", runID, findErr)), nil
	}
	return marshalResult(record)
}

// handleStop requests an in-flight run to stop.
func (s *FlowtServer) handleStop(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	if stopErr := s.manager.Stop(runID); stopErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stop failed: %v", stopErr)), nil
	}
	return marshalResult(map[string]any{"ok": true, "run_id": runID})
}

// handleRunning lists in-flight runs.
func (s *FlowtServer) handleRunning(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"running": s.manager.Running()})
}

// handleWorkflows lists definitions, or returns one in full.
func (s *FlowtServer) handleWorkflows(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if name := req.GetString("name", ""); name != "" {
		wf, err := s.catalog.Load(name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		return marshalResult(wf)
	}

	names, err := s.catalog.List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	summaries := make([]map[string]any, 0, len(names))
	for _, name := range names {
		wf, loadErr := s.catalog.Load(name)
		if loadErr != nil {
			summaries = append(summaries, map[string]any{"name": name, "error": loadErr.Error()})
			continue
		}
		summaries = append(summaries, map[string]any{
			"name":    wf.Name,
			"trigger": wf.Trigger.Type,
			"cron":    wf.Trigger.Cron,
			"steps":   len(wf.Steps),
			"enabled": wf.IsEnabled(),
		})
	}
	return marshalResult(map[string]any{"workflows": summaries})
}

// handleHistory lists run records, or one record by run id.
func (s *FlowtServer) handleHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow := req.GetString("workflow", "")

	if runID := req.GetString("run_id", ""); runID != "" {
		record, err := s.findRecord(runID, workflow)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(record)
	}

	limit := req.GetInt("limit", 20)
	records, err := s.history.List(runlog.Filter{Workflow: workflow, Limit: limit})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": records})
}

// findRecord locates one finalized record by run id, scanning newest
// records first.
func (s *FlowtServer) findRecord(runID, workflow string) (*schema.RunRecord, error) {
	records, err := s.history.List(runlog.Filter{Workflow: workflow, Limit: historyScanLimit})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.RunID == runID {
			return record, nil
		}
	}
	return nil, fmt.Errorf("run %q not found", runID)
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
