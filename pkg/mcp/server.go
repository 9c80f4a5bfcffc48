// Package mcp exposes the engine over the Model Context Protocol so
// agents can launch, stop and inspect workflow runs through stdio.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flowt-dev/flowt/internal/engine"
	"github.com/flowt-dev/flowt/internal/runlog"
	"github.com/flowt-dev/flowt/internal/streaming"
	"github.com/flowt-dev/flowt/pkg/schema"
)

// RunManager launches and controls workflow runs. Satisfied by
// *engine.Manager.
type RunManager interface {
	Launch(ctx context.Context, workflowName string, extra map[string]any) (string, error)
	Stop(runID string) error
	WaitFor(ctx context.Context, runID string) error
	Running() []engine.RunInfo
}

// WorkflowCatalog lists and loads workflow definitions. Satisfied by
// *loader.Loader.
type WorkflowCatalog interface {
	List() ([]string, error)
	Load(name string) (*schema.Workflow, error)
}

// RunHistory reads finalized run records. Satisfied by *runlog.Log.
type RunHistory interface {
	List(filter runlog.Filter) ([]*schema.RunRecord, error)
}

// FlowtServerDeps holds the dependencies for creating a FlowtServer.
type FlowtServerDeps struct {
	Manager RunManager
	Catalog WorkflowCatalog
	History RunHistory
	Hub     streaming.EventHub
	Logger  *slog.Logger
}

// FlowtServer wraps an MCP server with flowt-specific tool handlers.
type FlowtServer struct {
	manager   RunManager
	catalog   WorkflowCatalog
	history   RunHistory
	hub       streaming.EventHub
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFlowtServer creates a FlowtServer with all 5 tools registered.
func NewFlowtServer(deps FlowtServerDeps) *FlowtServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &FlowtServer{
		manager: deps.Manager,
		catalog: deps.Catalog,
		history: deps.History,
		hub:     deps.Hub,
		logger:  logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowt",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Flowt is a workflow automation engine. Use flowt.run to launch a workflow, flowt.stop to stop an in-flight run, flowt.running to see active runs, flowt.workflows to list definitions, and flowt.history to inspect past run records."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowtServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowtServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *FlowtServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: stopTool(), Handler: s.handleStop},
		{Tool: runningTool(), Handler: s.handleRunning},
		{Tool: workflowsTool(), Handler: s.handleWorkflows},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("flowt.run",
		mcp.WithDescription("Launch a workflow run"),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Name of the workflow to run")),
		mcp.WithObject("inputs", mcp.Description("Extra context variables for the run")),
		mcp.WithBoolean("wait", mcp.Description("Wait for the run to finish and return its record (default: false)")),
	)
}

func stopTool() mcp.Tool {
	return mcp.NewTool("flowt.stop",
		mcp.WithDescription("Request an in-flight run to stop at its next step boundary"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run to stop")),
	)
}

func runningTool() mcp.Tool {
	return mcp.NewTool("flowt.running",
		mcp.WithDescription("List in-flight runs"),
	)
}

func workflowsTool() mcp.Tool {
	return mcp.NewTool("flowt.workflows",
		mcp.WithDescription("List available workflow definitions"),
		mcp.WithString("name", mcp.Description("Return the full definition of one workflow instead of the listing")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("flowt.history",
		mcp.WithDescription("List finalized run records, newest first"),
		mcp.WithString("workflow", mcp.Description("Only runs of this workflow")),
		mcp.WithString("run_id", mcp.Description("Return the single record with this run id")),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default: 20)")),
	)
}
