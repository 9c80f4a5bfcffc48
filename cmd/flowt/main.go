package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flowt-dev/flowt/internal/actions"
	"github.com/flowt-dev/flowt/internal/engine"
	"github.com/flowt-dev/flowt/internal/loader"
	"github.com/flowt-dev/flowt/internal/logging"
	"github.com/flowt-dev/flowt/internal/runlog"
	"github.com/flowt-dev/flowt/internal/scheduler"
	"github.com/flowt-dev/flowt/internal/store"
	"github.com/flowt-dev/flowt/internal/streaming"
	"github.com/flowt-dev/flowt/pkg/mcp"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		os.Exit(cmdServe())
	case "mcp":
		os.Exit(cmdMCP())
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "list":
		os.Exit(cmdList())
	case "history":
		os.Exit(cmdHistory(os.Args[2:]))
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: flowt <command>

commands:
  serve                    start the daemon (scheduler + run manager)
  mcp                      serve the MCP control surface on stdio
  run <workflow> [k=v...]  execute one workflow and wait for it
  list                     list available workflows
  history [workflow]       show recent runs, newest first
  version                  print version`)
}

// app bundles the wired components shared by every command.
type app struct {
	cfg      Config
	logger   *slog.Logger
	index    *store.LibSQLIndex
	runLog   *runlog.Log
	loader   *loader.Loader
	registry *actions.Registry
	executor *engine.Executor
	manager  *engine.Manager
	hub      *streaming.MemoryHub
}

// newApp wires the full stack from configuration. The caller must Close.
func newApp() (*app, error) {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", cfg.BaseDir, err)
	}
	if err := os.MkdirAll(cfg.WorkflowsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workflows dir %s: %w", cfg.WorkflowsDir, err)
	}

	index, err := store.NewLibSQLIndex(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := index.Migrate(context.Background()); err != nil {
		index.Close()
		return nil, err
	}

	runLog, err := runlog.New(cfg.RunsDir, runlog.WithIndex(index), runlog.WithLogger(logger))
	if err != nil {
		index.Close()
		return nil, err
	}

	wfLoader, err := loader.New(cfg.WorkflowsDir, logger)
	if err != nil {
		index.Close()
		return nil, err
	}

	registry := actions.NewRegistry()
	sub, err := actions.RegisterBuiltins(registry, logger)
	if err != nil {
		index.Close()
		return nil, err
	}

	hub := streaming.NewMemoryHub()
	executor := engine.New(registry, runLog, engine.Options{
		BaseDir:     cfg.BaseDir,
		StepTimeout: time.Duration(cfg.StepTimeoutSec) * time.Second,
		Hub:         hub,
		Logger:      logger,
	})
	executor.BindSubWorkflows(sub, wfLoader)

	manager := engine.NewManager(executor, wfLoader, cfg.PoolSize, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		index:    index,
		runLog:   runLog,
		loader:   wfLoader,
		registry: registry,
		executor: executor,
		manager:  manager,
		hub:      hub,
	}, nil
}

func (a *app) close() {
	a.manager.Shutdown()
	if err := a.index.Close(); err != nil {
		a.logger.Warn("closing run index", slog.String("error", err.Error()))
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func cmdServe() int {
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	defer a.close()

	sched := scheduler.New(a.loader, a.manager, a.logger)
	if err := sched.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	defer sched.Stop()

	a.logger.Info("flowt daemon started",
		slog.String("version", version),
		slog.String("workflows_dir", a.cfg.WorkflowsDir),
		slog.String("runs_dir", a.cfg.RunsDir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	a.logger.Info("shutting down", slog.String("signal", sig.String()))
	return 0
}

func cmdMCP() int {
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	defer a.close()

	srv := mcp.NewFlowtServer(mcp.FlowtServerDeps{
		Manager: a.manager,
		Catalog: a.loader,
		History: a.runLog,
		Hub:     a.hub,
		Logger:  a.logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = srv.ForwardEvents(ctx, streaming.EventFilter{})
	}()

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	return 0
}

func cmdRun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: flowt run <workflow> [key=value ...]")
		return 2
	}
	workflowName := args[0]
	extra, err := parseExtras(args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 2
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	defer a.close()

	wf, err := a.loader.Load(workflowName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}

	record, runErr := a.executor.Run(context.Background(), wf, engine.RunOptions{Extra: extra})

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	fmt.Println(string(out))

	if runErr != nil {
		return 1
	}
	return 0
}

func cmdList() int {
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	defer a.close()

	workflows, err := a.loader.LoadAll()
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	for _, wf := range workflows {
		trigger := wf.Trigger.Type
		if wf.Trigger.Cron != "" {
			trigger += " (" + wf.Trigger.Cron + ")"
		}
		enabled := ""
		if !wf.IsEnabled() {
			enabled = " [disabled]"
		}
		fmt.Printf("%s\t%s\t%d steps%s\n", wf.Name, trigger, len(wf.Steps), enabled)
	}
	return 0
}

func cmdHistory(args []string) int {
	workflow := ""
	if len(args) > 0 {
		workflow = args[0]
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	defer a.close()

	summaries, err := a.index.ListRuns(context.Background(), workflow, 50)
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowt:", err)
		return 1
	}
	for _, s := range summaries {
		line := fmt.Sprintf("%s\t%s\t%s\t%s", s.RunID, s.Workflow, s.Status, s.StartedAt)
		if s.Error != nil {
			line += "\t" + *s.Error
		}
		fmt.Println(line)
	}
	return 0
}

// parseExtras turns key=value arguments into run context variables.
func parseExtras(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	extra := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", arg)
		}
		extra[key] = value
	}
	return extra, nil
}
