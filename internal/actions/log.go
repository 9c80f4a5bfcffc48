package actions

import (
	"context"
	"log/slog"
	"strings"
)

// LogAction writes a message to the process log at a chosen level.
// Useful for leaving breadcrumbs about intermediate step outputs.
type LogAction struct {
	logger *slog.Logger
}

// NewLogAction creates a LogAction writing through logger (slog.Default
// when nil).
func NewLogAction(logger *slog.Logger) *LogAction {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAction{logger: logger}
}

// Name returns "log".
func (a *LogAction) Name() string { return "log" }

// Execute logs params["message"] at params["level"] (debug/info/warn/
// error, default info) and echoes the message back.
func (a *LogAction) Execute(ctx context.Context, params map[string]any, _ map[string]any) (map[string]any, error) {
	message := stringParam(params, "message", "")
	level := strings.ToLower(stringParam(params, "level", "info"))

	switch level {
	case "debug":
		a.logger.DebugContext(ctx, message)
	case "warn", "warning":
		a.logger.WarnContext(ctx, message)
	case "error":
		a.logger.ErrorContext(ctx, message)
	default:
		a.logger.InfoContext(ctx, message)
	}

	return map[string]any{
		"logged":  true,
		"message": message,
	}, nil
}
