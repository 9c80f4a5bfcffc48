package mcp

import (
	"context"
	"log/slog"

	"github.com/flowt-dev/flowt/internal/streaming"
)

// ForwardEvents subscribes to the hub and pushes run lifecycle events to
// every connected client as "notifications/message". Best-effort: send
// failures are logged, never raised. Blocks until ctx is cancelled.
func (s *FlowtServer) ForwardEvents(ctx context.Context, filter streaming.EventFilter) error {
	if s.hub == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	events, cancel, err := s.hub.Subscribe(ctx, filter)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			s.mcpServer.SendNotificationToAllClients("notifications/message", map[string]any{
				"run_id":     event.RunID,
				"workflow":   event.Workflow,
				"step_id":    event.StepID,
				"event_type": event.EventType,
				"payload":    event.Payload,
			})
			s.logger.Debug("event forwarded",
				slog.String("run_id", event.RunID),
				slog.String("event_type", event.EventType))
		}
	}
}
