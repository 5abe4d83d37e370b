package notify

import (
	"context"
	"log/slog"

	"github.com/rpggio/tally/internal/domain/inventory"
)

// LogPublisher writes events to a structured logger. It is the default when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs at info level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev inventory.Event) error {
	attrs := []any{
		"type", string(ev.Type),
		"tenant_id", ev.TenantID,
		"session_id", ev.SessionID,
		"session_name", ev.SessionName,
	}
	if ev.TaskID != "" {
		attrs = append(attrs, "task_id", ev.TaskID, "assignee", ev.AssigneeName, "location", ev.LocationName)
	}
	if ev.Counters != nil {
		attrs = append(attrs,
			"expected", ev.Counters.Expected,
			"matched", ev.Counters.Matched,
			"missing", ev.Counters.Missing,
			"unexpected", ev.Counters.Unexpected)
	}
	p.logger.InfoContext(ctx, "inventory event", attrs...)
	return nil
}
