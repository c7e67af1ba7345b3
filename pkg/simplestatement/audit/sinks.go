package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tendant/simple-statement/pkg/simplestatement"
)

// RepositorySink appends events to the audit table.
type RepositorySink struct {
	repo simplestatement.AuditRepository
}

func NewRepositorySink(repo simplestatement.AuditRepository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Record(ctx context.Context, event *simplestatement.AuditEvent) error {
	return s.repo.AppendAudit(ctx, event)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, event *simplestatement.AuditEvent) error {
	attrs := []any{
		"event_id", event.ID,
		"action", event.Action,
		"customer_id", event.CustomerID,
		"ip", event.IP,
	}
	if event.StatementID != nil {
		attrs = append(attrs, "statement_id", *event.StatementID)
	}
	s.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

// Multi fans an event out to every sink. All sinks are attempted and their
// errors joined.
type Multi []simplestatement.AuditSink

func (m Multi) Record(ctx context.Context, event *simplestatement.AuditEvent) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
