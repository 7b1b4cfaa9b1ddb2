// Package telemetry emits structured lifecycle events for a pipeline run.
// It generalizes the teacher's internal/ports.EventPublisher/DomainEvent
// pair (synchronous dispatch, typed event-type constants) to Nexus's fixed
// event vocabulary, with a logging-backed sink as the only implementation
// that records events (NopEmitter discards them) — Nexus has no UI layer
// to notify, so the publish/subscribe indirection
// collapses to "format and log".
package telemetry

import (
	"context"

	"github.com/nexus-fleet/nexus/internal/logger"
)

const (
	EventPipelineStart     = "pipeline.start"
	EventPipelineStop      = "pipeline.stop"
	EventPipelineException = "pipeline.exception"
	EventTaskStart         = "task.start"
	EventTaskStop          = "task.stop"
	EventTaskException     = "task.exception"
	EventCommandStart      = "command.start"
	EventCommandStop       = "command.stop"
	EventSSHConnectStart   = "ssh.connect.start"
	EventSSHConnectStop    = "ssh.connect.stop"
)

// Event is one lifecycle occurrence, identified by Type, with a flat set of
// structured fields describing it.
type Event struct {
	Type   string
	Fields map[string]any
}

// Emitter publishes telemetry events. Implementations must be safe for
// concurrent use: pipeline phases, task runners, and the connection pool
// all emit concurrently.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// LogEmitter emits events as structured log entries.
type LogEmitter struct {
	log *logger.Logger
}

// NewLogEmitter returns an Emitter backed by log.
func NewLogEmitter(log *logger.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

// Emit writes event as a log line at a level derived from its type suffix:
// "*.exception" logs at Warn, everything else at Info.
func (e *LogEmitter) Emit(_ context.Context, event Event) {
	if e == nil || e.log == nil {
		return
	}
	entry := e.log.WithFields(event.Fields)
	if isException(event.Type) {
		entry.Warn(event.Type)
		return
	}
	entry.Info(event.Type)
}

func isException(eventType string) bool {
	return len(eventType) > 10 && eventType[len(eventType)-10:] == ".exception"
}

// NopEmitter discards every event. Useful for tests exercising orchestration
// logic without asserting on telemetry output.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}
