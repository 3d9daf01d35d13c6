package events

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldattr"

	"github.com/flagforge/go-events-pipeline/internal/eventlog"
)

const (
	// DefaultCapacity bounds both the inbox and the outbox event buffer.
	DefaultCapacity = 10000

	// DefaultFlushInterval is how often the dispatcher flushes the outbox.
	DefaultFlushInterval = 5 * time.Second

	// DefaultContextKeysFlushInterval is how often the deduplicator's
	// recently-seen set is cleared.
	DefaultContextKeysFlushInterval = 5 * time.Minute

	// DefaultDiagnosticRecordingInterval is how often diagnostic-stats
	// events are sent.
	DefaultDiagnosticRecordingInterval = 15 * time.Minute

	// MinimumDiagnosticRecordingInterval is the floor enforced on a
	// caller-supplied diagnostic interval.
	MinimumDiagnosticRecordingInterval = 60 * time.Second

	// DefaultContextKeysCapacity bounds the default deduplicator's LRU.
	DefaultContextKeysCapacity = 1000

	// DefaultWorkerCount is the number of flush delivery workers.
	DefaultWorkerCount = 5
)

// EventsConfiguration holds all behavior-affecting options for the event
// pipeline. It has no exported methods and does no I/O; population from a file or
// environment is a concern of internal/events/configfile, not of this
// struct itself.
type EventsConfiguration struct {
	// Capacity bounds the outbox event buffer (and by extension the
	// inbox, which shares the bound).
	Capacity int

	// FlushInterval is how often the dispatcher flushes automatically.
	FlushInterval time.Duration

	// DiagnosticRecordingInterval is how often diagnostic-stats events
	// are sent. Zero means DefaultDiagnosticRecordingInterval; a positive
	// value below MinimumDiagnosticRecordingInterval is raised to that
	// minimum. Whether diagnostics are sent at all is decided by
	// DiagnosticsManager, not by this field.
	DiagnosticRecordingInterval time.Duration

	// AllAttributesPrivate, when true, redacts every context attribute
	// in serialized output.
	AllAttributesPrivate bool

	// PrivateAttributes lists additional attribute references to
	// redact regardless of AllAttributesPrivate.
	PrivateAttributes []ldattr.Ref

	// InlineUsers, when true, has feature/debug events carry a full
	// (possibly redacted) "context" object. When false, they carry only
	// "contextKeys" (kind/key pairs), the same reduced form custom events
	// always use, and rely on a separately delivered index event to
	// register the full context.
	InlineUsers bool

	// EventsURI and DiagnosticURI are the ingest endpoints passed to
	// the EventSender.
	EventsURI     string
	DiagnosticURI string

	// EventSender delivers serialized payloads. Required.
	EventSender EventSender

	// ContextDeduplicator tracks recently-seen contexts. Nil disables
	// deduplication: every feature and custom event is treated as a first
	// sighting of its context and gets its own index event.
	ContextDeduplicator ContextDeduplicator

	// DiagnosticsManager, if non-nil, enables diagnostic-init/-stats
	// events.
	DiagnosticsManager *DiagnosticsManager

	// WorkerCount overrides DefaultWorkerCount; zero or negative means
	// use the default.
	WorkerCount int

	// Loggers receives structured log output.
	Loggers eventlog.Loggers

	// currentTimeProvider exists only to let tests control the clock
	// deterministically; production callers leave it nil.
	currentTimeProvider func() time.Time
}

func (c EventsConfiguration) now() time.Time {
	if c.currentTimeProvider != nil {
		return c.currentTimeProvider()
	}
	return time.Now()
}

func (c EventsConfiguration) effectiveWorkerCount() int {
	if c.WorkerCount > 0 {
		return c.WorkerCount
	}
	return DefaultWorkerCount
}

func (c EventsConfiguration) effectiveDiagnosticInterval() time.Duration {
	if c.DiagnosticRecordingInterval <= 0 {
		return DefaultDiagnosticRecordingInterval
	}
	if c.DiagnosticRecordingInterval < MinimumDiagnosticRecordingInterval {
		return MinimumDiagnosticRecordingInterval
	}
	return c.DiagnosticRecordingInterval
}
