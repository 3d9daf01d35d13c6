package events

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
)

// EventDataKind distinguishes the two payload shapes an EventSender may
// be asked to deliver.
type EventDataKind int

const (
	AnalyticsEventDataKind EventDataKind = iota
	DiagnosticEventDataKind
)

// EventSenderResult reports the outcome of one delivery attempt.
type EventSenderResult struct {
	Success        bool
	MustShutDown   bool
	TimeFromServer ldtime.UnixMillisecondTime
}

// EventSender delivers serialized event payloads to an ingest endpoint.
// It is the one externally pluggable collaborator the dispatcher talks
// to directly; this module never opens a socket except inside the
// default implementation in event_sender.go.
type EventSender interface {
	SendEventData(kind EventDataKind, data []byte, eventCount int) EventSenderResult
	Close()
}

// EventProcessor is the public surface other packages depend on. The
// concrete implementation is the Processor facade in processor.go.
type EventProcessor interface {
	SendFeatureRequestEvent(e FeatureRequestEvent)
	SendIdentifyEvent(e IdentifyEventData)
	SendCustomEvent(e CustomEventData)
	Flush()
	FlushBlocking(timeout time.Duration) bool
	Close() error
}

var _ EventProcessor = (*Processor)(nil)
