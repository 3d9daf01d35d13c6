package events

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldreason"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// EventInputContext wraps a context as it enters the pipeline. It exists
// as its own type (rather than a bare ldcontext.Context) so later stages
// can be extended with per-event context metadata without changing every
// call site's signature.
type EventInputContext struct {
	context ldcontext.Context
}

func NewEventInputContext(c ldcontext.Context) EventInputContext {
	return EventInputContext{context: c}
}

func (c EventInputContext) Context() ldcontext.Context { return c.context }

// BaseEvent carries the fields common to every event kind.
type BaseEvent struct {
	CreationDate ldtime.UnixMillisecondTime
	Context      EventInputContext
}

// Event is implemented by every concrete event type the pipeline accepts
// or synthesizes. It is a closed sum type: the dispatcher type-switches
// over it exhaustively rather than calling virtual methods, per the
// tagged-variant design this pipeline follows throughout.
type Event interface {
	inputEvent()
}

// FeatureRequestEvent corresponds to a single flag evaluation. Producers
// set debug to false; the dispatcher synthesizes a second, debug-tagged
// copy when shouldDebugEvent allows it.
type FeatureRequestEvent struct {
	BaseEvent
	Key                  string
	Version              ldvalue.OptionalInt
	Variation            ldvalue.OptionalInt
	Value                ldvalue.Value
	Default              ldvalue.Value
	PrereqOf             ldvalue.OptionalString
	Reason               ldreason.EvaluationReason
	TrackEvents          bool
	DebugEventsUntilDate ldtime.UnixMillisecondTime
	SamplingRatio        ldvalue.OptionalInt
	debug                bool
}

func (FeatureRequestEvent) inputEvent() {}

// cloneAsDebug produces the synthesized Debug event described in spec: an
// exact copy of the evaluation, re-tagged so the formatter writes it with
// kind "debug" and, when InlineUsers is set, a context that skips the
// anonymous-context redaction applied to plain feature events.
func (e FeatureRequestEvent) cloneAsDebug() FeatureRequestEvent {
	clone := e
	clone.debug = true
	return clone
}

// IdentifyEventData corresponds to an explicit identify call.
type IdentifyEventData struct {
	BaseEvent
	SamplingRatio ldvalue.OptionalInt
}

func (IdentifyEventData) inputEvent() {}

// CustomEventData corresponds to a custom analytics event.
type CustomEventData struct {
	BaseEvent
	Key           string
	Data          ldvalue.Value
	HasMetric     bool
	MetricValue   float64
	SamplingRatio ldvalue.OptionalInt
}

func (CustomEventData) inputEvent() {}

// indexEvent is synthesized internally the first time a context fingerprint
// is seen within a deduplication window. Producers never construct one.
type indexEvent struct {
	BaseEvent
}

func (indexEvent) inputEvent() {}
