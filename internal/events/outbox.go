package events

import "github.com/flagforge/go-events-pipeline/internal/eventlog"

// eventsOutbox holds the full events awaiting the next flush along with
// the running summary. It is owned exclusively by the dispatcher
// goroutine; nothing else reads or writes it.
type eventsOutbox struct {
	capacity       int
	events         []Event
	summarizer     *eventSummarizer
	droppedCount   int
	capacityWarned bool
	loggers        eventlog.Loggers
}

func newEventsOutbox(capacity int, loggers eventlog.Loggers) *eventsOutbox {
	return &eventsOutbox{
		capacity:   capacity,
		summarizer: newEventSummarizer(),
		loggers:    loggers,
	}
}

// addEvent appends a fully-formed output event, subject to capacity. It
// returns false if the event was dropped. The first drop after capacity is
// reached logs a warning; subsequent drops stay silent until the outbox is
// flushed and fills up again would require capacityWarned to be reset, but
// nothing currently resets it, matching the inbox's one-shot pattern.
func (o *eventsOutbox) addEvent(e Event) bool {
	if len(o.events) >= o.capacity {
		o.droppedCount++
		if !o.capacityWarned {
			o.capacityWarned = true
			o.loggers.Warnf("exceeded event queue capacity (%d); events will be dropped", o.capacity)
		}
		return false
	}
	o.events = append(o.events, e)
	return true
}

func (o *eventsOutbox) addToSummary(e FeatureRequestEvent) {
	o.summarizer.summarizeEvent(e)
}

// getPayload takes ownership of the current events and summary, leaving
// the outbox empty. The caller must either hand the result to a worker or,
// if the handoff is refused, restore it with restore.
func (o *eventsOutbox) getPayload() flushPayload {
	payload := flushPayload{
		events:  o.events,
		summary: o.summarizer.getSummaryAndReset(),
	}
	o.events = make([]Event, 0, o.capacity)
	return payload
}

// restore reinstates a payload that could not be handed to a worker,
// preserving emission order: anything enqueued is impossible here since
// the dispatcher is single-threaded and calls this synchronously after
// getPayload, but the merge is written defensively in case that ever
// changes.
func (o *eventsOutbox) restore(payload flushPayload) {
	if len(payload.events) > 0 {
		o.events = append(payload.events, o.events...)
	}
	o.summarizer.restoreTo(payload.summary)
}

// clear drops all buffered events and the accumulated summary. Used when a
// sender result reports a permanent failure (MustShutDown).
func (o *eventsOutbox) clear() {
	o.events = o.events[:0]
	o.summarizer.getSummaryAndReset()
}

// takeAndClearDropped returns the dropped-event count accumulated since
// the last call and resets it, for diagnostic reporting.
func (o *eventsOutbox) takeAndClearDropped() int {
	n := o.droppedCount
	o.droppedCount = 0
	return n
}

// flushPayload is handed, in full ownership, from the dispatcher to
// exactly one worker. Once sent on the handoff channel the dispatcher
// must not touch its contents again.
type flushPayload struct {
	events  []Event
	summary eventSummary
}
