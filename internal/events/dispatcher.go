package events

import (
	"sync"

	goerrors "github.com/go-errors/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldsampling"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// dispatcherMessage is the payload of the inbox channel.
type dispatcherMessage interface{}

type sendEventMessage struct{ event Event }
type flushMessage struct{ replyCh chan struct{} }
type flushContextsMessage struct{}
type diagnosticMessage struct{}
type syncMessage struct{ replyCh chan struct{} }
type shutdownMessage struct{ replyCh chan struct{} }

// eventDispatcher is the single-consumer main loop. The outbox (and the
// summarizer inside it), dedup and the per-window counters are touched only
// from runMainLoop; the busy-worker counter is shared with the workers under
// busyMu/busyCond, and all other cross-goroutine communication goes through
// channels and the sharedState atomics.
type eventDispatcher struct {
	config            EventsConfiguration
	outbox            *eventsOutbox
	dedup             ContextDeduplicator
	formatter         outputFormatter
	flushCh           chan flushPayload
	diagnosticCh      chan ldvalue.Value
	senderResultCh    chan EventSenderResult
	busyMu            sync.Mutex
	busyCond          *sync.Cond
	busyWorkers       int
	state             sharedState
	sampler           *ldsampling.RatioSampler
	deduplicated      int
	eventsInLastBatch int
	now               func() ldtime.UnixMillisecondTime
}

func newEventDispatcher(config EventsConfiguration) *eventDispatcher {
	dedup := config.ContextDeduplicator
	if dedup == nil {
		dedup = NewNoopContextDeduplicator()
	}
	ed := &eventDispatcher{
		config:         config,
		outbox:         newEventsOutbox(config.Capacity, config.Loggers),
		dedup:          dedup,
		formatter:      newOutputFormatter(config),
		flushCh:        make(chan flushPayload, 1),
		diagnosticCh:   make(chan ldvalue.Value, 1),
		senderResultCh: make(chan EventSenderResult, config.effectiveWorkerCount()),
		sampler:        ldsampling.NewSampler(),
		now: func() ldtime.UnixMillisecondTime {
			return ldtime.UnixMillisFromTime(config.now())
		},
	}
	ed.busyCond = sync.NewCond(&ed.busyMu)
	return ed
}

// start launches the fixed worker pool and the main loop goroutine, and
// sends the one-time diagnostic-init event if diagnostics are enabled.
func (ed *eventDispatcher) start(inboxCh <-chan dispatcherMessage) {
	workerCount := ed.config.effectiveWorkerCount()
	for i := 0; i < workerCount; i++ {
		go ed.runFlushWorker()
	}
	if ed.config.DiagnosticsManager != nil {
		ed.sendDiagnosticsEvent(ed.config.DiagnosticsManager.CreateInitEvent())
	}
	go ed.runMainLoop(inboxCh)
}

func (ed *eventDispatcher) runMainLoop(inboxCh <-chan dispatcherMessage) {
	defer func() {
		if r := recover(); r != nil {
			ed.config.Loggers.Errorf("event dispatcher panic: %+v", goerrors.Wrap(r, 1))
			ed.state.setClosed()
			ed.drainInboxAfterFatalError(inboxCh)
		}
	}()

	for {
		select {
		case result := <-ed.senderResultCh:
			ed.handleSenderResult(result)
		case message, ok := <-inboxCh:
			if !ok {
				return
			}
			if done := ed.handleMessage(message); done {
				return
			}
		}
	}
}

// drainInboxAfterFatalError runs once, from the panic-recovery defer, after
// the main loop can no longer make progress. It empties whatever is
// currently sitting in the inbox buffer and completes every reply channel
// it finds along the way, so a caller parked on Processor.Close or
// FlushBlocking is released instead of hanging forever. Messages with no
// reply channel (plain sends, flush-contexts, diagnostics) are simply
// discarded.
func (ed *eventDispatcher) drainInboxAfterFatalError(inboxCh <-chan dispatcherMessage) {
	for {
		select {
		case message, ok := <-inboxCh:
			if !ok {
				return
			}
			replyToFatalMessage(message)
		default:
			return
		}
	}
}

// replyToFatalMessage completes a message's reply channel, if it has one,
// without blocking: a waiter is either already parked on the receive end or
// has given up, and either way the dispatcher must not wait on it.
func replyToFatalMessage(message dispatcherMessage) {
	var replyCh chan struct{}
	switch m := message.(type) {
	case flushMessage:
		replyCh = m.replyCh
	case syncMessage:
		replyCh = m.replyCh
	case shutdownMessage:
		replyCh = m.replyCh
	}
	if replyCh == nil {
		return
	}
	select {
	case replyCh <- struct{}{}:
	default:
	}
}

func (ed *eventDispatcher) handleSenderResult(result EventSenderResult) {
	if ed.state.isDisabled() {
		return
	}
	if result.MustShutDown {
		ed.state.setDisabled()
		ed.outbox.clear()
		return
	}
	if result.TimeFromServer > 0 {
		ed.state.recordServerTime(result.TimeFromServer)
	}
}

// handleMessage processes one inbox message, returning true if the main
// loop should exit (only true for shutdown).
func (ed *eventDispatcher) handleMessage(message dispatcherMessage) bool {
	switch m := message.(type) {
	case sendEventMessage:
		ed.processEvent(m.event)
	case flushMessage:
		ed.triggerFlush()
		if m.replyCh != nil {
			ed.waitForIdle()
			m.replyCh <- struct{}{}
		}
	case flushContextsMessage:
		ed.dedup.Flush()
	case diagnosticMessage:
		ed.emitDiagnosticStats()
	case syncMessage:
		ed.waitForIdle()
		m.replyCh <- struct{}{}
	case shutdownMessage:
		ed.waitForIdle()
		ed.state.setDisabled()
		close(ed.flushCh)
		close(ed.diagnosticCh)
		ed.config.EventSender.Close()
		m.replyCh <- struct{}{}
		return true
	}
	return false
}

func (ed *eventDispatcher) waitForIdle() {
	ed.busyMu.Lock()
	for ed.busyWorkers > 0 {
		ed.busyCond.Wait()
	}
	ed.busyMu.Unlock()
}

// processEvent implements the dispatcher's classify/summarize/emit step
// described for EVENT messages: always summarize feature requests,
// synthesize an index event on first sighting of a context, synthesize a
// debug event when the clock-skew-tolerant window allows it, and respect
// each event kind's sampling ratio.
func (ed *eventDispatcher) processEvent(evt Event) {
	if ed.state.isDisabled() {
		return
	}

	switch e := evt.(type) {
	case FeatureRequestEvent:
		ed.outbox.addToSummary(e)

		willAddFullEvent := e.TrackEvents
		var debugEvent *FeatureRequestEvent
		if ed.shouldDebugEvent(e) {
			d := e.cloneAsDebug()
			debugEvent = &d
		}

		if isNew := ed.noticeContext(e.Context); isNew {
			ed.outbox.addEvent(indexEvent{BaseEvent{CreationDate: e.CreationDate, Context: e.Context}})
		}

		if willAddFullEvent && ed.shouldSample(e.SamplingRatio) {
			ed.outbox.addEvent(e)
		}
		if debugEvent != nil && ed.shouldSample(e.SamplingRatio) {
			ed.outbox.addEvent(*debugEvent)
		}

	case IdentifyEventData:
		// Identify events carry an inline context, so no index event is
		// synthesized, but the context is still marked seen so a later
		// feature/custom event for the same context skips its own index.
		ed.noticeContext(e.Context)
		if ed.shouldSample(e.SamplingRatio) {
			ed.outbox.addEvent(e)
		}

	case CustomEventData:
		if isNew := ed.noticeContext(e.Context); isNew {
			ed.outbox.addEvent(indexEvent{BaseEvent{CreationDate: e.CreationDate, Context: e.Context}})
		}
		if ed.shouldSample(e.SamplingRatio) {
			ed.outbox.addEvent(e)
		}
	}
}

// noticeContext runs the context through the deduplicator exactly once
// per event, reporting whether it is new. A context with no fully
// qualified key (undefined context) is always treated as new without
// consulting the deduplicator, and never increments deduplicated count.
func (ed *eventDispatcher) noticeContext(c EventInputContext) bool {
	fqk := c.Context().FullyQualifiedKey()
	if fqk == "" {
		return true
	}
	isNew := ed.dedup.ProcessContext(fqk)
	if !isNew {
		ed.deduplicated++
	}
	return isNew
}

// shouldDebugEvent implements the clock-skew-tolerant expiration check:
// a DebugEventsUntilDate must be strictly after both the server's last
// observed time and the local clock to still be worth debugging.
func (ed *eventDispatcher) shouldDebugEvent(e FeatureRequestEvent) bool {
	if e.DebugEventsUntilDate == 0 {
		return false
	}
	return e.DebugEventsUntilDate > ed.state.observedPastTime() && e.DebugEventsUntilDate > ed.now()
}

func (ed *eventDispatcher) shouldSample(ratio ldvalue.OptionalInt) bool {
	return ed.sampler.Sample(ratio.OrElse(1))
}

// triggerFlush builds a FlushPayload from the outbox and hands it to a
// worker via the capacity-1 channel. If every worker is busy the handoff
// is refused and the payload is restored so nothing is lost.
func (ed *eventDispatcher) triggerFlush() {
	if ed.state.isDisabled() {
		return
	}
	payload := ed.outbox.getPayload()
	totalEventCount := len(payload.events)
	if payload.summary.hasCounters() {
		totalEventCount++
	}
	if totalEventCount == 0 {
		ed.eventsInLastBatch = 0
		return
	}

	ed.busyMu.Lock()
	ed.busyWorkers++
	ed.busyMu.Unlock()

	select {
	case ed.flushCh <- payload:
		ed.eventsInLastBatch = totalEventCount
	default:
		ed.config.Loggers.Debug("flush handoff refused, all workers busy; restoring payload")
		ed.busyMu.Lock()
		ed.busyWorkers--
		ed.busyCond.Broadcast()
		ed.busyMu.Unlock()
		ed.outbox.restore(payload)
	}
}

func (ed *eventDispatcher) emitDiagnosticStats() {
	dm := ed.config.DiagnosticsManager
	if dm == nil {
		return
	}
	dropped := ed.outbox.takeAndClearDropped()
	deduped := ed.deduplicated
	ed.deduplicated = 0
	event := dm.CreateStatsEventAndReset(dropped, deduped, ed.eventsInLastBatch)
	ed.sendDiagnosticsEvent(event)
}

func (ed *eventDispatcher) sendDiagnosticsEvent(event ldvalue.Value) {
	select {
	case ed.diagnosticCh <- event:
	default:
		ed.config.Loggers.Debug("dropping diagnostic event, delivery channel full")
	}
}

// runFlushWorker is one of the fixed pool of delivery workers. It
// alternates between analytics flush payloads and diagnostic events, each
// delivered through the shared, thread-safe EventSender.
func (ed *eventDispatcher) runFlushWorker() {
	for {
		select {
		case payload, more := <-ed.flushCh:
			if !more {
				return
			}
			ed.deliverPayload(payload)
		case event, more := <-ed.diagnosticCh:
			if !more {
				return
			}
			ed.deliverDiagnostic(event)
		}
	}
}

func (ed *eventDispatcher) deliverPayload(payload flushPayload) {
	defer ed.markWorkerIdle()
	bytes, count := ed.formatter.writeOutputEvents(payload.events, payload.summary)
	if len(bytes) == 0 {
		return
	}
	result := ed.config.EventSender.SendEventData(AnalyticsEventDataKind, bytes, count)
	select {
	case ed.senderResultCh <- result:
	default:
		ed.config.Loggers.Warn("sender result channel full, dropping result")
	}
}

func (ed *eventDispatcher) deliverDiagnostic(event ldvalue.Value) {
	w := jwriter.NewWriter()
	event.WriteToJSONWriter(&w)
	_ = ed.config.EventSender.SendEventData(DiagnosticEventDataKind, w.Bytes(), 1)
}

func (ed *eventDispatcher) markWorkerIdle() {
	ed.busyMu.Lock()
	ed.busyWorkers--
	ed.busyCond.Broadcast()
	ed.busyMu.Unlock()
}
