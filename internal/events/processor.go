package events

import (
	"sync"
	"time"
)

// Processor is the producer-facing facade: a bounded, non-blocking inbox
// in front of the dispatcher, plus the scheduled flush/context-flush/
// diagnostic ticks and shutdown lifecycle.
type Processor struct {
	inboxCh       chan dispatcherMessage
	inboxFullOnce sync.Once
	closeOnce     sync.Once
	scheduler     Scheduler
	cancelFns     []CancelFunc
	dispatcher    *eventDispatcher
	loggers       interface {
		Warn(values ...interface{})
	}
}

// NewProcessor builds and starts a Processor: the dispatcher main loop and
// its worker pool are running by the time this returns.
func NewProcessor(config EventsConfiguration, scheduler Scheduler) *Processor {
	if scheduler == nil {
		scheduler = NewRealScheduler()
	}
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	config.Capacity = capacity
	inboxCh := make(chan dispatcherMessage, capacity)

	dispatcher := newEventDispatcher(config)
	dispatcher.start(inboxCh)

	p := &Processor{
		inboxCh:    inboxCh,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		loggers:    &config.Loggers,
	}
	p.startSchedules(config)
	return p
}

func (p *Processor) startSchedules(config EventsConfiguration) {
	flushInterval := config.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	p.cancelFns = append(p.cancelFns, p.scheduler.SchedulePeriodic(flushInterval, func() {
		p.postNonBlocking(flushMessage{})
	}))

	if config.ContextDeduplicator != nil {
		if interval := config.ContextDeduplicator.FlushInterval(); interval > 0 {
			p.cancelFns = append(p.cancelFns, p.scheduler.SchedulePeriodic(interval, func() {
				p.postNonBlocking(flushContextsMessage{})
			}))
		}
	}

	if config.DiagnosticsManager != nil {
		p.cancelFns = append(p.cancelFns, p.scheduler.SchedulePeriodic(config.effectiveDiagnosticInterval(), func() {
			p.postNonBlocking(diagnosticMessage{})
		}))
	}
}

// SendFeatureRequestEvent enqueues a flag-evaluation event.
func (p *Processor) SendFeatureRequestEvent(e FeatureRequestEvent) {
	p.postNonBlocking(sendEventMessage{event: e})
}

// SendIdentifyEvent enqueues an identify event.
func (p *Processor) SendIdentifyEvent(e IdentifyEventData) {
	p.postNonBlocking(sendEventMessage{event: e})
}

// SendCustomEvent enqueues a custom event.
func (p *Processor) SendCustomEvent(e CustomEventData) {
	p.postNonBlocking(sendEventMessage{event: e})
}

// Flush enqueues a flush request without waiting for it to complete.
func (p *Processor) Flush() {
	p.postNonBlocking(flushMessage{})
}

// FlushBlocking triggers a flush and waits up to timeout for every
// in-flight worker to finish. A non-positive timeout waits indefinitely.
// Returns false if the timeout elapsed first.
func (p *Processor) FlushBlocking(timeout time.Duration) bool {
	replyCh := make(chan struct{}, 1)
	p.inboxCh <- flushMessage{replyCh: replyCh}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-replyCh:
		return true
	case <-deadline:
		return false
	}
}

// sync blocks until every in-flight worker is idle, without forcing a
// flush first. Used internally by tests that need deterministic barriers.
func (p *Processor) sync() {
	replyCh := make(chan struct{}, 1)
	p.inboxCh <- syncMessage{replyCh: replyCh}
	<-replyCh
}

// Close is idempotent: it cancels all scheduled tasks, flushes once more,
// then waits for the dispatcher to fully drain and stop. If the dispatcher
// has already died (a fatal panic set sharedState.closed), sending it more
// messages would either be dropped or, worse, sit unread in the inbox
// forever, so Close instead closes the sender itself and returns.
func (p *Processor) Close() error {
	p.closeOnce.Do(func() {
		for _, cancel := range p.cancelFns {
			cancel()
		}
		if p.dispatcher.state.isClosed() {
			p.dispatcher.config.EventSender.Close()
			return
		}
		p.inboxCh <- flushMessage{}
		replyCh := make(chan struct{})
		p.inboxCh <- shutdownMessage{replyCh: replyCh}
		<-replyCh
	})
	return nil
}

func (p *Processor) postNonBlocking(m dispatcherMessage) {
	if p.dispatcher.state.isClosed() {
		return
	}
	select {
	case p.inboxCh <- m:
		return
	default:
	}
	p.inboxFullOnce.Do(func() {
		p.loggers.Warn("events are being produced faster than they can be processed; some events will be dropped")
	})
}
