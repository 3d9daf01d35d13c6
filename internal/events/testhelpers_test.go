package events

import (
	"sync"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/flagforge/go-events-pipeline/internal/eventlog"
)

// capturedSend records one call made to a fakeSender, for assertions about
// what the dispatcher actually tried to deliver.
type capturedSend struct {
	kind       EventDataKind
	data       []byte
	eventCount int
}

// fakeSender is an EventSender that records every call instead of doing
// I/O. resultFn lets a test vary the outcome per call (e.g. a permanent
// failure on the first delivery only).
type fakeSender struct {
	mu       sync.Mutex
	sends    []capturedSend
	result   EventSenderResult
	resultFn func(call int) EventSenderResult
	closed   bool
}

func (f *fakeSender) SendEventData(kind EventDataKind, data []byte, eventCount int) EventSenderResult {
	f.mu.Lock()
	call := len(f.sends)
	f.sends = append(f.sends, capturedSend{kind: kind, data: append([]byte(nil), data...), eventCount: eventCount})
	f.mu.Unlock()

	if f.resultFn != nil {
		return f.resultFn(call)
	}
	return f.result
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSender) allSends() []capturedSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedSend(nil), f.sends...)
}

func (f *fakeSender) kindSends(kind EventDataKind) []capturedSend {
	var out []capturedSend
	for _, s := range f.allSends() {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// blockingSender hangs inside SendEventData until release is closed,
// signaling on started each time a call begins. Used to pin down exactly
// how many workers are mid-delivery at once.
type blockingSender struct {
	started chan struct{}
	release chan struct{}
	result  EventSenderResult
}

func newBlockingSender(capacity int) *blockingSender {
	return &blockingSender{
		started: make(chan struct{}, capacity),
		release: make(chan struct{}),
		result:  EventSenderResult{Success: true},
	}
}

func (b *blockingSender) SendEventData(EventDataKind, []byte, int) EventSenderResult {
	b.started <- struct{}{}
	<-b.release
	return b.result
}

func (b *blockingSender) Close() {}

// newTestDispatcher builds a running dispatcher (worker pool + main loop
// goroutine) wired to sender, for tests that exercise the full async path
// through the inbox. The dispatcher is shut down automatically at test end.
func newTestDispatcher(t *testing.T, sender EventSender, configure func(*EventsConfiguration)) (*eventDispatcher, chan dispatcherMessage) {
	t.Helper()
	config := EventsConfiguration{
		Capacity:    DefaultCapacity,
		EventSender: sender,
		Loggers:     eventlog.NewDisabledLoggers(),
		WorkerCount: DefaultWorkerCount,
	}
	if configure != nil {
		configure(&config)
	}

	ed := newEventDispatcher(config)
	inbox := make(chan dispatcherMessage, config.Capacity+10)
	ed.start(inbox)

	t.Cleanup(func() {
		reply := make(chan struct{})
		select {
		case inbox <- shutdownMessage{replyCh: reply}:
			select {
			case <-reply:
			case <-time.After(2 * time.Second):
			}
		default:
		}
	})

	return ed, inbox
}

// newIdleDispatcher builds a dispatcher without starting its worker pool or
// main loop, for white-box tests that call unexported methods (processEvent,
// triggerFlush) directly and synchronously from the test goroutine.
func newIdleDispatcher(sender EventSender, configure func(*EventsConfiguration)) *eventDispatcher {
	config := EventsConfiguration{
		Capacity:    DefaultCapacity,
		EventSender: sender,
		Loggers:     eventlog.NewDisabledLoggers(),
		WorkerCount: DefaultWorkerCount,
	}
	if configure != nil {
		configure(&config)
	}
	return newEventDispatcher(config)
}

func flushAndWait(t *testing.T, inbox chan dispatcherMessage) {
	t.Helper()
	reply := make(chan struct{}, 1)
	inbox <- flushMessage{replyCh: reply}
	select {
	case <-reply:
	case <-time.After(3 * time.Second):
		t.Fatal("flush did not complete in time")
	}
}

func syncAndWait(t *testing.T, inbox chan dispatcherMessage) {
	t.Helper()
	reply := make(chan struct{}, 1)
	inbox <- syncMessage{replyCh: reply}
	select {
	case <-reply:
	case <-time.After(3 * time.Second):
		t.Fatal("sync did not complete in time")
	}
}

func buildContext(key string) ldcontext.Context {
	return ldcontext.NewBuilder(key).Kind("user").Build()
}

func featureRequest(ctx ldcontext.Context, flagKey string, version, variation int, trackEvents bool) FeatureRequestEvent {
	return FeatureRequestEvent{
		BaseEvent: BaseEvent{
			CreationDate: ldtime.UnixMillisNow(),
			Context:      NewEventInputContext(ctx),
		},
		Key:         flagKey,
		Version:     ldvalue.NewOptionalInt(version),
		Variation:   ldvalue.NewOptionalInt(variation),
		Value:       ldvalue.Bool(true),
		Default:     ldvalue.Bool(false),
		TrackEvents: trackEvents,
	}
}

func customEvent(ctx ldcontext.Context, key string) CustomEventData {
	return CustomEventData{
		BaseEvent: BaseEvent{
			CreationDate: ldtime.UnixMillisNow(),
			Context:      NewEventInputContext(ctx),
		},
		Key: key,
	}
}
