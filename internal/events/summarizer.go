package events

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// counterKey identifies one bucket within a flag's summary: a specific
// version/variation pairing. Either may be undefined (an error evaluation
// has no variation; an unknown-version evaluation has no version).
type counterKey struct {
	version   ldvalue.OptionalInt
	variation ldvalue.OptionalInt
}

type counterValue struct {
	count     int
	flagValue ldvalue.Value
}

// flagSummary is the per-flag aggregate: one default value, a counter per
// (version, variation), and the set of context kinds that contributed.
type flagSummary struct {
	defaultValue ldvalue.Value
	counters     map[counterKey]*counterValue
	contextKinds map[ldcontext.Kind]struct{}
}

// eventSummary is an immutable snapshot returned by getSummaryAndReset.
type eventSummary struct {
	startDate ldtime.UnixMillisecondTime
	endDate   ldtime.UnixMillisecondTime
	flags     map[string]flagSummary
}

func (s eventSummary) hasCounters() bool {
	return len(s.flags) > 0
}

// eventSummarizer aggregates FeatureRequestEvents into counters. Every
// method here is called only from the dispatcher goroutine; there is no
// internal locking.
type eventSummarizer struct {
	summary eventSummary
}

func newEventSummarizer() *eventSummarizer {
	return &eventSummarizer{summary: eventSummary{flags: make(map[string]flagSummary)}}
}

func (s *eventSummarizer) isEmpty() bool {
	return len(s.summary.flags) == 0
}

func (s *eventSummarizer) summarizeEvent(e FeatureRequestEvent) {
	ts := e.CreationDate
	if s.summary.startDate == 0 || ts < s.summary.startDate {
		s.summary.startDate = ts
	}
	if ts > s.summary.endDate {
		s.summary.endDate = ts
	}

	fs, ok := s.summary.flags[e.Key]
	if !ok {
		fs = flagSummary{
			defaultValue: e.Default,
			counters:     make(map[counterKey]*counterValue),
			contextKinds: make(map[ldcontext.Kind]struct{}),
		}
	}

	key := counterKey{version: e.Version, variation: e.Variation}
	if cv, ok := fs.counters[key]; ok {
		cv.count++
	} else {
		fs.counters[key] = &counterValue{count: 1, flagValue: e.Value}
	}

	ctx := e.Context.Context()
	for i := 0; i < ctx.IndividualContextCount(); i++ {
		if ic := ctx.IndividualContextByIndex(i); ic.IsDefined() {
			fs.contextKinds[ic.Kind()] = struct{}{}
		}
	}
	if ctx.IndividualContextCount() == 0 && ctx.IsDefined() {
		fs.contextKinds[ctx.Kind()] = struct{}{}
	}

	s.summary.flags[e.Key] = fs
}

// getSummaryAndReset returns the accumulated snapshot and clears internal
// state so the next flush window starts empty.
func (s *eventSummarizer) getSummaryAndReset() eventSummary {
	snapshot := s.summary
	s.summary = eventSummary{flags: make(map[string]flagSummary)}
	return snapshot
}

// restoreTo reinstates a previously taken snapshot. It is used exactly
// once, by the dispatcher's flush-handoff-refused path, to undo a
// getSummaryAndReset whose payload could not be handed to a worker.
func (s *eventSummarizer) restoreTo(snapshot eventSummary) {
	if !snapshot.hasCounters() {
		return
	}
	if s.isEmpty() {
		s.summary = snapshot
		return
	}
	// Merge: events may have been summarized into the fresh window
	// between the failed handoff attempt and the restore, so counters
	// must be combined rather than overwritten.
	for key, fs := range snapshot.flags {
		existing, ok := s.summary.flags[key]
		if !ok {
			s.summary.flags[key] = fs
			continue
		}
		for ck, cv := range fs.counters {
			if ex, ok := existing.counters[ck]; ok {
				ex.count += cv.count
			} else {
				existing.counters[ck] = cv
			}
		}
		for kind := range fs.contextKinds {
			existing.contextKinds[kind] = struct{}{}
		}
		s.summary.flags[key] = existing
	}
	if snapshot.startDate != 0 && (s.summary.startDate == 0 || snapshot.startDate < s.summary.startDate) {
		s.summary.startDate = snapshot.startDate
	}
	if snapshot.endDate > s.summary.endDate {
		s.summary.endDate = snapshot.endDate
	}
}
