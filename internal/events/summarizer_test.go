package events

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSummarizerIsEmptyInitially(t *testing.T) {
	s := newEventSummarizer()
	assert.True(t, s.isEmpty())
}

func TestEventSummarizerCountsByVersionAndVariation(t *testing.T) {
	s := newEventSummarizer()
	ctx := buildContext("user-1")

	for i := 0; i < 7; i++ {
		e := featureRequest(ctx, "flag-a", 1, 0, false)
		e.Default = ldvalue.Bool(false)
		s.summarizeEvent(e)
	}
	for i := 0; i < 3; i++ {
		e := featureRequest(ctx, "flag-a", 1, 1, false)
		s.summarizeEvent(e)
	}
	for i := 0; i < 2; i++ {
		e := featureRequest(ctx, "flag-b", 2, 0, false)
		s.summarizeEvent(e)
	}

	assert.False(t, s.isEmpty())
	snapshot := s.summary

	flagA, ok := snapshot.flags["flag-a"]
	require.True(t, ok)
	key0 := counterKey{version: ldvalue.NewOptionalInt(1), variation: ldvalue.NewOptionalInt(0)}
	key1 := counterKey{version: ldvalue.NewOptionalInt(1), variation: ldvalue.NewOptionalInt(1)}
	require.Contains(t, flagA.counters, key0)
	require.Contains(t, flagA.counters, key1)
	assert.Equal(t, 7, flagA.counters[key0].count)
	assert.Equal(t, 3, flagA.counters[key1].count)

	flagB, ok := snapshot.flags["flag-b"]
	require.True(t, ok)
	keyB := counterKey{version: ldvalue.NewOptionalInt(2), variation: ldvalue.NewOptionalInt(0)}
	assert.Equal(t, 2, flagB.counters[keyB].count)
}

func TestEventSummarizerTracksWindowBounds(t *testing.T) {
	s := newEventSummarizer()
	ctx := buildContext("user-1")

	e1 := featureRequest(ctx, "flag-a", 1, 0, false)
	e1.CreationDate = 500
	e2 := featureRequest(ctx, "flag-a", 1, 0, false)
	e2.CreationDate = 100
	e3 := featureRequest(ctx, "flag-a", 1, 0, false)
	e3.CreationDate = 900

	s.summarizeEvent(e1)
	s.summarizeEvent(e2)
	s.summarizeEvent(e3)

	assert.EqualValues(t, 100, s.summary.startDate)
	assert.EqualValues(t, 900, s.summary.endDate)
}

func TestEventSummarizerTracksContextKinds(t *testing.T) {
	s := newEventSummarizer()
	userCtx := buildContext("user-1")
	deviceCtx := ldcontext.NewBuilder("device-1").Kind("device").Build()

	s.summarizeEvent(featureRequest(userCtx, "flag-a", 1, 0, false))
	s.summarizeEvent(featureRequest(deviceCtx, "flag-a", 1, 0, false))

	kinds := s.summary.flags["flag-a"].contextKinds
	assert.Contains(t, kinds, ldcontext.Kind("user"))
	assert.Contains(t, kinds, ldcontext.Kind("device"))
}

func TestGetSummaryAndResetClearsState(t *testing.T) {
	s := newEventSummarizer()
	ctx := buildContext("user-1")
	s.summarizeEvent(featureRequest(ctx, "flag-a", 1, 0, false))

	snapshot := s.getSummaryAndReset()
	assert.True(t, snapshot.hasCounters())
	assert.True(t, s.isEmpty())
}

func TestRestoreToMergesRatherThanOverwrites(t *testing.T) {
	s := newEventSummarizer()
	ctx := buildContext("user-1")

	s.summarizeEvent(featureRequest(ctx, "flag-a", 1, 0, false))
	snapshot := s.getSummaryAndReset()

	// Simulate events summarized into the fresh window between the failed
	// handoff attempt and the restore call.
	s.summarizeEvent(featureRequest(ctx, "flag-a", 1, 0, false))
	s.summarizeEvent(featureRequest(ctx, "flag-b", 2, 0, false))

	s.restoreTo(snapshot)

	key := counterKey{version: ldvalue.NewOptionalInt(1), variation: ldvalue.NewOptionalInt(0)}
	assert.Equal(t, 2, s.summary.flags["flag-a"].counters[key].count)
	assert.Contains(t, s.summary.flags, "flag-b")
}

func TestRestoreToNoopOnEmptySnapshot(t *testing.T) {
	s := newEventSummarizer()
	ctx := buildContext("user-1")
	s.summarizeEvent(featureRequest(ctx, "flag-a", 1, 0, false))

	before := len(s.summary.flags)
	s.restoreTo(eventSummary{})
	assert.Equal(t, before, len(s.summary.flags))
}

func TestRestoreToOnEmptySummarizerReinstatesSnapshotDirectly(t *testing.T) {
	s := newEventSummarizer()
	ctx := buildContext("user-1")
	s.summarizeEvent(featureRequest(ctx, "flag-a", 1, 0, false))
	snapshot := s.getSummaryAndReset()

	require.True(t, s.isEmpty())
	s.restoreTo(snapshot)

	assert.False(t, s.isEmpty())
	key := counterKey{version: ldvalue.NewOptionalInt(1), variation: ldvalue.NewOptionalInt(0)}
	assert.Equal(t, 1, s.summary.flags["flag-a"].counters[key].count)
}
