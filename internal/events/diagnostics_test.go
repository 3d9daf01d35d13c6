package events

import (
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiagnosticIDTruncatesCredentialSuffix(t *testing.T) {
	id := NewDiagnosticID("sdk-abcdef1234567890")
	obj := id

	diagID, ok := obj.TryGetByKey("diagnosticId")
	require.True(t, ok)
	assert.NotEmpty(t, diagID.StringValue())

	suffix, ok := obj.TryGetByKey("credentialSuffix")
	require.True(t, ok)
	assert.Equal(t, "567890", suffix.StringValue())
}

func TestDiagnosticsManagerCreateInitEvent(t *testing.T) {
	id := NewDiagnosticID("test-key")
	sdkData := ldvalue.ObjectBuild().SetString("name", "flagforge-events").Build()
	start := time.Unix(1_700_000_000, 0)
	m := NewDiagnosticsManager(id, sdkData, start)

	event := m.CreateInitEvent()
	kind, _ := event.TryGetByKey("kind")
	assert.Equal(t, "diagnostic-init", kind.StringValue())

	platform, _ := event.TryGetByKey("platform")
	name, _ := platform.TryGetByKey("name")
	assert.Equal(t, "Go", name.StringValue())

	creationDate, _ := event.TryGetByKey("creationDate")
	assert.Equal(t, float64(ldtime.UnixMillisFromTime(start)), creationDate.Float64Value())
}

func TestDiagnosticsManagerCreateStatsEventAndReset(t *testing.T) {
	m := NewDiagnosticsManager(NewDiagnosticID("test-key"), ldvalue.Null(), time.Now())
	m.RecordStreamInit(ldtime.UnixMillisecondTime(1000), false, 50)
	m.RecordStreamInit(ldtime.UnixMillisecondTime(2000), true, 10)

	event := m.CreateStatsEventAndReset(7, 3, 42)
	kind, _ := event.TryGetByKey("kind")
	assert.Equal(t, "diagnostic", kind.StringValue())

	dropped, _ := event.TryGetByKey("droppedEvents")
	assert.EqualValues(t, 7, dropped.IntValue())

	deduped, _ := event.TryGetByKey("deduplicatedUsers")
	assert.EqualValues(t, 3, deduped.IntValue())

	lastBatch, _ := event.TryGetByKey("eventsInLastBatch")
	assert.EqualValues(t, 42, lastBatch.IntValue())

	inits, _ := event.TryGetByKey("streamInits")
	assert.Equal(t, 2, inits.Count())

	// The window resets: a second call with no new stream inits reports none.
	second := m.CreateStatsEventAndReset(0, 0, 0)
	inits2, _ := second.TryGetByKey("streamInits")
	assert.Equal(t, 0, inits2.Count())
}
