package events

import (
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

type diagnosticStreamInitInfo struct {
	timestamp      ldtime.UnixMillisecondTime
	failed         bool
	durationMillis uint64
}

// DiagnosticsManager maintains the state behind the "diagnostic-init" and
// periodic "diagnostic" stats events. Diagnostic event JSON shape is opaque
// to the rest of the pipeline: the dispatcher only asks for a ready-built
// ldvalue.Value and serializes it directly, bypassing the per-kind
// OutputFormatter entirely.
type DiagnosticsManager struct {
	id            ldvalue.Value
	sdkData       ldvalue.Value
	startTime     ldtime.UnixMillisecondTime
	dataSinceTime ldtime.UnixMillisecondTime
	streamInits   []diagnosticStreamInitInfo
	mu            sync.Mutex
}

// field is one key/value pair in a diagnostic event. Building events from a
// slice of fields, rather than a long chain of SetString/SetInt/Set calls,
// keeps the shape of each event declarative and lets the constructors below
// share one assembly helper instead of each repeating the chain.
type field struct {
	key   string
	value ldvalue.Value
}

func buildEvent(fields ...field) ldvalue.Value {
	b := ldvalue.ObjectBuild()
	for _, f := range fields {
		b.Set(f.key, f.value)
	}
	return b.Build()
}

// NewDiagnosticID builds a unique identifier for one SDK instance, paired
// with a truncated suffix of its credential for correlation without
// exposing the whole secret.
func NewDiagnosticID(credentialSuffix string) ldvalue.Value {
	id, _ := uuid.NewRandom()
	suffix := credentialSuffix
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return buildEvent(
		field{"diagnosticId", ldvalue.String(id.String())},
		field{"credentialSuffix", ldvalue.String(suffix)},
	)
}

// NewDiagnosticsManager creates a DiagnosticsManager, capturing process
// start time as the baseline for both the init event and the first stats
// window.
func NewDiagnosticsManager(id, sdkData ldvalue.Value, startTime time.Time) *DiagnosticsManager {
	ts := ldtime.UnixMillisFromTime(startTime)
	return &DiagnosticsManager{
		id:            id,
		sdkData:       sdkData,
		startTime:     ts,
		dataSinceTime: ts,
	}
}

// RecordStreamInit records a streaming-transport connection attempt, for
// SDKs whose underlying data source is a stream (no-op for this module's
// own purposes, exposed so a host SDK can share one DiagnosticsManager
// across both its data-source and event-pipeline layers).
func (m *DiagnosticsManager) RecordStreamInit(timestamp ldtime.UnixMillisecondTime, failed bool, durationMillis uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamInits = append(m.streamInits, diagnosticStreamInitInfo{timestamp, failed, durationMillis})
}

// platformInfo describes the Go runtime hosting this process. osName and
// osArch come from runtime.GOOS and runtime.GOARCH; osVersion is omitted
// because Go has no portable way to read it.
func platformInfo() ldvalue.Value {
	return buildEvent(
		field{"name", ldvalue.String("Go")},
		field{"goVersion", ldvalue.String(runtime.Version())},
		field{"osName", ldvalue.String(normalizeOSName(runtime.GOOS))},
		field{"osArch", ldvalue.String(runtime.GOARCH)},
	)
}

// CreateInitEvent builds the one-time diagnostic-init payload sent at
// startup.
func (m *DiagnosticsManager) CreateInitEvent() ldvalue.Value {
	return buildEvent(
		field{"kind", ldvalue.String("diagnostic-init")},
		field{"id", m.id},
		field{"creationDate", ldvalue.Float64(float64(m.startTime))},
		field{"sdk", m.sdkData},
		field{"platform", platformInfo()},
	)
}

// CreateStatsEventAndReset builds the periodic diagnostic-stats payload and
// resets the per-window counters it reports (stream-init history and the
// data-since timestamp); droppedEvents/deduplicatedUsers/eventsInLastBatch
// are owned by the dispatcher and passed in rather than tracked here, since
// the dispatcher already computes them lock-free.
func (m *DiagnosticsManager) CreateStatsEventAndReset(droppedEvents, deduplicatedUsers, eventsInLastBatch int) ldvalue.Value {
	m.mu.Lock()
	defer m.mu.Unlock()

	timestamp := ldtime.UnixMillisFromTime(time.Now())
	event := buildEvent(
		field{"kind", ldvalue.String("diagnostic")},
		field{"id", m.id},
		field{"creationDate", ldvalue.Float64(float64(timestamp))},
		field{"dataSinceDate", ldvalue.Float64(float64(m.dataSinceTime))},
		field{"droppedEvents", ldvalue.Int(droppedEvents)},
		field{"deduplicatedUsers", ldvalue.Int(deduplicatedUsers)},
		field{"eventsInLastBatch", ldvalue.Int(eventsInLastBatch)},
		field{"streamInits", m.streamInitsSnapshot()},
	)

	m.streamInits = nil
	m.dataSinceTime = timestamp
	return event
}

func (m *DiagnosticsManager) streamInitsSnapshot() ldvalue.Value {
	arr := ldvalue.ArrayBuildWithCapacity(len(m.streamInits))
	for _, si := range m.streamInits {
		arr.Add(buildEvent(
			field{"timestamp", ldvalue.Float64(float64(si.timestamp))},
			field{"failed", ldvalue.Bool(si.failed)},
			field{"durationMillis", ldvalue.Float64(float64(si.durationMillis))},
		))
	}
	return arr.Build()
}

// osDisplayNames maps a subset of runtime.GOOS values to the display names
// the diagnostic event schema expects; anything else is reported as-is.
var osDisplayNames = map[string]string{
	"darwin":  "MacOS",
	"windows": "Windows",
	"linux":   "Linux",
}

func normalizeOSName(goos string) string {
	if name, ok := osDisplayNames[goos]; ok {
		return name
	}
	return goos
}
