package events

import (
	"sort"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Output event kind discriminators, per the wire format.
const (
	FeatureRequestEventKind = "feature"
	FeatureDebugEventKind   = "debug"
	CustomEventKind         = "custom"
	IdentifyEventKind       = "identify"
	IndexEventKind          = "index"
	SummaryEventKind        = "summary"
)

// outputFormatter is a pure function of (events, summary, config): no
// timers, no I/O, no hidden state. It is safe to call concurrently from
// multiple workers since contextRedactor carries no mutable state either.
type outputFormatter struct {
	redactor    contextRedactor
	inlineUsers bool
}

func newOutputFormatter(config EventsConfiguration) outputFormatter {
	return outputFormatter{redactor: newContextRedactor(config), inlineUsers: config.InlineUsers}
}

// wireEvent is implemented by every event kind that can appear in an output
// batch. Each kind owns its own field-writing logic, so adding a new event
// type means adding a method, not a new switch arm here.
type wireEvent interface {
	writeWireBody(obj *jwriter.ObjectState, f outputFormatter)
}

// writeOutputEvents serializes events followed, if summary is non-empty,
// by one summary pseudo-event. It returns the serialized bytes and the
// number of JSON array elements written (summary counts as one).
func (f outputFormatter) writeOutputEvents(events []Event, summary eventSummary) ([]byte, int) {
	n := len(events)

	w := jwriter.NewWriter()
	arr := w.Array()

	for _, e := range events {
		f.writeEvent(&w, e)
	}
	if summary.hasCounters() {
		f.writeSummary(&w, summary)
		n++
	}

	if n == 0 {
		return nil, 0
	}
	arr.End()
	return w.Bytes(), n
}

// writeEvent dispatches to whichever wireEvent implementation evt holds.
func (f outputFormatter) writeEvent(w *jwriter.Writer, evt Event) {
	obj := w.Object()
	if we, ok := evt.(wireEvent); ok {
		we.writeWireBody(&obj, f)
	}
	obj.End()
}

func (e FeatureRequestEvent) writeWireBody(obj *jwriter.ObjectState, f outputFormatter) {
	kind := FeatureRequestEventKind
	if e.debug {
		kind = FeatureDebugEventKind
	}
	writeKindAndDate(obj, kind, e.CreationDate)
	obj.Name("key").String(e.Key)
	obj.Maybe("version", e.Version.IsDefined()).Int(e.Version.IntValue())
	if f.inlineUsers {
		if e.debug {
			f.redactor.WriteContext(obj.Name("context"), &e.Context)
		} else {
			f.redactor.WriteContextRedactAnonymous(obj.Name("context"), &e.Context)
		}
	} else {
		writeContextKeys(obj, e.Context.Context())
	}
	obj.Maybe("variation", e.Variation.IsDefined()).Int(e.Variation.IntValue())
	e.Value.WriteToJSONWriter(obj.Name("value"))
	e.Default.WriteToJSONWriter(obj.Name("default"))
	obj.Maybe("prereqOf", e.PrereqOf.IsDefined()).String(e.PrereqOf.StringValue())
	if e.Reason.GetKind() != "" {
		e.Reason.WriteToJSONWriter(obj.Name("reason"))
	}
	writeSamplingRatio(obj, e.SamplingRatio)
}

func (e CustomEventData) writeWireBody(obj *jwriter.ObjectState, f outputFormatter) {
	writeKindAndDate(obj, CustomEventKind, e.CreationDate)
	obj.Name("key").String(e.Key)
	if !e.Data.IsNull() {
		e.Data.WriteToJSONWriter(obj.Name("data"))
	}
	writeContextKeys(obj, e.Context.Context())
	obj.Maybe("metricValue", e.HasMetric).Float64(e.MetricValue)
	writeSamplingRatio(obj, e.SamplingRatio)
}

func (e IdentifyEventData) writeWireBody(obj *jwriter.ObjectState, f outputFormatter) {
	writeKindAndDate(obj, IdentifyEventKind, e.CreationDate)
	f.redactor.WriteContext(obj.Name("context"), &e.Context)
	writeSamplingRatio(obj, e.SamplingRatio)
}

func (e indexEvent) writeWireBody(obj *jwriter.ObjectState, f outputFormatter) {
	writeKindAndDate(obj, IndexEventKind, e.CreationDate)
	f.redactor.WriteContext(obj.Name("context"), &e.Context)
}

// writeSamplingRatio omits the field entirely at the default ratio of 1,
// matching the wire format's "only present when non-default" convention.
func writeSamplingRatio(obj *jwriter.ObjectState, ratio ldvalue.OptionalInt) {
	v, ok := ratio.Get()
	if !ok || v == 1 {
		return
	}
	obj.Name("samplingRatio").Int(v)
}

func writeKindAndDate(obj *jwriter.ObjectState, kind string, creationDate ldtime.UnixMillisecondTime) {
	obj.Name("kind").String(kind)
	obj.Name("creationDate").Float64(float64(creationDate))
}

func writeContextKeys(obj *jwriter.ObjectState, c ldcontext.Context) {
	keysObj := obj.Name("contextKeys").Object()
	n := c.IndividualContextCount()
	if n == 0 {
		if c.IsDefined() {
			keysObj.Name(string(c.Kind())).String(c.Key())
		}
		keysObj.End()
		return
	}
	for i := 0; i < n; i++ {
		if ic := c.IndividualContextByIndex(i); ic.IsDefined() {
			keysObj.Name(string(ic.Kind())).String(ic.Key())
		}
	}
	keysObj.End()
}

// writeSummary writes the one summary pseudo-event for a flush batch. Flag
// keys, per-flag counters, and context kinds are all sorted before being
// written so that two batches with identical content always produce
// byte-identical output, unlike a raw map iteration.
func (f outputFormatter) writeSummary(w *jwriter.Writer, snapshot eventSummary) {
	obj := w.Object()
	obj.Name("kind").String(SummaryEventKind)
	obj.Name("startDate").Float64(float64(snapshot.startDate))
	obj.Name("endDate").Float64(float64(snapshot.endDate))

	flagKeys := make([]string, 0, len(snapshot.flags))
	for k := range snapshot.flags {
		flagKeys = append(flagKeys, k)
	}
	sort.Strings(flagKeys)

	allFlagsObj := obj.Name("features").Object()
	for _, flagKey := range flagKeys {
		flagObj := allFlagsObj.Name(flagKey).Object()
		writeFlagSummary(&flagObj, snapshot.flags[flagKey])
	}
	allFlagsObj.End()
	obj.End()
}

func writeFlagSummary(flagObj *jwriter.ObjectState, fs flagSummary) {
	fs.defaultValue.WriteToJSONWriter(flagObj.Name("default"))

	countersArr := flagObj.Name("counters").Array()
	for _, ck := range sortedCounterKeys(fs.counters) {
		cv := fs.counters[ck]
		counterObj := countersArr.Object()
		counterObj.Maybe("variation", ck.variation.IsDefined()).Int(ck.variation.IntValue())
		if ck.version.IsDefined() {
			counterObj.Name("version").Int(ck.version.IntValue())
		} else {
			counterObj.Name("unknown").Bool(true)
		}
		cv.flagValue.WriteToJSONWriter(counterObj.Name("value"))
		counterObj.Name("count").Int(cv.count)
		counterObj.End()
	}
	countersArr.End()

	kinds := make([]string, 0, len(fs.contextKinds))
	for kind := range fs.contextKinds {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	kindsArr := flagObj.Name("contextKinds").Array()
	for _, kind := range kinds {
		kindsArr.String(kind)
	}
	kindsArr.End()

	flagObj.End()
}

// sortedCounterKeys orders counters by version then variation, with
// undefined values sorting last within their tier, so output order never
// depends on Go's randomized map iteration.
func sortedCounterKeys(counters map[counterKey]*counterValue) []counterKey {
	keys := make([]counterKey, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		av, aok := a.version.Get()
		bv, bok := b.version.Get()
		if aok != bok {
			return aok
		}
		if aok && av != bv {
			return av < bv
		}
		avar, avarOK := a.variation.Get()
		bvar, bvarOK := b.variation.Get()
		if avarOK != bvarOK {
			return avarOK
		}
		return avarOK && avar < bvar
	})
	return keys
}
