package events

import (
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldattr"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// pathSep joins attribute path components into a single flat lookup key.
// Attribute names containing this byte would be ambiguous, but it's a
// control character that never appears in practice.
const pathSep = "\x1f"

// contextRedactor writes a Context in the format used inside analytics
// events, redacting attributes per the pipeline's private-attribute
// configuration and/or the context's own per-attribute Private() markers.
type contextRedactor struct {
	allAttributesPrivate bool
	globalPrivate        privateAttrIndex
}

// privateAttrIndex answers, for a dotted attribute path, whether it is
// exactly a configured private attribute or an ancestor of one. It is a
// flat pair of maps built once at construction time rather than a tree
// walked on every lookup.
type privateAttrIndex struct {
	exact    map[string]ldattr.Ref
	ancestor map[string]struct{}
}

func newContextRedactor(config EventsConfiguration) contextRedactor {
	return contextRedactor{
		allAttributesPrivate: config.AllAttributesPrivate,
		globalPrivate:        indexPrivateAttributes(config.PrivateAttributes),
	}
}

// indexPrivateAttributes flattens a list of attribute references into the
// two lookup maps a privateAttrIndex needs: one keyed by the full path of
// each reference, and one keyed by every proper prefix of a reference's
// path (so "is something below me private?" is also an O(1) lookup).
func indexPrivateAttributes(attrRefList []ldattr.Ref) privateAttrIndex {
	idx := privateAttrIndex{exact: make(map[string]ldattr.Ref), ancestor: make(map[string]struct{})}
	for _, ref := range attrRefList {
		parts := refComponents(ref)
		for i := 1; i < len(parts); i++ {
			idx.ancestor[strings.Join(parts[:i], pathSep)] = struct{}{}
		}
		idx.exact[strings.Join(parts, pathSep)] = ref
	}
	return idx
}

func refComponents(ref ldattr.Ref) []string {
	parts := make([]string, ref.Depth())
	for i := range parts {
		parts[i] = ref.Component(i)
	}
	return parts
}

// lookup reports whether attrPath is itself a configured private attribute
// (exact, with the matched reference) or has a configured private
// descendant (nested).
func (idx privateAttrIndex) lookup(attrPath []string) (ref *ldattr.Ref, nested bool) {
	key := strings.Join(attrPath, pathSep)
	if matched, ok := idx.exact[key]; ok {
		return &matched, false
	}
	if _, ok := idx.ancestor[key]; ok {
		return nil, true
	}
	return nil, false
}

// WriteContext writes ec without anonymous-context blanket redaction.
func (f *contextRedactor) WriteContext(w *jwriter.Writer, ec *EventInputContext) {
	f.writeContext(w, ec, false)
}

// WriteContextRedactAnonymous writes ec, and if it is anonymous, redacts
// every attribute except key/kind/anonymous regardless of configuration.
// Used for the non-debug "feature" event, which is expected to carry a
// minimal context.
func (f *contextRedactor) WriteContextRedactAnonymous(w *jwriter.Writer, ec *EventInputContext) {
	f.writeContext(w, ec, true)
}

func (f *contextRedactor) writeContext(w *jwriter.Writer, ec *EventInputContext, redactAnonymous bool) {
	c := ec.Context()
	if c.Err() != nil {
		w.AddError(c.Err())
		return
	}
	if c.Multiple() {
		f.writeMultiKindContext(w, &c, redactAnonymous)
		return
	}
	f.writeSingleKindContext(w, &c, true, redactAnonymous)
}

func (f *contextRedactor) writeMultiKindContext(w *jwriter.Writer, c *ldcontext.Context, redactAnonymous bool) {
	obj := w.Object()
	obj.Name(ldattr.KindAttr).String(string(ldcontext.MultiKind))
	for i := 0; i < c.IndividualContextCount(); i++ {
		ic := c.IndividualContextByIndex(i)
		if !ic.IsDefined() {
			continue
		}
		obj.Name(string(ic.Kind()))
		f.writeSingleKindContext(w, &ic, false, redactAnonymous)
	}
	obj.End()
}

func (f *contextRedactor) writeSingleKindContext(
	w *jwriter.Writer,
	c *ldcontext.Context,
	includeKind, redactAnonymous bool,
) {
	allPrivate := f.allAttributesPrivate || (redactAnonymous && c.Anonymous())

	obj := w.Object()
	if includeKind {
		obj.Name(ldattr.KindAttr).String(string(c.Kind()))
	}
	obj.Name(ldattr.KeyAttr).String(c.Key())

	redacted := f.writeOrRedactAttributes(w, &obj, c, allPrivate)

	if c.Anonymous() {
		obj.Name(ldattr.AnonymousAttr).Bool(true)
	}
	writeRedactedAttrsMeta(&obj, redacted)

	obj.End()
}

// writeOrRedactAttributes walks every optional (non-key/kind/anonymous)
// attribute of c, writing it unless it is private, and returns the
// attribute-reference strings of everything that got redacted.
func (f *contextRedactor) writeOrRedactAttributes(
	w *jwriter.Writer,
	obj *jwriter.ObjectState,
	c *ldcontext.Context,
	allPrivate bool,
) []string {
	names := c.GetOptionalAttributeNames(make([]string, 0, 20))
	var redacted []string

	for _, name := range names {
		value := c.GetValue(name)
		if !value.IsDefined() {
			continue
		}
		if allPrivate {
			redacted = append(redacted, ldattr.NewLiteralRef(name).String())
			continue
		}
		redacted = f.writeAttribute(w, obj, c, []string{name}, value, redacted)
	}
	return redacted
}

// writeAttribute handles one attribute (or, when recursing, one property of
// an object-valued attribute) at path. It writes the value if no private
// reference covers it exactly, recursing into object values that have
// privacy configured only for some of their nested properties.
func (f *contextRedactor) writeAttribute(
	w *jwriter.Writer,
	parent *jwriter.ObjectState,
	c *ldcontext.Context,
	path []string,
	value ldvalue.Value,
	redacted []string,
) []string {
	exactRef, nestedPrivate, updated := f.classifyPath(c, path, value.Type(), redacted)
	redacted = updated
	key := path[len(path)-1]

	if value.Type() != ldvalue.ObjectType {
		if exactRef == "" {
			parent.Name(key)
			value.WriteToJSONWriter(w)
		}
		return redacted
	}

	if exactRef != "" {
		return redacted
	}
	parent.Name(key)
	if !nestedPrivate {
		value.WriteToJSONWriter(w)
		return redacted
	}

	sub := w.Object()
	for _, subKey := range value.Keys(make([]string, 0, 20)) {
		subPath := append(append([]string{}, path...), subKey)
		redacted = f.writeAttribute(w, &sub, c, subPath, value.GetByKey(subKey), redacted)
	}
	sub.End()
	return redacted
}

// classifyPath decides whether path is private (globally or per-context).
// It returns the matched attribute-reference string (non-empty if path
// itself is redacted, in which case it has already been appended to
// redacted), whether a nested property of path is separately private, and
// the (possibly extended) redacted slice.
func (f *contextRedactor) classifyPath(
	c *ldcontext.Context,
	path []string,
	valueType ldvalue.ValueType,
	redacted []string,
) (exactRef string, nestedPrivate bool, out []string) {
	if ref, nested := f.globalPrivate.lookup(path); ref != nil {
		return ref.String(), false, append(redacted, ref.String())
	} else if nested {
		nestedPrivate = true
	}

	checkNested := valueType == ldvalue.ObjectType
	for i := 0; i < c.PrivateAttributeCount(); i++ {
		a, _ := c.PrivateAttributeByIndex(i)
		exact, nested := refCoversPath(a, path, checkNested)
		if exact {
			return a.String(), false, append(redacted, a.String())
		}
		if nested {
			nestedPrivate = true
		}
	}
	return "", nestedPrivate, redacted
}

// refCoversPath reports whether ref governs path: exact means ref refers to
// path itself; nested means ref refers to something strictly beneath path
// (only meaningful when checkNested is true, i.e. path's value is an
// object that might need per-property filtering).
func refCoversPath(ref ldattr.Ref, path []string, checkNested bool) (exact, nested bool) {
	depth := ref.Depth()
	if depth < len(path) {
		return false, false
	}
	if !checkNested && depth > len(path) {
		return false, false
	}
	for i, want := range path {
		if ref.Component(i) != want {
			return false, false
		}
	}
	return depth == len(path), depth > len(path)
}

func writeRedactedAttrsMeta(obj *jwriter.ObjectState, redacted []string) {
	if len(redacted) == 0 {
		return
	}
	meta := obj.Name("_meta").Object()
	arr := meta.Name("redactedAttributes").Array()
	for _, a := range redacted {
		arr.String(a)
	}
	arr.End()
	meta.End()
}
