package haystack

import opentracing "github.com/opentracing/opentracing-go"

// Reference is a typed causal link from a span to another span's context.
type Reference struct {
	Context SpanContext
	Type    opentracing.SpanReferenceType
}

// ChildOf returns a CHILD_OF reference to parent.
func ChildOf(parent SpanContext) Reference {
	return Reference{Type: opentracing.ChildOfRef, Context: parent}
}

// FollowsFrom returns a FOLLOWS_FROM reference to predecessor.
func FollowsFrom(predecessor SpanContext) Reference {
	return Reference{Type: opentracing.FollowsFromRef, Context: predecessor}
}

// Equal reports whether r and other have the same type and referred span.
func (r Reference) Equal(other Reference) bool {
	return r.Type == other.Type && r.Context.Equal(other.Context)
}
