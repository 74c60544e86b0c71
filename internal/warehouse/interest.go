package warehouse

import "github.com/poutila/doxstrux/internal/token"

// Interest declares which tokens a collector wants. It is read once at
// registration.
type Interest struct {
	// Types are token kinds delivered to the collector.
	Types map[token.Kind]struct{}
	// Tags are HTML tags ("h1", "a", ...) delivered regardless of kind.
	Tags map[string]struct{}
	// IgnoreInside names containers whose contents are never delivered.
	// Containers are given by their context name ("blockquote", "table").
	IgnoreInside map[token.Kind]struct{}
}

// NewInterest returns an Interest in the given kinds.
func NewInterest(kinds ...token.Kind) Interest {
	in := Interest{
		Types:        make(map[token.Kind]struct{}, len(kinds)),
		Tags:         make(map[string]struct{}),
		IgnoreInside: make(map[token.Kind]struct{}),
	}
	for _, k := range kinds {
		in.Types[k] = struct{}{}
	}
	return in
}

// WithTags adds tags.
func (in Interest) WithTags(tags ...string) Interest {
	if in.Tags == nil {
		in.Tags = make(map[string]struct{})
	}
	for _, t := range tags {
		in.Tags[t] = struct{}{}
	}
	return in
}

// Ignoring adds ignore-inside containers. Open or close kinds are accepted
// and reduced to their context name.
func (in Interest) Ignoring(containers ...token.Kind) Interest {
	if in.IgnoreInside == nil {
		in.IgnoreInside = make(map[token.Kind]struct{})
	}
	for _, k := range containers {
		in.IgnoreInside[k.Context()] = struct{}{}
	}
	return in
}

// Empty reports whether the interest selects nothing.
func (in Interest) Empty() bool {
	return len(in.Types) == 0 && len(in.Tags) == 0
}
