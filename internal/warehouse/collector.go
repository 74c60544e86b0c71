package warehouse

import (
	"context"

	"github.com/poutila/doxstrux/internal/token"
)

// Collector extracts one category of facts from the token stream. A
// collector owns its state; the warehouse only calls OnToken for tokens in
// its Interest and Finalize once at the end.
type Collector interface {
	// Name is the stable key of the collector's output.
	Name() string
	// Interest is read once at registration.
	Interest() Interest
	// OnToken receives one routed token. ctx is cancelled when the
	// collector's time budget runs out.
	OnToken(ctx context.Context, tok token.View, dc *DispatchContext) error
	// Finalize returns the collected items. It is called exactly once.
	Finalize(ctx context.Context, w *Warehouse) (Output, error)
}

// Truncation describes how a capped collection ended.
type Truncation struct {
	Truncated  bool `json:"truncated" yaml:"truncated"`
	Count      int  `json:"count" yaml:"count"`
	MaxAllowed int  `json:"max_allowed" yaml:"max_allowed"`
}

// Output is one collector's finalized result.
type Output struct {
	Items      any `json:"items" yaml:"items"`
	Truncation `yaml:",inline"`
}

// emptyOutput stands in for a collector whose state was discarded.
func emptyOutput() Output {
	return Output{Items: []struct{}{}}
}

// frame is one open container. Frames are immutable once pushed, so a
// DispatchContext holding one stays valid while the stack moves on.
type frame struct {
	kind   token.Kind
	parent *frame
	depth  int
	ignore Mask
}

// DispatchContext describes the position of the token being delivered.
type DispatchContext struct {
	// Index is the token's position in the stream.
	Index int
	// Line is the token's start line, valid when HasLine is set.
	Line    uint32
	HasLine bool
	// Section is the ID of the section containing Line, or "".
	Section string

	top *frame
	w   *Warehouse
}

// Depth returns the number of open containers.
func (dc *DispatchContext) Depth() int {
	if dc.top == nil {
		return 0
	}
	return dc.top.depth
}

// Inside reports whether a container named kind is open. Open and close
// kinds are reduced to their context name.
func (dc *DispatchContext) Inside(kind token.Kind) bool {
	want := kind.Context()
	for f := dc.top; f != nil; f = f.parent {
		if f.kind == want {
			return true
		}
	}
	return false
}

// Parent returns the innermost open container, or "" at top level.
func (dc *DispatchContext) Parent() token.Kind {
	if dc.top == nil {
		return ""
	}
	return dc.top.kind
}

// Warehouse returns the dispatching warehouse.
func (dc *DispatchContext) Warehouse() *Warehouse { return dc.w }

// Warn records a warning attributed to the collector.
func (dc *DispatchContext) Warn(collector, kind, message string) {
	dc.w.addWarning(Warning{Kind: kind, Collector: collector, TokenIndex: dc.Index, Message: message})
}
