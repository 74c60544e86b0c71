package collectors

import "github.com/poutila/doxstrux/internal/warehouse"

// bounded is a capped item list. The cap is checked before every append;
// the first rejected item sets truncated.
type bounded[T any] struct {
	items     []T
	max       int
	truncated bool
}

func newBounded[T any](max int) bounded[T] {
	return bounded[T]{max: max}
}

// add appends v and returns its index, or -1 when the cap is reached.
func (b *bounded[T]) add(v T) int {
	if len(b.items) >= b.max {
		b.truncated = true
		return -1
	}
	b.items = append(b.items, v)
	return len(b.items) - 1
}

func (b *bounded[T]) at(i int) *T {
	if i < 0 || i >= len(b.items) {
		return nil
	}
	return &b.items[i]
}

// output hands the items over and clears the list.
func (b *bounded[T]) output() warehouse.Output {
	items := b.items
	if items == nil {
		items = make([]T, 0)
	}
	out := warehouse.Output{
		Items: items,
		Truncation: warehouse.Truncation{
			Truncated:  b.truncated,
			Count:      len(items),
			MaxAllowed: b.max,
		},
	}
	b.items = nil
	return out
}

// position remembers the last line seen. Inline children carry no line
// map, so collectors take it from the enclosing block token.
type position struct {
	line    uint32
	section string
}

func (p *position) update(dc *warehouse.DispatchContext) {
	if dc.HasLine {
		p.line = dc.Line
		p.section = dc.Section
	}
}
