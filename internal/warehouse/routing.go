package warehouse

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/poutila/doxstrux/internal/token"
)

// MaxCollectors is the number of bits in a Mask.
const MaxCollectors = 64

// Mask has bit i set when the collector with sorted position i is selected.
type Mask uint64

// Has reports whether bit i is set.
func (m Mask) Has(i int) bool { return m&(1<<uint(i)) != 0 }

// Count returns the number of selected collectors.
func (m Mask) Count() int { return bits.OnesCount64(uint64(m)) }

// RoutingTable maps kinds, tags and ignore contexts to collector masks.
// Bits are assigned by sorted collector name, so the table does not depend
// on registration order.
type RoutingTable struct {
	Names      []string            `json:"names" yaml:"names"`
	TypeMask   map[token.Kind]Mask `json:"type_mask" yaml:"type_mask"`
	TagMask    map[string]Mask     `json:"tag_mask" yaml:"tag_mask"`
	IgnoreMask map[token.Kind]Mask `json:"ignore_mask" yaml:"ignore_mask"`
}

// BuildRouting assigns bits and builds masks. It returns the collectors
// in bit order.
func BuildRouting(collectors []Collector) (RoutingTable, []Collector, error) {
	if len(collectors) > MaxCollectors {
		return RoutingTable{}, nil, fmt.Errorf("%d collectors registered, at most %d supported", len(collectors), MaxCollectors)
	}

	sorted := make([]Collector, len(collectors))
	copy(sorted, collectors)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	rt := RoutingTable{
		Names:      make([]string, len(sorted)),
		TypeMask:   make(map[token.Kind]Mask),
		TagMask:    make(map[string]Mask),
		IgnoreMask: make(map[token.Kind]Mask),
	}

	for i, c := range sorted {
		name := c.Name()
		if name == "" {
			return RoutingTable{}, nil, fmt.Errorf("collector at position %d has an empty name", i)
		}
		if i > 0 && rt.Names[i-1] == name {
			return RoutingTable{}, nil, fmt.Errorf("duplicate collector name %q", name)
		}
		rt.Names[i] = name

		bit := Mask(1) << uint(i)
		in := c.Interest()
		for k := range in.Types {
			rt.TypeMask[k] |= bit
		}
		for tag := range in.Tags {
			rt.TagMask[tag] |= bit
		}
		for k := range in.IgnoreInside {
			if k.Leaf() {
				return RoutingTable{}, nil, fmt.Errorf("collector %q ignores %q, which never contains tokens", name, k)
			}
			rt.IgnoreMask[k.Context()] |= bit
		}
	}

	return rt, sorted, nil
}

// Route returns the collectors interested in a token of kind with tag.
func (rt RoutingTable) Route(kind token.Kind, tag string) Mask {
	m := rt.TypeMask[kind]
	if tag != "" {
		m |= rt.TagMask[tag]
	}
	return m
}

// Bit returns the bit assigned to name.
func (rt RoutingTable) Bit(name string) (int, bool) {
	i := sort.SearchStrings(rt.Names, name)
	if i < len(rt.Names) && rt.Names[i] == name {
		return i, true
	}
	return 0, false
}

// Clone returns a deep copy.
func (rt RoutingTable) Clone() RoutingTable {
	out := RoutingTable{
		Names:      append([]string(nil), rt.Names...),
		TypeMask:   make(map[token.Kind]Mask, len(rt.TypeMask)),
		TagMask:    make(map[string]Mask, len(rt.TagMask)),
		IgnoreMask: make(map[token.Kind]Mask, len(rt.IgnoreMask)),
	}
	for k, v := range rt.TypeMask {
		out.TypeMask[k] = v
	}
	for k, v := range rt.TagMask {
		out.TagMask[k] = v
	}
	for k, v := range rt.IgnoreMask {
		out.IgnoreMask[k] = v
	}
	return out
}
