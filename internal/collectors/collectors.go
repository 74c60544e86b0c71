// Package collectors holds the fixed set of extractors registered with a
// warehouse: links, images, headings, code blocks, tables, lists and raw
// HTML.
//
// The set is closed. New switches over every Kind, so adding a kind
// without a constructor fails the exhaustiveness test rather than
// silently registering nothing.
package collectors

import (
	"fmt"

	"github.com/poutila/doxstrux/internal/security"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// Kind names a collector. The value is also its output key.
type Kind string

const (
	Links      Kind = "links"
	Images     Kind = "images"
	Headings   Kind = "headings"
	CodeBlocks Kind = "code_blocks"
	Tables     Kind = "tables"
	Lists      Kind = "lists"
	RawHTML    Kind = "raw_html"
)

// Kinds returns every collector kind in output order.
func Kinds() []Kind {
	return []Kind{Links, Images, Headings, CodeBlocks, Tables, Lists, RawHTML}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown collector %q", s)
}

// New builds one collector from the warehouse limits.
func New(kind Kind, cfg warehouse.Config) (warehouse.Collector, error) {
	switch kind {
	case Links:
		return newLinks(cfg.MaxLinksPerDoc), nil
	case Images:
		return newImages(cfg.MaxImagesPerDoc), nil
	case Headings:
		return newHeadings(cfg.MaxHeadingsPerDoc), nil
	case CodeBlocks:
		return newCodeBlocks(cfg.MaxCodeBlocks, cfg.MaxCodeBlockBytes), nil
	case Tables:
		return newTables(cfg.MaxTablesPerDoc, cfg.MaxTableRows), nil
	case Lists:
		return newLists(cfg.MaxListItemsPerDoc), nil
	case RawHTML:
		if !cfg.AllowHTML {
			return closedHTML{max: cfg.MaxHTMLFragments}, nil
		}
		policy := security.NewHTMLPolicy(security.HTMLConfig{
			Enabled:     cfg.SanitizeOnFinalize,
			AllowImages: cfg.AllowHTMLImages,
		})
		return newRawHTML(cfg.MaxHTMLFragments, policy), nil
	default:
		return nil, fmt.Errorf("unknown collector kind %q", kind)
	}
}

// All builds the given kinds, or every kind when none are named.
func All(cfg warehouse.Config, kinds ...Kind) ([]warehouse.Collector, error) {
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	out := make([]warehouse.Collector, 0, len(kinds))
	for _, k := range kinds {
		c, err := New(k, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// NewWarehouse builds a warehouse with the given kinds registered.
func NewWarehouse(cfg warehouse.Config, kinds ...Kind) (*warehouse.Warehouse, error) {
	cs, err := All(cfg, kinds...)
	if err != nil {
		return nil, err
	}
	return warehouse.New(cfg, cs...)
}
