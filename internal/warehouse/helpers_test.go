package warehouse

import (
	"context"
	"sync"
	"time"

	"github.com/poutila/doxstrux/internal/token"
)

func lines(start, end uint32) *token.LineRange {
	return &token.LineRange{Start: start, End: end}
}

func open(kind string, line uint32) token.Token {
	return token.Token{Type: token.Kind(kind + "_open"), Nesting: 1, Map: lines(line, line+1)}
}

func closing(kind string) token.Token {
	return token.Token{Type: token.Kind(kind + "_close"), Nesting: -1}
}

func text(content string, line uint32) token.Token {
	return token.Token{Type: token.KindText, Content: content, Map: lines(line, line+1)}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CollectorTimeout = 50 * time.Millisecond
	return cfg
}

// recorder keeps the indices and sections it was given.
type recorder struct {
	name     string
	interest Interest

	mu       sync.Mutex
	indices  []int
	sections []string
	onToken  func(ctx context.Context, tok token.View, dc *DispatchContext) error
	finalize func() error
	order    *[]string
}

func newRecorder(name string, kinds ...token.Kind) *recorder {
	return &recorder{name: name, interest: NewInterest(kinds...)}
}

func (r *recorder) Name() string       { return r.name }
func (r *recorder) Interest() Interest { return r.interest }

func (r *recorder) OnToken(ctx context.Context, tok token.View, dc *DispatchContext) error {
	if r.onToken != nil {
		if err := r.onToken(ctx, tok, dc); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.indices = append(r.indices, dc.Index)
	r.sections = append(r.sections, dc.Section)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Finalize(ctx context.Context, w *Warehouse) (Output, error) {
	if r.order != nil {
		*r.order = append(*r.order, r.name)
	}
	if r.finalize != nil {
		if err := r.finalize(); err != nil {
			return Output{}, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	items := append([]int(nil), r.indices...)
	return Output{Items: items, Truncation: Truncation{Count: len(items), MaxAllowed: 100}}, nil
}

func (r *recorder) seen() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.indices...)
}
