// Package warehouse dispatches a flat token stream to a fixed set of
// collectors in a single forward pass.
//
// Routing is precomputed: each collector gets one bit, assigned by sorted
// name, and every token kind and tag maps to the mask of interested
// collectors. Per-token failures (timeouts, panics, returned errors,
// invalid line data) are recorded and never abort the pass. A malformed
// stream is rejected before any collector sees it.
package warehouse

import (
	"context"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/logging"
	"github.com/poutila/doxstrux/internal/sections"
	"github.com/poutila/doxstrux/internal/token"
)

// Warehouse owns the collectors of one document.
type Warehouse struct {
	cfg   Config
	log   logging.Logger
	scope TimeoutScope

	// registered keeps registration order for finalize
	registered []Collector
	// byBit is indexed by routing bit
	byBit   []Collector
	routing RoutingTable

	sections *sections.Index

	dispatching atomic.Bool
	finalized   atomic.Bool

	// quarantined collectors have an abandoned call still running and
	// receive nothing until it returns; only touched while the
	// dispatching guard is held
	quarantined Mask
	inflight    map[int]<-chan struct{}

	mu         sync.Mutex
	warnings   []Warning
	errs       []CollectorError
	elapsed    time.Duration
	tokenCount int
}

// New validates cfg, builds the routing table and the timeout scope.
func New(cfg Config, collectors ...Collector) (*Warehouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scope, err := NewTimeoutScope(cfg.TimeoutMode)
	if err != nil {
		return nil, err
	}

	for _, c := range collectors {
		if c == nil {
			return nil, errors.ConfigInvalid("nil collector registered", nil)
		}
		if reservedNames[c.Name()] {
			return nil, errors.ConfigInvalid(fmt.Sprintf("collector name %q is reserved", c.Name()), nil)
		}
	}

	routing, byBit, err := BuildRouting(collectors)
	if err != nil {
		return nil, errors.ConfigInvalid("cannot build routing table", err)
	}

	w := &Warehouse{
		cfg:        cfg,
		log:        cfg.logger(),
		scope:      scope,
		registered: append([]Collector(nil), collectors...),
		byBit:      byBit,
		routing:    routing,
		inflight:   make(map[int]<-chan struct{}),
	}

	w.log.Debug(context.Background(), "Warehouse created",
		"collectors", routing.Names,
		"timeout_mode", scope.Mode(),
		"collector_timeout", cfg.CollectorTimeout)

	return w, nil
}

// Config returns the warehouse configuration.
func (w *Warehouse) Config() Config { return w.cfg }

// Routing returns a copy of the routing table.
func (w *Warehouse) Routing() RoutingTable { return w.routing.Clone() }

// Sections returns the section index built by the last DispatchAll.
func (w *Warehouse) Sections() *sections.Index { return w.sections }

// SectionOf returns the section containing line.
func (w *Warehouse) SectionOf(line uint32) (string, bool) {
	return w.sections.SectionOf(line)
}

// DispatchAll makes one forward pass over tokens. The slice is only read.
//
// A concurrent call on the same warehouse fails at once with
// ErrReentrancy and changes nothing. A stream whose nesting goes negative
// or whose line starts decrease fails with ErrMalformedStream before any
// collector is invoked.
func (w *Warehouse) DispatchAll(ctx context.Context, tokens []token.Token) error {
	if !w.dispatching.CompareAndSwap(false, true) {
		return errors.NewInternalError(errors.ErrCodeReentrancy, "dispatch already in progress", nil).
			WithComponent(WarehouseComponent)
	}
	defer w.dispatching.Store(false)

	if w.finalized.Load() {
		return errors.NewInternalError(errors.ErrCodeFinalized, "dispatch after finalize", nil).
			WithComponent(WarehouseComponent)
	}

	start := time.Now()
	perf := logging.StartOperation(w.log, "dispatch")

	ix, err := w.prescan(tokens)
	if err != nil {
		w.log.Warn(ctx, err, "Token stream rejected", "tokens", len(tokens))
		return err
	}
	w.sections = ix

	var (
		top          *frame
		overflow     int
		depthWarned  bool
		maxDepth     = w.cfg.MaxNestingDepth
		maxLine      = w.cfg.MaxLineNumber
		invalidLines int
	)

	for i := range tokens {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := &tokens[i]

		if t.Nesting < 0 {
			if overflow > 0 {
				overflow--
			} else if top != nil {
				top = top.parent
			}
		}

		line, hasLine, reason := checkLines(t, maxLine)
		if reason != "" {
			invalidLines++
			w.addError(CollectorError{
				Collector:  WarehouseComponent,
				TokenIndex: i,
				Kind:       KindInvalidLine,
				Message:    reason,
			})
		} else {
			w.deliver(ctx, i, t, line, hasLine, top)
		}

		if t.Nesting > 0 {
			depth := 0
			var ignore Mask
			if top != nil {
				depth = top.depth
				ignore = top.ignore
			}
			if depth >= maxDepth {
				overflow++
				if !depthWarned {
					depthWarned = true
					w.addWarning(Warning{
						Kind:       WarnNestingDepth,
						TokenIndex: i,
						Message:    fmt.Sprintf("nesting deeper than %d; inner containers are counted but not tracked", maxDepth),
					})
				}
			} else {
				kind := t.Type.Context()
				top = &frame{
					kind:   kind,
					parent: top,
					depth:  depth + 1,
					ignore: ignore | w.routing.IgnoreMask[kind],
				}
			}
		}
	}

	w.mu.Lock()
	w.elapsed += time.Since(start)
	w.tokenCount += len(tokens)
	w.mu.Unlock()

	if invalidLines > 0 {
		w.log.Warn(ctx, nil, "Skipped tokens with invalid line data", "count", invalidLines)
	}
	perf.End(ctx, "tokens", len(tokens), "sections", ix.Len())

	return nil
}

// deliver invokes every interested collector for one token, in bit order.
func (w *Warehouse) deliver(ctx context.Context, i int, t *token.Token, line uint32, hasLine bool, top *frame) {
	if w.quarantined != 0 {
		w.readmit(ctx, i)
	}
	mask := w.routing.Route(t.Type, t.Tag) &^ w.quarantined
	if top != nil {
		mask &^= top.ignore
	}
	if mask == 0 {
		return
	}

	base := DispatchContext{Index: i, Line: line, HasLine: hasLine, top: top, w: w}
	if hasLine {
		base.Section, _ = w.sections.SectionOf(line)
	}
	view := token.NewView(t)

	for m := mask; m != 0; m &= m - 1 {
		if ctx.Err() != nil {
			return
		}
		bit := bits.TrailingZeros64(uint64(m))
		c := w.byBit[bit]
		dc := base
		err := w.scope.Run(ctx, w.cfg.CollectorTimeout, func(cctx context.Context) error {
			return c.OnToken(cctx, view, &dc)
		})
		w.handle(ctx, bit, c.Name(), i, err)
	}
}

// handle records the outcome of one collector call.
func (w *Warehouse) handle(ctx context.Context, bit int, name string, index int, err error) {
	if err == nil {
		return
	}

	var slow *SlowCallError
	if errors.As(err, &slow) {
		w.addWarning(Warning{
			Kind:       WarnCollectorSlow,
			Collector:  name,
			TokenIndex: index,
			Message:    slow.Error(),
		})
		w.log.Warn(ctx, nil, "Collector overran its budget", "collector", name, "token_index", index, "elapsed", slow.Elapsed)
		if slow.Err == nil {
			return
		}
		err = slow.Err
	}

	var abandoned *AbandonedCallError
	if errors.As(err, &abandoned) {
		w.quarantine(ctx, bit, name, index, abandoned.Done)
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}

	var panicErr *PanicError
	switch {
	case errors.Is(err, errors.ErrCollectorTimeout):
		w.addError(CollectorError{Collector: name, TokenIndex: index, Kind: KindCollectorTimeout, Message: err.Error()})
		w.log.Warn(ctx, err, "Collector timed out", "collector", name, "token_index", index)
	case errors.As(err, &panicErr):
		w.addError(CollectorError{Collector: name, TokenIndex: index, Kind: KindCollectorPanic, Message: panicErr.Error()})
		w.log.Error(ctx, err, "Collector panicked", "collector", name, "token_index", index, "stack", string(panicErr.Stack))
	default:
		w.addError(CollectorError{Collector: name, TokenIndex: index, Kind: KindCollectorError, Message: err.Error()})
		w.log.Debug(ctx, "Collector returned an error", "collector", name, "token_index", index, "error", err.Error())
	}
}

// FinalizeAll calls Finalize once per collector in registration order and
// then drops every collector reference. A second call returns
// ErrFinalized.
func (w *Warehouse) FinalizeAll(ctx context.Context) (*Result, error) {
	if !w.dispatching.CompareAndSwap(false, true) {
		return nil, errors.NewInternalError(errors.ErrCodeReentrancy, "finalize during dispatch", nil).
			WithComponent(WarehouseComponent)
	}
	defer w.dispatching.Store(false)

	if !w.finalized.CompareAndSwap(false, true) {
		return nil, errors.NewInternalError(errors.ErrCodeFinalized, "warehouse already finalized", nil).
			WithComponent(WarehouseComponent)
	}

	start := time.Now()
	result := &Result{PerCollector: make(map[string]Output, len(w.registered))}

	for _, c := range w.registered {
		name := c.Name()
		bit, _ := w.routing.Bit(name)

		if w.quarantined.Has(bit) && !w.awaitAbandoned(ctx, bit) {
			result.PerCollector[name] = emptyOutput()
			w.addWarning(Warning{
				Kind:       WarnQuarantined,
				Collector:  name,
				TokenIndex: -1,
				Message:    "output discarded; a timed-out call is still running",
			})
			w.log.Warn(ctx, nil, "Quarantined collector still busy at finalize", "collector", name)
			continue
		}

		var out Output
		err := w.scope.Run(ctx, w.cfg.CollectorTimeout, func(cctx context.Context) error {
			var ferr error
			out, ferr = c.Finalize(cctx, w)
			return ferr
		})

		var slow *SlowCallError
		if errors.As(err, &slow) {
			w.addWarning(Warning{Kind: WarnCollectorSlow, Collector: name, TokenIndex: -1, Message: slow.Error()})
			err = slow.Err
		}

		if err != nil {
			kind := KindCollectorError
			var panicErr *PanicError
			switch {
			case errors.Is(err, errors.ErrCollectorTimeout):
				kind = KindCollectorTimeout
			case errors.As(err, &panicErr):
				kind = KindCollectorPanic
			}
			w.addError(CollectorError{Collector: name, TokenIndex: -1, Kind: kind, Message: err.Error()})
			w.log.Warn(ctx, err, "Collector finalize failed", "collector", name)
			result.PerCollector[name] = emptyOutput()
			continue
		}

		if out.Items == nil {
			out.Items = []struct{}{}
		}
		result.PerCollector[name] = out
	}

	w.mu.Lock()
	w.elapsed += time.Since(start)
	result.Warnings = w.warnings
	result.CollectorErrors = w.errs
	result.Elapsed = w.elapsed
	result.TokenCount = w.tokenCount
	w.warnings = nil
	w.errs = nil
	w.mu.Unlock()

	// release everything the collectors hold
	w.registered = nil
	w.byBit = nil
	w.routing = RoutingTable{}
	w.sections = nil
	w.inflight = nil

	w.log.Debug(ctx, "Warehouse finalized",
		"collectors", len(result.PerCollector),
		"warnings", len(result.Warnings),
		"collector_errors", len(result.CollectorErrors))

	return result, nil
}

// quarantine stops deliveries to a collector until its abandoned call
// returns.
func (w *Warehouse) quarantine(ctx context.Context, bit int, name string, index int, done <-chan struct{}) {
	w.quarantined |= Mask(1) << uint(bit)
	w.inflight[bit] = done
	w.log.Warn(ctx, nil, "Collector quarantined while an abandoned call runs", "collector", name, "token_index", index)
}

// readmit lifts the quarantine of every collector whose abandoned call
// has returned. Tokens skipped in between are not replayed.
func (w *Warehouse) readmit(ctx context.Context, index int) {
	for bit, done := range w.inflight {
		select {
		case <-done:
		default:
			continue
		}
		w.release(bit)
		name := w.routing.Names[bit]
		w.addWarning(Warning{
			Kind:       WarnReadmitted,
			Collector:  name,
			TokenIndex: index,
			Message:    "abandoned call returned; deliveries resumed",
		})
		w.log.Info(ctx, "Collector readmitted", "collector", name, "token_index", index)
	}
}

// awaitAbandoned waits up to one collector budget for the abandoned call
// of bit to return. It reports whether the collector may be finalized.
func (w *Warehouse) awaitAbandoned(ctx context.Context, bit int) bool {
	done, ok := w.inflight[bit]
	if !ok {
		return false
	}

	timer := time.NewTimer(w.cfg.CollectorTimeout)
	defer timer.Stop()

	select {
	case <-done:
		w.release(bit)
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (w *Warehouse) release(bit int) {
	w.quarantined &^= Mask(1) << uint(bit)
	delete(w.inflight, bit)
}

func (w *Warehouse) addWarning(wn Warning) {
	w.mu.Lock()
	w.warnings = append(w.warnings, wn)
	w.mu.Unlock()
}

func (w *Warehouse) addError(e CollectorError) {
	w.mu.Lock()
	w.errs = append(w.errs, e)
	w.mu.Unlock()
}
