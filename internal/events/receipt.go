package events

import (
	"context"
	"sync"

	"github.com/aristath/treasury/internal/database"
)

type receiptKey struct{}

// Receipt holds the audit records appended by one mutating call, in order
type Receipt struct {
	mu     sync.Mutex
	events []Event
}

// Collect returns a ctx that gathers emitted records into a receipt.
// If ctx already collects, the existing receipt is reused so nested calls
// report into the outermost one.
func Collect(ctx context.Context) (context.Context, *Receipt) {
	if r, ok := ctx.Value(receiptKey{}).(*Receipt); ok {
		return ctx, r
	}
	r := &Receipt{}
	return context.WithValue(ctx, receiptKey{}, r), r
}

func receiptFrom(ctx context.Context) (*Receipt, bool) {
	r, ok := ctx.Value(receiptKey{}).(*Receipt)
	return r, ok
}

func (r *Receipt) add(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the collected records
func (r *Receipt) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the collected records of one type
func (r *Receipt) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether at least one record of type t was collected
func (r *Receipt) Has(t EventType) bool {
	return len(r.OfType(t)) > 0
}

// Types returns the collected record types in emission order
func (r *Receipt) Types() []EventType {
	evts := r.Events()
	out := make([]EventType, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

// Execute runs fn as one atomic unit on rt and returns the records it emitted.
// A failed unit returns no receipt.
func Execute(ctx context.Context, rt *database.Runtime, fn func(ctx context.Context) error) (*Receipt, error) {
	ctx, receipt := Collect(ctx)
	if err := rt.Atomic(ctx, fn); err != nil {
		return nil, err
	}
	return receipt, nil
}
