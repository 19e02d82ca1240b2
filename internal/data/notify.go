package data

import "sync"

// ChangeKind classifies a change notification.
type ChangeKind int

const (
	ChangeCreate ChangeKind = iota
	ChangeDelete
	ChangeMerge
	ChangeWipe
)

// Change describes one mutation of the working set. A sync merge emits
// a single aggregated Change, not one per record or field.
type Change struct {
	Kind     ChangeKind
	IssueIDs []string
	TagIDs   []string
}

// observers is a plain listener list. Callbacks run synchronously on
// the mutating goroutine, after the mutation is applied and the
// controller's lock is released.
type observers struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Change)
}

func (o *observers) subscribe(fn func(Change)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]func(Change))
	}
	id := o.next
	o.next++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

func (o *observers) notify(c Change) {
	o.mu.Lock()
	fns := make([]func(Change), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
