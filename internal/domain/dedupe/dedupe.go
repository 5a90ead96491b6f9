// Package dedupe tracks client request ids so that a resubmitted evaluation
// resolves to the report created by the first submission.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper maps request ids to report ids.
type Deduper interface {
	// Claim atomically binds requestID to reportID unless requestID is
	// already bound. It returns the bound report id and whether the
	// request was seen before.
	Claim(ctx context.Context, requestID, reportID string) (string, bool)

	// Release drops a binding so the request can be submitted again.
	// Used when a claimed submission could not be enqueued.
	Release(ctx context.Context, requestID string)

	Size() int64
}

// entry is a node of the insertion-ordered list used for eviction.
type entry struct {
	requestID  string
	reportID   string
	prev, next *entry
}

func (e *entry) reset() {
	e.requestID, e.reportID = "", ""
	e.prev, e.next = nil, nil
}

// inMemoryDeduper keeps bindings in a map. In bounded mode (maxSize > 0)
// it also keeps an insertion-ordered list and evicts the oldest binding
// when full. In unbounded mode the list is not maintained.
type inMemoryDeduper struct {
	mu       sync.Mutex
	entries  map[string]*entry
	head     *entry // newest
	tail     *entry // oldest
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.entries = make(map[string]*entry)
	d.nodePool = sync.Pool{
		New: func() any { return &entry{} },
	}
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, requestID, reportID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[requestID]; ok {
		return e.reportID, true
	}

	e := d.nodePool.Get().(*entry)
	e.requestID, e.reportID = requestID, reportID
	if d.maxSize > 0 {
		if len(d.entries) >= d.maxSize {
			d.evictOldest()
		}
		d.pushFront(e)
	}
	d.entries[requestID] = e
	d.size.Add(1)
	return reportID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[requestID]
	if !ok {
		return
	}
	delete(d.entries, requestID)
	if d.maxSize > 0 {
		d.unlink(e)
	}
	e.reset()
	d.nodePool.Put(e)
	d.size.Add(-1)
}

// Size returns the current number of bindings.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Must be called with d.mu held.
func (d *inMemoryDeduper) pushFront(e *entry) {
	e.next = d.head
	if d.head != nil {
		d.head.prev = e
	}
	d.head = e
	if d.tail == nil {
		d.tail = e
	}
}

// Must be called with d.mu held.
func (d *inMemoryDeduper) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		d.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		d.tail = e.prev
	}
}

// Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	e := d.tail
	if e == nil {
		return
	}
	d.unlink(e)
	delete(d.entries, e.requestID)
	e.reset()
	d.nodePool.Put(e)
	d.size.Add(-1)
}
