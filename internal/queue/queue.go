// Package queue provides the bounded priority queues used by the search paths.
package queue

import "container/heap"

// Compile time checks to ensure both queue orderings satisfy the heap interface.
var (
	_ heap.Interface = (*MinQueue)(nil)
	_ heap.Interface = (*MaxQueue)(nil)
)

// Item is an entry in a priority queue. Ordering is by Distance with the
// dataset index as tie-breaker, so equal-distance results are deterministic.
type Item struct {
	Index    uint32
	Distance float32
}

// Less reports whether a ranks strictly closer than b.
func (a Item) Less(b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Index < b.Index
}

// MinQueue is a min-heap of Items (closest on top).
type MinQueue struct {
	items []Item
}

// NewMin creates a min-heap with the given capacity hint.
func NewMin(capacity int) *MinQueue {
	return &MinQueue{items: make([]Item, 0, capacity)}
}

func (q *MinQueue) Len() int           { return len(q.items) }
func (q *MinQueue) Less(i, j int) bool { return q.items[i].Less(q.items[j]) }
func (q *MinQueue) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *MinQueue) Push(x any)         { q.items = append(q.items, x.(Item)) }

func (q *MinQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// Top returns the closest item without removing it.
func (q *MinQueue) Top() Item { return q.items[0] }

// PushItem pushes an item maintaining heap order.
func (q *MinQueue) PushItem(item Item) { heap.Push(q, item) }

// PopItem removes and returns the closest item.
func (q *MinQueue) PopItem() Item { return heap.Pop(q).(Item) }

// MaxQueue is a max-heap of Items (farthest on top). It is used as a bounded
// top-k collector: once full, a candidate replaces the top only if it ranks
// closer.
type MaxQueue struct {
	items []Item
}

// NewMax creates a max-heap with the given capacity hint.
func NewMax(capacity int) *MaxQueue {
	return &MaxQueue{items: make([]Item, 0, capacity)}
}

func (q *MaxQueue) Len() int           { return len(q.items) }
func (q *MaxQueue) Less(i, j int) bool { return q.items[j].Less(q.items[i]) }
func (q *MaxQueue) Swap(i, j int)      { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *MaxQueue) Push(x any)         { q.items = append(q.items, x.(Item)) }

func (q *MaxQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// Top returns the farthest item without removing it.
func (q *MaxQueue) Top() Item { return q.items[0] }

// PushItem pushes an item maintaining heap order.
func (q *MaxQueue) PushItem(item Item) { heap.Push(q, item) }

// PopItem removes and returns the farthest item.
func (q *MaxQueue) PopItem() Item { return heap.Pop(q).(Item) }

// Offer adds the candidate to a collector bounded at k items.
// When the queue is full the candidate replaces the current farthest
// item only if it ranks closer.
func (q *MaxQueue) Offer(item Item, k int) {
	if q.Len() < k {
		q.PushItem(item)
		return
	}
	if item.Less(q.Top()) {
		q.PopItem()
		q.PushItem(item)
	}
}
