// Package kernel implements the per-tick propagation algorithm (Ticker) and
// the wake queue a scheduler uses to know which component to update next.
package kernel

import (
	"container/heap"
	"sync"

	"github.com/dls-controls/tickit/sim"
)

// wakeEntry pairs a component with the SimTime it next wants to be woken at.
type wakeEntry struct {
	component sim.ComponentID
	time      sim.SimTime
	heapIndex int
}

// WakeQueue is a thread-safe min-heap of (SimTime, ComponentID) ordered by
// time, with at most one outstanding entry per component: scheduling a
// wakeup for a component that already has one replaces it, matching the
// original scheduler's plain-map wakeups semantics rather than allowing
// duplicate entries to pile up.
type WakeQueue struct {
	mu      sync.Mutex
	heap    wakeHeap
	entryOf map[sim.ComponentID]*wakeEntry
}

// NewWakeQueue creates an empty WakeQueue.
func NewWakeQueue() *WakeQueue {
	q := &WakeQueue{entryOf: map[sim.ComponentID]*wakeEntry{}}
	heap.Init(&q.heap)

	return q
}

// Schedule sets (or replaces) the wakeup time for component.
func (q *WakeQueue) Schedule(component sim.ComponentID, at sim.SimTime) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry, ok := q.entryOf[component]; ok {
		entry.time = at
		heap.Fix(&q.heap, entry.heapIndex)

		return
	}

	entry := &wakeEntry{component: component, time: at}
	heap.Push(&q.heap, entry)
	q.entryOf[component] = entry
}

// Cancel removes any pending wakeup for component, if one exists.
func (q *WakeQueue) Cancel(component sim.ComponentID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entryOf[component]
	if !ok {
		return
	}

	heap.Remove(&q.heap, entry.heapIndex)
	delete(q.entryOf, component)
}

// Len returns the number of components with a pending wakeup.
func (q *WakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.heap.Len()
}

// NextTime returns the earliest pending wakeup time and true, or false if
// the queue is empty.
func (q *WakeQueue) NextTime() (sim.SimTime, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return 0, false
	}

	return q.heap[0].time, true
}

// PopDue removes and returns every component whose wakeup time equals the
// earliest pending time (components tied for the next wakeup are coalesced
// into a single tick), and that time. It returns an empty slice and false
// if the queue is empty.
func (q *WakeQueue) PopDue() ([]sim.ComponentID, sim.SimTime, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.heap.Len() == 0 {
		return nil, 0, false
	}

	first := q.heap[0].time

	var due []sim.ComponentID

	for q.heap.Len() > 0 && q.heap[0].time == first {
		entry := heap.Pop(&q.heap).(*wakeEntry)
		delete(q.entryOf, entry.component)
		due = append(due, entry.component)
	}

	return due, first, true
}

type heapEntry = wakeEntry

// wakeHeap implements container/heap.Interface over wakeEntry pointers,
// each tracking its own position so WakeQueue.Schedule can Fix an existing
// entry in place rather than pushing a duplicate (grounded on the teacher's
// container/heap based EventQueueImpl, extended with index tracking since
// WakeQueue additionally needs O(log n) updates of an existing entry).
type wakeHeap []*heapEntry

func (h wakeHeap) Len() int            { return len(h) }
func (h wakeHeap) Less(i, j int) bool  { return h[i].time < h[j].time }
func (h wakeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *wakeHeap) Push(x interface{}) {
	entry := x.(*wakeEntry)
	entry.heapIndex = len(*h)
	*h = append(*h, entry)
}

func (h *wakeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return entry
}
