// Package timerheap implements the reactor's deadline wheel: a binary
// min-heap keyed by absolute monotonic expiry, built on container/heap
// the way a priority queue is built anywhere in Go's standard toolbox —
// no third-party priority-queue library is warranted for this.
//
// Every node is addressable by a stable *Node handle so cancellation is
// O(log N) instead of a linear scan: Swap keeps each node's index field
// current, and a node's owner holds that *Node as its only reference
// back into the heap (never the reverse — the heap owns the node, the
// owner holds a non-owning pointer to it).
package timerheap

import (
	"container/heap"
	"errors"
	"time"
)

// ErrExhausted is returned by Add when the fixed-capacity node pool has
// no free nodes. The caller must close the connection it tried to arm.
var ErrExhausted = errors.New("timerheap: node pool exhausted")

// Node is one armed deadline. Owner is opaque to the heap; the reactor
// stores the connection record reference here and type-asserts it back
// out in the expiry callback.
type Node struct {
	Expiry time.Time
	Owner  any
	index  int
	inUse  bool
}

type nodeHeap []*Node

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	return h[i].Expiry.Before(h[j].Expiry)
}
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *nodeHeap) Push(x any) {
	n := x.(*Node)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	last := len(old) - 1
	n := old[last]
	old[last] = nil
	n.index = -1
	*h = old[:last]
	return n
}

// Wheel is a per-worker timer heap with a fixed-capacity backing node
// pool; it never allocates on the hot path once warmed up.
type Wheel struct {
	heap  nodeHeap
	nodes []Node
	free  []*Node
}

// New creates a Wheel with room for capacity simultaneously-armed timers.
func New(capacity int) *Wheel {
	w := &Wheel{
		heap:  make(nodeHeap, 0, capacity),
		nodes: make([]Node, capacity),
		free:  make([]*Node, 0, capacity),
	}
	for i := range w.nodes {
		w.free = append(w.free, &w.nodes[i])
	}
	return w
}

// Add arms a new deadline for owner at now+timeout and returns its
// handle. The caller must store the handle and pass it to Cancel before
// the owner is reused for anything else.
func (w *Wheel) Add(owner any, timeout time.Duration, now time.Time) (*Node, error) {
	if len(w.free) == 0 {
		return nil, ErrExhausted
	}
	n := w.free[len(w.free)-1]
	w.free = w.free[:len(w.free)-1]

	n.Expiry = now.Add(timeout)
	n.Owner = owner
	n.inUse = true
	heap.Push(&w.heap, n)
	return n, nil
}

// Cancel removes the entry referenced by handle. A nil handle, or a
// handle already cancelled (double-cancel race), is a silent no-op.
func (w *Wheel) Cancel(n *Node) {
	if n == nil || !n.inUse {
		return
	}
	heap.Remove(&w.heap, n.index)
	w.release(n)
}

func (w *Wheel) release(n *Node) {
	n.Owner = nil
	n.inUse = false
	w.free = append(w.free, n)
}

// NextTimeoutMs returns max(0, min-deadline-now) in whole milliseconds
// (a remainder under one millisecond is reported as 1), or -1
// (infinite) when the heap is empty.
func (w *Wheel) NextTimeoutMs(now time.Time) int {
	if len(w.heap) == 0 {
		return -1
	}
	d := w.heap[0].Expiry.Sub(now)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms <= 0 {
		// sub-millisecond remainder still counts as "not yet".
		return 1
	}
	return int(ms)
}

// ProcessExpired pops every entry with deadline <= now and invokes fn
// with its owner. fn must not call Add/Cancel on this wheel reentrantly
// for the same owner in a way that races the pop it is reacting to; the
// reactor always calls this at the head of an iteration, single-threaded.
func (w *Wheel) ProcessExpired(now time.Time, fn func(owner any)) {
	for len(w.heap) > 0 && !w.heap[0].Expiry.After(now) {
		n := heap.Pop(&w.heap).(*Node)
		owner := n.Owner
		w.release(n)
		fn(owner)
	}
}

// Len reports the number of currently armed timers.
func (w *Wheel) Len() int { return len(w.heap) }
