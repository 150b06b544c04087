// Package pools implements the per-worker connection record pool: a
// plain LIFO index stack for the common case (worker-local, no atomics
// needed because only the owning worker ever touches it) backed by a
// lock-free CAS stack shared across all workers for the rare case where
// a worker's local pool is exhausted.
package pools

import "sync/atomic"

const emptyIndex = ^uint32(0)

// pack/unpack combine a monotonically increasing tag with the free-list
// head index into one CAS-able word. The tag changes on every push and
// pop, so a thread that reads `top`, gets preempted, and later attempts
// a CAS against the same index value fails if anything happened in
// between — ABA is avoided without ever recycling a pointer, exactly
// because the stack holds immutable array indices, not addresses.
func packTop(tag, idx uint32) uint64     { return uint64(tag)<<32 | uint64(idx) }
func unpackTop(v uint64) (tag, idx uint32) { return uint32(v >> 32), uint32(v) }

// Resettable constrains the pointer type of a pooled record. Record
// types are plain structs stored by value for cache locality; scrubbing
// one on release mutates it in place via a pointer-receiver Reset, so
// the constraint is expressed on PT (the pointer type) rather than on T
// itself — the standard generic-pool-over-pointer-receiver pattern.
type Resettable[T any] interface {
	*T
	Reset()
}

// Fallback is the global, lock-free, fixed-capacity CAS stack of
// records shared by every worker. Capacity is fixed at construction so
// no allocation occurs on the hot acquire/release path.
type Fallback[T any, PT Resettable[T]] struct {
	values []T
	next   []uint32
	top    atomic.Uint64
	gets   atomic.Uint64
	puts   atomic.Uint64
}

// NewFallback creates a Fallback with room for capacity records.
func NewFallback[T any, PT Resettable[T]](capacity int) *Fallback[T, PT] {
	f := &Fallback[T, PT]{
		values: make([]T, capacity),
		next:   make([]uint32, capacity),
	}
	for i := 0; i < capacity; i++ {
		if i == capacity-1 {
			f.next[i] = emptyIndex
		} else {
			f.next[i] = uint32(i + 1)
		}
	}
	if capacity == 0 {
		f.top.Store(packTop(0, emptyIndex))
	} else {
		f.top.Store(packTop(0, 0))
	}
	return f
}

// Pop removes and returns an index from the free stack. The second
// return is false when the fallback is itself exhausted.
func (f *Fallback[T, PT]) Pop() (uint32, bool) {
	for {
		old := f.top.Load()
		tag, idx := unpackTop(old)
		if idx == emptyIndex {
			return 0, false
		}
		next := f.next[idx]
		if f.top.CompareAndSwap(old, packTop(tag+1, next)) {
			f.gets.Add(1)
			return idx, true
		}
	}
}

// Push returns idx to the free stack.
func (f *Fallback[T, PT]) Push(idx uint32) {
	for {
		old := f.top.Load()
		tag, head := unpackTop(old)
		f.next[idx] = head
		if f.top.CompareAndSwap(old, packTop(tag+1, idx)) {
			f.puts.Add(1)
			return
		}
	}
}

// Get returns the backing record for idx as its pointer type.
func (f *Fallback[T, PT]) Get(idx uint32) PT { return PT(&f.values[idx]) }

// Depth returns the cumulative successful Pop and Push counts; capacity
// minus (gets - puts) is an instantaneous, racy estimate of free records
// remaining (for the pool-depth gauge only, never for correctness
// decisions).
func (f *Fallback[T, PT]) Depth() (gets, puts uint64) {
	return f.gets.Load(), f.puts.Load()
}

// Pool is one worker's connection record pool: a fixed-size local
// array with a LIFO free-index stack, falling back to a shared
// Fallback when the local array is exhausted. T is the plain record
// struct; PT is its pointer type, carrying the Reset method.
type Pool[T any, PT Resettable[T]] struct {
	local     []T
	localFree []int32
	fallback  *Fallback[T, PT]

	gets         atomic.Uint64
	puts         atomic.Uint64
	fallbackUsed atomic.Uint64
}

// NewPool creates a worker-local pool of localCapacity records,
// degrading to fallback (shared across workers) when exhausted.
func NewPool[T any, PT Resettable[T]](localCapacity int, fallback *Fallback[T, PT]) *Pool[T, PT] {
	p := &Pool[T, PT]{
		local:     make([]T, localCapacity),
		localFree: make([]int32, 0, localCapacity),
		fallback:  fallback,
	}
	for i := localCapacity - 1; i >= 0; i-- {
		p.localFree = append(p.localFree, int32(i))
	}
	return p
}

// Handle identifies where an acquired record lives so Release knows
// which free list to return it to.
type Handle int32

const noHandle Handle = 0

// Acquire returns a reset record and its handle, or ok=false if both
// the local pool and the fallback are exhausted.
func (p *Pool[T, PT]) Acquire() (rec PT, h Handle, ok bool) {
	if n := len(p.localFree); n > 0 {
		idx := p.localFree[n-1]
		p.localFree = p.localFree[:n-1]
		p.gets.Add(1)
		return PT(&p.local[idx]), Handle(idx + 1), true
	}
	if p.fallback != nil {
		if idx, got := p.fallback.Pop(); got {
			p.gets.Add(1)
			p.fallbackUsed.Add(1)
			return p.fallback.Get(idx), Handle(-1 - int32(idx)), true
		}
	}
	return nil, noHandle, false
}

// Release returns the record at h to whichever free list it came from.
// Idempotent handling of a handle already released is the caller's
// responsibility: a record already Free must not be released twice
// (the reactor guards this via connection state, not here).
func (p *Pool[T, PT]) Release(rec PT, h Handle) {
	if h == noHandle {
		return
	}
	rec.Reset()
	if h > 0 {
		p.localFree = append(p.localFree, int32(h-1))
	} else {
		p.fallback.Push(uint32(-1 - int32(h)))
	}
	p.puts.Add(1)
}

// Stats reports cumulative acquire/release counts and how many
// acquisitions had to fall back to the shared pool.
func (p *Pool[T, PT]) Stats() (gets, puts, fallbackUsed uint64) {
	return p.gets.Load(), p.puts.Load(), p.fallbackUsed.Load()
}
