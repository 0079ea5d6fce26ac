package depot

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// firstGeneration is handed to every freshly created index so the zero Entity is never valid.
const firstGeneration uint32 = 1

type entityMeta struct {
	generation uint32
	location   EntityLocation
}

// Entities allocates entity identifiers and records where each live entity is stored.
//
// Alloc, Free, Reserve and Flush require exclusive access. ReserveEntity and ReserveEntities
// may be called concurrently with each other and with reads; the reserved ids become live on
// the next Flush.
type Entities struct {
	meta []entityMeta

	// pending is the free list. Indices in pending[freeCursor:] have been handed out by
	// ReserveEntity but not yet flushed.
	pending []uint32

	// freeCursor counts unreserved entries of pending. Once it goes negative, -freeCursor
	// brand new indices past len(meta) have been reserved.
	freeCursor atomic.Int64

	len uint32
}

func newEntities(capacity int) *Entities {
	return &Entities{
		meta: make([]entityMeta, 0, capacity),
	}
}

// Alloc returns a fresh id, recycling a freed index when one is available.
func (es *Entities) Alloc() Entity {
	es.verifyFlushed()
	es.len++
	if n := len(es.pending); n > 0 {
		index := es.pending[n-1]
		es.pending = es.pending[:n-1]
		es.freeCursor.Store(int64(len(es.pending)))
		return Entity{Index: index, Generation: es.meta[index].generation}
	}
	index := uint32(len(es.meta))
	es.meta = append(es.meta, entityMeta{generation: firstGeneration, location: InvalidLocation})
	return Entity{Index: index, Generation: firstGeneration}
}

// ReserveEntity reserves an id without exclusive access.
func (es *Entities) ReserveEntity() Entity {
	n := es.freeCursor.Add(-1) + 1
	if n > 0 {
		index := es.pending[n-1]
		return Entity{Index: index, Generation: es.meta[index].generation}
	}
	return Entity{Index: uint32(int64(len(es.meta)) - n), Generation: firstGeneration}
}

// ReserveEntities reserves count ids at once without exclusive access.
func (es *Entities) ReserveEntities(count int) []Entity {
	if count <= 0 {
		return nil
	}
	end := es.freeCursor.Add(-int64(count)) + int64(count)
	start := end - int64(count)

	reserved := make([]Entity, 0, count)
	for i := max(start, 0); i < max(end, 0); i++ {
		index := es.pending[i]
		reserved = append(reserved, Entity{Index: index, Generation: es.meta[index].generation})
	}
	base := int64(len(es.meta))
	for index := base - min(end, 0); index < base-start; index++ {
		reserved = append(reserved, Entity{Index: uint32(index), Generation: firstGeneration})
	}
	return reserved
}

// Reserve grows internal capacity so the next additional allocations do not reallocate.
func (es *Entities) Reserve(additional int) {
	es.verifyFlushed()
	freeList := int(es.freeCursor.Load())
	if shortfall := additional - freeList; shortfall > 0 {
		es.meta = slices.Grow(es.meta, shortfall)
	}
}

// Free releases e and returns its last location. Freeing a stale or already freed handle
// reports false.
func (es *Entities) Free(e Entity) (EntityLocation, bool) {
	es.verifyFlushed()
	if int(e.Index) >= len(es.meta) {
		return InvalidLocation, false
	}
	m := &es.meta[e.Index]
	if m.generation != e.Generation {
		return InvalidLocation, false
	}
	m.generation = nextGeneration(m.generation)
	loc := m.location
	m.location = InvalidLocation

	es.pending = append(es.pending, e.Index)
	es.freeCursor.Store(int64(len(es.pending)))
	es.len--
	return loc, true
}

// IsValid reports whether e is live, including reserved ids that are still waiting for a flush.
func (es *Entities) IsValid(e Entity) bool {
	resolved, ok := es.resolve(e.Index)
	return ok && resolved.Generation == e.Generation
}

// Contains is an alias of IsValid.
func (es *Entities) Contains(e Entity) bool {
	return es.IsValid(e)
}

// resolve returns the current handle for index, if the index has ever been handed out.
func (es *Entities) resolve(index uint32) (Entity, bool) {
	if int(index) < len(es.meta) {
		return Entity{Index: index, Generation: es.meta[index].generation}, true
	}
	cursor := es.freeCursor.Load()
	if cursor < 0 && int64(index)-int64(len(es.meta)) < -cursor {
		return Entity{Index: index, Generation: firstGeneration}, true
	}
	return Entity{}, false
}

// NeedsFlush reports whether reserved ids are waiting to be placed.
func (es *Entities) NeedsFlush() bool {
	return es.freeCursor.Load() != int64(len(es.pending))
}

// Flush makes every reserved id live, calling init for each so the caller can place it.
func (es *Entities) Flush(init func(Entity, *EntityLocation)) {
	cursor := es.freeCursor.Load()
	newFreeCursor := cursor
	if cursor < 0 {
		oldLen := len(es.meta)
		newLen := oldLen + int(-cursor)
		es.meta = slices.Grow(es.meta, newLen-oldLen)
		for range newLen - oldLen {
			es.meta = append(es.meta, entityMeta{generation: firstGeneration, location: InvalidLocation})
		}
		es.len += uint32(-cursor)
		for i := oldLen; i < newLen; i++ {
			init(Entity{Index: uint32(i), Generation: es.meta[i].generation}, &es.meta[i].location)
		}
		newFreeCursor = 0
		es.freeCursor.Store(0)
	}

	es.len += uint32(int64(len(es.pending)) - newFreeCursor)
	for _, index := range es.pending[newFreeCursor:] {
		init(Entity{Index: index, Generation: es.meta[index].generation}, &es.meta[index].location)
	}
	es.pending = es.pending[:newFreeCursor]
}

// Len is the number of live entities, reserved ones excluded until flushed.
func (es *Entities) Len() int {
	return int(es.len)
}

// Capacity is the number of indices that can be created without growing.
func (es *Entities) Capacity() int {
	return cap(es.meta)
}

func (es *Entities) verifyFlushed() {
	if es.NeedsFlush() {
		panic(fmt.Sprintf("depot: %d reserved entities must be flushed first", es.pendingCount()))
	}
}

func (es *Entities) pendingCount() int64 {
	return int64(len(es.pending)) - es.freeCursor.Load()
}

func nextGeneration(g uint32) uint32 {
	g++
	if g == 0 {
		g = firstGeneration
	}
	return g
}
