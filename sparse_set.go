package depot

import (
	"reflect"
	"unsafe"
)

const absent = -1

// sparseSet stores one component for entities keyed by entity index. Values stay put when the
// owning entity changes archetype.
type sparseSet struct {
	dense    *column
	entities []uint32
	sparse   []int32
}

func newSparseSet(info *ComponentInfo, capacity int) *sparseSet {
	return &sparseSet{
		dense:    newColumn(info, capacity),
		entities: make([]uint32, 0, capacity),
	}
}

func (s *sparseSet) Len() int {
	return len(s.entities)
}

func (s *sparseSet) denseIndex(index uint32) (uint32, bool) {
	if int(index) >= len(s.sparse) {
		return 0, false
	}
	d := s.sparse[index]
	if d == absent {
		return 0, false
	}
	return uint32(d), true
}

func (s *sparseSet) contains(index uint32) bool {
	_, ok := s.denseIndex(index)
	return ok
}

func (s *sparseSet) get(index uint32) (unsafe.Pointer, bool) {
	d, ok := s.denseIndex(index)
	if !ok {
		return nil, false
	}
	return s.dense.ptr(d), true
}

// insert writes v for index, dropping a value it replaces.
func (s *sparseSet) insert(index uint32, v reflect.Value) {
	if d, ok := s.denseIndex(index); ok {
		s.dense.replace(d, v)
		return
	}
	for int(index) >= len(s.sparse) {
		s.sparse = append(s.sparse, absent)
	}
	d := s.dense.pushZero()
	s.dense.set(d, v)
	s.entities = append(s.entities, index)
	s.sparse[index] = int32(d)
}

// remove drops and deletes the value for index.
func (s *sparseSet) remove(index uint32) bool {
	d, ok := s.denseIndex(index)
	if !ok {
		return false
	}
	s.dense.dropAt(d)
	last := len(s.entities) - 1
	lastIndex := s.entities[last]
	s.dense.swapRemove(d)
	s.entities[d] = lastIndex
	s.entities = s.entities[:last]
	s.sparse[lastIndex] = int32(d)
	s.sparse[index] = absent
	return true
}

func (s *sparseSet) reserve(additional int) {
	s.dense.reserve(additional)
}
