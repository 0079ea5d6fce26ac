package depot

import (
	"iter"
	"slices"
	"unsafe"

	"github.com/TheBitDrifter/mask"
)

const (
	slotAbsent int16 = -1
	slotSparse int16 = -2
)

// Archetype stores every entity that has exactly one set of components. Table components get a
// column each; all columns and the entity list always have the same length and row i of each
// belongs to entities[i].
type Archetype struct {
	id         ArchetypeID
	mask       mask.Mask
	components []ComponentID
	tableIDs   []ComponentID
	sparseIDs  []ComponentID
	columns    []*column
	slots      [maxComponentTypes]int16
	entities   []Entity
	edges      archetypeEdges
}

type archetypeEdges struct {
	add    map[ComponentID]ArchetypeID
	remove map[ComponentID]ArchetypeID
	bundle map[bundleID]ArchetypeID
}

func newArchetype(components *Components, id ArchetypeID, ids []ComponentID, capacity int) *Archetype {
	a := &Archetype{
		id:         id,
		components: ids,
		entities:   make([]Entity, 0, capacity),
		edges: archetypeEdges{
			add:    make(map[ComponentID]ArchetypeID),
			remove: make(map[ComponentID]ArchetypeID),
			bundle: make(map[bundleID]ArchetypeID),
		},
	}
	for i := range a.slots {
		a.slots[i] = slotAbsent
	}
	for _, cid := range ids {
		a.mask.Mark(uint32(cid))
		info := components.mustInfo(cid)
		if info.storage == StorageSparseSet {
			a.sparseIDs = append(a.sparseIDs, cid)
			a.slots[cid] = slotSparse
			continue
		}
		a.slots[cid] = int16(len(a.columns))
		a.tableIDs = append(a.tableIDs, cid)
		a.columns = append(a.columns, newColumn(info, capacity))
	}
	return a
}

func (a *Archetype) ID() ArchetypeID {
	return a.id
}

// Mask is the archetype's component signature.
func (a *Archetype) Mask() mask.Mask {
	return a.mask
}

func (a *Archetype) Len() int {
	return len(a.entities)
}

// Entities returns the row-ordered entity list. The slice is owned by the archetype.
func (a *Archetype) Entities() []Entity {
	return a.entities
}

// Components yields the archetype's component ids in ascending order.
func (a *Archetype) Components() iter.Seq[ComponentID] {
	return slices.Values(a.components)
}

func (a *Archetype) Contains(id ComponentID) bool {
	return id < maxComponentTypes && a.slots[id] != slotAbsent
}

// StorageType reports how id is stored for this archetype.
func (a *Archetype) StorageType(id ComponentID) (StorageType, bool) {
	if !a.Contains(id) {
		return 0, false
	}
	if a.slots[id] == slotSparse {
		return StorageSparseSet, true
	}
	return StorageTable, true
}

func (a *Archetype) column(id ComponentID) (*column, bool) {
	if id >= maxComponentTypes {
		return nil, false
	}
	slot := a.slots[id]
	if slot < 0 {
		return nil, false
	}
	return a.columns[slot], true
}

// ptr returns the address of id's value in row for a table component.
func (a *Archetype) ptr(id ComponentID, row uint32) (unsafe.Pointer, bool) {
	col, ok := a.column(id)
	if !ok {
		return nil, false
	}
	return col.ptr(row), true
}

func (a *Archetype) reserve(additional int) {
	a.entities = slices.Grow(a.entities, additional)
	for _, col := range a.columns {
		col.reserve(additional)
	}
}

// allocateRow appends a zeroed row for e.
func (a *Archetype) allocateRow(e Entity) uint32 {
	row := uint32(len(a.entities))
	a.entities = append(a.entities, e)
	for _, col := range a.columns {
		col.pushZero()
	}
	return row
}

// swapRemove removes row by moving the last row into it. It returns the entity that now
// occupies row, if one was moved. Values are not dropped.
func (a *Archetype) swapRemove(row uint32) (Entity, bool) {
	last := uint32(len(a.entities) - 1)
	for _, col := range a.columns {
		col.swapRemove(row)
	}
	var moved Entity
	swapped := row != last
	if swapped {
		moved = a.entities[last]
		a.entities[row] = moved
	}
	a.entities = a.entities[:last]
	return moved, swapped
}

// dropRow drops every table value in row.
func (a *Archetype) dropRow(row uint32) {
	for _, col := range a.columns {
		col.dropAt(row)
	}
}

func (a *Archetype) clear() {
	for _, col := range a.columns {
		col.clear()
	}
	a.entities = a.entities[:0]
}
