package depot

import "math"

// ArchetypeID indexes an archetype in a store. Ids are stable for the store's lifetime.
type ArchetypeID uint32

// EmptyArchetype holds entities without components. It exists in every store.
const EmptyArchetype ArchetypeID = 0

// EntityLocation points at an entity's row.
type EntityLocation struct {
	Archetype ArchetypeID
	Row       uint32
}

// InvalidLocation marks an id that has no row: reserved, freed or never placed.
var InvalidLocation = EntityLocation{Archetype: math.MaxUint32, Row: math.MaxUint32}

// Valid reports whether the location refers to a row.
func (l EntityLocation) Valid() bool {
	return l != InvalidLocation
}

// Location returns where e is stored. Detached, reserved and stale handles report false.
func (es *Entities) Location(e Entity) (EntityLocation, bool) {
	if int(e.Index) >= len(es.meta) {
		return InvalidLocation, false
	}
	m := es.meta[e.Index]
	if m.generation != e.Generation || !m.location.Valid() {
		return InvalidLocation, false
	}
	return m.location, true
}

func (es *Entities) setLocation(index uint32, loc EntityLocation) {
	es.meta[index].location = loc
}
