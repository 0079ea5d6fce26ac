package depot

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"unsafe"

	iter_util "github.com/TheBitDrifter/util/iter"
)

// Entity is a generation-versioned identifier for one row of component data. A freed index is
// handed out again with a higher generation, so stale handles stop resolving.
type Entity struct {
	Index      uint32
	Generation uint32
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.Index, e.Generation)
}

// Bits packs the entity into a single integer, generation in the high half.
func (e Entity) Bits() uint64 {
	return uint64(e.Generation)<<32 | uint64(e.Index)
}

// EntityFromBits reverses Bits.
func EntityFromBits(bits uint64) Entity {
	return Entity{Index: uint32(bits), Generation: uint32(bits >> 32)}
}

// EntityRef is shared access to one placed entity. It is valid until the next structural
// change of its store.
type EntityRef struct {
	store *Store
	id    Entity
	loc   EntityLocation
}

// Entity returns shared access to e.
func (s *Store) Entity(e Entity) (EntityRef, error) {
	loc, ok := s.entities.Location(e)
	if !ok {
		return EntityRef{}, EntityNotFoundError{Entity: e}
	}
	return EntityRef{store: s, id: e, loc: loc}, nil
}

func (r EntityRef) ID() Entity { return r.id }
func (r EntityRef) Location() EntityLocation { return r.loc }
func (r EntityRef) Store() *Store { return r.store }
func (r EntityRef) Archetype() *Archetype { return r.store.archetypes.asSlice[r.loc.Archetype] }

// Components yields the ids of every component the entity has.
func (r EntityRef) Components() iter.Seq[ComponentID] {
	return r.Archetype().Components()
}

// ComponentInfos returns metadata for each of the entity's components, ordered by id.
func (r EntityRef) ComponentInfos() []*ComponentInfo {
	ids := iter_util.Collect(r.Components())
	infos := make([]*ComponentInfo, len(ids))
	for i, id := range ids {
		infos[i] = r.store.components.mustInfo(id)
	}
	return infos
}

func (r EntityRef) Contains(id ComponentID) bool {
	return r.Archetype().Contains(id)
}

// ContainsType reports whether the entity has a component of type typ.
func (r EntityRef) ContainsType(typ reflect.Type) bool {
	id, ok := r.store.components.IDOf(typ)
	return ok && r.Contains(id)
}

// GetByID returns the address of the entity's id component.
func (r EntityRef) GetByID(id ComponentID) (unsafe.Pointer, bool) {
	return r.store.componentPtr(r.id, r.loc, id)
}

// EntityMut is exclusive access to one entity. Structural changes made through it keep its
// location current.
type EntityMut struct {
	store     *Store
	id        Entity
	loc       EntityLocation
	despawned bool
}

// EntityMut returns exclusive access to e. The store must not be locked.
func (s *Store) EntityMut(e Entity) (*EntityMut, error) {
	if s.Locked() {
		return nil, LockedStorageError{}
	}
	s.Flush()
	loc, ok := s.entities.Location(e)
	if !ok {
		return nil, EntityNotFoundError{Entity: e}
	}
	return &EntityMut{store: s, id: e, loc: loc}, nil
}

func (m *EntityMut) ID() Entity { return m.id }
func (m *EntityMut) Location() EntityLocation { return m.loc }
func (m *EntityMut) Store() *Store { return m.store }

// AsRef downgrades to shared access.
func (m *EntityMut) AsRef() EntityRef {
	return EntityRef{store: m.store, id: m.id, loc: m.loc}
}

func (m *EntityMut) Contains(id ComponentID) bool {
	return !m.despawned && m.store.archetypes.asSlice[m.loc.Archetype].Contains(id)
}

// GetMutByID returns the address of the entity's id component for writing.
func (m *EntityMut) GetMutByID(id ComponentID) (unsafe.Pointer, bool) {
	if m.despawned {
		return nil, false
	}
	return m.store.componentPtr(m.id, m.loc, id)
}

// Insert adds a bundle to the entity.
func (m *EntityMut) Insert(bundle any) error {
	if err := m.check(); err != nil {
		return err
	}
	v, err := bundleValue(bundle)
	if err != nil {
		return err
	}
	info, err := m.store.bundles.infoFor(m.store.components, v.Type())
	if err != nil {
		return err
	}
	m.loc = m.store.insertBundle(m.id, m.loc, info, info.source(v))
	return nil
}

// InsertByID adds or replaces component id with value, which must hold the component's type
// or a pointer to it.
func (m *EntityMut) InsertByID(id ComponentID, value any) error {
	if err := m.check(); err != nil {
		return err
	}
	info, ok := m.store.components.Info(id)
	if !ok {
		return ComponentIDError{ID: id}
	}
	v := reflect.ValueOf(value)
	if v.IsValid() && v.Kind() == reflect.Pointer && v.Type().Elem() == info.typ && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() || v.Type() != info.typ {
		return BundleError{Reason: fmt.Sprintf("value %T is not a %s", value, info.Name())}
	}
	m.loc = m.store.insertValue(m.id, m.loc, id, v)
	return nil
}

// insertReflected is InsertByID for a value already known to have the right type.
func (m *EntityMut) insertReflected(id ComponentID, v reflect.Value) {
	m.loc = m.store.insertValue(m.id, m.loc, id, v)
}

// RemoveByID removes the listed components. Ids the entity does not have are ignored.
func (m *EntityMut) RemoveByID(ids ...ComponentID) error {
	if err := m.check(); err != nil {
		return err
	}
	present := slices.DeleteFunc(slices.Clone(ids), func(id ComponentID) bool { return !m.Contains(id) })
	if len(present) == 0 {
		return nil
	}
	m.loc = m.store.removeIDs(m.id, m.loc, present...)
	return nil
}

// Remove removes components that must all be present.
func (m *EntityMut) Remove(components ...Component) error {
	if err := m.check(); err != nil {
		return err
	}
	ids := make([]ComponentID, 0, len(components))
	for _, c := range components {
		id, ok := m.store.components.IDOf(c.GoType())
		if !ok || !m.Contains(id) {
			return ComponentNotFoundError{Component: c}
		}
		ids = append(ids, id)
	}
	m.loc = m.store.removeIDs(m.id, m.loc, ids...)
	return nil
}

// Despawn destroys the entity. The handle is unusable afterwards.
func (m *EntityMut) Despawn() error {
	if err := m.check(); err != nil {
		return err
	}
	if err := m.store.Despawn(m.id); err != nil {
		return err
	}
	m.despawned = true
	return nil
}

func (m *EntityMut) check() error {
	if m.despawned {
		return EntityNotFoundError{Entity: m.id}
	}
	if m.store.Locked() {
		return LockedStorageError{}
	}
	return nil
}

// UnsafeEntityCell addresses an entity without any access bookkeeping, including while the
// store is locked. Callers guarantee that nothing else writes the components they touch and
// that no structural change happens while they hold pointers obtained through it.
type UnsafeEntityCell struct {
	store *Store
	id    Entity
	loc   EntityLocation
}

// UnsafeEntityCell returns a cell for e.
func (s *Store) UnsafeEntityCell(e Entity) (UnsafeEntityCell, bool) {
	loc, ok := s.entities.Location(e)
	if !ok {
		return UnsafeEntityCell{}, false
	}
	return UnsafeEntityCell{store: s, id: e, loc: loc}, true
}

func (c UnsafeEntityCell) ID() Entity { return c.id }
func (c UnsafeEntityCell) Store() *Store { return c.store }

// GetMutByID returns the address of component id.
func (c UnsafeEntityCell) GetMutByID(id ComponentID) (unsafe.Pointer, bool) {
	return c.store.componentPtr(c.id, c.loc, id)
}

// componentPtr resolves the address of component id for e at loc.
func (s *Store) componentPtr(e Entity, loc EntityLocation, id ComponentID) (unsafe.Pointer, bool) {
	arch := s.archetypes.asSlice[loc.Archetype]
	if !arch.Contains(id) {
		return nil, false
	}
	if p, ok := arch.ptr(id, loc.Row); ok {
		return p, true
	}
	return s.sparseSet(id).get(e.Index)
}
