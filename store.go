package depot

import (
	"reflect"
	"sync/atomic"

	"github.com/TheBitDrifter/table"
	"github.com/rs/zerolog"
)

// Store owns entities, their component storage and resources.
//
// Structural changes (spawn, despawn, insert, remove) need exclusive access and are rejected
// while the store is locked; read-only access from several goroutines is safe as long as no
// structural change runs at the same time.
type Store struct {
	config     StoreConfig
	logger     zerolog.Logger
	components *Components
	archetypes *Archetypes
	entities   *Entities
	bundles    *bundles
	sparse     []*sparseSet
	resources  *Resources
	locks      atomic.Int32
	opQueue    opQueue
}

func newStore(schema table.Schema, cfg StoreConfig) *Store {
	cfg = cfg.withDefaults()
	components := newComponents(schema)
	s := &Store{
		config:     cfg,
		logger:     cfg.logger(),
		components: components,
		archetypes: newArchetypes(components, cfg.ColumnCapacity),
		entities:   newEntities(cfg.EntityCapacity),
		bundles:    newBundles(),
		resources:  newResources(),
		opQueue:    newOpQueue(),
	}
	return s
}

func (s *Store) Components() *Components { return s.components }
func (s *Store) Archetypes() *Archetypes { return s.archetypes }
func (s *Store) Entities() *Entities { return s.entities }
func (s *Store) Resources() *Resources { return s.resources }
func (s *Store) Config() StoreConfig { return s.config }
func (s *Store) Logger() *zerolog.Logger { return &s.logger }

// Len is the number of live entities, flushed or not.
func (s *Store) Len() int {
	return s.entities.Len() + int(s.entities.pendingCount())
}

// Contains reports whether e is live in this store.
func (s *Store) Contains(e Entity) bool {
	return s.entities.IsValid(e)
}

// ReserveEntity hands out an id without exclusive access. The entity is placed, without
// components, on the next Flush.
func (s *Store) ReserveEntity() Entity {
	return s.entities.ReserveEntity()
}

// Flush places every reserved entity in the empty archetype.
func (s *Store) Flush() {
	empty := s.archetypes.Empty()
	s.entities.Flush(func(e Entity, loc *EntityLocation) {
		*loc = EntityLocation{Archetype: EmptyArchetype, Row: empty.allocateRow(e)}
	})
}

// SpawnEmpty creates an entity without components.
func (s *Store) SpawnEmpty() (Entity, error) {
	if s.Locked() {
		return Entity{}, LockedStorageError{}
	}
	s.Flush()
	e := s.entities.Alloc()
	empty := s.archetypes.Empty()
	s.entities.setLocation(e.Index, EntityLocation{Archetype: EmptyArchetype, Row: empty.allocateRow(e)})
	return e, nil
}

// Spawn creates an entity from a bundle: a registered component value or a struct embedding
// Bundle.
func (s *Store) Spawn(bundle any) (Entity, error) {
	if s.Locked() {
		return Entity{}, LockedStorageError{}
	}
	v, err := bundleValue(bundle)
	if err != nil {
		return Entity{}, err
	}
	info, err := s.bundles.infoFor(s.components, v.Type())
	if err != nil {
		return Entity{}, err
	}
	s.Flush()
	e := s.entities.Alloc()
	s.newBundleSpawner(info).spawnNonExistent(e, info.source(v))
	return e, nil
}

// SpawnDynamic creates an entity from erased values, one per id.
func (s *Store) SpawnDynamic(ids []ComponentID, values []any) (Entity, error) {
	if s.Locked() {
		return Entity{}, LockedStorageError{}
	}
	info, err := s.bundles.dynamicInfo(s.components, ids)
	if err != nil {
		return Entity{}, err
	}
	src, err := info.dynamicSource(s.components, values)
	if err != nil {
		return Entity{}, err
	}
	s.Flush()
	e := s.entities.Alloc()
	s.newBundleSpawner(info).spawnNonExistent(e, src)
	return e, nil
}

// NewEntities spawns n entities holding zero values of components.
func (s *Store) NewEntities(n int, components ...Component) ([]Entity, error) {
	if s.Locked() {
		return nil, LockedStorageError{}
	}
	ids := make([]ComponentID, len(components))
	for i, c := range components {
		id, err := s.components.Register(c)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	info, err := s.bundles.dynamicInfo(s.components, ids)
	if err != nil {
		return nil, err
	}
	zero := func(i int) reflect.Value { return reflect.Zero(components[i].GoType()) }

	s.Flush()
	s.entities.Reserve(n)
	spawner := s.newBundleSpawner(info)
	spawner.reserveStorage(n)
	entities := make([]Entity, n)
	for i := range entities {
		entities[i] = s.entities.Alloc()
		spawner.spawnNonExistent(entities[i], zero)
	}
	return entities, nil
}

// Despawn drops all of e's components and frees its id.
func (s *Store) Despawn(e Entity) error {
	if s.Locked() {
		return LockedStorageError{}
	}
	s.Flush()
	loc, ok := s.entities.Location(e)
	if !ok {
		return EntityNotFoundError{Entity: e}
	}
	arch := s.locate(e, loc)
	arch.dropRow(loc.Row)
	for _, id := range arch.sparseIDs {
		s.sparseSet(id).remove(e.Index)
	}
	if moved, swapped := arch.swapRemove(loc.Row); swapped {
		s.entities.setLocation(moved.Index, EntityLocation{Archetype: arch.id, Row: loc.Row})
	}
	s.entities.Free(e)
	return nil
}

// Insert adds every component of bundle to e, replacing values e already has.
func (s *Store) Insert(e Entity, bundle any) error {
	if s.Locked() {
		return LockedStorageError{}
	}
	v, err := bundleValue(bundle)
	if err != nil {
		return err
	}
	info, err := s.bundles.infoFor(s.components, v.Type())
	if err != nil {
		return err
	}
	s.Flush()
	loc, ok := s.entities.Location(e)
	if !ok {
		return EntityNotFoundError{Entity: e}
	}
	s.insertBundle(e, loc, info, info.source(v))
	return nil
}

func (s *Store) insertBundle(e Entity, loc EntityLocation, info *bundleInfo, values bundleSource) EntityLocation {
	src := s.locate(e, loc)
	dst := s.withBundle(src, info)
	if dst != src {
		loc = s.moveEntity(e, loc, dst)
	}
	s.writeBundle(dst, src, loc.Row, e, info, values)
	return loc
}

// insertValue adds or replaces the single component id on e.
func (s *Store) insertValue(e Entity, loc EntityLocation, id ComponentID, v reflect.Value) EntityLocation {
	src := s.locate(e, loc)
	dst := s.withComponent(src, id)
	if dst != src {
		loc = s.moveEntity(e, loc, dst)
	}
	if col, ok := dst.column(id); ok {
		if src.Contains(id) {
			col.replace(loc.Row, v)
		} else {
			col.set(loc.Row, v)
		}
	} else {
		s.sparseSet(id).insert(e.Index, v)
	}
	return loc
}

// AddComponent gives e zero values of components it does not have yet.
func (s *Store) AddComponent(e Entity, components ...Component) error {
	if s.Locked() {
		return LockedStorageError{}
	}
	s.Flush()
	loc, ok := s.entities.Location(e)
	if !ok {
		return EntityNotFoundError{Entity: e}
	}
	arch := s.locate(e, loc)
	for _, c := range components {
		id, err := s.components.Register(c)
		if err != nil {
			return err
		}
		if arch.Contains(id) {
			return ComponentExistsError{Component: c}
		}
	}
	for _, c := range components {
		id, _ := s.components.IDOf(c.GoType())
		loc = s.insertValue(e, loc, id, reflect.New(c.GoType()).Elem())
	}
	return nil
}

// Remove drops the given components from e. Every component must be present.
func (s *Store) Remove(e Entity, components ...Component) error {
	if s.Locked() {
		return LockedStorageError{}
	}
	s.Flush()
	loc, ok := s.entities.Location(e)
	if !ok {
		return EntityNotFoundError{Entity: e}
	}
	arch := s.locate(e, loc)
	ids := make([]ComponentID, 0, len(components))
	for _, c := range components {
		id, registered := s.components.IDOf(c.GoType())
		if !registered || !arch.Contains(id) {
			return ComponentNotFoundError{Component: c}
		}
		ids = append(ids, id)
	}
	s.removeIDs(e, loc, ids...)
	return nil
}

// removeIDs moves e to the archetype without ids; ids it does not have are ignored.
func (s *Store) removeIDs(e Entity, loc EntityLocation, ids ...ComponentID) EntityLocation {
	src := s.locate(e, loc)
	dst := s.withoutComponents(src, ids...)
	if dst == src {
		return loc
	}
	return s.moveEntity(e, loc, dst)
}

// moveEntity migrates e from its current archetype to dst. Shared components are moved,
// components dst lacks are dropped, and the row left behind is filled by swap-remove, which
// relocates the source archetype's last entity.
func (s *Store) moveEntity(e Entity, loc EntityLocation, dst *Archetype) EntityLocation {
	src := s.locate(e, loc)
	newRow := dst.allocateRow(e)
	for i, id := range src.tableIDs {
		col := src.columns[i]
		if target, ok := dst.column(id); ok {
			col.moveTo(loc.Row, target, newRow)
		} else {
			col.dropAt(loc.Row)
		}
	}
	for _, id := range src.sparseIDs {
		if !dst.Contains(id) {
			s.sparseSet(id).remove(e.Index)
		}
	}
	if moved, swapped := src.swapRemove(loc.Row); swapped {
		s.entities.setLocation(moved.Index, EntityLocation{Archetype: src.id, Row: loc.Row})
	}
	newLoc := EntityLocation{Archetype: dst.id, Row: newRow}
	s.entities.setLocation(e.Index, newLoc)
	return newLoc
}

// locate returns the archetype loc points at and verifies that the row belongs to e. A
// mismatch means the location table is corrupt; it is logged and raised as a panic.
func (s *Store) locate(e Entity, loc EntityLocation) *Archetype {
	arch, ok := s.archetypes.Get(loc.Archetype)
	if !ok || int(loc.Row) >= len(arch.entities) || arch.entities[loc.Row] != e {
		err := LocationCorruptionError{Entity: e, Location: loc}
		s.logger.Error().
			Str("entity", e.String()).
			Uint32("archetype_id", uint32(loc.Archetype)).
			Uint32("row", loc.Row).
			Msg("entity not found at its recorded location")
		panic(err)
	}
	return arch
}

func (s *Store) sparseSet(id ComponentID) *sparseSet {
	if int(id) >= len(s.sparse) {
		grown := make([]*sparseSet, id+1)
		copy(grown, s.sparse)
		s.sparse = grown
	}
	if s.sparse[id] == nil {
		s.sparse[id] = newSparseSet(s.components.mustInfo(id), s.config.ColumnCapacity)
	}
	return s.sparse[id]
}

// Clear despawns every entity. Archetypes survive, emptied.
func (s *Store) Clear() error {
	if s.Locked() {
		return LockedStorageError{}
	}
	s.Flush()
	for arch := range s.archetypes.All() {
		for _, e := range arch.entities {
			for _, id := range arch.sparseIDs {
				s.sparseSet(id).remove(e.Index)
			}
			s.entities.Free(e)
		}
		arch.clear()
	}
	return nil
}

// Locked reports whether structural changes are currently deferred.
func (s *Store) Locked() bool {
	return s.locks.Load() > 0
}

// Lock defers structural changes until the matching Unlock. Locks nest.
func (s *Store) Lock() {
	s.locks.Add(1)
}

// Unlock releases one lock; releasing the last one replays queued operations. Unlocking a
// store that is not locked panics.
func (s *Store) Unlock() {
	remaining := s.locks.Add(-1)
	if remaining < 0 {
		panic("depot: Unlock called on an unlocked store")
	}
	if remaining > 0 {
		return
	}
	s.processOperationQueue()
}

func bundleValue(bundle any) (reflect.Value, error) {
	v := reflect.ValueOf(bundle)
	if !v.IsValid() {
		return reflect.Value{}, BundleError{Reason: "nil bundle"}
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, BundleError{Bundle: v.Type(), Reason: "nil bundle"}
		}
		v = v.Elem()
	}
	return v, nil
}
