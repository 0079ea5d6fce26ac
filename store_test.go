package depot

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchetypeReuse(t *testing.T) {
	store := newTestStore()

	a, err := store.Spawn(Kinematics{})
	require.NoError(t, err)
	b, err := store.Spawn(Kinematics{})
	require.NoError(t, err)
	c, err := store.Spawn(Position{})
	require.NoError(t, err)

	refA, _ := store.Entity(a)
	refB, _ := store.Entity(b)
	refC, _ := store.Entity(c)
	assert.Same(t, refA.Archetype(), refB.Archetype())
	assert.NotSame(t, refA.Archetype(), refC.Archetype())

	// empty, {pos,vel} and {pos}
	assert.Equal(t, 3, store.Archetypes().Len())

	// the same set reached by a different path is the same archetype
	require.NoError(t, store.AddComponent(c, velComp))
	refC, _ = store.Entity(c)
	assert.Same(t, refA.Archetype(), refC.Archetype())
	assert.Equal(t, 3, store.Archetypes().Len())

	posID, _ := ComponentIDFor[Position](store)
	velID, _ := ComponentIDFor[Velocity](store)
	found, ok := store.Archetypes().Find(velID, posID)
	require.True(t, ok)
	assert.Same(t, refA.Archetype(), found)
}

func TestEmptyArchetype(t *testing.T) {
	store := newTestStore()
	e, err := store.SpawnEmpty()
	require.NoError(t, err)

	ref, err := store.Entity(e)
	require.NoError(t, err)
	assert.Equal(t, EmptyArchetype, ref.Location().Archetype)
	assert.Same(t, store.Archetypes().Empty(), ref.Archetype())
	assert.Empty(t, ref.ComponentInfos())

	require.NoError(t, store.Insert(e, Position{X: 1}))
	require.NoError(t, store.Remove(e, posComp))
	ref, _ = store.Entity(e)
	assert.Equal(t, EmptyArchetype, ref.Location().Archetype)
}

func TestDespawnRelocatesSwappedEntity(t *testing.T) {
	store := newTestStore()
	entities := make([]Entity, 4)
	for i := range entities {
		e, err := store.Spawn(Position{X: float64(i)})
		require.NoError(t, err)
		entities[i] = e
	}

	require.NoError(t, store.Despawn(entities[1]))
	assert.False(t, store.Contains(entities[1]))
	assert.IsType(t, EntityNotFoundError{}, store.Despawn(entities[1]))

	last, err := store.Entity(entities[3])
	require.NoError(t, err)
	assert.Equal(t, uint32(1), last.Location().Row, "last row fills the hole")

	for _, i := range []int{0, 2, 3} {
		ref, err := store.Entity(entities[i])
		require.NoError(t, err)
		assert.Equal(t, entities[i], ref.Archetype().Entities()[ref.Location().Row])
		pos, _ := Get[Position](ref)
		assert.Equal(t, float64(i), pos.X)
	}
	assert.Equal(t, 3, store.Len())
}

func TestDespawnedIndexIsRecycled(t *testing.T) {
	store := newTestStore()
	e, err := store.Spawn(Position{})
	require.NoError(t, err)
	require.NoError(t, store.Despawn(e))

	again, err := store.Spawn(Velocity{})
	require.NoError(t, err)
	assert.Equal(t, e.Index, again.Index)
	assert.NotEqual(t, e.Generation, again.Generation)
	assert.False(t, store.Contains(e))

	_, err = store.Entity(e)
	assert.IsType(t, EntityNotFoundError{}, err)
}

func TestDropperCalls(t *testing.T) {
	tests := []struct {
		name  string
		act   func(t *testing.T, s *Store, e Entity, drops *int)
		drops int
	}{
		{
			name: "despawn",
			act: func(t *testing.T, s *Store, e Entity, _ *int) {
				require.NoError(t, s.Despawn(e))
			},
			drops: 1,
		},
		{
			name: "remove",
			act: func(t *testing.T, s *Store, e Entity, _ *int) {
				require.NoError(t, s.Remove(e, trackedComp))
			},
			drops: 1,
		},
		{
			name: "replace",
			act: func(t *testing.T, s *Store, e Entity, drops *int) {
				require.NoError(t, s.Insert(e, Tracked{drops: drops}))
			},
			drops: 1,
		},
		{
			name: "unrelated move keeps the value",
			act: func(t *testing.T, s *Store, e Entity, _ *int) {
				require.NoError(t, s.Insert(e, Velocity{}))
				require.NoError(t, s.Remove(e, posComp))
			},
			drops: 0,
		},
		{
			name: "clear",
			act: func(t *testing.T, s *Store, _ Entity, _ *int) {
				require.NoError(t, s.Clear())
			},
			drops: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore()
			drops := 0
			type tracked struct {
				Bundle
				Pos     Position
				Tracked Tracked
			}
			e, err := store.Spawn(tracked{Tracked: Tracked{drops: &drops}})
			require.NoError(t, err)

			tt.act(t, store, e, &drops)
			assert.Equal(t, tt.drops, drops)
		})
	}
}

func TestSparseComponents(t *testing.T) {
	store := newTestStore()
	entities := make([]Entity, 3)
	for i := range entities {
		e, err := store.Spawn(Position{X: float64(i)})
		require.NoError(t, err)
		entities[i] = e
	}
	for i, e := range entities {
		require.NoError(t, store.Insert(e, Marker{Label: string(rune('a' + i))}))
	}

	require.NoError(t, store.Despawn(entities[0]))
	require.NoError(t, store.Remove(entities[1], markerComp))

	ref, _ := store.Entity(entities[1])
	assert.False(t, Has[Marker](ref))
	pos, _ := Get[Position](ref)
	assert.Equal(t, 1.0, pos.X)

	ref, _ = store.Entity(entities[2])
	m, ok := Get[Marker](ref)
	require.True(t, ok)
	assert.Equal(t, "c", m.Label)

	markerID, _ := ComponentIDFor[Marker](store)
	assert.Equal(t, 1, store.sparseSet(markerID).Len())
}

func TestLockedStore(t *testing.T) {
	store := newTestStore()
	e, err := store.Spawn(Position{})
	require.NoError(t, err)

	store.Lock()
	assert.True(t, store.Locked())

	_, err = store.Spawn(Position{})
	assert.IsType(t, LockedStorageError{}, err)
	_, err = store.SpawnEmpty()
	assert.IsType(t, LockedStorageError{}, err)
	assert.IsType(t, LockedStorageError{}, store.Despawn(e))
	assert.IsType(t, LockedStorageError{}, store.Insert(e, Velocity{}))
	assert.IsType(t, LockedStorageError{}, store.Remove(e, posComp))
	assert.IsType(t, LockedStorageError{}, store.AddComponent(e, velComp))
	assert.IsType(t, LockedStorageError{}, store.Clear())
	_, err = store.EntityMut(e)
	assert.IsType(t, LockedStorageError{}, err)

	// reads still work
	ref, err := store.Entity(e)
	require.NoError(t, err)
	assert.True(t, Has[Position](ref))

	store.Unlock()
	assert.False(t, store.Locked())
	assert.Panics(t, store.Unlock)
}

func TestEnqueuedOperations(t *testing.T) {
	store := newTestStore()
	e, err := store.Spawn(Position{X: 1})
	require.NoError(t, err)
	doomed, err := store.Spawn(Position{X: 2})
	require.NoError(t, err)

	store.Lock()
	store.Lock()

	spawned, err := store.EnqueueSpawn(Kinematics{Vel: Velocity{X: 5}})
	require.NoError(t, err)
	emptySpawn, err := store.EnqueueSpawn(nil)
	require.NoError(t, err)
	assert.True(t, store.Contains(spawned), "reserved ids are valid right away")

	require.NoError(t, store.EnqueueInsert(e, Velocity{X: 3}))
	require.NoError(t, store.EnqueueAddComponent(e, healthComp))
	require.NoError(t, store.EnqueueInsert(doomed, Velocity{}))
	require.NoError(t, store.EnqueueDespawn(doomed))
	require.NoError(t, store.EnqueueInsert(doomed, Health{}))

	store.Unlock()
	ref, _ := store.Entity(e)
	assert.False(t, Has[Velocity](ref), "queue waits for the outermost unlock")

	store.Unlock()

	ref, err = store.Entity(e)
	require.NoError(t, err)
	vel, ok := Get[Velocity](ref)
	require.True(t, ok)
	assert.Equal(t, 3.0, vel.X)
	assert.True(t, Has[Health](ref))

	ref, err = store.Entity(spawned)
	require.NoError(t, err)
	vel, _ = Get[Velocity](ref)
	assert.Equal(t, 5.0, vel.X)

	ref, err = store.Entity(emptySpawn)
	require.NoError(t, err)
	assert.Equal(t, EmptyArchetype, ref.Location().Archetype)

	assert.False(t, store.Contains(doomed))
	assert.Equal(t, 3, store.Len())
}

func TestEnqueueRunsImmediatelyWhenUnlocked(t *testing.T) {
	store := newTestStore()
	e, err := store.EnqueueSpawn(Position{})
	require.NoError(t, err)
	require.NoError(t, store.EnqueueInsert(e, Velocity{}))
	require.NoError(t, store.EnqueueRemove(e, posComp))

	ref, _ := store.Entity(e)
	assert.True(t, Has[Velocity](ref))
	assert.False(t, Has[Position](ref))

	assert.IsType(t, ComponentNotFoundError{}, store.EnqueueRemove(e, posComp))
	require.NoError(t, store.EnqueueDespawn(e))
	assert.False(t, store.Contains(e))
}

func TestEnqueueRejectsInvalidOperations(t *testing.T) {
	type unregistered struct {
		Z chan int
	}
	type withUnregistered struct {
		Bundle
		Pos Position
		Z   chan int
	}
	type duplicated struct {
		Bundle
		A, B Position
	}

	store := newTestStore()
	e, err := store.Spawn(Position{})
	require.NoError(t, err)
	gone, err := store.Spawn(Position{})
	require.NoError(t, err)
	require.NoError(t, store.Despawn(gone))

	store.Lock()
	tests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "spawn unregistered type",
			call: func() error { _, err := store.EnqueueSpawn(unregistered{}); return err },
			want: ComponentNotRegisteredError{Type: reflect.TypeFor[unregistered]()},
		},
		{
			name: "spawn bundle with unregistered field",
			call: func() error { _, err := store.EnqueueSpawn(withUnregistered{}); return err },
			want: BundleError{},
		},
		{
			name: "spawn bundle with duplicate component",
			call: func() error { _, err := store.EnqueueSpawn(duplicated{}); return err },
			want: BundleError{},
		},
		{
			name: "insert unregistered type",
			call: func() error { return store.EnqueueInsert(e, unregistered{}) },
			want: ComponentNotRegisteredError{Type: reflect.TypeFor[unregistered]()},
		},
		{
			name: "insert into despawned entity",
			call: func() error { return store.EnqueueInsert(gone, Velocity{}) },
			want: EntityNotFoundError{Entity: gone},
		},
		{
			name: "add present component",
			call: func() error { return store.EnqueueAddComponent(e, posComp) },
			want: ComponentExistsError{Component: posComp},
		},
		{
			name: "remove absent component",
			call: func() error { return store.EnqueueRemove(e, velComp) },
			want: ComponentNotFoundError{Component: velComp},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			if _, ok := tt.want.(BundleError); ok {
				assert.IsType(t, BundleError{}, err)
				return
			}
			assert.Equal(t, tt.want, err)
		})
	}

	assert.Equal(t, 1, store.Len(), "rejected spawns reserve nothing")
	assert.NotPanics(t, store.Unlock)
	ref, _ := store.Entity(e)
	assert.True(t, Has[Position](ref))
	assert.Len(t, ref.ComponentInfos(), 1, "nothing was queued")
}

func TestEnqueueSkipsChangesAlreadyApplied(t *testing.T) {
	store := newTestStore()
	e, err := store.Spawn(Kinematics{})
	require.NoError(t, err)

	store.Lock()
	require.NoError(t, store.EnqueueRemove(e, velComp))
	require.NoError(t, store.EnqueueRemove(e, velComp))
	require.NoError(t, store.EnqueueAddComponent(e, healthComp))
	require.NoError(t, store.EnqueueAddComponent(e, healthComp))

	spawned, err := store.EnqueueSpawn(Kinematics{Vel: Velocity{X: 2}})
	require.NoError(t, err)
	require.NoError(t, store.EnqueueAddComponent(spawned, velComp), "reserved entities have nothing to check")
	assert.NotPanics(t, store.Unlock)

	ref, err := store.Entity(e)
	require.NoError(t, err)
	assert.False(t, Has[Velocity](ref))
	assert.True(t, Has[Health](ref))

	ref, err = store.Entity(spawned)
	require.NoError(t, err)
	vel, ok := Get[Velocity](ref)
	require.True(t, ok)
	assert.Equal(t, 2.0, vel.X, "the spawned value is kept")
}

func TestMigrationRelocatesSwappedEntity(t *testing.T) {
	store := newTestStore()
	entities := make([]Entity, 4)
	for i := range entities {
		e, err := store.Spawn(Kinematics{
			Pos: Position{X: float64(i)},
			Vel: Velocity{X: float64(10 * i)},
		})
		require.NoError(t, err)
		entities[i] = e
	}

	assertConsistent := func(t *testing.T) {
		t.Helper()
		for i, e := range entities {
			ref, err := store.Entity(e)
			require.NoError(t, err)
			assert.Equal(t, e, ref.Archetype().Entities()[ref.Location().Row], "entity %d", i)
			pos, ok := Get[Position](ref)
			require.True(t, ok)
			assert.Equal(t, float64(i), pos.X)
			if vel, ok := Get[Velocity](ref); ok {
				assert.Equal(t, float64(10*i), vel.X)
			}
		}
	}

	require.NoError(t, store.Insert(entities[1], Health{Max: 3}))
	last, _ := store.Entity(entities[3])
	assert.Equal(t, uint32(1), last.Location().Row, "last row fills the hole")
	assertConsistent(t)

	require.NoError(t, store.Remove(entities[0], velComp))
	third, _ := store.Entity(entities[2])
	assert.Equal(t, uint32(0), third.Location().Row)
	assertConsistent(t)

	ref, _ := store.Entity(entities[1])
	hp, ok := Get[Health](ref)
	require.True(t, ok)
	assert.Equal(t, 3, hp.Max)
	ref, _ = store.Entity(entities[0])
	assert.False(t, Has[Velocity](ref))
}

func TestLocationCorruptionPanics(t *testing.T) {
	store := newTestStore()
	e, err := store.Spawn(Position{})
	require.NoError(t, err)
	queued, err := store.Spawn(Position{})
	require.NoError(t, err)

	corrupt := EntityLocation{Archetype: EmptyArchetype, Row: 99}
	store.entities.setLocation(e.Index, corrupt)
	assert.PanicsWithValue(t, LocationCorruptionError{Entity: e, Location: corrupt}, func() {
		_ = store.Insert(e, Velocity{})
	})
	assert.Panics(t, func() { _ = store.Despawn(e) })

	store.Lock()
	require.NoError(t, store.EnqueueInsert(queued, Velocity{}))
	store.entities.setLocation(queued.Index, corrupt)
	assert.PanicsWithValue(t, LocationCorruptionError{Entity: queued, Location: corrupt}, store.Unlock)
}

func TestReserveEntityIsFlushedOnNextChange(t *testing.T) {
	store := newTestStore()
	reserved := store.ReserveEntity()
	assert.True(t, store.Contains(reserved))
	assert.Equal(t, 1, store.Len())

	_, err := store.Entity(reserved)
	assert.Error(t, err, "reserved entities have no location until flushed")

	_, err = store.Spawn(Position{})
	require.NoError(t, err)

	ref, err := store.Entity(reserved)
	require.NoError(t, err)
	assert.Equal(t, EmptyArchetype, ref.Location().Archetype)
	assert.Equal(t, 2, store.Len())
}

func TestClear(t *testing.T) {
	store := newTestStore()
	entities, err := store.NewEntities(5, posComp, markerComp)
	require.NoError(t, err)
	archetypes := store.Archetypes().Len()

	require.NoError(t, store.Clear())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, archetypes, store.Archetypes().Len())
	for _, e := range entities {
		assert.False(t, store.Contains(e))
	}

	markerID, _ := ComponentIDFor[Marker](store)
	assert.Equal(t, 0, store.sparseSet(markerID).Len())

	_, err = store.NewEntities(2, posComp, markerComp)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestArchetypeCreatedEvent(t *testing.T) {
	var created []*Archetype
	Config.SetArchetypeEvents(ArchetypeEvents{OnCreate: func(a *Archetype) {
		created = append(created, a)
	}})
	t.Cleanup(func() { Config.SetArchetypeEvents(ArchetypeEvents{}) })

	store := newTestStore()
	_, err := store.Spawn(Position{})
	require.NoError(t, err)
	_, err = store.Spawn(Position{})
	require.NoError(t, err)
	_, err = store.Spawn(Kinematics{})
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, 2, created[0].Len())
	assert.Equal(t, 1, created[1].Len())
}

func TestTooManyComponents(t *testing.T) {
	err := TooManyComponentsError{Limit: maxComponentTypes}
	assert.Contains(t, err.Error(), "256")
}
