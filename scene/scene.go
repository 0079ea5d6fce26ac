// Package scene copies whole stores, or serialized snapshots of them, into other stores using
// the reflection registrations of their component and resource types.
package scene

import (
	"iter"
	"reflect"
	"slices"

	"github.com/TheBitDrifter/depot"
	"github.com/TheBitDrifter/table"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// InstanceInfo describes one write of a scene into a store.
type InstanceInfo struct {
	ID uuid.UUID
	// EntityMap maps scene entities to the entities created for them.
	EntityMap depot.EntityMap
}

func newInstanceInfo() InstanceInfo {
	return InstanceInfo{ID: uuid.New(), EntityMap: make(depot.EntityMap)}
}

// Scene is a store used as a template.
type Scene struct {
	Store *depot.Store
}

func New(store *depot.Store) *Scene {
	return &Scene{Store: store}
}

// FromDynamic builds a scene by writing d into a new store.
func FromDynamic(d *DynamicScene, registry *depot.TypeRegistry) (*Scene, error) {
	store := depot.Factory.NewStore(table.Factory.NewSchema())
	if _, err := d.WriteToStore(store, registry); err != nil {
		return nil, err
	}
	return &Scene{Store: store}, nil
}

// Clone copies the scene into a new store.
func (s *Scene) Clone(registry *depot.TypeRegistry) (*Scene, error) {
	store := depot.Factory.NewStore(table.Factory.NewSchema())
	if _, err := s.WriteToStore(store, registry); err != nil {
		return nil, err
	}
	return &Scene{Store: store}, nil
}

// WriteToStore copies every resource and entity of the scene into dst. Each archetype is
// spawned as one batch. Entity ids held by components implementing depot.MapEntities are
// rewritten to the new entities afterwards.
func (s *Scene) WriteToStore(dst *depot.Store, registry *depot.TypeRegistry) (InstanceInfo, error) {
	if dst == s.Store {
		return InstanceInfo{}, SameStoreError{}
	}
	info := newInstanceInfo()

	for typ := range s.Store.Resources().Types() {
		rr, err := reflectResource(registry, typ)
		if err != nil {
			return info, err
		}
		if err := rr.Copy(s.Store, dst); err != nil {
			return info, eris.Wrapf(err, "failed to copy resource %s", typ)
		}
	}

	for arch := range s.Store.Archetypes().All() {
		if arch.Len() == 0 {
			continue
		}
		if err := s.writeArchetype(dst, registry, arch, info.EntityMap); err != nil {
			dst.Logger().Warn().Err(err).Int("archetype_id", int(arch.ID())).Msg("scene write aborted")
			return info, err
		}
	}

	mapAllEntities(dst, registry, info.EntityMap)
	return info, nil
}

func (s *Scene) writeArchetype(dst *depot.Store, registry *depot.TypeRegistry, arch *depot.Archetype, entityMap depot.EntityMap) error {
	var (
		reflectors []depot.ReflectComponent
		ids        []depot.ComponentID
	)
	for id := range arch.Components() {
		ci, _ := s.Store.Components().Info(id)
		rc, err := reflectComponent(registry, ci.Type())
		if err != nil {
			return err
		}
		dstID, err := dst.Components().Register(rc.Fns().Handle)
		if err != nil {
			return err
		}
		reflectors = append(reflectors, rc)
		ids = append(ids, dstID)
	}

	sceneEntities := slices.Clone(arch.Entities())
	var rowErr error
	rows := func(yield func([]any) bool) {
		for _, e := range sceneEntities {
			ref, err := s.Store.Entity(e)
			if err != nil {
				rowErr = err
				return
			}
			row := make([]any, len(reflectors))
			for i, rc := range reflectors {
				v, ok := rc.Reflect(ref)
				if !ok {
					rowErr = SpawnError{Kind: UnregisteredComponent, TypeName: rc.Type().String()}
					return
				}
				row[i] = v.Interface()
			}
			if !yield(row) {
				return
			}
		}
	}

	batch, err := depot.SpawnBatchDynamic(dst, ids, iter.Seq[[]any](rows), len(sceneEntities))
	if err != nil {
		return err
	}
	spawned, err := batch.Collect()
	for i, e := range spawned {
		entityMap[sceneEntities[i]] = e
	}
	if err != nil {
		return err
	}
	return rowErr
}

func mapAllEntities(dst *depot.Store, registry *depot.TypeRegistry, entityMap depot.EntityMap) {
	if len(entityMap) == 0 {
		return
	}
	entities := make([]depot.Entity, 0, len(entityMap))
	for _, e := range entityMap {
		entities = append(entities, e)
	}
	for reg := range registry.All() {
		if rme, ok := depot.Data[depot.ReflectMapEntities](reg); ok {
			rme.MapEntities(dst, entities, entityMap)
		}
	}
}

func reflectComponent(registry *depot.TypeRegistry, typ reflect.Type) (depot.ReflectComponent, error) {
	reg, ok := registry.Get(typ)
	if !ok {
		return depot.ReflectComponent{}, SpawnError{Kind: UnregisteredType, TypeName: typ.String()}
	}
	rc, ok := depot.Data[depot.ReflectComponent](reg)
	if !ok || rc.Type() != typ {
		return depot.ReflectComponent{}, SpawnError{Kind: UnregisteredComponent, TypeName: typ.String()}
	}
	return rc, nil
}

func reflectResource(registry *depot.TypeRegistry, typ reflect.Type) (depot.ReflectResource, error) {
	reg, ok := registry.Get(typ)
	if !ok {
		return depot.ReflectResource{}, SpawnError{Kind: UnregisteredType, TypeName: typ.String()}
	}
	rr, ok := depot.Data[depot.ReflectResource](reg)
	if !ok || rr.Type() != typ {
		return depot.ReflectResource{}, SpawnError{Kind: UnregisteredResource, TypeName: typ.String()}
	}
	return rr, nil
}
