package depot

import (
	"reflect"
	"unsafe"
)

// ReflectComponentFns are the type-specific pieces behind a ReflectComponent. They are built
// once per component type by NewReflectComponentFns and can be replaced to customise how a
// type is reached.
type ReflectComponentFns struct {
	// ComponentID resolves the type's id within a store's registry.
	ComponentID func(*Components) (ComponentID, bool)
	// FromPtr views a component address as a value for reading.
	FromPtr func(unsafe.Pointer) reflect.Value
	// FromPtrMut views a component address as a settable value.
	FromPtrMut func(unsafe.Pointer) reflect.Value
	// Handle is the component handle used to register the type in stores that have not
	// seen it yet.
	Handle Component
}

// NewReflectComponentFns builds the functions for T.
func NewReflectComponentFns[T any]() ReflectComponentFns {
	handle := componentTypeFor[T]()
	typ := handle.typ
	return ReflectComponentFns{
		ComponentID: func(cs *Components) (ComponentID, bool) {
			return cs.IDOf(typ)
		},
		FromPtr: func(p unsafe.Pointer) reflect.Value {
			return reflect.ValueOf((*T)(p)).Elem()
		},
		FromPtrMut: func(p unsafe.Pointer) reflect.Value {
			return reflect.ValueOf((*T)(p)).Elem()
		},
		Handle: handle,
	}
}

// ReflectComponent operates on one component type through reflect.Value, for callers that only
// know the type at runtime. Entities lacking the component are reported as absent, never as
// errors, by the read methods.
type ReflectComponent struct {
	fns *ReflectComponentFns
}

func NewReflectComponent(fns ReflectComponentFns) ReflectComponent {
	return ReflectComponent{fns: &fns}
}

// ReflectComponentFor is NewReflectComponent(NewReflectComponentFns[T]()).
func ReflectComponentFor[T any]() ReflectComponent {
	return NewReflectComponent(NewReflectComponentFns[T]())
}

func (rc ReflectComponent) Fns() *ReflectComponentFns {
	return rc.fns
}

func (rc ReflectComponent) Type() reflect.Type {
	return rc.fns.Handle.GoType()
}

// Reflect returns the entity's component. The value aliases storage; it must not be written.
func (rc ReflectComponent) Reflect(ref EntityRef) (reflect.Value, bool) {
	id, ok := rc.fns.ComponentID(ref.store.components)
	if !ok {
		return reflect.Value{}, false
	}
	p, ok := ref.GetByID(id)
	if !ok {
		return reflect.Value{}, false
	}
	return rc.fns.FromPtr(p), true
}

// ReflectMut returns the entity's component as a settable value.
func (rc ReflectComponent) ReflectMut(m *EntityMut) (reflect.Value, bool) {
	id, ok := rc.fns.ComponentID(m.store.components)
	if !ok {
		return reflect.Value{}, false
	}
	p, ok := m.GetMutByID(id)
	if !ok {
		return reflect.Value{}, false
	}
	return rc.fns.FromPtrMut(p), true
}

// ReflectUncheckedMut is ReflectMut through an UnsafeEntityCell. The caller guarantees no other
// access to this component of this entity for as long as the value is used.
func (rc ReflectComponent) ReflectUncheckedMut(cell UnsafeEntityCell) (reflect.Value, bool) {
	id, ok := rc.fns.ComponentID(cell.store.components)
	if !ok {
		return reflect.Value{}, false
	}
	p, ok := cell.GetMutByID(id)
	if !ok {
		return reflect.Value{}, false
	}
	return rc.fns.FromPtrMut(p), true
}

// Apply writes src onto the entity's existing component, see ApplyValue.
func (rc ReflectComponent) Apply(m *EntityMut, src any) error {
	if err := m.check(); err != nil {
		return err
	}
	dst, ok := rc.ReflectMut(m)
	if !ok {
		return ComponentNotFoundError{Component: rc.fns.Handle}
	}
	return ApplyValue(dst, src)
}

// ApplyOrInsert applies src to the component when the entity has it and inserts it otherwise.
func (rc ReflectComponent) ApplyOrInsert(m *EntityMut, src any) error {
	if err := m.check(); err != nil {
		return err
	}
	if dst, ok := rc.ReflectMut(m); ok {
		return ApplyValue(dst, src)
	}
	return rc.Insert(m, src)
}

// Insert builds a fresh component by applying src to a zero value and adds it to the entity,
// replacing the component it already has. Nothing is written when src cannot be applied.
func (rc ReflectComponent) Insert(m *EntityMut, src any) error {
	if err := m.check(); err != nil {
		return err
	}
	value := reflect.New(rc.Type()).Elem()
	if err := ApplyValue(value, src); err != nil {
		return err
	}
	id, err := m.store.components.Register(rc.fns.Handle)
	if err != nil {
		return err
	}
	m.insertReflected(id, value)
	return nil
}

// Remove removes the component from the entity, which moves it to the archetype without it.
// Removing an absent component does nothing.
func (rc ReflectComponent) Remove(m *EntityMut) error {
	if err := m.check(); err != nil {
		return err
	}
	id, ok := rc.fns.ComponentID(m.store.components)
	if !ok {
		return nil
	}
	return m.RemoveByID(id)
}

// Copy applies srcEntity's component in src onto dstEntity in dst, inserting it when
// dstEntity lacks it. The two stores may be the same.
func (rc ReflectComponent) Copy(src, dst *Store, srcEntity, dstEntity Entity) error {
	ref, err := src.Entity(srcEntity)
	if err != nil {
		return err
	}
	value, ok := rc.Reflect(ref)
	if !ok {
		return ComponentNotFoundError{Component: rc.fns.Handle}
	}
	// detach from src storage before dst may move it
	copied := reflect.New(value.Type()).Elem()
	copied.Set(value)

	m, err := dst.EntityMut(dstEntity)
	if err != nil {
		return err
	}
	return rc.ApplyOrInsert(m, copied)
}
