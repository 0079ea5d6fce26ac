package depot

import (
	"reflect"
)

// ReflectResource is ReflectComponent for resources.
type ReflectResource struct {
	typ reflect.Type
}

func ReflectResourceFor[T any]() ReflectResource {
	return ReflectResource{typ: reflect.TypeFor[T]()}
}

func (rr ReflectResource) Type() reflect.Type {
	return rr.typ
}

// Reflect returns the stored resource as a settable value.
func (rr ReflectResource) Reflect(s *Store) (reflect.Value, bool) {
	return s.resources.ByType(rr.typ)
}

// Insert stores the result of applying src to a zero value, replacing any previous value.
func (rr ReflectResource) Insert(s *Store, src any) error {
	value := reflect.New(rr.typ).Elem()
	if err := ApplyValue(value, src); err != nil {
		return err
	}
	s.resources.InsertValue(value)
	return nil
}

// Apply writes src onto the stored resource.
func (rr ReflectResource) Apply(s *Store, src any) error {
	dst, ok := rr.Reflect(s)
	if !ok {
		return ResourceNotFoundError{Type: rr.typ}
	}
	return ApplyValue(dst, src)
}

func (rr ReflectResource) ApplyOrInsert(s *Store, src any) error {
	if dst, ok := rr.Reflect(s); ok {
		return ApplyValue(dst, src)
	}
	return rr.Insert(s, src)
}

func (rr ReflectResource) Remove(s *Store) {
	s.resources.RemoveType(rr.typ)
}

// Copy applies the resource of src onto dst, inserting it when dst has none.
func (rr ReflectResource) Copy(src, dst *Store) error {
	value, ok := rr.Reflect(src)
	if !ok {
		return ResourceNotFoundError{Type: rr.typ}
	}
	copied := reflect.New(rr.typ).Elem()
	copied.Set(value)
	return rr.ApplyOrInsert(dst, copied)
}
