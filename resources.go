package depot

import (
	"iter"
	"maps"
	"reflect"
)

// Resources holds singleton values keyed by their Go type. Each value is boxed behind a
// pointer so it stays addressable while other resources come and go.
type Resources struct {
	values map[reflect.Type]reflect.Value
}

func newResources() *Resources {
	return &Resources{values: make(map[reflect.Type]reflect.Value)}
}

func (rs *Resources) Len() int {
	return len(rs.values)
}

// Types yields the type of every stored resource in no particular order.
func (rs *Resources) Types() iter.Seq[reflect.Type] {
	return maps.Keys(rs.values)
}

// ByType returns an addressable value of resource typ.
func (rs *Resources) ByType(typ reflect.Type) (reflect.Value, bool) {
	ptr, ok := rs.values[typ]
	if !ok {
		return reflect.Value{}, false
	}
	return ptr.Elem(), true
}

// InsertValue stores v, replacing the previous value of its type.
func (rs *Resources) InsertValue(v reflect.Value) {
	if existing, ok := rs.values[v.Type()]; ok {
		if d, isDropper := existing.Interface().(Dropper); isDropper {
			d.Drop()
		}
		existing.Elem().Set(v)
		return
	}
	ptr := reflect.New(v.Type())
	ptr.Elem().Set(v)
	rs.values[v.Type()] = ptr
}

// RemoveType deletes the resource of type typ.
func (rs *Resources) RemoveType(typ reflect.Type) bool {
	ptr, ok := rs.values[typ]
	if !ok {
		return false
	}
	if d, isDropper := ptr.Interface().(Dropper); isDropper {
		d.Drop()
	}
	delete(rs.values, typ)
	return true
}

func InsertResource[T any](s *Store, value T) {
	s.resources.InsertValue(reflect.ValueOf(&value).Elem())
}

// Resource returns a pointer to the stored T. The pointer stays valid until T is removed.
func Resource[T any](s *Store) (*T, bool) {
	v, ok := s.resources.ByType(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	return v.Addr().Interface().(*T), true
}

func RemoveResource[T any](s *Store) bool {
	return s.resources.RemoveType(reflect.TypeFor[T]())
}

func HasResource[T any](s *Store) bool {
	_, ok := s.resources.values[reflect.TypeFor[T]()]
	return ok
}
