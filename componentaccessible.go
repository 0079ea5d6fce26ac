package depot

import (
	"reflect"
)

// ComponentID returns T's id in s, registering T on first use.
func (c AccessibleComponent[T]) ComponentID(s *Store) (ComponentID, error) {
	return s.components.Register(c)
}

// GetFromCursor retrieves the component of the entity at the cursor position. The entity must
// have it.
func (c AccessibleComponent[T]) GetFromCursor(cursor *Cursor) *T {
	ok, v := c.GetFromCursorSafe(cursor)
	if !ok {
		panic(ComponentNotFoundError{Component: c})
	}
	return v
}

// GetFromCursorSafe retrieves the component at the cursor position, reporting whether the
// current archetype has it.
func (c AccessibleComponent[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	ref, ok := cursor.Current()
	if !ok {
		return false, nil
	}
	v, ok := c.GetFromEntity(ref)
	return ok, v
}

// CheckCursor determines if the component exists in the archetype at the cursor position
func (c AccessibleComponent[T]) CheckCursor(cursor *Cursor) bool {
	if cursor.currentArchetype == nil {
		return false
	}
	id, ok := cursor.store.components.IDOf(c.typ)
	return ok && cursor.currentArchetype.Contains(id)
}

// GetFromEntity retrieves the component of the entity ref points at.
func (c AccessibleComponent[T]) GetFromEntity(ref EntityRef) (*T, bool) {
	return Get[T](ref)
}

// Get returns a pointer to ref's T component. The pointer is invalidated by the next structural
// change of the store.
func Get[T any](ref EntityRef) (*T, bool) {
	if ref.store == nil {
		return nil, false
	}
	id, ok := ref.store.components.IDOf(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	p, ok := ref.GetByID(id)
	if !ok {
		return nil, false
	}
	return (*T)(p), true
}

// GetMut is Get through exclusive access.
func GetMut[T any](m *EntityMut) (*T, bool) {
	id, ok := m.store.components.IDOf(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	p, ok := m.GetMutByID(id)
	if !ok {
		return nil, false
	}
	return (*T)(p), true
}

func Has[T any](ref EntityRef) bool {
	_, ok := Get[T](ref)
	return ok
}

// InsertComponent adds value to m, replacing an existing T.
func InsertComponent[T any](m *EntityMut, value T) error {
	if err := m.check(); err != nil {
		return err
	}
	id, err := m.store.components.Register(componentTypeFor[T]())
	if err != nil {
		return err
	}
	m.insertReflected(id, reflect.ValueOf(&value).Elem())
	return nil
}

// GetUnchecked returns cell's T component without any access checks.
func GetUnchecked[T any](cell UnsafeEntityCell) (*T, bool) {
	id, ok := cell.store.components.IDOf(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	p, ok := cell.GetMutByID(id)
	if !ok {
		return nil, false
	}
	return (*T)(p), true
}
