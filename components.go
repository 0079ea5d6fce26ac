package depot

import (
	"iter"
	"reflect"
	"unsafe"

	"github.com/TheBitDrifter/table"
)

// ComponentInfo is the layout metadata of a registered component.
type ComponentInfo struct {
	id      ComponentID
	handle  Component
	typ     reflect.Type
	storage StorageType
	drop    func(unsafe.Pointer)
}

func (i *ComponentInfo) ID() ComponentID { return i.id }
func (i *ComponentInfo) Type() reflect.Type { return i.typ }
func (i *ComponentInfo) Name() string { return i.typ.String() }
func (i *ComponentInfo) Size() uintptr { return i.typ.Size() }
func (i *ComponentInfo) Align() int { return i.typ.Align() }
func (i *ComponentInfo) StorageType() StorageType { return i.storage }
func (i *ComponentInfo) Handle() Component { return i.handle }
func (i *ComponentInfo) HasDrop() bool { return i.drop != nil }

// Components is a store's component registry. Ids come from the table schema so they double
// as archetype mask bits.
type Components struct {
	schema table.Schema
	infos  []*ComponentInfo
	byType map[reflect.Type]ComponentID
}

func newComponents(schema table.Schema) *Components {
	return &Components{
		schema: schema,
		byType: make(map[reflect.Type]ComponentID),
	}
}

// Register returns the id of c, assigning one on first sight.
func (cs *Components) Register(c Component) (ComponentID, error) {
	if id, ok := cs.byType[c.GoType()]; ok {
		return id, nil
	}
	if canonical, ok := lookupComponentType(c.GoType()); ok {
		c = canonical
	}
	cs.schema.Register(c)
	raw := cs.schema.RowIndexFor(c)
	if raw >= maxComponentTypes {
		return 0, TooManyComponentsError{Type: c.GoType(), Limit: maxComponentTypes}
	}
	id := ComponentID(raw)
	if int(id) >= len(cs.infos) {
		grown := make([]*ComponentInfo, id+1)
		copy(grown, cs.infos)
		cs.infos = grown
	}
	cs.infos[id] = &ComponentInfo{
		id:      id,
		handle:  c,
		typ:     c.GoType(),
		storage: c.Storage(),
		drop:    c.dropFn(),
	}
	cs.byType[c.GoType()] = id
	return id, nil
}

// IDOf looks up the id assigned to typ.
func (cs *Components) IDOf(typ reflect.Type) (ComponentID, bool) {
	id, ok := cs.byType[typ]
	return id, ok
}

// Info returns metadata for id.
func (cs *Components) Info(id ComponentID) (*ComponentInfo, bool) {
	if int(id) >= len(cs.infos) || cs.infos[id] == nil {
		return nil, false
	}
	return cs.infos[id], true
}

// Len is the number of registered components.
func (cs *Components) Len() int {
	return len(cs.byType)
}

// All yields registered components ordered by id.
func (cs *Components) All() iter.Seq[*ComponentInfo] {
	return func(yield func(*ComponentInfo) bool) {
		for _, info := range cs.infos {
			if info == nil {
				continue
			}
			if !yield(info) {
				return
			}
		}
	}
}

func (cs *Components) mustInfo(id ComponentID) *ComponentInfo {
	info, ok := cs.Info(id)
	if !ok {
		panic(ComponentIDError{ID: id})
	}
	return info
}

// RegisterComponent registers T with the store and returns its id.
func RegisterComponent[T any](s *Store) (ComponentID, error) {
	return s.components.Register(componentTypeFor[T]())
}

// ComponentIDFor returns T's id in s without registering it.
func ComponentIDFor[T any](s *Store) (ComponentID, bool) {
	return s.components.IDOf(reflect.TypeFor[T]())
}
