package depot

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/TheBitDrifter/table"
)

// ComponentID is the store-local handle for a component type.
type ComponentID uint32

// maxComponentTypes bounds the ids one store can hand out; it matches the archetype mask width.
const maxComponentTypes = 256

// StorageType selects where a component's values live.
type StorageType uint8

const (
	// StorageTable keeps values in the archetype's columns.
	StorageTable StorageType = iota
	// StorageSparseSet keeps values in a per-component sparse set keyed by entity index.
	// Adding or removing such a component does not copy the entity's other columns' rows
	// into a new table, only its row moves.
	StorageSparseSet
)

func (s StorageType) String() string {
	switch s {
	case StorageTable:
		return "table"
	case StorageSparseSet:
		return "sparse_set"
	}
	return fmt.Sprintf("StorageType(%d)", uint8(s))
}

// SparseStorage can be embedded in a component type to store it in a sparse set.
type SparseStorage struct{}

// StorageType implements storageSelector.
func (SparseStorage) StorageType() StorageType { return StorageSparseSet }

type storageSelector interface {
	StorageType() StorageType
}

// Dropper is implemented by components that release something when their value leaves the
// store: on despawn, on removal and when a newer value replaces it.
type Dropper interface {
	Drop()
}

// Component represents a data attribute/state that can be attached to entities
// Components can be used to create queries for entities
type Component interface {
	table.ElementType
	GoType() reflect.Type
	Storage() StorageType
	dropFn() func(unsafe.Pointer)
}

type componentType struct {
	table.ElementType
	typ     reflect.Type
	storage StorageType
	drop    func(unsafe.Pointer)
}

func (c *componentType) GoType() reflect.Type { return c.typ }

func (c *componentType) Storage() StorageType { return c.storage }

func (c *componentType) dropFn() func(unsafe.Pointer) { return c.drop }

// componentTypes holds the one handle per Go type; stores register handles lazily.
var componentTypes sync.Map // reflect.Type -> *componentType

func componentTypeFor[T any]() *componentType {
	typ := reflect.TypeFor[T]()
	if existing, ok := componentTypes.Load(typ); ok {
		return existing.(*componentType)
	}
	created := &componentType{
		ElementType: table.FactoryNewElementType[T](),
		typ:         typ,
	}
	var zero T
	if sel, ok := any(zero).(storageSelector); ok {
		created.storage = sel.StorageType()
	}
	if _, ok := any((*T)(nil)).(Dropper); ok {
		created.drop = func(p unsafe.Pointer) {
			any((*T)(p)).(Dropper).Drop()
		}
	}
	actual, _ := componentTypes.LoadOrStore(typ, created)
	return actual.(*componentType)
}

func lookupComponentType(typ reflect.Type) (*componentType, bool) {
	found, ok := componentTypes.Load(typ)
	if !ok {
		return nil, false
	}
	return found.(*componentType), true
}
