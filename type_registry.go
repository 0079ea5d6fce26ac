package depot

import (
	"iter"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const maxRegisteredTypes = 1 << 14

// EntityMap translates entity ids from one store to another.
type EntityMap map[Entity]Entity

// Map returns the translation of e, or e itself when it has none.
func (m EntityMap) Map(e Entity) Entity {
	if mapped, ok := m[e]; ok {
		return mapped
	}
	return e
}

// MapEntities is implemented by components that hold entity ids and need them rewritten when
// copied into another store.
type MapEntities interface {
	MapEntities(mapper func(Entity) Entity)
}

// ReflectMapEntities rewrites the entity ids held by one component type.
type ReflectMapEntities struct {
	rc ReflectComponent
}

// MapEntities rewrites the component of every listed entity of s that has one.
func (rme ReflectMapEntities) MapEntities(s *Store, entities []Entity, m EntityMap) {
	for _, e := range entities {
		cell, ok := s.UnsafeEntityCell(e)
		if !ok {
			continue
		}
		v, ok := rme.rc.ReflectUncheckedMut(cell)
		if !ok {
			continue
		}
		v.Addr().Interface().(MapEntities).MapEntities(m.Map)
	}
}

// TypeRegistration is everything registered about one Go type.
type TypeRegistration struct {
	typ  reflect.Type
	path string
	hash uint64

	mu   sync.RWMutex
	data map[reflect.Type]any
}

func (r *TypeRegistration) Type() reflect.Type { return r.typ }
func (r *TypeRegistration) TypePath() string { return r.path }
func (r *TypeRegistration) Hash() uint64 { return r.hash }

// InsertData attaches d to r, replacing earlier data of the same type.
func InsertData[D any](r *TypeRegistration, d D) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[reflect.TypeFor[D]()] = d
}

// Data returns r's data of type D.
func Data[D any](r *TypeRegistration) (D, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.data[reflect.TypeFor[D]()].(D)
	return d, ok
}

// TypeRegistry maps Go types to their registrations. Lookups are by reflect.Type, by type path
// and by the xxhash of the type path. It is safe for concurrent use.
type TypeRegistry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]int
	byHash map[uint64]int
	byPath Cache[*TypeRegistration]
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byType: make(map[reflect.Type]int),
		byHash: make(map[uint64]int),
		byPath: FactoryNewCache[*TypeRegistration](maxRegisteredTypes),
	}
}

var appTypeRegistry = sync.OnceValue(NewTypeRegistry)

// AppTypeRegistry is the process-wide registry, created on first use.
func AppTypeRegistry() *TypeRegistry {
	return appTypeRegistry()
}

// TypePath names typ the way registries key it: import path and name for named types, the
// type's literal otherwise.
func TypePath(typ reflect.Type) string {
	if typ.Name() != "" && typ.PkgPath() != "" {
		return typ.PkgPath() + "." + typ.Name()
	}
	return typ.String()
}

// RegisterType returns typ's registration, creating it on first sight. A different type whose
// path or path hash is already taken is rejected.
func (tr *TypeRegistry) RegisterType(typ reflect.Type) (*TypeRegistration, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if idx, ok := tr.byType[typ]; ok {
		return *tr.byPath.GetItem(idx), nil
	}
	path := TypePath(typ)
	if idx, ok := tr.byPath.GetIndex(path); ok {
		return nil, TypePathConflictError{Path: path, Type: typ, Registered: (*tr.byPath.GetItem(idx)).typ}
	}
	hash := xxhash.Sum64String(path)
	if idx, ok := tr.byHash[hash]; ok {
		return nil, TypePathConflictError{Path: path, Type: typ, Registered: (*tr.byPath.GetItem(idx)).typ}
	}
	reg := &TypeRegistration{
		typ:  typ,
		path: path,
		hash: hash,
		data: make(map[reflect.Type]any),
	}
	idx, err := tr.byPath.Register(path, reg)
	if err != nil {
		return nil, err
	}
	tr.byType[typ] = idx
	tr.byHash[reg.hash] = idx
	return reg, nil
}

// Register registers T as a plain type.
func Register[T any](tr *TypeRegistry) (*TypeRegistration, error) {
	return tr.RegisterType(reflect.TypeFor[T]())
}

// RegisterComponentType registers T with ReflectComponent data, and ReflectMapEntities data
// when *T implements MapEntities.
func RegisterComponentType[T any](tr *TypeRegistry) (*TypeRegistration, error) {
	reg, err := Register[T](tr)
	if err != nil {
		return nil, err
	}
	rc := ReflectComponentFor[T]()
	InsertData(reg, rc)
	if _, ok := any((*T)(nil)).(MapEntities); ok {
		InsertData(reg, ReflectMapEntities{rc: rc})
	}
	return reg, nil
}

// RegisterResourceType registers T with ReflectResource data.
func RegisterResourceType[T any](tr *TypeRegistry) (*TypeRegistration, error) {
	reg, err := Register[T](tr)
	if err != nil {
		return nil, err
	}
	InsertData(reg, ReflectResourceFor[T]())
	return reg, nil
}

func (tr *TypeRegistry) Get(typ reflect.Type) (*TypeRegistration, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	idx, ok := tr.byType[typ]
	if !ok {
		return nil, false
	}
	return *tr.byPath.GetItem(idx), true
}

func (tr *TypeRegistry) GetByPath(path string) (*TypeRegistration, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	idx, ok := tr.byPath.GetIndex(path)
	if !ok {
		return nil, false
	}
	return *tr.byPath.GetItem(idx), true
}

func (tr *TypeRegistry) GetByHash(hash uint64) (*TypeRegistration, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	idx, ok := tr.byHash[hash]
	if !ok {
		return nil, false
	}
	return *tr.byPath.GetItem(idx), true
}

func (tr *TypeRegistry) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.byPath.Len()
}

// All yields registrations in registration order. The registry is read-locked while the loop
// runs.
func (tr *TypeRegistry) All() iter.Seq[*TypeRegistration] {
	return func(yield func(*TypeRegistration) bool) {
		tr.mu.RLock()
		defer tr.mu.RUnlock()
		for i := range tr.byPath.Len() {
			if !yield(*tr.byPath.GetItem(i)) {
				return
			}
		}
	}
}
