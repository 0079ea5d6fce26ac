package depot

import (
	"reflect"
	"slices"
	"strconv"
	"strings"
)

type bundleID uint32

// Bundle is embedded in a struct to mark its exported fields as a set of components that are
// spawned or inserted together. Fields tagged `depot:"-"` are skipped and fields whose type is
// itself a bundle are flattened.
type Bundle struct{}

func (Bundle) isBundle() {}

type bundler interface {
	isBundle()
}

var bundleMarkerType = reflect.TypeFor[Bundle]()

// bundleInfo is the resolved layout of one bundle type.
type bundleInfo struct {
	id         bundleID
	typ        reflect.Type
	components []ComponentID
	fields     [][]int // field index path per component, nil when the bundle is a bare component
}

// bundleSource yields the value for the i-th component of a bundle.
type bundleSource func(i int) reflect.Value

type bundles struct {
	infos   []*bundleInfo
	byType  map[reflect.Type]bundleID
	dynamic map[string]bundleID
}

func newBundles() *bundles {
	return &bundles{
		byType:  make(map[reflect.Type]bundleID),
		dynamic: make(map[string]bundleID),
	}
}

// infoFor resolves the layout of typ once per store.
func (bs *bundles) infoFor(components *Components, typ reflect.Type) (*bundleInfo, error) {
	if id, ok := bs.byType[typ]; ok {
		return bs.infos[id], nil
	}
	info := &bundleInfo{typ: typ}
	if typ.Implements(reflect.TypeFor[bundler]()) && typ.Kind() == reflect.Struct {
		if err := collectBundleFields(components, typ, nil, info); err != nil {
			return nil, err
		}
	} else {
		id, err := registerByType(components, typ)
		if err != nil {
			return nil, err
		}
		info.components = []ComponentID{id}
		info.fields = [][]int{nil}
	}
	if err := checkDuplicates(components, info.components); err != nil {
		return nil, BundleError{Bundle: typ, Reason: err.Error()}
	}
	info.id = bundleID(len(bs.infos))
	bs.infos = append(bs.infos, info)
	bs.byType[typ] = info.id
	return info, nil
}

// dynamicInfo resolves a bundle made of explicit component ids.
func (bs *bundles) dynamicInfo(components *Components, ids []ComponentID) (*bundleInfo, error) {
	var key strings.Builder
	for _, id := range ids {
		if _, ok := components.Info(id); !ok {
			return nil, ComponentIDError{ID: id}
		}
		key.WriteString(strconv.FormatUint(uint64(id), 10))
		key.WriteByte(',')
	}
	if id, ok := bs.dynamic[key.String()]; ok {
		return bs.infos[id], nil
	}
	if err := checkDuplicates(components, ids); err != nil {
		return nil, BundleError{Reason: err.Error()}
	}
	info := &bundleInfo{
		id:         bundleID(len(bs.infos)),
		components: slices.Clone(ids),
	}
	bs.infos = append(bs.infos, info)
	bs.dynamic[key.String()] = info.id
	return info, nil
}

func collectBundleFields(components *Components, typ reflect.Type, prefix []int, info *bundleInfo) error {
	for i := range typ.NumField() {
		field := typ.Field(i)
		if field.Type == bundleMarkerType || !field.IsExported() || field.Tag.Get("depot") == "-" {
			continue
		}
		index := append(slices.Clone(prefix), i)
		if field.Type.Kind() == reflect.Struct && field.Type.Implements(reflect.TypeFor[bundler]()) {
			if err := collectBundleFields(components, field.Type, index, info); err != nil {
				return err
			}
			continue
		}
		id, err := registerByType(components, field.Type)
		if err != nil {
			return BundleError{Bundle: typ, Reason: "field " + field.Name + ": " + err.Error()}
		}
		info.components = append(info.components, id)
		info.fields = append(info.fields, index)
	}
	return nil
}

// checkBundle reports whether bundle could be spawned or inserted, consulting only the
// process-wide component types so nothing is registered.
func checkBundle(bundle any) error {
	v, err := bundleValue(bundle)
	if err != nil {
		return err
	}
	typ := v.Type()
	if !(typ.Implements(reflect.TypeFor[bundler]()) && typ.Kind() == reflect.Struct) {
		if _, ok := lookupComponentType(typ); !ok {
			return ComponentNotRegisteredError{Type: typ}
		}
		return nil
	}
	return checkBundleFields(typ, typ, make(map[reflect.Type]struct{}))
}

func checkBundleFields(bundle, typ reflect.Type, seen map[reflect.Type]struct{}) error {
	for i := range typ.NumField() {
		field := typ.Field(i)
		if field.Type == bundleMarkerType || !field.IsExported() || field.Tag.Get("depot") == "-" {
			continue
		}
		if field.Type.Kind() == reflect.Struct && field.Type.Implements(reflect.TypeFor[bundler]()) {
			if err := checkBundleFields(bundle, field.Type, seen); err != nil {
				return err
			}
			continue
		}
		if _, ok := lookupComponentType(field.Type); !ok {
			err := ComponentNotRegisteredError{Type: field.Type}
			return BundleError{Bundle: bundle, Reason: "field " + field.Name + ": " + err.Error()}
		}
		if _, dup := seen[field.Type]; dup {
			return BundleError{Bundle: bundle, Reason: DuplicateComponentError{Type: field.Type}.Error()}
		}
		seen[field.Type] = struct{}{}
	}
	return nil
}

func registerByType(components *Components, typ reflect.Type) (ComponentID, error) {
	if id, ok := components.IDOf(typ); ok {
		return id, nil
	}
	handle, ok := lookupComponentType(typ)
	if !ok {
		return 0, ComponentNotRegisteredError{Type: typ}
	}
	return components.Register(handle)
}

func checkDuplicates(components *Components, ids []ComponentID) error {
	seen := make(map[ComponentID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return DuplicateComponentError{Type: components.mustInfo(id).typ}
		}
		seen[id] = struct{}{}
	}
	return nil
}

// source returns the accessor for the component values held by v.
func (b *bundleInfo) source(v reflect.Value) bundleSource {
	return func(i int) reflect.Value {
		if b.fields[i] == nil {
			return v
		}
		return v.FieldByIndex(b.fields[i])
	}
}

// dynamicSource validates erased values against b before anything is written.
func (b *bundleInfo) dynamicSource(components *Components, values []any) (bundleSource, error) {
	if len(values) != len(b.components) {
		return nil, BundleError{Reason: "got " + strconv.Itoa(len(values)) + " values for " +
			strconv.Itoa(len(b.components)) + " components"}
	}
	resolved := make([]reflect.Value, len(values))
	for i, raw := range values {
		info := components.mustInfo(b.components[i])
		v := reflect.ValueOf(raw)
		if v.IsValid() && v.Kind() == reflect.Pointer && v.Type().Elem() == info.typ && !v.IsNil() {
			v = v.Elem()
		}
		if !v.IsValid() || v.Type() != info.typ {
			return nil, BundleError{Reason: "value " + strconv.Itoa(i) + " is not a " + info.Name()}
		}
		resolved[i] = v
	}
	return func(i int) reflect.Value { return resolved[i] }, nil
}

// writeBundle stores every bundle value for e at row of arch. Components src already held are
// replaced, dropping the old value.
func (s *Store) writeBundle(arch, src *Archetype, row uint32, e Entity, b *bundleInfo, values bundleSource) {
	for i, id := range b.components {
		v := values(i)
		if col, ok := arch.column(id); ok {
			if src != nil && src.Contains(id) {
				col.replace(row, v)
			} else {
				col.set(row, v)
			}
			continue
		}
		s.sparseSet(id).insert(e.Index, v)
	}
}

// bundleSpawner writes whole rows of one bundle into its pre-resolved archetype.
type bundleSpawner struct {
	store     *Store
	archetype *Archetype
	bundle    *bundleInfo
}

func (s *Store) newBundleSpawner(b *bundleInfo) *bundleSpawner {
	return &bundleSpawner{
		store:     s,
		archetype: s.withBundle(s.archetypes.Empty(), b),
		bundle:    b,
	}
}

// reserveStorage grows destination storage so n rows fit without reallocating.
func (bs *bundleSpawner) reserveStorage(n int) {
	bs.archetype.reserve(n)
	for _, id := range bs.archetype.sparseIDs {
		bs.store.sparseSet(id).reserve(n)
	}
}

// spawnNonExistent writes a row for e, which must be allocated and have no location.
func (bs *bundleSpawner) spawnNonExistent(e Entity, values bundleSource) EntityLocation {
	row := bs.archetype.allocateRow(e)
	bs.store.writeBundle(bs.archetype, nil, row, e, bs.bundle, values)
	loc := EntityLocation{Archetype: bs.archetype.id, Row: row}
	bs.store.entities.setLocation(e.Index, loc)
	return loc
}
