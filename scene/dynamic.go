package scene

import (
	"cmp"
	"io"
	"slices"

	"github.com/TheBitDrifter/depot"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DynamicScene is a serializable snapshot of a store. Values are keyed by type path and hold
// whatever a serializer produced for them; they are applied onto fresh values when written.
type DynamicScene struct {
	Resources []DynamicValue  `yaml:"resources,omitempty" json:"resources,omitempty"`
	Entities  []DynamicEntity `yaml:"entities" json:"entities"`
}

type DynamicEntity struct {
	// Entity is the scene-local id as returned by depot.Entity.Bits.
	Entity     uint64         `yaml:"entity" json:"entity"`
	Components []DynamicValue `yaml:"components" json:"components"`
}

type DynamicValue struct {
	Type  string `yaml:"type" json:"type"`
	Value any    `yaml:"value" json:"value"`
}

// FromStore snapshots every resource and entity of s. Every type involved must be registered.
func FromStore(s *depot.Store, registry *depot.TypeRegistry) (*DynamicScene, error) {
	d := &DynamicScene{}
	for typ := range s.Resources().Types() {
		rr, err := reflectResource(registry, typ)
		if err != nil {
			return nil, err
		}
		v, ok := rr.Reflect(s)
		if !ok {
			return nil, SpawnError{Kind: UnregisteredResource, TypeName: typ.String()}
		}
		d.Resources = append(d.Resources, DynamicValue{Type: depot.TypePath(typ), Value: v.Interface()})
	}
	slices.SortFunc(d.Resources, func(a, b DynamicValue) int {
		return cmp.Compare(a.Type, b.Type)
	})

	for arch := range s.Archetypes().All() {
		for _, e := range arch.Entities() {
			ref, err := s.Entity(e)
			if err != nil {
				return nil, err
			}
			entity := DynamicEntity{Entity: e.Bits()}
			for _, ci := range ref.ComponentInfos() {
				rc, err := reflectComponent(registry, ci.Type())
				if err != nil {
					return nil, err
				}
				v, ok := rc.Reflect(ref)
				if !ok {
					return nil, SpawnError{Kind: UnregisteredComponent, TypeName: ci.Type().String()}
				}
				entity.Components = append(entity.Components, DynamicValue{
					Type:  depot.TypePath(ci.Type()),
					Value: v.Interface(),
				})
			}
			d.Entities = append(d.Entities, entity)
		}
	}
	slices.SortFunc(d.Entities, func(a, b DynamicEntity) int {
		return cmp.Compare(uint32(a.Entity), uint32(b.Entity))
	})
	return d, nil
}

// WriteToStore spawns the scene's entities and inserts its resources into dst.
func (d *DynamicScene) WriteToStore(dst *depot.Store, registry *depot.TypeRegistry) (InstanceInfo, error) {
	info := newInstanceInfo()

	for _, res := range d.Resources {
		reg, ok := registry.GetByPath(res.Type)
		if !ok {
			return info, SpawnError{Kind: UnregisteredType, TypeName: res.Type}
		}
		rr, ok := depot.Data[depot.ReflectResource](reg)
		if !ok {
			return info, SpawnError{Kind: UnregisteredResource, TypeName: res.Type}
		}
		if err := rr.ApplyOrInsert(dst, res.Value); err != nil {
			return info, eris.Wrapf(err, "failed to write resource %s", res.Type)
		}
	}

	for _, de := range d.Entities {
		sceneEntity := depot.EntityFromBits(de.Entity)
		e, ok := info.EntityMap[sceneEntity]
		if !ok {
			var err error
			if e, err = dst.SpawnEmpty(); err != nil {
				return info, err
			}
			info.EntityMap[sceneEntity] = e
		}
		m, err := dst.EntityMut(e)
		if err != nil {
			return info, err
		}
		for _, c := range de.Components {
			reg, ok := registry.GetByPath(c.Type)
			if !ok {
				return info, SpawnError{Kind: UnregisteredType, TypeName: c.Type}
			}
			rc, ok := depot.Data[depot.ReflectComponent](reg)
			if !ok {
				return info, SpawnError{Kind: UnregisteredComponent, TypeName: c.Type}
			}
			if err := rc.ApplyOrInsert(m, c.Value); err != nil {
				return info, eris.Wrapf(err, "failed to write %s of scene entity %d", c.Type, de.Entity)
			}
		}
	}

	mapAllEntities(dst, registry, info.EntityMap)
	return info, nil
}

// Encode writes d as YAML.
func (d *DynamicScene) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return eris.Wrap(err, "failed to encode scene")
	}
	return enc.Close()
}

// Decode reads a YAML scene written by Encode.
func Decode(r io.Reader) (*DynamicScene, error) {
	var d DynamicScene
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, eris.Wrap(err, "failed to decode scene")
	}
	return &d, nil
}

// EncodeJSON encodes d as JSON.
func (d *DynamicScene) EncodeJSON() ([]byte, error) {
	bz, err := json.Marshal(d)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode scene")
	}
	return bz, nil
}

// DecodeJSON decodes a scene written by EncodeJSON.
func DecodeJSON(bz []byte) (*DynamicScene, error) {
	var d DynamicScene
	if err := json.Unmarshal(bz, &d); err != nil {
		return nil, eris.Wrap(err, "failed to decode scene")
	}
	return &d, nil
}
