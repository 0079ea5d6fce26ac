package depot

import (
	"iter"
	"slices"

	"github.com/TheBitDrifter/mask"
	"github.com/rs/zerolog"
)

// Archetypes indexes a store's archetypes by component signature. Archetypes are created on
// demand and never removed.
type Archetypes struct {
	asSlice          []*Archetype
	idsGroupedByMask map[mask.Mask]ArchetypeID
}

func newArchetypes(components *Components, capacity int) *Archetypes {
	as := &Archetypes{
		idsGroupedByMask: make(map[mask.Mask]ArchetypeID),
	}
	as.insert(newArchetype(components, EmptyArchetype, nil, capacity))
	return as
}

func (as *Archetypes) Get(id ArchetypeID) (*Archetype, bool) {
	if int(id) >= len(as.asSlice) {
		return nil, false
	}
	return as.asSlice[id], true
}

func (as *Archetypes) Empty() *Archetype {
	return as.asSlice[EmptyArchetype]
}

func (as *Archetypes) Len() int {
	return len(as.asSlice)
}

// All yields archetypes in creation order.
func (as *Archetypes) All() iter.Seq[*Archetype] {
	return slices.Values(as.asSlice)
}

// Find returns the archetype holding exactly ids, if it exists.
func (as *Archetypes) Find(ids ...ComponentID) (*Archetype, bool) {
	id, ok := as.idsGroupedByMask[maskOf(ids)]
	if !ok {
		return nil, false
	}
	return as.asSlice[id], true
}

// getOrCreate returns the archetype for the given set of ids. The slice may be unsorted and
// contain duplicates.
func (as *Archetypes) getOrCreate(components *Components, ids []ComponentID, capacity int, logger *zerolog.Logger) *Archetype {
	m := maskOf(ids)
	if id, found := as.idsGroupedByMask[m]; found {
		return as.asSlice[id]
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	created := newArchetype(components, ArchetypeID(len(as.asSlice)), sorted, capacity)
	as.insert(created)

	logArchetypeCreated(logger, components, created)
	if onCreate := Config.archetypeEvents.OnCreate; onCreate != nil {
		onCreate(created)
	}
	return created
}

func (as *Archetypes) insert(a *Archetype) {
	as.asSlice = append(as.asSlice, a)
	as.idsGroupedByMask[a.mask] = a.id
}

func maskOf(ids []ComponentID) mask.Mask {
	var m mask.Mask
	for _, id := range ids {
		m.Mark(uint32(id))
	}
	return m
}

// withComponent resolves the transition "src plus id", caching the edge.
func (s *Store) withComponent(src *Archetype, id ComponentID) *Archetype {
	if dst, ok := src.edges.add[id]; ok {
		return s.archetypes.asSlice[dst]
	}
	dst := src
	if !src.Contains(id) {
		ids := append(slices.Clone(src.components), id)
		dst = s.archetypes.getOrCreate(s.components, ids, s.config.ColumnCapacity, &s.logger)
		dst.edges.remove[id] = src.id
	}
	src.edges.add[id] = dst.id
	return dst
}

// withoutComponents resolves the transition "src minus ids". Only a single id is cached.
func (s *Store) withoutComponents(src *Archetype, ids ...ComponentID) *Archetype {
	if len(ids) == 1 {
		if dst, ok := src.edges.remove[ids[0]]; ok {
			return s.archetypes.asSlice[dst]
		}
	}
	kept := make([]ComponentID, 0, len(src.components))
	for _, cid := range src.components {
		if !slices.Contains(ids, cid) {
			kept = append(kept, cid)
		}
	}
	dst := s.archetypes.getOrCreate(s.components, kept, s.config.ColumnCapacity, &s.logger)
	if len(ids) == 1 {
		src.edges.remove[ids[0]] = dst.id
		if src.Contains(ids[0]) {
			dst.edges.add[ids[0]] = src.id
		}
	}
	return dst
}

// withBundle resolves the transition "src plus every component of b".
func (s *Store) withBundle(src *Archetype, b *bundleInfo) *Archetype {
	if dst, ok := src.edges.bundle[b.id]; ok {
		return s.archetypes.asSlice[dst]
	}
	dst := src
	for _, cid := range b.components {
		if !dst.Contains(cid) {
			ids := append(slices.Clone(src.components), b.components...)
			dst = s.archetypes.getOrCreate(s.components, ids, s.config.ColumnCapacity, &s.logger)
			break
		}
	}
	src.edges.bundle[b.id] = dst.id
	return dst
}
