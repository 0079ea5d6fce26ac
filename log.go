package depot

import (
	"github.com/rs/zerolog"
)

func componentsArray(components *Components, ids []ComponentID) *zerolog.Array {
	arr := zerolog.Arr()
	for _, id := range ids {
		info := components.mustInfo(id)
		arr = arr.Dict(zerolog.Dict().
			Int("component_id", int(id)).
			Str("component_name", info.Name()).
			Str("storage", info.storage.String()))
	}
	return arr
}

func logArchetypeCreated(logger *zerolog.Logger, components *Components, a *Archetype) {
	if e := logger.Debug(); e.Enabled() {
		e.Int("archetype_id", int(a.id)).
			Array("components", componentsArray(components, a.components)).
			Msg("archetype created")
	}
}

// LogStore logs every registered component and archetype of s.
func LogStore(logger *zerolog.Logger, s *Store, level zerolog.Level) {
	var ids []ComponentID
	for info := range s.components.All() {
		ids = append(ids, info.id)
	}
	archetypes := zerolog.Arr()
	for arch := range s.archetypes.All() {
		archetypes = archetypes.Dict(zerolog.Dict().
			Int("archetype_id", int(arch.id)).
			Int("entities", arch.Len()).
			Array("components", componentsArray(s.components, arch.components)))
	}
	logger.WithLevel(level).
		Int("total_components", len(ids)).
		Array("components", componentsArray(s.components, ids)).
		Int("total_archetypes", s.archetypes.Len()).
		Array("archetypes", archetypes).
		Int("total_entities", s.Len()).
		Send()
}

// LogEntity logs where e is stored and which components it has.
func LogEntity(logger *zerolog.Logger, s *Store, e Entity, level zerolog.Level) {
	ref, err := s.Entity(e)
	if err != nil {
		logger.WithLevel(level).Str("entity", e.String()).Err(err).Send()
		return
	}
	logger.WithLevel(level).
		Str("entity", e.String()).
		Int("archetype_id", int(ref.loc.Archetype)).
		Uint32("row", ref.loc.Row).
		Array("components", componentsArray(s.components, ref.Archetype().components)).
		Send()
}
