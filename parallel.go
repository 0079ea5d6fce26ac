package depot

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// rowSpan is the rows [start, end) of one archetype.
type rowSpan struct {
	archetype  *Archetype
	start, end int
}

// partition splits the rows of archetypes into at most parts contiguous, disjoint groups of
// near-equal size. An archetype larger than a group is split across groups.
func partition(archetypes []*Archetype, parts int) [][]rowSpan {
	total := 0
	for _, arch := range archetypes {
		total += arch.Len()
	}
	if total == 0 || parts <= 0 {
		return nil
	}
	parts = min(parts, total)
	size := (total + parts - 1) / parts

	groups := make([][]rowSpan, 0, parts)
	var current []rowSpan
	room := size
	for _, arch := range archetypes {
		for start := 0; start < arch.Len(); {
			end := min(arch.Len(), start+room)
			current = append(current, rowSpan{archetype: arch, start: start, end: end})
			room -= end - start
			start = end
			if room == 0 {
				groups = append(groups, current)
				current = nil
				room = size
			}
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// ParEach calls fn for every entity node matches, from up to workers goroutines at once.
// Entities are split into disjoint ranges so each is visited exactly once. The store is locked
// for the duration: fn may read any component and write the components of the entity it was
// handed, and must defer structural changes through the Enqueue methods. The first error
// cancels ctx for the remaining workers and is returned.
func ParEach(ctx context.Context, node QueryNode, s *Store, workers int, fn func(EntityRef) error) error {
	if workers <= 0 {
		workers = s.config.Workers
	}
	s.Lock()
	defer s.Unlock()

	groups := partition(MatchingArchetypes(node, s), workers)
	g, ctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		g.Go(func() error {
			for _, span := range group {
				for row := span.start; row < span.end; row++ {
					if err := ctx.Err(); err != nil {
						return err
					}
					ref := EntityRef{
						store: s,
						id:    span.archetype.entities[row],
						loc:   EntityLocation{Archetype: span.archetype.id, Row: uint32(row)},
					}
					if err := fn(ref); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	return g.Wait()
}
