package depot

import (
	"iter"
)

var _ iCursor = &Cursor{}

func newCursor(query QueryNode, store *Store) *Cursor {
	return &Cursor{
		query: query,
		store: store,
	}
}

func (c *Cursor) Next() bool {
	if c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

func (c *Cursor) advance() bool {
	if !c.initialized {
		c.initialize()
	} else {
		c.storageIndex++
		c.entityIndex = 0
	}
	for c.storageIndex < len(c.matchedStorages) {
		c.currentArchetype = c.matchedStorages[c.storageIndex]
		c.remaining = c.currentArchetype.Len()

		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.storageIndex++
		c.entityIndex = 0
	}
	c.Reset()
	return false
}

// Entities yields every matched entity. Breaking out of the loop resets the cursor.
func (c *Cursor) Entities() iter.Seq[EntityRef] {
	return func(yield func(EntityRef) bool) {
		defer c.Reset()
		for c.Next() {
			ref, _ := c.Current()
			if !yield(ref) {
				return
			}
		}
	}
}

func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.store.Lock()
	c.matchedStorages = MatchingArchetypes(c.query, c.store)
	c.storageIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	if len(c.matchedStorages) > 0 {
		c.currentArchetype = c.matchedStorages[0]
		c.remaining = c.currentArchetype.Len()
	}
	c.initialized = true
}

// Reset rewinds the cursor and releases its lock on the store. It is called automatically
// once iteration runs to completion.
func (c *Cursor) Reset() {
	if !c.initialized {
		return
	}
	c.storageIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.matchedStorages = nil
	c.currentArchetype = nil
	c.initialized = false
	c.store.Unlock()
}

// Current returns the entity the cursor points at.
func (c *Cursor) Current() (EntityRef, bool) {
	if c.currentArchetype == nil || c.entityIndex == 0 {
		return EntityRef{}, false
	}
	row := uint32(c.entityIndex - 1)
	return EntityRef{
		store: c.store,
		id:    c.currentArchetype.entities[row],
		loc:   EntityLocation{Archetype: c.currentArchetype.id, Row: row},
	}, true
}

func (c *Cursor) CurrentEntity() (Entity, bool) {
	ref, ok := c.Current()
	return ref.id, ok
}

func (c *Cursor) RemainingInArchetype() int {
	return c.remaining - c.entityIndex
}

func (c *Cursor) TotalMatched() int {
	total := 0
	for _, arch := range MatchingArchetypes(c.query, c.store) {
		total += arch.Len()
	}
	return total
}
