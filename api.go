package depot

import (
	"iter"
)

type Query interface {
	QueryNode
	And(items ...any) QueryNode
	Or(items ...any) QueryNode
	Not(items ...any) QueryNode
}

// QueryNode decides whether an archetype's entities match.
type QueryNode interface {
	Evaluate(archetype *Archetype, store *Store) bool
}

type iCursor interface {
	Entities() iter.Seq[EntityRef]
	Next() bool
	Reset()
}

type Cache[T any] interface {
	GetIndex(string) (int, bool)
	GetItem(int) *T
	GetItem32(uint32) *T
	Register(string, T) (int, error)
	Len() int
}

// Cursor walks the entities of every archetype a query matches, archetype by archetype and
// row by row. The store stays locked from the first Next until iteration ends or Reset is
// called, so structural changes made meanwhile must go through the Enqueue methods.
type Cursor struct {
	query QueryNode
	store *Store

	currentArchetype *Archetype
	storageIndex     int
	entityIndex      int
	remaining        int

	initialized     bool
	matchedStorages []*Archetype
}

// AccessibleComponent is the process-wide handle of component type T.
type AccessibleComponent[T any] struct {
	*componentType
}

type CacheLocation struct {
	Key   string
	Index uint32
}

type SimpleCache[T any] struct {
	items       []T
	itemIndices map[string]int
	maxCapacity int
}
