package depot

import "github.com/TheBitDrifter/table"

type factory struct{}

var Factory factory

// NewStore creates a store whose component ids come from schema. Stores sharing a schema agree
// on component ids. Without a config DefaultStoreConfig is used.
func (f factory) NewStore(schema table.Schema, cfg ...StoreConfig) *Store {
	c := DefaultStoreConfig()
	if len(cfg) > 0 {
		c = cfg[0]
	}
	return newStore(schema, c)
}

func (f factory) NewQuery() Query {
	return newQuery()
}

func (f factory) NewCursor(query QueryNode, store *Store) *Cursor {
	return newCursor(query, store)
}

func (f factory) NewTypeRegistry() *TypeRegistry {
	return NewTypeRegistry()
}

// FactoryNewComponent returns the handle of component type T. Every call for the same T returns
// the same handle.
func FactoryNewComponent[T any]() AccessibleComponent[T] {
	return AccessibleComponent[T]{componentType: componentTypeFor[T]()}
}

func FactoryNewCache[T any](cap int) Cache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: cap,
	}
}
