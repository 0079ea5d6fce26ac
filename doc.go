/*
Package depot is an archetype-based Entity-Component-System storage engine.

Entities with exactly the same set of components share an archetype, whose columns keep the
component values of all its entities contiguous. Adding or removing a component moves the
entity's row to another archetype; the graph of these transitions is cached per archetype.

Core Concepts:

  - Entity: A generation-versioned id. Freed ids are recycled with a new generation.
  - Component: Any Go type whose handle was created through FactoryNewComponent.
  - Bundle: A component value, or a struct embedding Bundle whose fields are components.
  - Archetype: The storage of every entity sharing one component set.
  - Query: A way to find entities with specific component combinations.
  - Reflection: ReflectComponent and ReflectResource reach components whose type is only
    known at runtime, through a TypeRegistry.

Basic Usage:

	// Create a store with schema
	schema := table.Factory.NewSchema()
	store := depot.Factory.NewStore(schema)

	// Define components
	position := depot.FactoryNewComponent[Position]()
	velocity := depot.FactoryNewComponent[Velocity]()

	// Spawn entities
	type Body struct {
		depot.Bundle
		Pos Position
		Vel Velocity
	}
	entities, _ := depot.SpawnAll(store, []Body{{Vel: Velocity{X: 1}}, {Vel: Velocity{Y: 1}}})

	// Query entities and process them
	query := depot.Factory.NewQuery()
	queryNode := query.And(position, velocity)
	cursor := depot.Factory.NewCursor(queryNode, store)

	for cursor.Next() {
		pos := position.GetFromCursor(cursor)
		vel := velocity.GetFromCursor(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
	}

Structural changes are rejected while a store is locked, which cursors and ParEach do for the
duration of their iteration. The Enqueue methods defer such changes until the store unlocks.
*/
package depot
