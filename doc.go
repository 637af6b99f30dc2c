/*
Package silo provides an Entity-Component-System (ECS) runtime for games and simulations.

Silo offers a performant approach to managing game entities through component-based design.
It's built on an archetype-based storage system that keeps entities with the same component types
together for optimal cache utilization, and adds a dependency-aware system scheduler and a
deferred mutation pipeline on top of that storage so systems can run concurrently without
racing on shared component state.

Core Concepts:

  - Entity: A unique identifier that represents a game object, optionally parented to another.
  - Component: A data container that defines entity attributes.
  - Archetype: A collection of entities sharing the same component types.
  - Query: A way to find entities with specific component combinations.
  - Action: A named point in the tick's dependency graph that a System belongs to.
  - System: A unit of per-tick work with a declared component access signature.
  - Runtime: Owns storage, the action graph, the system registry, the scheduler and the
    deferred mutation queue, and drives them one tick at a time.

Basic Usage:

	// Create storage with schema
	schema := table.Factory.NewSchema()
	storage := silo.Factory.NewStorage(schema)

	// Define components
	position := silo.FactoryNewComponent[Position]()
	velocity := silo.FactoryNewComponent[Velocity]()

	// Create entities
	entities, _ := storage.NewEntities(100, position, velocity)

	// Query entities and process them
	query := silo.Factory.NewQuery()
	queryNode := query.And(position, velocity)
	cursor := silo.Factory.NewCursor(queryNode, storage)

	for range cursor.Next() {
		pos := position.GetFromCursor(cursor)
		vel := velocity.GetFromCursor(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
	}

Runtime usage layers a scheduler and action graph on top of the same storage:

	rt, _ := silo.NewRuntime(silo.RuntimeConfig{Workers: 4})
	rt.RegisterAction("physics")
	rt.RegisterSystem("integrate", silo.AccessSignature{Writes: []silo.Component{position}}, "physics", nil, integrateSystem)
	report, _ := rt.Tick(context.Background())
*/
package silo
