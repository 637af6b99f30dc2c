package silo

import "sync"

// EntityOperation represents an operation that can be applied to a storage
type EntityOperation interface {
	Apply(Storage) error
}

// entityOperationsQueue holds a list of operations to be processed. Enqueue
// is called from System goroutines during a tick, so appends are guarded
// by a mutex; ProcessAll runs single-threaded during the flush phase once
// every System has finished, after the last lock on storage is released.
type entityOperationsQueue struct {
	mu         sync.Mutex
	operations []EntityOperation
}

// EntityOperationsQueue provides an interface for queuing and processing operations
type EntityOperationsQueue interface {
	Enqueue(EntityOperation)
	ProcessAll(Storage) error
}

// ProcessAll applies all queued operations to the provided storage
// and clears the queue afterward
func (queue *entityOperationsQueue) ProcessAll(sto Storage) error {
	// If storage is locked, keep operations in queue for later processing
	if sto.Locked() {
		return nil // Return without error, but don't clear queue
	}
	queue.mu.Lock()
	ops := queue.operations
	queue.operations = nil
	queue.mu.Unlock()

	for _, op := range ops {
		err := op.Apply(sto)
		if err != nil {
			return err
		}
	}
	return nil
}

// Enqueue adds an operation to the queue
func (queue *entityOperationsQueue) Enqueue(op EntityOperation) {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	queue.operations = append(queue.operations, op)
}

// NewEntityOperation creates multiple entities with the same components
type NewEntityOperation struct {
	count      int
	components []Component
}

// Apply creates entities with the specified components
func (op NewEntityOperation) Apply(sto Storage) error {
	_, err := sto.NewEntities(op.count, op.components...)
	return err
}

// CreateEntityOperation creates a single entity and runs a creation builder
// against it before the creation is considered final. The builder typically
// issues AddComponent calls; if it returns an error, or if the entity ends
// up holding a component declared singleton that's already held by another
// live entity, the whole creation is rolled back: the entity is destroyed
// and its id returned to the free list, and no components persist.
type CreateEntityOperation struct {
	components []Component
	builder    func(Entity) error
}

// Apply allocates the entity, runs the builder, checks every component the
// entity ends up carrying against the singleton registry, and rolls back on
// the first violation or builder error.
func (op CreateEntityOperation) Apply(sto Storage) error {
	entities, err := sto.NewEntities(1, op.components...)
	if err != nil {
		return err
	}
	en := entities[0]

	var claimed []Component
	rollback := func() {
		for _, c := range claimed {
			sto.ReleaseSingleton(c, uint32(en.ID()))
		}
		_ = sto.DestroyEntities(en)
	}

	if op.builder != nil {
		if err := op.builder(en); err != nil {
			rollback()
			return BuilderFailed{Err: err}
		}
	}

	for _, c := range en.Components() {
		if !sto.IsSingleton(c) {
			continue
		}
		if !sto.ClaimSingleton(c, uint32(en.ID())) {
			rollback()
			return SingletonViolation{Component: c}
		}
		claimed = append(claimed, c)
	}

	return nil
}

// DestroyEntityOperation removes an entity from storage
type DestroyEntityOperation struct {
	entity   Entity
	recycled int
}

// Apply destroys the entity if it's still valid and has the expected
// recycled value. storage.DestroyEntities expands this to the transitive
// closure of the entity's children at flush time, not at enqueue time, so a
// child attached after the delete was queued is still caught by the
// cascade, and releases any singleton component the destroyed entities held.
func (op DestroyEntityOperation) Apply(sto Storage) error {
	if !op.entity.Valid() {
		return nil
	}
	if op.entity.Recycled() != op.recycled {
		return nil
	}
	return sto.DestroyEntities(op.entity)
}

// TransferEntityOperation moves an entity from one storage to another
type TransferEntityOperation struct {
	target   Storage
	entity   Entity
	recycled int
}

// Apply transfers the entity if it's valid and has the expected recycled value
func (op TransferEntityOperation) Apply(sto Storage) error {
	if !op.entity.Valid() {
		return nil
	}
	if op.entity.Recycled() != op.recycled {
		return nil
	}
	err := sto.TransferEntities(op.target, op.entity)
	if err != nil {
		return err
	}
	return nil
}

// AddComponentOperation adds a component to an entity
type AddComponentOperation struct {
	entity    Entity
	recycled  int
	component Component
	value     any
	storage   Storage
}

// Apply adds the component to the entity if conditions are met
func (op AddComponentOperation) Apply(sto Storage) error {
	if !op.entity.Valid() {
		return nil
	}
	if op.entity.Recycled() != op.recycled {
		return nil
	}
	if op.storage != op.entity.Storage() {
		return nil
	}
	if op.value != nil {
		err := op.entity.AddComponentWithValue(op.component, op.value)
		if err != nil {
			return err
		}
		return nil
	}
	err := op.entity.AddComponent(op.component)
	if err != nil {
		return err
	}
	return nil
}

// RemoveComponentOperation removes a component from an entity
type RemoveComponentOperation struct {
	entity    Entity
	recycled  int
	component Component
	storage   Storage
}

// Apply removes the component from the entity if conditions are met
func (op RemoveComponentOperation) Apply(sto Storage) error {
	if !op.entity.Valid() {
		return nil
	}
	if op.entity.Recycled() != op.recycled {
		return nil
	}
	if op.storage != sto {
		return nil
	}
	err := op.entity.RemoveComponent(op.component)
	if err != nil {
		return err
	}
	return nil
}
