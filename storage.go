package silo

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
)

// Ensure storage implements Storage interface
var _ Storage = &storage{}

var (
	globalEntryIndex = table.Factory.NewEntryIndex()
	globalEntities   = make([]entity, 0)
)

// Storage defines the interface for entity storage and manipulation
type Storage interface {
	Entity(id int) (Entity, error)
	NewEntities(int, ...Component) ([]Entity, error)
	NewOrExistingArchetype(components ...Component) (Archetype, error)
	EnqueueNewEntities(int, ...Component) error
	DestroyEntities(...Entity) error
	EnqueueDestroyEntities(...Entity) error
	RowIndexFor(Component) uint32
	Locked() bool
	AddLock(bit uint32)
	RemoveLock(bit uint32)
	AcquireLock() uint32
	ReleaseLock(bit uint32)
	Register(...Component)
	tableFor(...Component) (table.Table, error)

	TransferEntities(target Storage, entities ...Entity) error
	Enqueue(EntityOperation)
	EnqueueCreateEntity(builder func(Entity) error, components ...Component) error
	Archetypes() []ArchetypeImpl

	DeclareSingleton(Component)
	IsSingleton(Component) bool
	ClaimSingleton(Component, uint32) bool
	ReleaseSingleton(Component, uint32)
	SingletonHolder(Component) (uint32, bool)
}

// storage implements the Storage interface
type storage struct {
	locks          mask.Mask256
	lockCounter    uint32
	schema         table.Schema
	archetypes     *archetypes
	operationQueue EntityOperationsQueue
	singletons     *singletonRegistry
}

// archetypes manages archetype collections and identification
type archetypes struct {
	nextID           archetypeID
	asSlice          []ArchetypeImpl
	idsGroupedByMask map[mask.Mask]archetypeID
}

// newStorage creates a new Storage implementation with the given schema
func newStorage(schema table.Schema) Storage {
	archetypes := &archetypes{
		nextID:           1,
		idsGroupedByMask: make(map[mask.Mask]archetypeID),
	}
	storage := &storage{
		archetypes:     archetypes,
		schema:         schema,
		operationQueue: &entityOperationsQueue{},
		singletons:     newSingletonRegistry(),
	}
	return storage
}

// DeclareSingleton marks c as a singleton component: a creation that would
// leave a second live entity holding it is rolled back whole, its id
// returned to the free list.
func (sto *storage) DeclareSingleton(c Component) {
	sto.singletons.Declare(c)
}

// IsSingleton reports whether c was declared singleton.
func (sto *storage) IsSingleton(c Component) bool {
	return sto.singletons.IsSingleton(c)
}

// ClaimSingleton attempts to record entityID as the holder of singleton
// component c, returning false if another live entity already holds it.
func (sto *storage) ClaimSingleton(c Component, entityID uint32) bool {
	return sto.singletons.TryClaim(c, entityID)
}

// ReleaseSingleton clears entityID as the holder of c, if it currently is.
func (sto *storage) ReleaseSingleton(c Component, entityID uint32) {
	sto.singletons.Release(c, entityID)
}

// SingletonHolder returns the entity id currently holding singleton
// component c, if any.
func (sto *storage) SingletonHolder(c Component) (uint32, bool) {
	return sto.singletons.Holder(c)
}

// Entity retrieves an entity by ID
func (sto *storage) Entity(id int) (Entity, error) {
	return &globalEntities[id-1], nil
}

// NewOrExistingArchetype gets an existing archetype matching the component signature or creates a new one
func (sto *storage) NewOrExistingArchetype(components ...Component) (Archetype, error) {
	var entityMask mask.Mask
	for _, component := range components {
		sto.schema.Register(component)
		bit := sto.schema.RowIndexFor(component)
		entityMask.Mark(bit)
	}
	id, archetypeFound := sto.archetypes.idsGroupedByMask[entityMask]
	if archetypeFound {
		return sto.archetypes.asSlice[id-1], nil
	}

	created, err := newArchetype(sto.schema, globalEntryIndex, sto.archetypes.nextID, components...)
	if err != nil {
		return nil, err
	}
	sto.archetypes.asSlice = append(sto.archetypes.asSlice, created)
	sto.archetypes.idsGroupedByMask[entityMask] = created.id
	sto.archetypes.nextID++
	return created, nil
}

// NewEntities creates n new entities with the specified components
func (sto *storage) NewEntities(n int, components ...Component) ([]Entity, error) {
	if sto.Locked() {
		return nil, errors.New("storage is locked")
	}
	var entityMask mask.Mask
	for _, component := range components {
		sto.schema.Register(component)
		bit := sto.schema.RowIndexFor(component)
		entityMask.Mark(bit)
	}
	var entityArchetype Archetype
	id, archetypeFound := sto.archetypes.idsGroupedByMask[entityMask]
	if archetypeFound {
		entityArchetype = sto.archetypes.asSlice[id-1]
	} else {
		created, err := sto.NewOrExistingArchetype(components...)
		entityArchetype = created
		if err != nil {
			return nil, err
		}
	}
	entries, err := entityArchetype.Table().NewEntries(n)
	if err != nil {
		return nil, err
	}
	currentLen := len(globalEntities)
	neededCap := currentLen + n
	if cap(globalEntities) < neededCap {
		newCap := max(neededCap, 2*cap(globalEntities))
		newEntities := make([]entity, currentLen, newCap)
		copy(newEntities, globalEntities)
		globalEntities = newEntities
	}
	globalEntities = globalEntities[:neededCap]

	entities := make([]Entity, n)
	for i, entry := range entries {
		en := &entity{
			Entry:      entry,
			sto:        sto,
			id:         entry.ID(),
			components: components,
		}
		entities[i] = en
		globalEntities[currentLen+i] = *en
	}

	return entities, nil
}

// RowIndexFor returns the bit index for a component in the schema
func (sto *storage) RowIndexFor(c Component) uint32 {
	return sto.schema.RowIndexFor(c)
}

// Locked checks if the storage is currently locked
func (sto *storage) Locked() bool {
	return !sto.locks.IsEmpty()
}

func (sto *storage) AddLock(bit uint32) {
	sto.locks.Mark(bit)
}

// AcquireLock mints a fresh lock bit (distinct from concurrently-held locks,
// modulo the mask's 256-bit capacity) and marks it in one step. Used by
// callers, such as Cursor, that don't have a natural bit of their own to
// reuse across AddLock/RemoveLock calls.
func (sto *storage) AcquireLock() uint32 {
	bit := atomic.AddUint32(&sto.lockCounter, 1) % 256
	sto.AddLock(bit)
	return bit
}

// ReleaseLock is RemoveLock for bits minted by AcquireLock.
func (sto *storage) ReleaseLock(bit uint32) {
	sto.RemoveLock(bit)
}

// RemoveLock releases a specific bit lock and processes queued operations if fully unlocked
func (sto *storage) RemoveLock(bit uint32) {
	sto.locks.Unmark(bit)

	// Only process operations if no locks remain
	if sto.locks.IsEmpty() {
		err := sto.operationQueue.ProcessAll(sto)
		if err != nil {
			// Handle the error appropriately for your application
			panic(fmt.Errorf("error processing queued operations: %w", err))
		}
	}
}

// EnqueueNewEntities either creates entities immediately or queues creation if storage is locked
func (s *storage) EnqueueNewEntities(count int, components ...Component) error {
	if !s.Locked() {
		_, err := s.NewEntities(count, components...)
		if err != nil {
			return fmt.Errorf("failed to create entities directly: %w", err)
		}
		return nil
	}
	s.operationQueue.Enqueue(
		NewEntityOperation{
			count:      count,
			components: components,
		},
	)
	return nil
}

// DestroyEntities removes entities from storage along with the transitive
// closure of each one's children, so a caller that deletes a parent outside
// a System still observes the forest/cascade invariant that the deferred
// mutation queue's DestroyEntityOperation enforces. Each entity passed in,
// or reached as a descendant of one, is deduplicated and destroyed exactly
// once; any singleton component it held is released.
func (s *storage) DestroyEntities(entities ...Entity) error {
	if s.Locked() {
		return errors.New("storage is locked")
	}
	full := expandWithDescendants(entities)

	tableGroups := make(map[table.Table][]int)
	for _, entity := range full {
		tableGroups[entity.Table()] = append(tableGroups[entity.Table()], int(entity.ID()))
	}
	for tbl, ids := range tableGroups {
		_, err := tbl.DeleteEntries(ids...)
		if err != nil {
			return fmt.Errorf("failed to delete entries: %w", err)
		}
	}
	for _, en := range full {
		for _, c := range en.Components() {
			if s.singletons.IsSingleton(c) {
				s.singletons.Release(c, uint32(en.ID()))
			}
		}
		index := en.ID() - 1
		if int(index) < len(globalEntities) {
			globalEntities[index] = entity{}
		}
	}
	return nil
}

// expandWithDescendants returns entities plus every transitive child of
// each, deduplicated by id so an entity reached twice (once explicitly,
// once as another entity's descendant) is only destroyed once.
func expandWithDescendants(entities []Entity) []Entity {
	seen := make(map[table.EntryID]bool, len(entities))
	out := make([]Entity, 0, len(entities))
	for _, en := range entities {
		if en == nil {
			continue
		}
		group := append(en.Descendants(), en)
		for _, d := range group {
			if d == nil || seen[d.ID()] {
				continue
			}
			seen[d.ID()] = true
			out = append(out, d)
		}
	}
	return out
}

// EnqueueDestroyEntities either destroys entities immediately or queues destruction if storage is locked
func (s *storage) EnqueueDestroyEntities(entities ...Entity) error {
	if !s.Locked() {
		return s.DestroyEntities(entities...)
	}
	for _, en := range entities {
		s.operationQueue.Enqueue(
			DestroyEntityOperation{
				entity:   en,
				recycled: en.Recycled(),
			})
	}
	return nil
}

// EnqueueCreateEntity either runs the creation builder immediately, or
// queues it for the deferred mutation queue's flush phase if storage is
// locked. The builder receives the freshly-allocated entity and may add
// components to it; a builder error or a singleton claim it would violate
// rolls the whole creation back (the entity is destroyed and its id
// returned to the free list).
func (s *storage) EnqueueCreateEntity(builder func(Entity) error, components ...Component) error {
	op := CreateEntityOperation{components: components, builder: builder}
	if !s.Locked() {
		return op.Apply(s)
	}
	s.operationQueue.Enqueue(op)
	return nil
}

// TransferEntities moves entities from this storage to the target storage
func (s *storage) TransferEntities(target Storage, entities ...Entity) error {
	if s.Locked() {
		return errors.New("storage is locked")
	}
	for _, en := range entities {
		comps := en.Components()
		target.Register(comps...)
		targetTbl, err := target.tableFor(comps...)
		if err != nil {
			return err
		}

		err = en.Table().TransferEntries(targetTbl, en.Index())
		if err != nil {
			return err
		}
		en.SetStorage(target)
	}
	return nil
}

// Register adds components to the storage schema
func (s *storage) Register(comps ...Component) {
	ets := make([]table.ElementType, len(comps))
	for i, c := range comps {
		ets[i] = c
	}
	s.schema.Register(ets...)
}

// Enqueue adds an operation to the queue
func (s *storage) Enqueue(op EntityOperation) {
	s.operationQueue.Enqueue(op)
}

// Archetypes returns all archetypes in this storage
func (s *storage) Archetypes() []ArchetypeImpl {
	return s.archetypes.asSlice
}

// tableFor gets or creates a table for the given component set
func (s *storage) tableFor(comps ...Component) (table.Table, error) {
	archeMask := mask.Mask{}
	for _, c := range comps {
		bit := s.RowIndexFor(c)
		archeMask.Mark(bit)
	}

	id, ok := s.archetypes.idsGroupedByMask[archeMask]
	if !ok {
		created, err := newArchetype(s.schema, globalEntryIndex, s.archetypes.nextID, comps...)
		if err != nil {
			return nil, err
		}
		s.archetypes.asSlice = append(s.archetypes.asSlice, created)
		s.archetypes.idsGroupedByMask[archeMask] = created.id
		s.archetypes.nextID++
		id = created.id
	}
	arche := s.archetypes.asSlice[id-1]
	return arche.table, nil
}
