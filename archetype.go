package silo

import "github.com/TheBitDrifter/table"

// archetypeID is the dense, process-local index of an archetype within a Storage.
// Ids are assigned from 1 in creation order; 0 is never assigned, and no
// empty (component-less) archetype is reserved.
type archetypeID uint32

// ArchetypeImpl is the concrete Archetype: a sorted component-type set backed
// by a single table.Table whose rows are the entities carrying that exact set.
type ArchetypeImpl struct {
	id    archetypeID
	table table.Table
}

// newArchetype builds the table backing a new archetype and assigns it id.
func newArchetype(schema table.Schema, entryIndex table.EntryIndex, id archetypeID, components ...Component) (ArchetypeImpl, error) {
	elementTypes := make([]table.ElementType, len(components))
	for i, comp := range components {
		elementTypes[i] = comp
	}
	tbl, err := table.NewTableBuilder().
		WithSchema(schema).
		WithEntryIndex(entryIndex).
		WithElementTypes(elementTypes...).
		WithEvents(Config.tableEvents).
		Build()
	if err != nil {
		return ArchetypeImpl{}, err
	}
	return ArchetypeImpl{
		table: tbl,
		id:    id,
	}, nil
}

// ID returns the archetype's dense index.
func (a ArchetypeImpl) ID() uint32 {
	return uint32(a.id)
}

// Table returns the columnar storage backing this archetype.
func (a ArchetypeImpl) Table() table.Table {
	return a.table
}

// Archetype is the equivalence class of entities sharing an exact component-type set.
type Archetype interface {
	ID() uint32
	Table() table.Table
}
