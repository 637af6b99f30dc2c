package silo

import (
	"testing"

	"github.com/TheBitDrifter/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDestroyEntitiesCascadesToDescendants exercises the forest/cascade
// invariant (spec.md §3, §8): destroying a parent through the synchronous,
// outside-a-System Storage.DestroyEntities surface transitively destroys
// every descendant too, and only those.
func TestDestroyEntitiesCascadesToDescendants(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)
	posComp := FactoryNewComponent[Position]()

	entities, err := sto.NewEntities(4, posComp)
	require.NoError(t, err)
	parent, child, grandchild := entities[0], entities[1], entities[2]

	require.NoError(t, child.SetParent(parent, nil))
	require.NoError(t, grandchild.SetParent(child, nil))
	assert.Len(t, parent.Descendants(), 2, "parent should see both child and grandchild before destruction")

	require.NoError(t, sto.DestroyEntities(parent))

	query := Factory.NewQuery()
	cursor := Factory.NewCursor(query.And(posComp), sto)
	count := 0
	for range cursor.Next() {
		count++
	}
	assert.Equal(t, 1, count, "only the unrelated entity should survive the cascade")
}

// TestDestroyEntitiesCascadeDedupesExplicitDescendant covers a child passed
// both explicitly and reached again through its parent's descendant
// closure: DestroyEntities must not hand the underlying table a duplicate
// id for the same row.
func TestDestroyEntitiesCascadeDedupesExplicitDescendant(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)
	posComp := FactoryNewComponent[Position]()

	entities, err := sto.NewEntities(2, posComp)
	require.NoError(t, err)
	parent, child := entities[0], entities[1]
	require.NoError(t, child.SetParent(parent, nil))

	require.NoError(t, sto.DestroyEntities(parent, child))

	query := Factory.NewQuery()
	cursor := Factory.NewCursor(query.And(posComp), sto)
	count := 0
	for range cursor.Next() {
		count++
	}
	assert.Equal(t, 0, count)
}

// TestDeferredDestroyCascadesToDescendants exercises the same invariant
// through the deferred mutation queue's DestroyEntityOperation, confirming
// it shares DestroyEntities' cascade rather than duplicating it.
func TestDeferredDestroyCascadesToDescendants(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)
	posComp := FactoryNewComponent[Position]()

	entities, err := sto.NewEntities(2, posComp)
	require.NoError(t, err)
	parent, child := entities[0], entities[1]
	require.NoError(t, child.SetParent(parent, nil))

	sto.AddLock(1)
	require.NoError(t, sto.EnqueueDestroyEntities(parent))
	sto.RemoveLock(1)

	query := Factory.NewQuery()
	cursor := Factory.NewCursor(query.And(posComp), sto)
	count := 0
	for range cursor.Next() {
		count++
	}
	assert.Equal(t, 0, count, "the deferred cascade must destroy the child along with its parent")
}
