package silo

import (
	"errors"
	"testing"

	"github.com/TheBitDrifter/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingletonRegistryDeclareIsIdempotent(t *testing.T) {
	r := newSingletonRegistry()
	healthComp := FactoryNewComponent[Health]()

	r.Declare(healthComp)
	r.Declare(healthComp)
	assert.True(t, r.IsSingleton(healthComp))

	ok := r.TryClaim(healthComp, 1)
	assert.True(t, ok)
	// Re-declaring after a claim must not reset the holder back to unclaimed.
	r.Declare(healthComp)
	holder, held := r.Holder(healthComp)
	assert.Equal(t, uint32(1), holder)
	assert.True(t, held)
}

func TestSingletonRegistryTryClaimRejectsSecondHolder(t *testing.T) {
	r := newSingletonRegistry()
	healthComp := FactoryNewComponent[Health]()
	r.Declare(healthComp)

	assert.True(t, r.TryClaim(healthComp, 1))
	assert.False(t, r.TryClaim(healthComp, 2))
	// The same holder reclaiming is fine (idempotent).
	assert.True(t, r.TryClaim(healthComp, 1))
}

func TestSingletonRegistryReleaseFreesHolder(t *testing.T) {
	r := newSingletonRegistry()
	healthComp := FactoryNewComponent[Health]()
	r.Declare(healthComp)
	require.True(t, r.TryClaim(healthComp, 1))

	r.Release(healthComp, 1)
	_, held := r.Holder(healthComp)
	assert.False(t, held)
	assert.True(t, r.TryClaim(healthComp, 2))
}

// TestCreateEntityOperationClaimsSingletonOnFirstCreation exercises spec.md
// §8 scenario 6's happy path: a creation builder that adds a declared
// singleton component succeeds and the registry records its holder.
func TestCreateEntityOperationClaimsSingletonOnFirstCreation(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)
	posComp := FactoryNewComponent[Position]()
	healthComp := FactoryNewComponent[Health]()
	sto.DeclareSingleton(healthComp)

	err := sto.EnqueueCreateEntity(func(en Entity) error {
		return en.AddComponentWithValue(healthComp, Health{Current: 1, Max: 1})
	}, posComp)
	require.NoError(t, err)

	query := Factory.NewQuery()
	cursor := Factory.NewCursor(query.And(healthComp), sto)
	count := 0
	for range cursor.Next() {
		count++
	}
	assert.Equal(t, 1, count)
}

// TestCreateEntityOperationRollsBackOnSingletonViolation exercises spec.md
// §8 scenario 6's rejection path: a second creation builder that would add
// a second holder of a declared singleton component is rejected in full,
// and no components from the failed creation persist.
func TestCreateEntityOperationRollsBackOnSingletonViolation(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)
	posComp := FactoryNewComponent[Position]()
	healthComp := FactoryNewComponent[Health]()
	sto.DeclareSingleton(healthComp)

	buildHealth := func(en Entity) error {
		return en.AddComponentWithValue(healthComp, Health{Current: 1, Max: 1})
	}

	require.NoError(t, sto.EnqueueCreateEntity(buildHealth, posComp))

	err := sto.EnqueueCreateEntity(buildHealth, posComp)
	var violation SingletonViolation
	require.ErrorAs(t, err, &violation)

	query := Factory.NewQuery()
	cursor := Factory.NewCursor(query.And(healthComp), sto)
	count := 0
	for range cursor.Next() {
		count++
	}
	assert.Equal(t, 1, count, "rejected creation must leave exactly the first holder behind")
}

// TestCreateEntityOperationRollsBackOnBuilderError exercises the other half
// of spec.md §4.8 step 3: a builder that fails outright rolls the creation
// back with no components persisting.
func TestCreateEntityOperationRollsBackOnBuilderError(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)
	posComp := FactoryNewComponent[Position]()
	boom := errors.New("boom")

	err := sto.EnqueueCreateEntity(func(en Entity) error {
		return boom
	}, posComp)

	var failed BuilderFailed
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, failed, boom)

	query := Factory.NewQuery()
	cursor := Factory.NewCursor(query.And(posComp), sto)
	count := 0
	for range cursor.Next() {
		count++
	}
	assert.Equal(t, 0, count)
}

// TestRuntimeSingletonLookup exercises Runtime.Singleton, the read side of
// singleton declaration described in SPEC_FULL.md's external interface
// listing for the Type Registry/Singleton module.
func TestRuntimeSingletonLookup(t *testing.T) {
	rt, err := NewRuntime(RuntimeConfig{Workers: 1, MetricsEnabled: false})
	require.NoError(t, err)

	posComp := FactoryNewComponent[Position]()
	healthComp := FactoryNewComponent[Health]()
	rt.DeclareSingleton(healthComp)

	_, ok := rt.Singleton(healthComp)
	assert.False(t, ok, "no entity holds the singleton yet")

	err = rt.Storage().EnqueueCreateEntity(func(en Entity) error {
		return en.AddComponentWithValue(healthComp, Health{Current: 3, Max: 3})
	}, posComp)
	require.NoError(t, err)

	holder, ok := rt.Singleton(healthComp)
	require.True(t, ok)
	got := healthComp.GetFromEntity(holder)
	assert.Equal(t, 3, got.Current)
}
