package silo

import (
	"testing"

	"github.com/TheBitDrifter/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilterEvaluatesArchetypeMembership(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)

	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	posVelArche, err := sto.NewOrExistingArchetype(posComp, velComp)
	require.NoError(t, err)
	posOnlyArche, err := sto.NewOrExistingArchetype(posComp)
	require.NoError(t, err)

	filter, err := CompileFilter("Position and Velocity", map[string]Component{
		"Position": posComp,
		"Velocity": velComp,
	})
	require.NoError(t, err)

	assert.True(t, filter.Evaluate(posVelArche, sto))
	assert.False(t, filter.Evaluate(posOnlyArche, sto))
}

func TestCompileFilterSupportsNegationAndOr(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)

	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()
	healthComp := FactoryNewComponent[Health]()

	named := map[string]Component{
		"Position": posComp,
		"Velocity": velComp,
		"Health":   healthComp,
	}

	moving, err := sto.NewOrExistingArchetype(posComp, velComp)
	require.NoError(t, err)
	dead, err := sto.NewOrExistingArchetype(posComp, healthComp)
	require.NoError(t, err)

	filter, err := CompileFilter("Position and (Velocity or Health) and not Health", named)
	require.NoError(t, err)

	assert.True(t, filter.Evaluate(moving, sto))
	assert.False(t, filter.Evaluate(dead, sto))
}

func TestCompileFilterRejectsInvalidExpression(t *testing.T) {
	posComp := FactoryNewComponent[Position]()
	_, err := CompileFilter("Position and (", map[string]Component{"Position": posComp})
	require.Error(t, err)
	var cfgErr ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCompileFilterStringReturnsSource(t *testing.T) {
	posComp := FactoryNewComponent[Position]()
	filter, err := CompileFilter("Position", map[string]Component{"Position": posComp})
	require.NoError(t, err)
	assert.Equal(t, "Position", filter.String())
}

func TestNamedComponentsFromSignatureCoversReadsAndWrites(t *testing.T) {
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	named := namedComponentsFromSignature(AccessSignature{
		Reads:  []Component{velComp},
		Writes: []Component{posComp},
	})

	assert.Equal(t, posComp, named["Position"])
	assert.Equal(t, velComp, named["Velocity"])
}
