package silo

import (
	"context"
	"sync"
	"testing"

	"github.com/TheBitDrifter/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerSerialRunsEverySystem(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)

	actions := newActionGraph()
	actionID, err := actions.Register("tick")
	require.NoError(t, err)

	systems := newSystemRegistry()
	var ran int
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		name := string(rune('a' + i))
		_, err := systems.Register(name, AccessSignature{}, actionID, nil, func(SystemContext) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, actions.Freeze())
	systems.resolveLocks(sto)

	sched := newScheduler(actions, systems, 1, newMetrics(false))
	report, err := sched.Run(context.Background(), sto)
	require.NoError(t, err)
	assert.Equal(t, 5, report.SystemsRun)
	assert.Equal(t, 5, ran)
}

func TestSchedulerConcurrentRunsEverySystem(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)

	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()

	actions := newActionGraph()
	physicsID, err := actions.Register("physics")
	require.NoError(t, err)

	systems := newSystemRegistry()
	var mu sync.Mutex
	var order []string

	_, err = systems.Register("integrate", AccessSignature{Writes: []Component{posComp}}, physicsID, nil, func(SystemContext) error {
		mu.Lock()
		order = append(order, "integrate")
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	_, err = systems.Register("damp", AccessSignature{Writes: []Component{velComp}}, physicsID, nil, func(SystemContext) error {
		mu.Lock()
		order = append(order, "damp")
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, actions.Freeze())
	systems.resolveLocks(sto)

	sched := newScheduler(actions, systems, 4, newMetrics(false))
	report, err := sched.Run(context.Background(), sto)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SystemsRun)
	assert.Len(t, order, 2)
}

func TestSchedulerConcurrentSerializesWriteConflicts(t *testing.T) {
	schema := table.Factory.NewSchema()
	sto := Factory.NewStorage(schema)
	posComp := FactoryNewComponent[Position]()

	actions := newActionGraph()
	actionID, err := actions.Register("physics")
	require.NoError(t, err)

	systems := newSystemRegistry()
	var active int32
	var mu sync.Mutex
	var sawOverlap bool

	enter := func(SystemContext) error {
		mu.Lock()
		active++
		if active > 1 {
			sawOverlap = true
		}
		mu.Unlock()
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	_, err = systems.Register("writerA", AccessSignature{Writes: []Component{posComp}}, actionID, nil, enter)
	require.NoError(t, err)
	_, err = systems.Register("writerB", AccessSignature{Writes: []Component{posComp}}, actionID, nil, enter)
	require.NoError(t, err)

	require.NoError(t, actions.Freeze())
	systems.resolveLocks(sto)

	sched := newScheduler(actions, systems, 4, newMetrics(false))
	_, err = sched.Run(context.Background(), sto)
	require.NoError(t, err)
	assert.False(t, sawOverlap, "systems writing the same component must not run concurrently")
}
