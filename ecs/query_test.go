package ecs_test

import (
	"testing"

	"github.com/forgelabs/ecsrt/ecs"
	"github.com/stretchr/testify/assert"
)

type posVelFetch struct {
	Pos ecs.Mut[Position]
	Vel ecs.Ref[Velocity]
}

func TestQueryIterMatchesOnlyArchetypesWithAllFetchFields(t *testing.T) {
	world := newTestWorld()
	world.Spawn(Position{X: 1, Y: 1}, Velocity{X: 1, Y: 0})
	world.Spawn(Position{X: 2, Y: 2}) // no Velocity, should not match

	q := ecs.NewQueryState[posVelFetch, struct{}](world)
	q.UpdateArchetypes()

	assert.Equal(t, 1, q.Count())
	for _, row := range q.Iter() {
		assert.Equal(t, 1.0, row.Pos.Get().X)
	}
}

func TestQueryMutFetchWritesThroughToStorage(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Position{X: 0, Y: 0}, Velocity{X: 3, Y: 4})

	q := ecs.NewQueryState[posVelFetch, struct{}](world)
	q.UpdateArchetypes()
	for _, row := range q.Iter() {
		row.Pos.Get().X += row.Vel.Get().X
		row.Pos.Get().Y += row.Vel.Get().Y
	}

	p, ok := ecs.Get[Position](world, e)
	assert.True(t, ok)
	assert.Equal(t, 3.0, p.X)
	assert.Equal(t, 4.0, p.Y)
}

type withoutHealthFilter struct {
	_ ecs.Without[Health]
}

func TestQueryWithoutFilterExcludesMatchingArchetypes(t *testing.T) {
	world := newTestWorld()
	world.Spawn(Position{X: 1}, Health{Current: 10, Max: 10})
	world.Spawn(Position{X: 2})

	type fetch struct {
		Pos ecs.Ref[Position]
	}
	q := ecs.NewQueryState[fetch, withoutHealthFilter](world)
	q.UpdateArchetypes()

	assert.Equal(t, 1, q.Count())
}

type changedHealthFilter struct {
	_ ecs.Changed[Health]
}

func TestQueryChangedFilterOnlyMatchesRowsTouchedSinceLastRun(t *testing.T) {
	world := newTestWorld()
	e := world.Spawn(Health{Current: 10, Max: 10})

	type fetch struct {
		HP ecs.Ref[Health]
	}
	q := ecs.NewQueryState[fetch, changedHealthFilter](world)
	q.UpdateArchetypes()
	q.SetLastRunTick(world.CurrentTick())

	countRows := func() int {
		n := 0
		for range q.Iter() {
			n++
		}
		return n
	}

	// No mutation since SetLastRunTick: nothing should match yet.
	assert.Equal(t, 0, countRows())

	world.AdvanceTick()
	_, _ = ecs.GetMut[Health](world, e)

	assert.Equal(t, 1, countRows())
}

func TestQueryOptionalFetchFieldIsNilWhenComponentAbsent(t *testing.T) {
	world := newTestWorld()
	world.Spawn(Position{X: 5, Y: 5})

	type fetch struct {
		Pos    ecs.Ref[Position]
		Health ecs.Ref[Health] `ecs:"optional"`
	}
	q := ecs.NewQueryState[fetch, struct{}](world)
	q.UpdateArchetypes()

	assert.Equal(t, 1, q.Count())
	for _, row := range q.Iter() {
		assert.Nil(t, row.Health.Get())
	}
}
