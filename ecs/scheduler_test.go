package ecs_test

import (
	"sync"
	"testing"

	"github.com/forgelabs/ecsrt/ecs"
	"github.com/stretchr/testify/assert"
)

func TestScheduleRunsSystemsSequentiallyWhenWorkerCountIsZero(t *testing.T) {
	world := newTestWorld(ecs.WithWorkerCount(0))

	var order []string
	var mu sync.Mutex
	record := func(name string) func(*ecs.SystemContext) {
		return func(*ecs.SystemContext) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	b := ecs.NewScheduleBuilder()
	b.AddSystem(ecs.NewSystem("a").Run(record("a")))
	b.AddSystem(ecs.NewSystem("b").Run(record("b")))
	b.AddSystem(ecs.NewSystem("c").Run(record("c")))
	schedule := b.Build()

	schedule.Run(world, 0.016)

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestScheduleResourceWriteAfterWriteIsSerialized(t *testing.T) {
	world := newTestWorld(ecs.WithWorkerCount(4))
	ecs.InsertResource(world.Resources, 0, world.CurrentTick())

	var observed []int
	var mu sync.Mutex

	b := ecs.NewScheduleBuilder()
	for i := 1; i <= 5; i++ {
		n := i
		sys := ecs.WithResourceWrite[int](ecs.NewSystem("writer"), world).
			Run(func(ctx *ecs.SystemContext) {
				v, _ := ecs.GetResource[int](ctx.World.Resources)
				*v = n
				mu.Lock()
				observed = append(observed, *v)
				mu.Unlock()
			})
		b.AddSystem(sys)
	}
	schedule := b.Build()
	schedule.Run(world, 0.016)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, observed)
}

type moveFetch struct {
	Pos ecs.Mut[Position]
	Vel ecs.Ref[Velocity]
}

type healthFetch struct {
	HP ecs.Mut[Health]
}

func TestScheduleDisjointArchetypeSystemsRunWithoutConflict(t *testing.T) {
	world := newTestWorld(ecs.WithWorkerCount(4))
	mover := world.Spawn(Position{X: 0, Y: 0}, Velocity{X: 1, Y: 1})
	healer := world.Spawn(Health{Current: 10, Max: 10})

	var movementQ *ecs.QueryState[moveFetch, struct{}]
	var healthQ *ecs.QueryState[healthFetch, struct{}]

	b := ecs.NewScheduleBuilder()
	b.AddSystem(ecs.WithQuery(ecs.NewSystem("movement"), world, &movementQ).
		Run(func(ctx *ecs.SystemContext) {
			for _, row := range movementQ.Iter() {
				row.Pos.Get().X += row.Vel.Get().X
			}
		}))
	b.AddSystem(ecs.WithQuery(ecs.NewSystem("regen"), world, &healthQ).
		Run(func(ctx *ecs.SystemContext) {
			for _, row := range healthQ.Iter() {
				row.HP.Get().Current++
			}
		}))
	schedule := b.Build()

	schedule.Run(world, 0.016)
	schedule.Run(world, 0.016)

	pos, _ := ecs.Get[Position](world, mover)
	assert.Equal(t, 2.0, pos.X)
	hp, _ := ecs.Get[Health](world, healer)
	assert.Equal(t, int32(12), hp.Current)
	assert.Equal(t, 2, schedule.SystemCount())
}

func TestScheduleCommandBufferFlushesInDeclaredOrderNotCompletionOrder(t *testing.T) {
	world := newTestWorld(ecs.WithWorkerCount(4))

	var applyOrder []string
	var mu sync.Mutex
	record := func(name string) func(*ecs.World) {
		return func(*ecs.World) {
			mu.Lock()
			applyOrder = append(applyOrder, name)
			mu.Unlock()
		}
	}

	b := ecs.NewScheduleBuilder()
	// "slow" has no declared access in common with "fast", so they may run
	// concurrently and "fast" may finish first; its buffer must still flush
	// second, since it was declared second.
	b.AddSystem(ecs.NewSystem("slow").Run(func(ctx *ecs.SystemContext) {
		ctx.Commands.Defer(record("slow"))
	}))
	b.AddSystem(ecs.NewSystem("fast").Run(func(ctx *ecs.SystemContext) {
		ctx.Commands.Defer(record("fast"))
	}))
	schedule := b.Build()
	schedule.Run(world, 0.016)

	assert.Equal(t, []string{"slow", "fast"}, applyOrder)
}

func TestRunIfSkipsBodyAndTickBumpWhenConditionIsFalse(t *testing.T) {
	world := newTestWorld()
	gate := false

	var runs int
	lastSeen := ecs.Tick(99)
	b := ecs.NewScheduleBuilder()
	b.AddSystem(ecs.NewSystem("gated").
		RunIf(func(*ecs.World) bool { return gate }).
		Run(func(ctx *ecs.SystemContext) {
			runs++
			lastSeen = ctx.LastRunTick
		}))
	schedule := b.Build()

	schedule.Run(world, 0.016)
	assert.Equal(t, 0, runs)

	gate = true
	schedule.Run(world, 0.016)
	assert.Equal(t, 1, runs)
	// The skipped first run did not record a last-run tick.
	assert.Equal(t, ecs.Tick(0), lastSeen)
}

func TestScheduleFlushStartsANewStage(t *testing.T) {
	b := ecs.NewScheduleBuilder()
	b.AddSystem(ecs.NewSystem("stage1-a").Run(func(*ecs.SystemContext) {}))
	b.Flush()
	b.AddSystem(ecs.NewSystem("stage2-a").Run(func(*ecs.SystemContext) {}))
	schedule := b.Build()

	assert.Equal(t, 2, schedule.StageCount())
	assert.Equal(t, 2, schedule.SystemCount())
}

func TestStageWithZeroSystemsIsNoOpAndDoesNotAdvanceTick(t *testing.T) {
	world := newTestWorld()
	b := ecs.NewScheduleBuilder()
	schedule := b.Build()

	before := world.CurrentTick()
	schedule.Run(world, 0.016)
	assert.Equal(t, before, world.CurrentTick())
}
