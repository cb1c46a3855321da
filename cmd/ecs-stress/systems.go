package main

import (
	"math/rand"

	"github.com/forgelabs/ecsrt/ecs"
)

// FrameCounter is a resource a handful of systems contend on, to exercise the
// scheduler's resource-level static dependency edges (spec.md §4.8 step 2)
// under load, not just its component-level dynamic ones.
type FrameCounter struct {
	Frames int64
}

// RegisterAllComponents registers every stress component kind up front, with
// Stunned/Burning as SparseSet storage (SPEC_FULL.md §4.10: sparse when
// expected occupancy is low, which is exactly the case for status effects).
func RegisterAllComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Mana](registry)
	ecs.RegisterComponent[Faction](registry)
	ecs.RegisterComponent[Name](registry)
	ecs.RegisterComponent[Stunned](registry, ecs.SparseSet)
	ecs.RegisterComponent[Burning](registry, ecs.SparseSet)
	ecs.RegisterComponent[AIState](registry)
	ecs.RegisterComponent[Inventory](registry)
}

// SpawnRandomEntity creates one entity with a random subset of the component
// pool (always including Position, so the movement systems have something to
// chew on).
func SpawnRandomEntity(world *ecs.World, rng *rand.Rand) ecs.Entity {
	components := []any{Position{X: rng.Float64() * 100, Y: rng.Float64() * 100}}

	pool := []any{
		Velocity{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1},
		Health{Current: 100, Max: 100},
		Mana{Current: 50, Max: 50},
		Faction{ID: int32(rng.Intn(4))},
		Name{Value: "entity"},
		AIState{State: int32(rng.Intn(3))},
		Inventory{},
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	n := rng.Intn(len(pool) + 1)
	components = append(components, pool[:n]...)

	if rng.Float64() < 0.05 {
		components = append(components, Stunned{Ticks: int32(rng.Intn(5) + 1)})
	}
	if rng.Float64() < 0.03 {
		components = append(components, Burning{DamagePerTick: int32(rng.Intn(3) + 1)})
	}

	return world.Spawn(components...)
}

type posVelFetch struct {
	Pos ecs.Mut[Position]
	Vel ecs.Ref[Velocity]
}

type burnFetch struct {
	HP   ecs.Mut[Health]
	Burn ecs.Ref[Burning]
}

type stunFetch struct {
	AI   ecs.Mut[AIState]
	Stun ecs.Ref[Stunned]
}

// BuildSchedule wires a representative mix of systems: a movement system
// (write Position, read Velocity) that most entities match, a couple of
// narrower status-effect systems over the sparse components (they share no
// component with the movement system or with each other, so the stage builds
// no dynamic edge between any of them), and a handful of
// resource-counter systems sequenced purely by their FrameCounter access
// (spec.md §8 scenario 1).
func BuildSchedule(world *ecs.World) *ecs.Schedule {
	ecs.InsertResource(world.Resources, FrameCounter{}, world.CurrentTick())

	b := ecs.NewScheduleBuilder()

	var posVel *ecs.QueryState[posVelFetch, struct{}]
	movement := ecs.WithQuery(ecs.NewSystem("movement"), world, &posVel).
		Run(func(ctx *ecs.SystemContext) {
			for _, row := range posVel.Iter() {
				p := row.Pos.Get()
				v := row.Vel.Get()
				p.X += v.X * ctx.DeltaTime
				p.Y += v.Y * ctx.DeltaTime
			}
		})
	b.AddSystem(movement)

	var burning *ecs.QueryState[burnFetch, struct{}]
	damageOverTime := ecs.WithQuery(ecs.NewSystem("damage-over-time"), world, &burning).
		Run(func(ctx *ecs.SystemContext) {
			for _, row := range burning.Iter() {
				hp := row.HP.Get()
				hp.Current -= row.Burn.Get().DamagePerTick
			}
		})
	b.AddSystem(damageOverTime)

	var stunned *ecs.QueryState[stunFetch, struct{}]
	stunTick := ecs.WithQuery(ecs.NewSystem("stun-tick"), world, &stunned).
		Run(func(ctx *ecs.SystemContext) {
			for _, row := range stunned.Iter() {
				row.AI.Get().State = 0
			}
		})
	b.AddSystem(stunTick)

	for i := 0; i < 5; i++ {
		counter := ecs.WithResourceWrite[FrameCounter](ecs.NewSystem("frame-counter"), world).
			Run(func(ctx *ecs.SystemContext) {
				if fc, ok := ecs.GetResource[FrameCounter](ctx.World.Resources); ok {
					fc.Frames++
				}
			})
		b.AddSystem(counter)
	}

	b.Flush()
	return b.Build()
}
