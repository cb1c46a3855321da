package ecs_test

import "github.com/forgelabs/ecsrt/ecs"

// Common test component types, shared across this package's test files.
type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

type Health struct {
	Current, Max int32
}

type Name struct {
	Value string
}

type Stunned struct {
	Ticks int32
}

func newTestRegistry() *ecs.ComponentRegistry {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Health](registry)
	ecs.RegisterComponent[Name](registry)
	ecs.RegisterComponent[Stunned](registry, ecs.SparseSet)
	return registry
}

func newTestWorld(opts ...ecs.ConfigOption) *ecs.World {
	return ecs.NewWorld(newTestRegistry(), opts...)
}
