package ecs_test

import (
	"testing"

	"github.com/forgelabs/ecsrt/ecs"
	"github.com/stretchr/testify/assert"
)

func TestSystemBuilderRunProducesSystemWithDeclaredAccess(t *testing.T) {
	world := newTestWorld()

	var q *ecs.QueryState[struct{ Pos ecs.Mut[Position] }, struct{}]
	sys := ecs.WithQuery(ecs.NewSystem("movement"), world, &q).
		Run(func(ctx *ecs.SystemContext) {})

	assert.Equal(t, "movement", sys.Name())
	assert.Equal(t, []ecs.ComponentId{0}, sys.Access().ComponentWrites())
	assert.True(t, sys.HasDynamicBound())
	assert.False(t, sys.IsThreadLocal())
}

func TestSystemWithoutQueryHasNoDynamicBound(t *testing.T) {
	world := newTestWorld()
	sys := ecs.WithResourceRead[int](ecs.NewSystem("no-query"), world).
		Run(func(ctx *ecs.SystemContext) {})

	assert.False(t, sys.HasDynamicBound())
}

func TestThreadLocalSystemHasOwnCommandBuffer(t *testing.T) {
	sys := ecs.NewThreadLocalSystem("io-flush", func(w *ecs.World, c *ecs.CommandBuffer) {
		c.Spawn(Position{X: 1, Y: 1})
	})

	assert.True(t, sys.IsThreadLocal())
	assert.NotNil(t, sys.CommandBuffer())
	// This checks construction only; no test in this package runs a
	// thread-local system through a Stage.
}
