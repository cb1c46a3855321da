package ecs

import "sync/atomic"

// Tick is the world's monotonic run counter, advanced once per stage run (spec.md §4.9). Every column records,
// per row, the tick it was last added and the tick it was last changed; Added[T]/Changed[T]
// filters compare those against a system's last-run tick.
type Tick uint32

// tickCounter is a single atomically-incremented Tick source shared by a World.
type tickCounter struct {
	value atomic.Uint32
}

func (c *tickCounter) current() Tick {
	return Tick(c.value.Load())
}

// advance bumps the counter and returns the new tick, used to stamp the run that is
// about to start.
func (c *tickCounter) advance() Tick {
	return Tick(c.value.Add(1))
}

// isNewerThan reports whether t happened after last, accounting for wraparound the
// same way a sequence number comparison would (Tick is a uint32 counter that, per
// spec.md §4.4, is allowed to wrap without ever colliding with a still-live value
// within the lifetime of a single process run).
func (t Tick) isNewerThan(last Tick) bool {
	return int32(t-last) > 0
}
