package ecs

import "runtime"

// StorageMode selects how a component's values are kept: densely packed per archetype
// (Table) or indirected through a per-component map (SparseSet). See spec.md §4.10: the
// choice is explicit per component, made at registration time, never auto-reclassified.
type StorageMode uint8

const (
	// Table is the default: dense, cache-friendly, good for components most entities carry.
	Table StorageMode = iota
	// SparseSet trades iteration density for O(1) insert/remove independent of archetype
	// moves. Use it for components present on a small fraction of entities.
	SparseSet
)

func (m StorageMode) String() string {
	if m == SparseSet {
		return "SparseSet"
	}
	return "Table"
}

// Config holds the tunable knobs of a World. The zero Config is invalid; use
// DefaultConfig or NewConfig.
type Config struct {
	// WorkerCount is the number of worker goroutines the scheduler's executor
	// dispatches ready systems onto, in addition to the goroutine that calls
	// Schedule.Run. A value <= 0 selects the single-threaded fallback of
	// spec.md §4.8: systems run strictly in declared order on the calling
	// goroutine, with the same ordering guarantee holding trivially.
	WorkerCount int

	// SparseOccupancyHint documents the rule of thumb callers should use when
	// deciding a component's StorageMode (spec.md §9 Open Questions): sparse
	// when expected occupancy is below this fraction of all entities. It is
	// not enforced by the engine.
	SparseOccupancyHint float64

	// TableBlockSize is not read anywhere: columns grow as plain Go slices,
	// and NewComponentRegistry takes no Config.
	TableBlockSize int
}

// DefaultConfig picks a worker count of GOMAXPROCS-1 (spec.md §5: "at least one
// main thread plus N-1 workers") and the documented 5% sparse-set threshold.
func DefaultConfig() Config {
	workers := runtime.GOMAXPROCS(0) - 1
	if workers < 0 {
		workers = 0
	}
	return Config{
		WorkerCount:         workers,
		SparseOccupancyHint: 0.05,
		TableBlockSize:      64,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...ConfigOption) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type ConfigOption func(*Config)

// WithWorkerCount overrides the worker pool size. Pass 0 to force the
// single-threaded fallback executor.
func WithWorkerCount(n int) ConfigOption {
	return func(c *Config) { c.WorkerCount = n }
}

// WithSparseOccupancyHint overrides the documented sparse-set threshold.
func WithSparseOccupancyHint(frac float64) ConfigOption {
	return func(c *Config) { c.SparseOccupancyHint = frac }
}
