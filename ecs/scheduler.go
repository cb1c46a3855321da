package ecs

import (
	"sync"
	"sync/atomic"
)

// componentAccess records one system's access to a component, used only while
// building a stage's dynamic-dependency edges.
type componentAccess struct {
	sys   int
	write bool
}

// Stage is an ordered list of systems that run together and flush their
// command buffers at its boundary (spec.md §6 "Schedule builder" / glossary
// "Stage"). Its dependency graph is built once, at Schedule construction
// (spec.md §4.8 "Construction (once per stage)"), and reused every run.
type Stage struct {
	systems []*System

	// staticPred/staticSucc come from resource access (always exact, never
	// subject to promotion/demotion) and from thread-local barriers.
	staticPred [][]int
	staticSucc [][]int

	// dynamicPred/dynamicSucc come from component access. They are
	// provisional: each run, step 3 of spec.md §4.8 tests whether the two
	// systems' matched archetype sets actually overlap before treating the
	// edge as live.
	dynamicPred [][]int
	dynamicSucc [][]int
}

// newStage builds a stage's dependency graph from its systems' declared
// access, in declared order (spec.md §4.8 steps 1-3).
//
// Deviation from the literal spec.md wording, recorded in DESIGN.md: for
// resources, the algorithm below uses last_write/last_read tracking for
// write-after-write edges, and also adds a write-after-read edge from every
// system that read the resource since its previous write. For components, spec.md's prose only says "for every prior writer
// of that component, add a dynamic edge" — read-only prior accesses are never
// linked to a later writer. Taken literally that would let a system that only
// reads C run concurrently, unsynchronized, with a later system that writes
// C, racing on that component's storage. This implementation instead tracks
// every prior accessor of a component (reader or writer) and adds a dynamic
// edge whenever the prior access or the current one is a write — the same
// "conflict iff at least one side writes" rule spec.md §3 states for
// ArchetypeComponentId conflicts in general. Pure read-after-read never gets
// an edge, preserving the intended read/read parallelism.
func newStage(systems []*System) *Stage {
	n := len(systems)
	st := &Stage{
		systems:     systems,
		staticPred:  make([][]int, n),
		staticSucc:  make([][]int, n),
		dynamicPred: make([][]int, n),
		dynamicSucc: make([][]int, n),
	}

	componentHistory := make(map[ComponentId][]componentAccess)
	lastWriteRes := make(map[ResourceId]int)
	lastReadRes := make(map[ResourceId]int)
	readersSinceWrite := make(map[ResourceId][]int)
	lastThreadLocal := -1

	for i, sys := range systems {
		acc := sys.access
		staticSet := make(map[int]bool)
		dynamicSet := make(map[int]bool)

		if lastThreadLocal >= 0 {
			staticSet[lastThreadLocal] = true
		}
		if sys.threadLocal {
			for j := 0; j < i; j++ {
				staticSet[j] = true
			}
		}

		for _, id := range acc.ResourceReads() {
			if w, ok := lastWriteRes[id]; ok {
				staticSet[w] = true
			}
			readersSinceWrite[id] = append(readersSinceWrite[id], i)
		}
		for _, id := range acc.ResourceWrites() {
			if r, ok := lastReadRes[id]; ok {
				staticSet[r] = true
			}
			if w, ok := lastWriteRes[id]; ok {
				staticSet[w] = true
			}
			for _, r := range readersSinceWrite[id] {
				if r != i {
					staticSet[r] = true
				}
			}
			readersSinceWrite[id] = nil
			lastWriteRes[id] = i
			lastReadRes[id] = i
		}

		for _, id := range acc.ComponentWrites() {
			for _, prior := range componentHistory[id] {
				dynamicSet[prior.sys] = true
			}
			componentHistory[id] = append(componentHistory[id], componentAccess{sys: i, write: true})
		}
		for _, id := range acc.ComponentReads() {
			for _, prior := range componentHistory[id] {
				if prior.write && prior.sys != i {
					dynamicSet[prior.sys] = true
				}
			}
			componentHistory[id] = append(componentHistory[id], componentAccess{sys: i, write: false})
		}

		if sys.threadLocal {
			lastThreadLocal = i
		}

		st.staticPred[i] = setToSlice(staticSet)
		st.dynamicPred[i] = setToSlice(dynamicSet)
	}

	for i := 0; i < n; i++ {
		for _, p := range st.staticPred[i] {
			st.staticSucc[p] = append(st.staticSucc[p], i)
		}
		for _, p := range st.dynamicPred[i] {
			st.dynamicSucc[p] = append(st.dynamicSucc[p], i)
		}
	}

	return st
}

func setToSlice(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// resolves whether a dynamic edge between predecessor p and successor i
// should be treated as live this run (spec.md §4.8 step 3): if either side's
// archetype access is unbounded ("All"), the edge cannot be proven safe to
// drop and is promoted; otherwise it is promoted only if their matched
// archetype sets intersect.
func dynamicEdgeLive(p, i *System, matchedP, matchedI map[ArchetypeId]bool) bool {
	if !p.HasDynamicBound() || !i.HasDynamicBound() {
		return true
	}
	for id := range matchedP {
		if matchedI[id] {
			return true
		}
	}
	return false
}

// run executes the stage once: preflush, parallel prepare, dynamic edge
// promotion/demotion, worker-pool dispatch (or the single-threaded fallback),
// then postflush (spec.md §4.8 "Per-run dispatch").
func (st *Stage) run(world *World, dt float64, cfg Config) {
	n := len(st.systems)
	if n == 0 {
		// spec.md §8 "Stage with zero systems: execute is a no-op; no ticks advance."
		return
	}

	tick := world.AdvanceTick()

	// Preflush: each system's buffer starts this run empty. Systems record
	// into it during prepare/run below; nothing is applied to the world yet.
	for _, sys := range st.systems {
		sys.commands.ops = sys.commands.ops[:0]
	}

	if cfg.WorkerCount <= 0 || n == 1 {
		st.runSequential(world, dt, tick)
	} else {
		st.runParallel(world, dt, tick, cfg.WorkerCount)
	}

	// Postflush: drain every system's buffer in original declared order,
	// never completion order (spec.md §5 "Command buffers are applied in
	// original declared order, not completion order").
	for _, sys := range st.systems {
		sys.commands.Apply(world)
	}
}

func (st *Stage) runSequential(world *World, dt float64, tick Tick) {
	for _, sys := range st.systems {
		sys.prepare(world)
		ctx := &SystemContext{World: world, Commands: sys.commands, DeltaTime: dt, LastRunTick: sys.lastRunTick(), Tick: tick}
		if sys.run(ctx) {
			sys.setLastRunTick(tick)
		}
	}
}

func (st *Stage) runParallel(world *World, dt float64, tick Tick, workers int) {
	n := len(st.systems)

	var prepareWg sync.WaitGroup
	prepareWg.Add(n)
	for i := range st.systems {
		go func(i int) {
			defer prepareWg.Done()
			st.systems[i].prepare(world)
		}(i)
	}
	prepareWg.Wait()

	matched := make([]map[ArchetypeId]bool, n)
	for i, sys := range st.systems {
		if sys.HasDynamicBound() {
			matched[i] = sys.MatchedArchetypes()
		}
	}

	promotedSucc := make([][]int, n)
	outstanding := make([]int32, n)
	for i := range st.systems {
		outstanding[i] = int32(len(st.staticPred[i]))
	}
	for i := 0; i < n; i++ {
		for _, p := range st.dynamicPred[i] {
			if dynamicEdgeLive(st.systems[p], st.systems[i], matched[p], matched[i]) {
				promotedSucc[p] = append(promotedSucc[p], i)
				outstanding[i]++
			}
		}
	}

	ready := make(chan int, n)
	for i := 0; i < n; i++ {
		if outstanding[i] == 0 {
			ready <- i
		}
	}

	var runWg sync.WaitGroup
	runWg.Add(n)

	dispatch := func(i int) {
		defer runWg.Done()
		sys := st.systems[i]
		ctx := &SystemContext{World: world, Commands: sys.commands, DeltaTime: dt, LastRunTick: sys.lastRunTick(), Tick: tick}
		if sys.run(ctx) {
			sys.setLastRunTick(tick)
		}

		for _, succ := range st.staticSucc[i] {
			if atomic.AddInt32(&outstanding[succ], -1) == 0 {
				ready <- succ
			}
		}
		for _, succ := range promotedSucc[i] {
			if atomic.AddInt32(&outstanding[succ], -1) == 0 {
				ready <- succ
			}
		}
	}

	if workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		go func() {
			for i := range ready {
				dispatch(i)
			}
		}()
	}

	runWg.Wait()
	close(ready)
}

// Schedule is a built, ready-to-run sequence of stages (spec.md §6 "build()
// -> Schedule").
type Schedule struct {
	stages []*Stage
}

// Run executes every stage once, in order, passing dt to each system's
// SystemContext.DeltaTime.
func (s *Schedule) Run(world *World, dt float64) {
	cfg := world.Config()
	for _, stage := range s.stages {
		stage.run(world, dt, cfg)
	}
}

// StageCount reports how many stages this schedule has, mainly for tests.
func (s *Schedule) StageCount() int { return len(s.stages) }

// SystemCount reports the total number of systems across every stage.
func (s *Schedule) SystemCount() int {
	n := 0
	for _, stage := range s.stages {
		n += len(stage.systems)
	}
	return n
}

// ScheduleBuilder assembles systems into stages (spec.md §6 "Schedule
// builder"): add_system appends to the current stage, flush() closes it and
// starts a new one, build() compiles every stage's dependency graph.
type ScheduleBuilder struct {
	stages  [][]*System
	current []*System
}

// NewScheduleBuilder starts an empty schedule with one open (not yet closed)
// stage.
func NewScheduleBuilder() *ScheduleBuilder {
	return &ScheduleBuilder{}
}

// AddSystem appends sys to the stage currently being built.
func (b *ScheduleBuilder) AddSystem(sys *System) *ScheduleBuilder {
	b.current = append(b.current, sys)
	return b
}

// AddThreadLocal appends a main-thread step to the stage currently being
// built (spec.md §6 "add_thread_local(f)").
func (b *ScheduleBuilder) AddThreadLocal(name string, fn func(w *World, commands *CommandBuffer)) *ScheduleBuilder {
	b.current = append(b.current, NewThreadLocalSystem(name, fn))
	return b
}

// Flush closes the current stage as an explicit stage boundary and opens a
// new, empty one (spec.md §6 "flush() (explicit stage boundary)").
func (b *ScheduleBuilder) Flush() *ScheduleBuilder {
	b.stages = append(b.stages, b.current)
	b.current = nil
	return b
}

// Build compiles every stage's dependency graph and returns the runnable
// Schedule. Any systems added since the last Flush form a final stage.
func (b *ScheduleBuilder) Build() *Schedule {
	stages := b.stages
	if len(b.current) > 0 || len(stages) == 0 {
		stages = append(stages, b.current)
	}

	compiled := make([]*Stage, 0, len(stages))
	for _, systems := range stages {
		compiled = append(compiled, newStage(systems))
	}
	return &Schedule{stages: compiled}
}
