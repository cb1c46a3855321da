package ecs

// SystemContext is what a system's run function receives: the world (shared
// reference; all mutation goes through raw access already cleared by the
// scheduler's conflict analysis, or through Commands), the system's own
// command buffer, and the tick bookkeeping it needs for change detection
// (spec.md §4.7 "prepare and run receive the world by shared reference").
type SystemContext struct {
	World       *World
	Commands    *CommandBuffer
	DeltaTime   float64
	LastRunTick Tick
	Tick        Tick
}

// System is the tagged-variant replacement for the source's trait-object
// system collection (spec.md §9 "Trait-object system collection"): a fixed
// capability set (name, declared reads/writes, archetype access, prepare,
// run, owned command buffer) stored as a plain struct rather than an
// interface, so a Schedule can hold a `[]*System` without boxing per-system
// state behind dynamic dispatch.
type System struct {
	name   string
	access FilteredAccess

	prepareFns []func(*World)
	matchers   []func() []*Archetype

	runFn func(*SystemContext)

	threadLocal bool
	threadFn    func(*World, *CommandBuffer)

	// conditions gate whether run executes the body for a given stage run
	// (SPEC_FULL.md §9.1, grounded on original_source/schedule_v3's run_if).
	// All must return true; the system still keeps its place in the stage's
	// dependency graph regardless of outcome.
	conditions []func(*World) bool

	commands *CommandBuffer
	lastTick Tick
}

func (s *System) Name() string { return s.name }

// Access returns the system's declared reads/writes, used by the scheduler to
// build static dependency edges (spec.md §4.8 step 2).
func (s *System) Access() FilteredAccess { return s.access }

// IsThreadLocal reports whether this is a main-thread step added via
// ScheduleBuilder.AddThreadLocal rather than a regular parallel system (spec.md §6
// "add_thread_local(f)", §4.8 "main-thread steps ... always run alone").
func (s *System) IsThreadLocal() bool { return s.threadLocal }

// HasDynamicBound reports whether the system's archetype access is bounded by
// at least one query (false means "All": the system's access set cannot be
// narrowed and every dynamic edge into or out of it must stay static,
// spec.md §4.7 "declared archetype access (All or a bitset of matched
// archetypes)").
func (s *System) HasDynamicBound() bool { return len(s.matchers) > 0 }

// MatchedArchetypes returns the union of every query's currently-matched
// archetype ids, valid only after prepare has run this cycle (spec.md §4.8
// step 3 "inspect the matched archetypes of p and i").
func (s *System) MatchedArchetypes() map[ArchetypeId]bool {
	out := make(map[ArchetypeId]bool)
	for _, m := range s.matchers {
		for _, a := range m() {
			out[a.ID()] = true
		}
	}
	return out
}

// prepare runs every query's UpdateArchetypes (spec.md §4.8 step 2 "Prepare").
func (s *System) prepare(w *World) {
	for _, fn := range s.prepareFns {
		fn(w)
	}
}

// run executes the system's body against ctx, which must already carry this
// system's own command buffer. It reports whether the body actually ran: a
// false RunIf condition skips the body (and any command-buffer writes or
// change-tick bump) for this run without otherwise affecting scheduling.
func (s *System) run(ctx *SystemContext) bool {
	for _, cond := range s.conditions {
		if !cond(ctx.World) {
			return false
		}
	}
	if s.threadLocal {
		s.threadFn(ctx.World, ctx.Commands)
		return true
	}
	s.runFn(ctx)
	return true
}

// CommandBuffer returns the system's owned deferred-operation buffer (spec.md
// §4.7 "owns a command-buffer handle").
func (s *System) CommandBuffer() *CommandBuffer { return s.commands }

func (s *System) lastRunTick() Tick     { return s.lastTick }
func (s *System) setLastRunTick(t Tick) { s.lastTick = t }

// SystemBuilder is the declarative constructor for a System (spec.md §9
// "Decorator-style system construction" -> "an explicit descriptor struct
// built by a builder; parameter declarations produce entries in
// reads/writes"). Each WithQuery/WithResourceRead/WithResourceWrite call
// contributes to the descriptor's precomputed access set before Run finalizes
// it.
type SystemBuilder struct {
	name       string
	access     FilteredAccess
	prepareFns []func(*World)
	matchers   []func() []*Archetype
	conditions []func(*World) bool
}

// NewSystem starts building a system named name (used only for diagnostics
// and debugui-style introspection, never for ordering).
func NewSystem(name string) *SystemBuilder {
	return &SystemBuilder{name: name}
}

// WithQuery attaches a (D, F) query to the system being built, binding it to
// world immediately and writing the compiled *QueryState into *out. The
// query's declared access folds into the system's FilteredAccess, and its
// UpdateArchetypes becomes part of the system's prepare step.
func WithQuery[D any, F any](b *SystemBuilder, world *World, out **QueryState[D, F]) *SystemBuilder {
	q := NewQueryState[D, F](world)
	*out = q
	b.access.merge(q.Access())
	b.prepareFns = append(b.prepareFns, func(*World) { q.UpdateArchetypes() })
	b.matchers = append(b.matchers, func() []*Archetype { return q.MatchedArchetypes() })
	return b
}

// WithResourceRead declares a read of resource T, contributing a static
// resource-level dependency edge (spec.md §4.8 step 2).
func WithResourceRead[T any](b *SystemBuilder, world *World) *SystemBuilder {
	id := ResourceID[T](world.Resources)
	b.access.resourceReads = append(b.access.resourceReads, id)
	return b
}

// WithResourceWrite declares an exclusive write of resource T.
func WithResourceWrite[T any](b *SystemBuilder, world *World) *SystemBuilder {
	id := ResourceID[T](world.Resources)
	b.access.resourceWrites = append(b.access.resourceWrites, id)
	return b
}

// RunIf gates the system's body on cond: when cond returns false for a given
// stage run, the body, its command buffer writes, and its change-tick bump
// are all skipped for that run, while the system keeps its declared place in
// the stage's static/dynamic dependency edges (SPEC_FULL.md §9.1, grounded on
// original_source/schedule_v3/descriptor.rs's `run_if`). Multiple conditions
// are ANDed together.
func (b *SystemBuilder) RunIf(cond func(*World) bool) *SystemBuilder {
	b.conditions = append(b.conditions, cond)
	return b
}

// Run sets the system's body and finalizes the descriptor.
func (b *SystemBuilder) Run(fn func(ctx *SystemContext)) *System {
	return &System{
		name:       b.name,
		access:     b.access,
		prepareFns: b.prepareFns,
		matchers:   b.matchers,
		conditions: b.conditions,
		runFn:      fn,
		commands:   NewCommandBuffer(),
	}
}

// NewThreadLocalSystem builds a main-thread step: it runs alone, with
// exclusive world access, never concurrently with any other system in the
// stage (spec.md §4.8 "main-thread steps that run user functions with
// exclusive world access").
func NewThreadLocalSystem(name string, fn func(w *World, commands *CommandBuffer)) *System {
	return &System{
		name:        name,
		threadLocal: true,
		threadFn:    fn,
		commands:    NewCommandBuffer(),
	}
}
