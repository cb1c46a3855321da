package main

// A fixed pool of component kinds exercised by the stress test. Grounded on
// the original stress harness's generated-component idea (cmd/ecs-stress was
// built around N generator-produced component types), replaced here with a
// hand-written pool since no code generator shipped in this retrieval pack.

type Position struct{ X, Y float64 }
type Velocity struct{ X, Y float64 }
type Health struct{ Current, Max int32 }
type Mana struct{ Current, Max int32 }
type Faction struct{ ID int32 }
type Name struct{ Value string }
type Stunned struct{ Ticks int32 } // sparse: most entities never have this
type Burning struct{ DamagePerTick int32 } // sparse: same
type AIState struct{ State int32 }
type Inventory struct{ Slots [4]int32 }
