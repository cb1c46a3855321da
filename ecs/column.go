package ecs

import "reflect"

// tableColumn is the type-erased column interface Table stores per component id.
// Access is unchecked by construction (spec.md §4.2): callers only reach a column
// through an archetype that has already been matched against the component set.
type tableColumn interface {
	// Push appends value (T or *T) as a new row, stamping both ticks, and returns
	// the new row index.
	Push(value any, tick Tick) int
	// Get returns a pointer to the row's value, suitable for Query fetch.
	Get(row int) any
	// Set overwrites the row's value and bumps its changed tick.
	Set(row int, value any, tick Tick)
	// SwapRemove removes row by swapping the last row into its place (spec.md §4.2),
	// shrinking the column by one. The caller is responsible for knowing, via the
	// owning Table, which entity occupied the last row.
	SwapRemove(row int)
	// Len returns the number of occupied rows.
	Len() int
	// Ticks returns the row's added/changed ticks, for Added[T]/Changed[T] filters.
	Ticks(row int) (added Tick, changed Tick)
	// CopyFrom appends a copy of src's row into this column, preserving src's ticks.
	// Used when moving a row between tables for a component present in both.
	CopyFrom(src tableColumn, row int) int
}

// genericColumn is the fast, compile-time-typed column used by components registered
// through RegisterComponent[T].
type genericColumn[T any] struct {
	values  []T
	added   []Tick
	changed []Tick
}

func newGenericColumn[T any]() *genericColumn[T] {
	return &genericColumn[T]{}
}

func coerce[T any](value any) T {
	switch v := value.(type) {
	case T:
		return v
	case *T:
		return *v
	default:
		panic("ecs: component value type mismatch")
	}
}

func (c *genericColumn[T]) Push(value any, tick Tick) int {
	row := len(c.values)
	c.values = append(c.values, coerce[T](value))
	c.added = append(c.added, tick)
	c.changed = append(c.changed, tick)
	return row
}

func (c *genericColumn[T]) Get(row int) any {
	return &c.values[row]
}

func (c *genericColumn[T]) Set(row int, value any, tick Tick) {
	c.values[row] = coerce[T](value)
	c.changed[row] = tick
}

func (c *genericColumn[T]) SwapRemove(row int) {
	last := len(c.values) - 1
	if row != last {
		c.values[row] = c.values[last]
		c.added[row] = c.added[last]
		c.changed[row] = c.changed[last]
	}
	var zero T
	c.values[last] = zero
	c.values = c.values[:last]
	c.added = c.added[:last]
	c.changed = c.changed[:last]
}

func (c *genericColumn[T]) Len() int { return len(c.values) }

func (c *genericColumn[T]) Ticks(row int) (Tick, Tick) {
	return c.added[row], c.changed[row]
}

func (c *genericColumn[T]) CopyFrom(src tableColumn, row int) int {
	s := src.(*genericColumn[T])
	newRow := len(c.values)
	c.values = append(c.values, s.values[row])
	c.added = append(c.added, s.added[row])
	c.changed = append(c.changed, s.changed[row])
	return newRow
}

// reflectColumn backs components that were auto-registered from a runtime
// reflect.Type (spec.md §6 "Implicit on first use"), where no compile-time type
// parameter is available. It trades the zero-allocation fetch path of genericColumn
// for reflect.Value-driven storage.
type reflectColumn struct {
	typ     reflect.Type
	values  reflect.Value // addressable slice of typ
	added   []Tick
	changed []Tick
}

func newReflectColumn(t reflect.Type) *reflectColumn {
	return &reflectColumn{
		typ:    t,
		values: reflect.MakeSlice(reflect.SliceOf(t), 0, 0),
	}
}

func (c *reflectColumn) valueOf(value any) reflect.Value {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

func (c *reflectColumn) Push(value any, tick Tick) int {
	row := c.values.Len()
	c.values = reflect.Append(c.values, c.valueOf(value))
	c.added = append(c.added, tick)
	c.changed = append(c.changed, tick)
	return row
}

func (c *reflectColumn) Get(row int) any {
	return c.values.Index(row).Addr().Interface()
}

func (c *reflectColumn) Set(row int, value any, tick Tick) {
	c.values.Index(row).Set(c.valueOf(value))
	c.changed[row] = tick
}

func (c *reflectColumn) SwapRemove(row int) {
	last := c.values.Len() - 1
	if row != last {
		c.values.Index(row).Set(c.values.Index(last))
		c.added[row] = c.added[last]
		c.changed[row] = c.changed[last]
	}
	c.values.Index(last).Set(reflect.Zero(c.typ))
	c.values = c.values.Slice(0, last)
	c.added = c.added[:last]
	c.changed = c.changed[:last]
}

func (c *reflectColumn) Len() int { return c.values.Len() }

func (c *reflectColumn) Ticks(row int) (Tick, Tick) {
	return c.added[row], c.changed[row]
}

func (c *reflectColumn) CopyFrom(src tableColumn, row int) int {
	s := src.(*reflectColumn)
	newRow := c.values.Len()
	c.values = reflect.Append(c.values, s.values.Index(row))
	c.added = append(c.added, s.added[row])
	c.changed = append(c.changed, s.changed[row])
	return newRow
}
