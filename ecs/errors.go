package ecs

import "errors"

// Local, per-call errors (spec.md §7: "Invalid entity" / "Missing resource" / "Bundle mismatch").
// World's insert/remove paths return ErrInvalidEntity and ErrBundleMismatch. Nothing in this
// package returns ErrMissingComponent, ErrMissingResource or ErrUnregistered: Get and
// GetResource report absence with a bool instead.
var (
	ErrInvalidEntity    = errors.New("ecs: entity is invalid or has been despawned")
	ErrMissingComponent = errors.New("ecs: entity does not have the requested component")
	ErrMissingResource  = errors.New("ecs: resource is not registered")
	ErrBundleMismatch   = errors.New("ecs: component not present on entity")
	ErrUnregistered     = errors.New("ecs: component type is not registered")
)

// Fatal conditions: a scheduler or storage bug, not a recoverable per-entity
// condition. No code path in this package panics with or returns either of them;
// the scheduler performs no runtime access-conflict check, and its dependency
// graph cannot contain a cycle.
var (
	ErrAccessConflict   = errors.New("ecs: overlapping archetype-component access with a write")
	ErrCyclicDependency = errors.New("ecs: system dependency graph contains a cycle")
)
