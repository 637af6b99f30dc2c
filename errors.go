package silo

import "fmt"

type LockedStorageError struct{}

func (e LockedStorageError) Error() string {
	return fmt.Sprintf("storage is currently locked")
}

type EntityRelationError struct {
	child, parent Entity
}

func (e EntityRelationError) Error() string {
	return fmt.Sprintf("child (%v) already has parent %v", e.child, e.parent)
}

type ComponentExistsError struct {
	Component Component
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("component already exists on entity: %T", e.Component)
}

type ComponentNotFoundError struct {
	Component Component
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component does not exist on entity: %T", e.Component)
}

// ConfigurationError reports a Runtime wiring mistake caught at registration
// or tick time: an unknown prerequisite action name, a cyclic action graph,
// registration after the first tick, a system registered with a nil
// function or with a component in both Reads and Writes, or a parent
// assignment that would close a cycle.
type ConfigurationError struct {
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// SingletonViolation reports that a creation would leave more than one live
// entity carrying a component declared singleton. The creation that trips
// this is rolled back in full and its id returned to the free list.
type SingletonViolation struct {
	Component Component
}

func (e SingletonViolation) Error() string {
	return fmt.Sprintf("singleton violation: a second entity with component %T was created", e.Component)
}

// NotFound reports that a name (action, system, entity) has no registered
// meaning in the Runtime it was looked up against.
type NotFound struct {
	Kind string
	Name string
}

func (e NotFound) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Name)
}

// ComponentAbsent reports that an operation required a component the target
// archetype does not carry.
type ComponentAbsent struct {
	Component Component
}

func (e ComponentAbsent) Error() string {
	return fmt.Sprintf("component absent from archetype: %T", e.Component)
}

// LockContention describes a system blocked on a component that is already
// held incompatibly (Written, or Read while the system itself wants to
// write). The scheduler does not return it: a system whose locks are
// unavailable waits until they are released.
type LockContention struct {
	System    string
	Component Component
}

func (e LockContention) Error() string {
	return fmt.Sprintf("system %q blocked on contended component %T", e.System, e.Component)
}

// BuilderFailed reports that a queued entity-creation builder closure
// returned an error; the entity under construction is rolled back and its
// id returned to the free list.
type BuilderFailed struct {
	Err error
}

func (e BuilderFailed) Error() string {
	return fmt.Sprintf("entity creation builder failed: %v", e.Err)
}

func (e BuilderFailed) Unwrap() error {
	return e.Err
}
