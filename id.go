package silo

import "github.com/gofrs/uuid/v5"

// RuntimeID uniquely identifies a Runtime instance, so that log lines and
// metrics emitted by several Runtimes in the same process (e.g. in tests)
// can be told apart.
type RuntimeID uuid.UUID

func newRuntimeID() RuntimeID {
	return RuntimeID(uuid.Must(uuid.NewV4()))
}

func (id RuntimeID) String() string {
	return uuid.UUID(id).String()
}

// TickID uniquely identifies a single Tick call across the lifetime of a
// Runtime, independent of the monotonically increasing tick counter, so
// that callers can correlate a TickReport with trace or log output without
// relying on counter reuse after a Runtime restart.
type TickID uuid.UUID

func newTickID() TickID {
	return TickID(uuid.Must(uuid.NewV4()))
}

func (id TickID) String() string {
	return uuid.UUID(id).String()
}
