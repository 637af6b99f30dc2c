package silo

import "fmt"

// SystemID is the dense, process-local index of a System within a
// systemRegistry.
type SystemID uint32

// AccessSignature declares which components a System reads and writes.
// The scheduler admits a System for a tick only once every component in
// Writes can be held exclusively and every component in Reads is not
// concurrently held exclusively by another admitted System.
type AccessSignature struct {
	Reads  []Component
	Writes []Component
}

// normalize de-duplicates Reads/Writes and rejects a component declared in
// both lists: a System that reads and writes the same component should
// declare it only under Writes, since Written subsumes Read for locking
// purposes.
func (a AccessSignature) normalize() (AccessSignature, error) {
	writeSet := make(map[Component]bool, len(a.Writes))
	writes := make([]Component, 0, len(a.Writes))
	for _, c := range a.Writes {
		if writeSet[c] {
			continue
		}
		writeSet[c] = true
		writes = append(writes, c)
	}
	reads := make([]Component, 0, len(a.Reads))
	readSet := make(map[Component]bool, len(a.Reads))
	for _, c := range a.Reads {
		if writeSet[c] {
			return AccessSignature{}, ConfigurationError{Reason: fmt.Sprintf("component %T declared in both Reads and Writes", c)}
		}
		if readSet[c] {
			continue
		}
		readSet[c] = true
		reads = append(reads, c)
	}
	return AccessSignature{Reads: reads, Writes: writes}, nil
}

// SystemContext is passed to a System's invocation closure for the
// duration of a single tick. Storage is the Runtime's storage, locked for
// this tick: its Enqueue* calls add to the deferred mutation queue rather
// than applying immediately, and direct structural calls such as
// NewEntities or DestroyEntities return an error, so Systems never see
// structural changes mid-tick. Filter is the System's declared filter from
// registration, evaluated the same way any other QueryNode is; it's nil for
// a System registered with no filter.
type SystemContext struct {
	Storage Storage
	Query   Query
	Filter  QueryNode
}

// SystemFunc is the body of a System: one unit of per-tick work admitted
// by the scheduler once its AccessSignature's locks are free.
type SystemFunc func(SystemContext) error

// systemNode is a registered System together with the action it belongs
// to, its resolved lock requirements, and its declared filter: the set of
// component types an entity must possess for this System to consider it,
// independent of whatever Query the System body constructs from
// SystemContext.Query.
type systemNode struct {
	name      string
	actionID  ActionID
	access    AccessSignature
	filter    []Component
	fn        SystemFunc
	readBits  []uint32
	writeBits []uint32
}

// systemRegistry interns Systems by name and resolves each one's component
// access signature into schema lock bits the scheduler can test against
// its LockState table.
type systemRegistry struct {
	names map[string]SystemID
	nodes []systemNode
}

func newSystemRegistry() *systemRegistry {
	return &systemRegistry{names: make(map[string]SystemID)}
}

// Register interns a System under name, belonging to actionID, with the
// given access signature, filter and invocation body. Every System must
// belong to exactly one action; fn must be non-nil. filter may be nil for a
// System with no declared filter.
func (r *systemRegistry) Register(name string, access AccessSignature, actionID ActionID, filter []Component, fn SystemFunc) (SystemID, error) {
	if fn == nil {
		return 0, ConfigurationError{Reason: fmt.Sprintf("system %q registered with a nil invocation function", name)}
	}
	if id, ok := r.names[name]; ok {
		return id, nil
	}
	normalized, err := access.normalize()
	if err != nil {
		return 0, fmt.Errorf("system %q: %w", name, err)
	}
	r.nodes = append(r.nodes, systemNode{
		name:     name,
		actionID: actionID,
		access:   normalized,
		filter:   filter,
		fn:       fn,
	})
	id := SystemID(len(r.nodes))
	r.names[name] = id
	return id, nil
}

// resolveLocks fills in each System's schema-bit-index view of its access
// signature. Called once the owning storage's schema has seen every
// component any System declared, so RowIndexFor returns stable bits.
func (r *systemRegistry) resolveLocks(sto Storage) {
	for i := range r.nodes {
		node := &r.nodes[i]
		sto.Register(node.access.Reads...)
		sto.Register(node.access.Writes...)

		node.readBits = make([]uint32, len(node.access.Reads))
		for j, c := range node.access.Reads {
			node.readBits[j] = sto.RowIndexFor(c)
		}
		node.writeBits = make([]uint32, len(node.access.Writes))
		for j, c := range node.access.Writes {
			node.writeBits[j] = sto.RowIndexFor(c)
		}
	}
}

func (r *systemRegistry) node(id SystemID) *systemNode {
	return &r.nodes[id-1]
}

// Lookup returns the id registered under name.
func (r *systemRegistry) Lookup(name string) (SystemID, bool) {
	id, ok := r.names[name]
	return id, ok
}

// All returns every registered System's id, in registration order.
func (r *systemRegistry) All() []SystemID {
	ids := make([]SystemID, len(r.nodes))
	for i := range r.nodes {
		ids[i] = SystemID(i + 1)
	}
	return ids
}
