package silo

import (
	"fmt"
	"slices"
)

// ActionID is the dense, process-local index of an Action within an
// actionGraph. Registered actions are numbered from 1; zero means "no
// action".
type ActionID uint32

// actionNode records one action's declared prerequisites by name, resolved
// to ids once the graph is frozen.
type actionNode struct {
	name           string
	prereqNames    []string
	prereqs        []ActionID
}

// actionGraph is the DAG of named actions systems are admitted against.
// Prerequisites are declared by name before the graph is frozen; freezing
// resolves names to ids and runs a Kahn's-algorithm pass that both detects
// cycles and fixes a single valid topological order for the whole run.
type actionGraph struct {
	names   map[string]ActionID
	nodes   []actionNode
	order   []ActionID
	frozen  bool
}

func newActionGraph() *actionGraph {
	return &actionGraph{names: make(map[string]ActionID)}
}

// Register interns an action by name, recording its prerequisite action
// names. Prerequisites need not already be registered; they're resolved at
// Freeze time, so actions can be declared in any order. Re-registering an
// existing name is an idempotent no-op as long as the prerequisite list
// matches what was already recorded.
func (g *actionGraph) Register(name string, prerequisites ...string) (ActionID, error) {
	if g.frozen {
		return 0, ConfigurationError{Reason: "cannot register an action after the action graph has been frozen"}
	}
	if id, ok := g.names[name]; ok {
		if !slices.Equal(g.node(id).prereqNames, prerequisites) {
			return 0, ConfigurationError{Reason: fmt.Sprintf("action %q re-registered with different prerequisites", name)}
		}
		return id, nil
	}
	g.nodes = append(g.nodes, actionNode{name: name, prereqNames: prerequisites})
	id := ActionID(len(g.nodes))
	g.names[name] = id
	return id, nil
}

// Lookup returns the id registered under name.
func (g *actionGraph) Lookup(name string) (ActionID, bool) {
	id, ok := g.names[name]
	return id, ok
}

func (g *actionGraph) node(id ActionID) *actionNode {
	return &g.nodes[id-1]
}

// Freeze resolves every action's prerequisite names to ids and fixes a
// topological order via Kahn's algorithm. Runtime.Tick calls it at the start
// of the first tick; once it has succeeded, later calls are no-ops. An action
// graph is immutable for the life of a Runtime afterward, matching the
// "freeze on first tick" rule: prerequisite membership can't shift mid-run
// out from under systems already admitted.
func (g *actionGraph) Freeze() error {
	if g.frozen {
		return nil
	}
	for i := range g.nodes {
		node := &g.nodes[i]
		node.prereqs = make([]ActionID, 0, len(node.prereqNames))
		for _, prereqName := range node.prereqNames {
			prereqID, ok := g.names[prereqName]
			if !ok {
				return ConfigurationError{Reason: fmt.Sprintf("action %q declares unknown prerequisite %q", node.name, prereqName)}
			}
			node.prereqs = append(node.prereqs, prereqID)
		}
	}

	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.order = order
	g.frozen = true
	return nil
}

// topoSort runs Kahn's algorithm over the prerequisite edges (prereq -> action).
// A non-empty remainder after the queue drains means a cycle exists.
func (g *actionGraph) topoSort() ([]ActionID, error) {
	n := len(g.nodes)
	inDegree := make([]int, n+1)
	dependents := make(map[ActionID][]ActionID)

	for i := range g.nodes {
		id := ActionID(i + 1)
		node := &g.nodes[i]
		inDegree[id] = len(node.prereqs)
		for _, prereq := range node.prereqs {
			dependents[prereq] = append(dependents[prereq], id)
		}
	}

	queue := make([]ActionID, 0, n)
	for id := 1; id <= n; id++ {
		if inDegree[id] == 0 {
			queue = append(queue, ActionID(id))
		}
	}

	order := make([]ActionID, 0, n)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != n {
		return nil, ConfigurationError{Reason: "action graph contains a cycle"}
	}
	return order, nil
}

// Ready reports whether every prerequisite of id has completed this tick,
// per the completed set the scheduler maintains.
func (g *actionGraph) Ready(id ActionID, completed map[ActionID]bool) bool {
	for _, prereq := range g.node(id).prereqs {
		if !completed[prereq] {
			return false
		}
	}
	return true
}

// Order returns the frozen topological order. Only valid after Freeze.
func (g *actionGraph) Order() []ActionID {
	return g.order
}

// Name returns the registered name for id, for error messages and logging.
func (g *actionGraph) Name(id ActionID) string {
	return g.node(id).name
}
