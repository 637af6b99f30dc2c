package silo

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// lockKind is the state a single component's schema bit can be in during a
// tick: free for any System to read or write, held for reading by one or
// more concurrently running Systems, or held exclusively by a System
// writing it.
type lockKind int

const (
	lockFree lockKind = iota
	lockRead
	lockWritten
)

// lockCell is one component bit's current hold state.
type lockCell struct {
	kind    lockKind
	readers int
}

// Scheduler admits registered Systems for execution across a goroutine
// worker pool, gating each admission on its AccessSignature against a
// per-component LockState table: a System writing a component must find it
// Free, a System reading a component must find it not Written. Within an
// action, any number of lock-compatible Systems may run concurrently;
// across actions, a System is only admitted once all of its action's
// prerequisite actions have fully completed this tick.
//
// A Workers count of 1 or less degrades to serial execution: the pool and
// its mutex/cond bookkeeping are skipped entirely and Systems run in one
// frozen topological pass over the action graph.
type Scheduler struct {
	actions *actionGraph
	systems *systemRegistry
	workers int
	metrics *metrics

	mu    sync.Mutex
	cond  *sync.Cond
	locks [256]lockCell

	completedActions map[ActionID]bool
	// pending is indexed directly by SystemID (index 0 unused, SystemIDs
	// start at 1) rather than a map, so findAdmissible can scan it in
	// registration order: spec'd tie-breaks among equally-admissible
	// Systems follow registration order, an observable property a map's
	// randomized iteration would silently break.
	pending      []bool
	finished     []bool
	pendingCount int
	runningCount int
	firstErr     error
}

func newScheduler(actions *actionGraph, systems *systemRegistry, workers int, m *metrics) *Scheduler {
	s := &Scheduler{
		actions: actions,
		systems: systems,
		workers: workers,
		metrics: m,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// TickReport summarizes one Tick's scheduling outcome.
type TickReport struct {
	TickID          TickID
	SystemsRun      int
	Duration        time.Duration
	OperationsDone  int
}

// Run executes every registered System exactly once, respecting the
// action graph's frozen topological order and each System's declared
// component access. ctx cancellation is observed between System
// admissions; a System already running is allowed to finish.
func (s *Scheduler) Run(ctx context.Context, sto Storage) (TickReport, error) {
	start := time.Now()
	tickID := newTickID()

	if s.workers <= 1 {
		n, err := s.runSerial(ctx, sto)
		report := TickReport{TickID: tickID, SystemsRun: n, Duration: time.Since(start)}
		if s.metrics != nil {
			s.metrics.tickDuration.Observe(report.Duration.Seconds())
		}
		return report, err
	}

	n, err := s.runConcurrent(ctx, sto)
	report := TickReport{TickID: tickID, SystemsRun: n, Duration: time.Since(start)}
	if s.metrics != nil {
		s.metrics.tickDuration.Observe(report.Duration.Seconds())
	}
	return report, err
}

// runSerial executes Systems one at a time in the frozen action order,
// with no lock bookkeeping at all: with a single worker there is never a
// concurrent holder to contend with.
func (s *Scheduler) runSerial(ctx context.Context, sto Storage) (int, error) {
	ran := 0
	for _, actionID := range s.actions.Order() {
		for _, sysID := range s.systemsForAction(actionID) {
			if err := ctx.Err(); err != nil {
				return ran, err
			}
			node := s.systems.node(sysID)
			if err := s.invoke(node, sto); err != nil {
				return ran, err
			}
			ran++
		}
	}
	return ran, nil
}

// runConcurrent drives a fixed goroutine pool. Each worker repeatedly asks
// for the next admissible System (action prerequisites satisfied and lock
// signature compatible with the current LockState table), runs it, then
// releases its locks and signals the pool so blocked workers can recheck
// admission. Workers park on the condition variable while no System is
// presently admissible but some remain pending.
func (s *Scheduler) runConcurrent(ctx context.Context, sto Storage) (int, error) {
	all := s.systems.All()

	s.mu.Lock()
	s.completedActions = make(map[ActionID]bool, len(s.actions.nodes))
	s.pending = make([]bool, len(all)+1)
	s.finished = make([]bool, len(all)+1)
	for _, id := range all {
		s.pending[id] = true
	}
	s.pendingCount = len(all)
	s.runningCount = 0
	s.firstErr = nil
	for i := range s.locks {
		s.locks[i] = lockCell{}
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	workers := s.workers
	if workers > len(all) {
		workers = len(all)
	}
	if workers < 1 {
		workers = 1
	}

	ran := make([]int, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for {
				sysID, ok := s.acquireNext(ctx)
				if !ok {
					return
				}
				node := s.systems.node(sysID)
				err := s.invoke(node, sto)
				s.release(sysID, err)
				if err == nil {
					ran[idx]++
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, n := range ran {
		total += n
	}
	s.mu.Lock()
	err := s.firstErr
	s.mu.Unlock()
	if err == nil {
		err = ctx.Err()
	}
	return total, err
}

// acquireNext blocks until either a System becomes admissible, every
// System has been accounted for (pending drained and nothing running),
// an earlier System failed, or ctx is cancelled.
func (s *Scheduler) acquireNext(ctx context.Context) (SystemID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.firstErr != nil {
			return 0, false
		}
		if s.pendingCount == 0 {
			return 0, false
		}
		if err := ctx.Err(); err != nil {
			s.firstErr = err
			s.cond.Broadcast()
			return 0, false
		}

		if sysID, ok := s.findAdmissible(); ok {
			s.pending[sysID] = false
			s.pendingCount--
			s.runningCount++
			s.markLocked(sysID)
			return sysID, true
		}

		if s.runningCount == 0 {
			// Nothing running and nothing admissible: the remaining
			// pending Systems can never become ready (a cycle would
			// already have been rejected at Freeze time, so this is
			// defensive only).
			s.firstErr = ConfigurationError{Reason: "scheduler deadlocked: no pending system is admissible"}
			s.cond.Broadcast()
			return 0, false
		}

		s.cond.Wait()
	}
}

// findAdmissible scans pending Systems, in registration order, for one
// whose action's prerequisites are all complete and whose component locks
// are compatible with the current LockState table. Caller holds s.mu.
func (s *Scheduler) findAdmissible() (SystemID, bool) {
	for _, sysID := range s.systems.All() {
		if !s.pending[sysID] {
			continue
		}
		node := s.systems.node(sysID)
		if !s.actions.Ready(node.actionID, s.completedActions) {
			continue
		}
		if s.compatible(node) {
			return sysID, true
		}
		if s.metrics != nil {
			s.metrics.systemsBlocked.Inc()
		}
	}
	return 0, false
}

// compatible reports whether node's declared reads/writes can be granted
// against the current LockState table without violating another
// concurrently running System's hold.
func (s *Scheduler) compatible(node *systemNode) bool {
	for _, bit := range node.writeBits {
		if s.locks[bit].kind != lockFree {
			return false
		}
	}
	for _, bit := range node.readBits {
		if s.locks[bit].kind == lockWritten {
			return false
		}
	}
	return true
}

// markLocked grants node's declared locks. Caller holds s.mu.
func (s *Scheduler) markLocked(sysID SystemID) {
	node := s.systems.node(sysID)
	for _, bit := range node.writeBits {
		s.locks[bit] = lockCell{kind: lockWritten}
	}
	for _, bit := range node.readBits {
		cell := s.locks[bit]
		cell.kind = lockRead
		cell.readers++
		s.locks[bit] = cell
	}
}

// release drops node's locks, marks its action complete once every System
// belonging to it has finished, and wakes workers parked in acquireNext.
func (s *Scheduler) release(sysID SystemID, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.systems.node(sysID)
	for _, bit := range node.writeBits {
		s.locks[bit] = lockCell{}
	}
	for _, bit := range node.readBits {
		cell := s.locks[bit]
		cell.readers--
		if cell.readers <= 0 {
			cell = lockCell{}
		}
		s.locks[bit] = cell
	}

	s.runningCount--
	s.finished[sysID] = true
	if runErr != nil && s.firstErr == nil {
		s.firstErr = runErr
	}

	if s.actionComplete(node.actionID) {
		s.completedActions[node.actionID] = true
	}

	s.cond.Broadcast()
}

// actionComplete reports whether every System belonging to actionID has
// finished running this tick. Caller holds s.mu.
func (s *Scheduler) actionComplete(actionID ActionID) bool {
	for _, sysID := range s.systemsForAction(actionID) {
		if !s.finished[sysID] {
			return false
		}
	}
	return true
}

func (s *Scheduler) systemsForAction(actionID ActionID) []SystemID {
	var out []SystemID
	for _, sysID := range s.systems.All() {
		if s.systems.node(sysID).actionID == actionID {
			out = append(out, sysID)
		}
	}
	return out
}

// invoke runs a single System, timing it for the systemDuration metric and
// wrapping any error with the System's name for diagnosability.
func (s *Scheduler) invoke(node *systemNode, sto Storage) error {
	start := time.Now()
	var filter QueryNode
	if len(node.filter) > 0 {
		filter = newLeafNode(node.filter)
	}
	err := node.fn(SystemContext{Storage: sto, Query: newQuery(), Filter: filter})
	if s.metrics != nil {
		s.metrics.systemDuration.WithLabelValues(node.name).Observe(time.Since(start).Seconds())
		if err == nil {
			s.metrics.systemsAdmitted.Inc()
		}
	}
	if err != nil {
		return fmt.Errorf("system %q: %w", node.name, err)
	}
	return nil
}
