package silo

import (
	"context"
	"fmt"
	"sync"

	"github.com/TheBitDrifter/table"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime owns one storage, its action graph, system registry, scheduler,
// singleton registry and Prometheus metrics, and drives them one tick at a
// time. Unlike the package-level Factory (which builds storage/query/cursor
// values with no opinion on how they're driven), a Runtime is the object
// that actually runs a simulation loop.
type Runtime struct {
	id  RuntimeID
	cfg RuntimeConfig

	schema  table.Schema
	storage Storage

	actions   *actionGraph
	systems   *systemRegistry
	scheduler *Scheduler
	metrics   *metrics

	mu        sync.Mutex
	tickCount uint64
	frozen    bool
}

// NewRuntime constructs a Runtime with its own storage, schema, action
// graph and system registry. Pass DefaultRuntimeConfig() to accept every
// default.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	cfg = cfg.withDefaults()
	configureLogging(cfg)

	schema := table.Factory.NewSchema()
	storage := Factory.NewStorage(schema)
	m := newMetrics(cfg.MetricsEnabled)

	rt := &Runtime{
		id:      newRuntimeID(),
		cfg:     cfg,
		schema:  schema,
		storage: storage,
		actions: newActionGraph(),
		systems: newSystemRegistry(),
		metrics: m,
	}
	rt.scheduler = newScheduler(rt.actions, rt.systems, cfg.Workers, m)

	log.WithFields(map[string]any{
		"runtime": rt.id.String(),
		"workers": cfg.Workers,
	}).Info("runtime constructed")

	return rt, nil
}

// ID identifies this Runtime across logs and metrics.
func (rt *Runtime) ID() RuntimeID {
	return rt.id
}

// Storage exposes the Runtime's entity storage directly, for callers that
// need to create or query entities outside of a System (e.g. world setup
// before the first Tick).
func (rt *Runtime) Storage() Storage {
	return rt.storage
}

// RegisterAction interns a named action and its prerequisite action names.
// Must be called before the first Tick; the action graph is frozen on
// first use and rejects further registration afterward.
func (rt *Runtime) RegisterAction(name string, prerequisites ...string) (ActionID, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.frozen {
		return 0, ConfigurationError{Reason: "cannot register an action after the runtime's first tick"}
	}
	if _, ok := rt.actions.Lookup(name); !ok && len(rt.actions.nodes) >= rt.cfg.MaxActions {
		return 0, ConfigurationError{Reason: fmt.Sprintf("action limit of %d reached", rt.cfg.MaxActions)}
	}
	return rt.actions.Register(name, prerequisites...)
}

// RegisterSystem interns a named System belonging to the named action,
// with the given component access signature, filter and invocation body.
// filter is the set of component types an entity must possess for the
// System to see it via ctx.Filter, independent of whatever ad hoc Query the
// System body builds from ctx.Query; pass nil for a System with no declared
// filter. The action must already be registered through RegisterAction;
// a name that only appears as another action's prerequisite is not found.
func (rt *Runtime) RegisterSystem(name string, access AccessSignature, actionName string, filter []Component, fn SystemFunc) (SystemID, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.frozen {
		return 0, ConfigurationError{Reason: "cannot register a system after the runtime's first tick"}
	}
	actionID, ok := rt.actions.Lookup(actionName)
	if !ok {
		return 0, NotFound{Kind: "action", Name: actionName}
	}
	if _, ok := rt.systems.Lookup(name); !ok && len(rt.systems.nodes) >= rt.cfg.MaxSystems {
		return 0, ConfigurationError{Reason: fmt.Sprintf("system limit of %d reached", rt.cfg.MaxSystems)}
	}
	return rt.systems.Register(name, access, actionID, filter, fn)
}

// DeclareSingleton marks c as a singleton component: a creation that would
// leave a second live entity holding it is rolled back whole, its id
// returned to the free list.
func (rt *Runtime) DeclareSingleton(c Component) {
	rt.storage.DeclareSingleton(c)
}

// Singleton returns the entity currently holding singleton component c, and
// true, or the zero Entity and false if c was never declared singleton or
// no live entity presently holds it.
func (rt *Runtime) Singleton(c Component) (Entity, bool) {
	holder, ok := rt.storage.SingletonHolder(c)
	if !ok {
		return nil, false
	}
	en, err := rt.storage.Entity(int(holder))
	if err != nil || !en.Valid() {
		return nil, false
	}
	return en, true
}

// Tick runs every registered System exactly once and flushes the deferred
// mutation queue. The action graph and system lock signatures are frozen
// on the first call; registering further actions or systems after that
// returns ConfigurationError.
func (rt *Runtime) Tick(ctx context.Context) (TickReport, error) {
	rt.mu.Lock()
	if !rt.frozen {
		if err := rt.actions.Freeze(); err != nil {
			rt.mu.Unlock()
			return TickReport{}, err
		}
		rt.systems.resolveLocks(rt.storage)
		rt.frozen = true
	}
	rt.mu.Unlock()

	lockBit := rt.storage.AcquireLock()
	report, runErr := rt.scheduler.Run(ctx, rt.storage)
	// ReleaseLock drops storage's structural lock and, since AcquireLock is
	// the only bit held here, immediately flushes every operation queued by
	// this tick's Systems through entityOperationsQueue.ProcessAll.
	rt.storage.ReleaseLock(lockBit)

	rt.mu.Lock()
	rt.tickCount++
	rt.mu.Unlock()

	if runErr != nil {
		log.WithFields(map[string]any{
			"runtime": rt.id.String(),
			"tick":    report.TickID.String(),
		}).WithError(runErr).Error("tick failed")
		return report, fmt.Errorf("tick %s: %w", report.TickID, runErr)
	}
	return report, nil
}

// TickCount returns the number of Tick calls completed so far.
func (rt *Runtime) TickCount() uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.tickCount
}

// MetricsRegistry exposes the Runtime's Prometheus registry so callers can
// wire it into an HTTP handler (e.g. promhttp.HandlerFor).
func (rt *Runtime) MetricsRegistry() *prometheus.Registry {
	return rt.metrics.registry
}
