package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// Logger defines the logging interface used by the Registry and entities.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Cause says why an entity changed.
type Cause string

// Cause values.
const (
	CauseSnapshot   Cause = "snapshot"
	CauseEvent      Cause = "event"
	CauseDisconnect Cause = "disconnect"
)

// ChangeListener is told about every observable change of every entity,
// after the entity's own observer. Sinks such as history and telemetry
// register one. It runs on the delivery goroutine and must not block.
type ChangeListener func(e Entity, cause Cause)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Classes maps models to classes. nil uses NewClassTable(false).
	Classes *ClassTable

	// Sink receives entity writes, typically a command.Buffer.
	Sink CommandSink

	Logger  Logger
	Metrics *metrics.Collectors
}

// slot holds the entity for a uuid. entity stays nil while the device's
// model matches no class.
type slot struct {
	entity Entity
}

// Registry mirrors the controller's actionable devices.
//
// It is filled from device-list snapshots and kept current by device
// events. Entities are created once per uuid and only updated in place
// afterwards, so callers may hold references across snapshots.
//
// All public methods are thread-safe. Observers and listeners are
// always called without the registry lock held.
type Registry struct {
	classes *ClassTable
	sink    CommandSink
	logger  Logger
	metrics *metrics.Collectors

	mu        sync.RWMutex
	slots     map[string]*slot
	byClass   map[Class][]Entity
	observers map[Class][]func([]Entity)
	listeners []ChangeListener
	seeded    bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Classes == nil {
		opts.Classes = NewClassTable(false)
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Registry{
		classes:   opts.Classes,
		sink:      opts.Sink,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		slots:     make(map[string]*slot),
		byClass:   make(map[Class][]Entity),
		observers: make(map[Class][]func([]Entity)),
	}
}

// Classes returns the class table the registry binds with.
func (r *Registry) Classes() *ClassTable {
	return r.classes
}

// change records one entity that changed during a mutation, so that
// notification can happen after the lock is released.
type change struct {
	entity Entity
	cause  Cause
}

// Bootstrap applies a full device-list snapshot.
//
// Non-actionable devices are skipped. Classes are processed in binding
// order; a device already bound is refreshed in place, a new one is
// constructed and appended to its class list. Observers of a class fire
// once with the class's current list after the class is processed.
func (r *Registry) Bootstrap(devices []protocol.Device) {
	actionable := make([]protocol.Device, 0, len(devices))
	for _, d := range devices {
		if d.UUID == "" || !d.IsActionable() {
			continue
		}
		actionable = append(actionable, d)
	}

	r.mu.Lock()
	for _, d := range actionable {
		if _, ok := r.slots[d.UUID]; !ok {
			r.slots[d.UUID] = &slot{}
		}
	}

	bound := make(map[string]bool, len(actionable))
	type classResult struct {
		class     Class
		list      []Entity
		observers []func([]Entity)
		changes   []change
	}
	results := make([]classResult, 0, len(r.classes.specs))

	for _, spec := range r.classes.specs {
		res := classResult{class: spec.class}
		for _, d := range actionable {
			if bound[d.UUID] {
				continue
			}
			if _, ok := spec.models[d.Model]; !ok {
				continue
			}
			bound[d.UUID] = true

			s := r.slots[d.UUID]
			if s.entity != nil {
				if s.entity.apply(d) {
					res.changes = append(res.changes, change{s.entity, CauseSnapshot})
				}
				continue
			}

			e := spec.build(newEntityBase(spec.class, d, r.sink, r.logger))
			e.apply(d)
			s.entity = e
			r.byClass[spec.class] = append(r.byClass[spec.class], e)
		}
		res.list = append([]Entity(nil), r.byClass[spec.class]...)
		res.observers = append(([]func([]Entity))(nil), r.observers[spec.class]...)
		results = append(results, res)
	}

	// Devices already bound whose model no longer matches their class,
	// or now matches no class, still get the update.
	var unbound []change
	for _, d := range actionable {
		if bound[d.UUID] {
			continue
		}
		s := r.slots[d.UUID]
		if s.entity == nil {
			r.logger.Debug("device model not bound to any class",
				"uuid", d.UUID,
				"model", d.Model,
			)
			continue
		}
		if s.entity.apply(d) {
			unbound = append(unbound, change{s.entity, CauseSnapshot})
		}
	}
	r.seeded = true
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.Unlock()

	for _, res := range results {
		r.metrics.SetDevices(string(res.class), len(res.list))
		r.dispatch(res.changes, listeners)
		for _, fn := range res.observers {
			r.callObserver(res.class, fn, res.list)
		}
	}
	r.dispatch(unbound, listeners)

	r.logger.Info("device snapshot applied",
		"received", len(devices),
		"actionable", len(actionable),
		"entities", r.Count(),
	)
}

// Update applies a status or changed delta to the entity with the
// delta's uuid. Unknown uuids are ignored. It reports whether the
// entity changed.
func (r *Registry) Update(d protocol.Device) bool {
	r.mu.RLock()
	s, ok := r.slots[d.UUID]
	var e Entity
	if ok {
		e = s.entity
	}
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()

	if e == nil {
		return false
	}
	if !e.apply(d) {
		return false
	}
	r.dispatch([]change{{e, CauseEvent}}, listeners)
	return true
}

// MarkAllOffline sets every entity offline and fires each entity's
// observer exactly once, whether or not it was already offline.
func (r *Registry) MarkAllOffline() {
	all := r.All()

	r.mu.RLock()
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()

	changes := make([]change, 0, len(all))
	for _, e := range all {
		b := e.base()
		b.mu.Lock()
		b.online = false
		b.mu.Unlock()
		changes = append(changes, change{e, CauseDisconnect})
	}
	r.dispatch(changes, listeners)
}

// Get returns the entity for uuid.
func (r *Registry) Get(uuid string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[uuid]
	if !ok || s.entity == nil {
		return nil, false
	}
	return s.entity, true
}

// Devices returns the entities of class c in the order they were created.
func (r *Registry) Devices(c Class) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entity(nil), r.byClass[c]...)
}

// All returns every entity, grouped by class in binding order.
func (r *Registry) All() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entity
	for _, c := range AllClasses() {
		out = append(out, r.byClass[c]...)
	}
	return out
}

// Find returns the entities whose name contains substr, ignoring case.
func (r *Registry) Find(substr string) []Entity {
	needle := strings.ToLower(substr)
	var out []Entity
	for _, e := range r.All() {
		if strings.Contains(strings.ToLower(e.Name()), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.byClass {
		n += len(list)
	}
	return n
}

// OnDevices registers fn to receive the entity list of class c after every
// snapshot. If a snapshot was already applied, fn fires immediately with
// the current list.
func (r *Registry) OnDevices(c Class, fn func([]Entity)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.observers[c] = append(r.observers[c], fn)
	seeded := r.seeded
	list := append([]Entity(nil), r.byClass[c]...)
	r.mu.Unlock()

	if seeded {
		r.callObserver(c, fn, list)
	}
}

// AddListener registers a change listener for all entities.
func (r *Registry) AddListener(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// RequestStateChange forwards value to the entity for uuid.
func (r *Registry) RequestStateChange(ctx context.Context, uuid, value string) error {
	e, ok := r.Get(uuid)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, uuid)
	}
	return e.RequestStateChange(ctx, value)
}

// dispatch notifies entity observers, then listeners, for each change.
func (r *Registry) dispatch(changes []change, listeners []ChangeListener) {
	for _, c := range changes {
		r.metrics.StateChanged(string(c.entity.Class()))
		c.entity.base().notify()
		for _, fn := range listeners {
			r.callListener(fn, c)
		}
	}
}

func (r *Registry) callObserver(c Class, fn func([]Entity), list []Entity) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("devices observer panic recovered",
				"class", string(c),
				"panic", p,
			)
		}
	}()
	fn(list)
}

func (r *Registry) callListener(fn ChangeListener, c change) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("change listener panic recovered",
				"uuid", c.entity.UUID(),
				"cause", string(c.cause),
				"panic", p,
			)
		}
	}()
	fn(c.entity, c.cause)
}
