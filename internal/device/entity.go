package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// State is a point-in-time snapshot of an entity's observable fields.
//
// Examples by class:
//   - Light: {"online": true, "on": true, "brightness": 40}
//   - Shutter: {"online": true, "position": 100}
//   - Thermostat: {"online": true, "ambient": 20.5, "setpoint": 21, "program": "Day"}
type State map[string]any

// CommandSink accepts property writes for the controller.
// This is typically implemented by command.Buffer.
//
// SubmitAll queues a group of writes for one device all or nothing, so a
// command spanning several properties is never left half queued.
type CommandSink interface {
	Submit(ctx context.Context, uuid, key, value string) error
	SubmitAll(ctx context.Context, uuid string, props map[string]string) error
}

// Entity is the in-memory mirror of one controller device.
//
// The set of implementations is closed: *Switch, *Light, *Shutter, *Fan,
// *SwitchedFan, *Thermostat and *Generic. Use a type switch to reach the
// class-specific accessors.
//
// An entity is created once per uuid and then only updated in place, so
// references held by callers stay valid across snapshots and reconnects.
type Entity interface {
	UUID() string
	Class() Class
	Name() string
	Model() string
	Technology() string
	Type() string
	Online() bool

	// State returns a snapshot of the observable fields.
	State() State

	// SetOnChange registers the single change observer, replacing any
	// previous one. nil clears it. The observer receives no payload and
	// should read what it needs through the accessors. It may run on the
	// bus delivery goroutine and must not block.
	SetOnChange(fn func())

	// RequestStateChange translates a user-level state such as "on" or "45"
	// into property writes and hands them to the command sink. Malformed
	// input returns an error wrapping ErrInvalidState and queues nothing.
	RequestStateChange(ctx context.Context, value string) error

	String() string

	// apply merges a snapshot or delta and reports whether any observable
	// field changed value.
	apply(d protocol.Device) bool
	base() *entityBase
}

// entityBase holds the fields every class shares.
type entityBase struct {
	uuid   string
	class  Class
	sink   CommandSink
	logger Logger

	mu         sync.RWMutex
	name       string
	model      string
	technology string
	typ        string
	online     bool

	cbMu     sync.RWMutex
	onChange func()
}

func newEntityBase(class Class, d protocol.Device, sink CommandSink, logger Logger) *entityBase {
	if logger == nil {
		logger = noopLogger{}
	}
	return &entityBase{
		uuid:   d.UUID,
		class:  class,
		sink:   sink,
		logger: logger,
	}
}

func (b *entityBase) base() *entityBase { return b }

// UUID returns the controller's identifier for the device.
func (b *entityBase) UUID() string { return b.uuid }

// Class returns the class the entity was bound to.
func (b *entityBase) Class() Class { return b.class }

// Name returns the user-visible device name.
func (b *entityBase) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// Model returns the hardware model identifier.
func (b *entityBase) Model() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// Technology returns the bus technology reported by the controller.
func (b *entityBase) Technology() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.technology
}

// Type returns the controller device type ("action" or "thermostat").
func (b *entityBase) Type() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.typ
}

// Online reports the last known reachability of the device.
func (b *entityBase) Online() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.online
}

// SetOnChange registers the change observer.
func (b *entityBase) SetOnChange(fn func()) {
	b.cbMu.Lock()
	b.onChange = fn
	b.cbMu.Unlock()
}

// applyBase merges the shared fields. Caller holds b.mu.
func (b *entityBase) applyBase(d protocol.Device) bool {
	changed := setString(&b.name, d.Name)
	changed = setString(&b.model, d.Model) || changed
	changed = setString(&b.technology, d.Technology) || changed
	changed = setString(&b.typ, d.Type) || changed
	if online, present := d.OnlineState(); present && online != b.online {
		b.online = online
		changed = true
	}
	return changed
}

// baseState fills the shared fields of a State. Caller holds b.mu.
func (b *entityBase) baseState() State {
	return State{
		"name":   b.name,
		"online": b.online,
	}
}

// describe renders the shared part of String. Caller holds b.mu.
func (b *entityBase) describe(detail string) string {
	online := "online"
	if !b.online {
		online = "offline"
	}
	return fmt.Sprintf("%s (%s) %s %s %s", b.name, b.uuid, b.model, online, detail)
}

// notify invokes the change observer, containing any panic it raises.
func (b *entityBase) notify() {
	b.cbMu.RLock()
	fn := b.onChange
	b.cbMu.RUnlock()
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("change observer panic recovered",
				"uuid", b.uuid,
				"class", string(b.class),
				"panic", r,
			)
		}
	}()
	fn()
}

// submit hands one write to the command sink.
func (b *entityBase) submit(ctx context.Context, key, value string) error {
	if b.sink == nil {
		return ErrNoCommandSink
	}
	if err := b.sink.Submit(ctx, b.uuid, key, value); err != nil {
		return fmt.Errorf("queueing %s=%s for %s: %w", key, value, b.uuid, err)
	}
	return nil
}

// submitAll hands a group of writes to the command sink as one unit.
func (b *entityBase) submitAll(ctx context.Context, props map[string]string) error {
	if b.sink == nil {
		return ErrNoCommandSink
	}
	if err := b.sink.SubmitAll(ctx, b.uuid, props); err != nil {
		return fmt.Errorf("queueing %d writes for %s: %w", len(props), b.uuid, err)
	}
	return nil
}

// setString overwrites dst with v when v is present and different.
func setString(dst *string, v string) bool {
	if v == "" || *dst == v {
		return false
	}
	*dst = v
	return true
}

// setProperty overwrites dst with property key of d when present and different.
func setProperty(dst *string, d protocol.Device, key string) bool {
	v, ok := d.Property(key)
	if !ok || *dst == v {
		return false
	}
	*dst = v
	return true
}

func invalidState(class Class, value, reason string) error {
	return fmt.Errorf("%w: %s cannot take %q: %s", ErrInvalidState, class, value, reason)
}
