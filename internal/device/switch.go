package device

import (
	"context"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// onOffEntity is the shared body of classes driven by a single Status key.
type onOffEntity struct {
	*entityBase
	status string
}

func (e *onOffEntity) apply(d protocol.Device) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := e.applyBase(d)
	return setProperty(&e.status, d, protocol.KeyStatus) || changed
}

// IsOn reports whether the last known Status is On.
func (e *onOffEntity) IsOn() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status == protocol.ValueOn
}

// State returns {"name", "online", "on"}.
func (e *onOffEntity) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.baseState()
	s["on"] = e.status == protocol.ValueOn
	return s
}

func (e *onOffEntity) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.describe(strings.ToLower(orUnknown(e.status)))
}

// RequestStateChange accepts "on", "off" or "toggle" in any case.
// Toggle resolves against the state cached at call time.
func (e *onOffEntity) RequestStateChange(ctx context.Context, value string) error {
	target, err := resolveOnOff(e.class, value, e.IsOn())
	if err != nil {
		return err
	}
	return e.submit(ctx, protocol.KeyStatus, target)
}

// TurnOn queues Status=On.
func (e *onOffEntity) TurnOn(ctx context.Context) error {
	return e.submit(ctx, protocol.KeyStatus, protocol.ValueOn)
}

// TurnOff queues Status=Off.
func (e *onOffEntity) TurnOff(ctx context.Context) error {
	return e.submit(ctx, protocol.KeyStatus, protocol.ValueOff)
}

// Switch is a switched socket or switched-generic output.
type Switch struct {
	onOffEntity
}

// SwitchedFan is a fan with only on and off.
type SwitchedFan struct {
	onOffEntity
}

// Light is a switched light or a dimmer.
type Light struct {
	*entityBase
	status     string
	brightness string
}

func (l *Light) apply(d protocol.Device) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := l.applyBase(d)
	changed = setProperty(&l.status, d, protocol.KeyStatus) || changed
	return setProperty(&l.brightness, d, protocol.KeyBrightness) || changed
}

// IsOn reports whether the last known Status is On.
func (l *Light) IsOn() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status == protocol.ValueOn
}

// Brightness returns the last known brightness (0-100), or 0 when the
// light is not dimmable or has not reported one.
func (l *Light) Brightness() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, _ := strconv.Atoi(l.brightness)
	return n
}

// State returns {"name", "online", "on", "brightness"}.
func (l *Light) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.baseState()
	s["on"] = l.status == protocol.ValueOn
	if n, err := strconv.Atoi(l.brightness); err == nil {
		s["brightness"] = n
	}
	return s
}

func (l *Light) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	detail := strings.ToLower(orUnknown(l.status))
	if l.brightness != "" {
		detail += " " + l.brightness + "%"
	}
	return l.describe(detail)
}

// RequestStateChange accepts "on", "off", "toggle", or a brightness from
// 0 to 100. Zero switches the light off; any other level also switches it on.
func (l *Light) RequestStateChange(ctx context.Context, value string) error {
	if target, err := resolveOnOff(l.class, value, l.IsOn()); err == nil {
		return l.submit(ctx, protocol.KeyStatus, target)
	}

	level, err := parsePercent(value)
	if err != nil {
		return invalidState(l.class, value, "want on, off, toggle or a brightness 0-100")
	}
	return l.SetBrightness(ctx, level)
}

// SetBrightness queues a brightness level.
func (l *Light) SetBrightness(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return invalidState(l.class, strconv.Itoa(level), "brightness out of range")
	}
	if level == 0 {
		return l.submit(ctx, protocol.KeyStatus, protocol.ValueOff)
	}
	return l.submitAll(ctx, map[string]string{
		protocol.KeyStatus:     protocol.ValueOn,
		protocol.KeyBrightness: strconv.Itoa(level),
	})
}

// resolveOnOff maps "on", "off" and "toggle" to a Status value.
func resolveOnOff(class Class, value string, isOn bool) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on":
		return protocol.ValueOn, nil
	case "off":
		return protocol.ValueOff, nil
	case "toggle":
		if isOn {
			return protocol.ValueOff, nil
		}
		return protocol.ValueOn, nil
	default:
		return "", invalidState(class, value, "want on, off or toggle")
	}
}

// parsePercent parses an integer 0-100 that must print back exactly as
// given, so "045", "+45" and "45.0" are rejected.
func parsePercent(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if strconv.Itoa(n) != value {
		return 0, strconv.ErrSyntax
	}
	if n < 0 || n > 100 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
