package device

import (
	"context"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// Thermostat is a room thermostat with a weekly program and overrule.
type Thermostat struct {
	*entityBase
	ambient        string
	setpoint       string
	program        string
	overruleActive string
	overruleTarget string
	overruleTime   string
	ecoSave        string
}

func (t *Thermostat) apply(d protocol.Device) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := t.applyBase(d)
	changed = setProperty(&t.ambient, d, protocol.KeyAmbientTemperature) || changed
	changed = setProperty(&t.setpoint, d, protocol.KeySetpointTemperature) || changed
	changed = setProperty(&t.program, d, protocol.KeyProgram) || changed
	changed = setProperty(&t.overruleActive, d, protocol.KeyOverruleActive) || changed
	changed = setProperty(&t.overruleTarget, d, protocol.KeyOverruleSetpoint) || changed
	changed = setProperty(&t.overruleTime, d, protocol.KeyOverruleTime) || changed
	return setProperty(&t.ecoSave, d, protocol.KeyEcoSave) || changed
}

// AmbientTemperature returns the measured room temperature in °C.
func (t *Thermostat) AmbientTemperature() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return parseFloat(t.ambient)
}

// SetpointTemperature returns the active target temperature in °C.
func (t *Thermostat) SetpointTemperature() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return parseFloat(t.setpoint)
}

// Program returns the name of the active program.
func (t *Thermostat) Program() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.program
}

// Overruled reports whether a manual setpoint is overriding the program.
func (t *Thermostat) Overruled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return strings.EqualFold(t.overruleActive, protocol.ValueTrue)
}

// EcoSave reports whether eco mode is on.
func (t *Thermostat) EcoSave() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return strings.EqualFold(t.ecoSave, protocol.ValueTrue)
}

// State returns {"name", "online", "ambient", "setpoint", "program",
// "overrule", "eco"}. Temperatures are omitted until reported.
func (t *Thermostat) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.baseState()
	if v, ok := parseFloat(t.ambient); ok {
		s["ambient"] = v
	}
	if v, ok := parseFloat(t.setpoint); ok {
		s["setpoint"] = v
	}
	s["program"] = t.program
	s["overrule"] = strings.EqualFold(t.overruleActive, protocol.ValueTrue)
	s["eco"] = strings.EqualFold(t.ecoSave, protocol.ValueTrue)
	return s
}

func (t *Thermostat) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.describe("ambient " + orUnknown(t.ambient) + " setpoint " + orUnknown(t.setpoint))
}

// RequestStateChange accepts a setpoint in °C ("21.5"), "cancel" to end an
// overrule, or "eco"/"noeco".
func (t *Thermostat) RequestStateChange(ctx context.Context, value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cancel":
		return t.submit(ctx, protocol.KeyOverruleActive, protocol.ValueFalse)
	case "eco":
		return t.submit(ctx, protocol.KeyEcoSave, protocol.ValueTrue)
	case "noeco":
		return t.submit(ctx, protocol.KeyEcoSave, protocol.ValueFalse)
	}

	setpoint, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return invalidState(t.class, value, "want a temperature, cancel, eco or noeco")
	}
	return t.Overrule(ctx, setpoint, 0)
}

// Overrule queues a manual setpoint. A positive minutes value bounds the
// overrule; zero leaves the duration to the controller.
func (t *Thermostat) Overrule(ctx context.Context, setpoint float64, minutes int) error {
	if setpoint < 0 || setpoint > 40 {
		return invalidState(t.class, strconv.FormatFloat(setpoint, 'f', -1, 64), "setpoint out of range 0-40")
	}
	if minutes < 0 {
		return invalidState(t.class, strconv.Itoa(minutes), "negative overrule duration")
	}
	props := map[string]string{
		protocol.KeyOverruleActive:   protocol.ValueTrue,
		protocol.KeyOverruleSetpoint: strconv.FormatFloat(setpoint, 'f', -1, 64),
	}
	if minutes > 0 {
		props[protocol.KeyOverruleTime] = strconv.Itoa(minutes)
	}
	return t.submitAll(ctx, props)
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
