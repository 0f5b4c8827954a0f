package device

import (
	"context"
	"strings"

	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// Generic is a free-form action such as a mood or an all-off scene.
type Generic struct {
	*entityBase
	basicState string
}

func (g *Generic) apply(d protocol.Device) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	changed := g.applyBase(d)
	return setProperty(&g.basicState, d, protocol.KeyBasicState) || changed
}

// BasicState returns the controller's last reported state, such as
// "On", "Off" or "Intermediate".
func (g *Generic) BasicState() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.basicState
}

// State returns {"name", "online", "basic_state"}.
func (g *Generic) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := g.baseState()
	s["basic_state"] = g.basicState
	return s
}

func (g *Generic) String() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.describe(strings.ToLower(orUnknown(g.basicState)))
}

// RequestStateChange accepts "trigger" or "on", which fire the action
// once. A generic action cannot be switched off, so "off" is rejected.
func (g *Generic) RequestStateChange(ctx context.Context, value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trigger", "on":
		return g.Trigger(ctx)
	default:
		return invalidState(g.class, value, "want trigger or on")
	}
}

// Trigger queues BasicState=Triggered.
func (g *Generic) Trigger(ctx context.Context) error {
	return g.submit(ctx, protocol.KeyBasicState, protocol.ValueTriggered)
}
