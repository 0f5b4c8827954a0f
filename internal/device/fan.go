package device

import (
	"context"
	"strings"

	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// Fan is a ventilation unit with discrete speed levels.
type Fan struct {
	*entityBase
	speed string
}

func (f *Fan) apply(d protocol.Device) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := f.applyBase(d)
	return setProperty(&f.speed, d, protocol.KeyFanSpeed) || changed
}

// Speed returns the last known level: Low, Medium, High or Boost.
func (f *Fan) Speed() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.speed
}

// State returns {"name", "online", "speed"}.
func (f *Fan) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := f.baseState()
	s["speed"] = f.speed
	return s
}

func (f *Fan) String() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.describe("speed " + orUnknown(f.speed))
}

// RequestStateChange accepts a speed level name in any case.
func (f *Fan) RequestStateChange(ctx context.Context, value string) error {
	want := strings.TrimSpace(value)
	for _, speed := range protocol.FanSpeeds {
		if strings.EqualFold(want, speed) {
			return f.submit(ctx, protocol.KeyFanSpeed, speed)
		}
	}
	return invalidState(f.class, value, "want one of "+strings.Join(protocol.FanSpeeds, ", "))
}
