package device

import (
	"context"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// Shutter is a roll-down shutter, sunblind, gate or venetian blind.
type Shutter struct {
	*entityBase
	position string
}

func (s *Shutter) apply(d protocol.Device) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.applyBase(d)
	return setProperty(&s.position, d, protocol.KeyPosition) || changed
}

// Position returns the last known position, 0 (closed) to 100 (open).
func (s *Shutter) Position() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, _ := strconv.Atoi(s.position)
	return n
}

// State returns {"name", "online", "position"}.
func (s *Shutter) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.baseState()
	if n, err := strconv.Atoi(s.position); err == nil {
		st["position"] = n
	}
	return st
}

func (s *Shutter) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.describe("position " + orUnknown(s.position))
}

// RequestStateChange accepts "open", "stop", "close", or a target position
// 0-100 written exactly as an integer ("45", not "45.0" or "045").
func (s *Shutter) RequestStateChange(ctx context.Context, value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "open":
		return s.Open(ctx)
	case "stop":
		return s.Stop(ctx)
	case "close":
		return s.Close(ctx)
	}

	position, err := parsePercent(value)
	if err != nil {
		return invalidState(s.class, value, "want open, stop, close or a position 0-100")
	}
	return s.submit(ctx, protocol.KeyPosition, strconv.Itoa(position))
}

// Open queues Action=Open.
func (s *Shutter) Open(ctx context.Context) error {
	return s.submit(ctx, protocol.KeyAction, protocol.ValueOpen)
}

// Stop queues Action=Stop.
func (s *Shutter) Stop(ctx context.Context) error {
	return s.submit(ctx, protocol.KeyAction, protocol.ValueStop)
}

// Close queues Action=Close.
func (s *Shutter) Close(ctx context.Context) error {
	return s.submit(ctx, protocol.KeyAction, protocol.ValueClose)
}
