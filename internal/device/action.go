package device

import (
	"context"
	"fmt"
	"strings"
)

// Perform runs a discrete action verb on e. Verbs are "on", "off",
// "toggle", "open", "stop", "close" and "trigger"; a verb the class does
// not support returns ErrUnsupportedAction.
func Perform(ctx context.Context, e Entity, verb string) error {
	v := strings.ToLower(strings.TrimSpace(verb))

	switch x := e.(type) {
	case *Switch, *SwitchedFan, *Light:
		switch v {
		case "on", "off", "toggle":
			return e.RequestStateChange(ctx, v)
		}
	case *Shutter:
		switch v {
		case "open":
			return x.Open(ctx)
		case "stop":
			return x.Stop(ctx)
		case "close":
			return x.Close(ctx)
		}
	case *Generic:
		if v == "trigger" {
			return x.Trigger(ctx)
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrUnsupportedAction, verb, e.Class())
}
