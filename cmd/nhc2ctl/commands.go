package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-nhc2/internal/controller"
	"github.com/nerrad567/gray-logic-nhc2/internal/device"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/mqtt"
)

// defaultWait bounds how long a command waits for the controller to answer.
const defaultWait = 15 * time.Second

func runProbe(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("probe")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.cfg.ValidateConnection(); err != nil {
		return err
	}

	res := mqtt.Probe(ctx, a.cfg.Controller, a.log)
	fmt.Fprintf(a.stdout, "%s: code %d, %s\n", a.cfg.Controller.Address(), res.Code, res.Reason)
	if !res.OK() {
		return &controller.ConnectionError{
			Reason: controller.ReasonConnectionFailed,
			Code:   res.Code,
			Detail: res.Reason,
			Err:    res.Err,
		}
	}
	return nil
}

func runInfo(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("info")
	wait := fs.Duration("timeout", defaultWait, "how long to wait for the controller")
	if err := parse(fs, args); err != nil {
		return err
	}

	s, err := newSession(a, nil)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.ctrl.Connect(ctx); err != nil {
		return err
	}
	info, err := s.waitSystemInfo(ctx, *wait)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, info, "", "  "); err != nil {
		out.Reset()
		out.Write(info)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(a.stdout)
	return err
}

// listedDevice is the -json form of one entity.
type listedDevice struct {
	UUID  string       `json:"uuid"`
	Class device.Class `json:"class"`
	Name  string       `json:"name"`
	Model string       `json:"model"`
	State device.State `json:"state"`
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("list")
	className := fs.String("class", "", "only list devices of this class")
	name := fs.String("name", "", "only list devices whose name contains this text")
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	wait := fs.Duration("timeout", defaultWait, "how long to wait for the device list")
	if err := parse(fs, args); err != nil {
		return err
	}

	var class device.Class
	if *className != "" {
		c, err := device.ParseClass(*className)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		class = c
	}

	s, err := newSession(a, nil)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.connect(ctx, *wait); err != nil {
		return err
	}

	entities := selectEntities(s.registry, class, *name)
	if *asJSON {
		out := make([]listedDevice, 0, len(entities))
		for _, e := range entities {
			out = append(out, listedDevice{
				UUID: e.UUID(), Class: e.Class(), Name: e.Name(), Model: e.Model(), State: e.State(),
			})
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, e := range entities {
		fmt.Fprintf(a.stdout, "%-12s %s\n", e.Class(), e)
	}
	return nil
}

// selectEntities returns the registry's entities in binding order,
// narrowed by class (empty for all) and a case-insensitive name fragment.
func selectEntities(r *device.Registry, class device.Class, name string) []device.Entity {
	var all []device.Entity
	if class != "" {
		all = r.Devices(class)
	} else {
		all = r.All()
	}
	if name == "" {
		return all
	}

	needle := strings.ToLower(name)
	out := all[:0:0]
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Name()), needle) {
			out = append(out, e)
		}
	}
	return out
}

func runAct(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("act")
	uuid := fs.String("uuid", "", "device uuid (required)")
	state := fs.String("state", "", `requested state, e.g. "on", "45", "21.5"`)
	action := fs.String("action", "", "action verb: on, off, toggle, open, stop, close, trigger")
	wait := fs.Duration("timeout", defaultWait, "how long to wait for the device list")
	echo := fs.Duration("echo", 2*time.Second, "how long to wait for the controller to report the change")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *uuid == "" || (*state == "") == (*action == "") {
		fmt.Fprintln(a.stderr, "act needs -uuid and exactly one of -state or -action")
		fs.Usage()
		return errUsage
	}

	s, err := newSession(a, nil)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.connect(ctx, *wait); err != nil {
		return err
	}

	e, ok := s.registry.Get(*uuid)
	if !ok {
		return fmt.Errorf("%w: %s", device.ErrDeviceNotFound, *uuid)
	}

	changed := make(chan struct{}, 1)
	e.SetOnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer e.SetOnChange(nil)

	if *state != "" {
		err = e.RequestStateChange(ctx, *state)
	} else {
		err = device.Perform(ctx, e, *action)
	}
	if err != nil {
		return err
	}
	if err := s.buffer.Flush(); err != nil {
		return err
	}

	select {
	case <-changed:
	case <-time.After(*echo):
		a.log.Debug("no state change reported", "uuid", *uuid)
	case <-ctx.Done():
	}
	fmt.Fprintln(a.stdout, e)
	return nil
}
