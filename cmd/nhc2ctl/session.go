package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-nhc2/internal/command"
	"github.com/nerrad567/gray-logic-nhc2/internal/controller"
	"github.com/nerrad567/gray-logic-nhc2/internal/device"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// session is one wired controller connection.
type session struct {
	bus      *mqtt.Client
	buffer   *command.Buffer
	registry *device.Registry
	ctrl     *controller.Controller

	errs     chan error
	snapshot chan struct{}
	info     chan json.RawMessage
}

// newSession wires bus, command buffer, registry and controller from the
// configuration. It does not connect.
func newSession(a *app, m *metrics.Collectors) (*session, error) {
	if err := a.cfg.ValidateConnection(); err != nil {
		return nil, err
	}
	cc := a.cfg.Controller

	bus, err := mqtt.New(cc, a.log)
	if err != nil {
		return nil, fmt.Errorf("creating bus client: %w", err)
	}

	topics := protocol.NewTopics(cc.Username)
	buffer, err := command.NewBuffer(command.Options{
		Publisher:     bus,
		Topic:         topics.DevicesCommand(),
		QoS:           byte(cc.QoS),
		MaxDevices:    a.cfg.CommandBuffer.MaxDevices,
		MaxWrites:     a.cfg.CommandBuffer.MaxWrites,
		FlushInterval: a.cfg.CommandBuffer.FlushInterval,
		Logger:        a.log,
		Metrics:       m,
	})
	if err != nil {
		return nil, fmt.Errorf("creating command buffer: %w", err)
	}

	registry := device.NewRegistry(device.RegistryOptions{
		Classes: device.NewClassTable(a.cfg.Devices.SwitchesAsLights),
		Sink:    buffer,
		Logger:  a.log,
		Metrics: m,
	})

	ctrl, err := controller.New(controller.Options{
		Bus:      bus,
		Buffer:   buffer,
		Registry: registry,
		Profile:  cc.Username,
		QoS:      byte(cc.QoS),
		Logger:   a.log,
		Metrics:  m,
	})
	if err != nil {
		return nil, fmt.Errorf("creating controller: %w", err)
	}

	s := &session{
		bus:      bus,
		buffer:   buffer,
		registry: registry,
		ctrl:     ctrl,
		errs:     make(chan error, 1),
		snapshot: make(chan struct{}),
		info:     make(chan json.RawMessage, 1),
	}

	ctrl.OnError(func(err error) {
		select {
		case s.errs <- err:
		default:
		}
	})

	// Generic is bound last, so its observer marks a complete snapshot.
	var once sync.Once
	ctrl.OnDevices(device.ClassGeneric, func([]device.Entity) {
		once.Do(func() { close(s.snapshot) })
	})
	ctrl.OnSystemInfo(func(info json.RawMessage) {
		select {
		case s.info <- info:
		default:
		}
	})
	return s, nil
}

// connect opens the session and waits for the first device snapshot.
func (s *session) connect(ctx context.Context, timeout time.Duration) error {
	if err := s.ctrl.Connect(ctx); err != nil {
		return err
	}
	return s.waitFor(ctx, timeout, s.snapshot)
}

// waitSystemInfo waits for the controller's system info.
func (s *session) waitSystemInfo(ctx context.Context, timeout time.Duration) (json.RawMessage, error) {
	if info, ok := s.ctrl.SystemInfo(); ok {
		return info, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case info := <-s.info:
		return info, nil
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for system info: %w", ctx.Err())
	}
}

func (s *session) waitFor(ctx context.Context, timeout time.Duration, ready <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-ready:
		return nil
	case err := <-s.errs:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for device list: %w", ctx.Err())
	}
}

// close flushes queued commands and disconnects.
func (s *session) close() {
	_ = s.buffer.Flush() // failures are logged by the buffer
	s.ctrl.Disconnect()
}
