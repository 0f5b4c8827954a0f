package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/nerrad567/gray-logic-nhc2/internal/device"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// State is the connection state of a Controller.
type State int

// Connection states.
const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

var stateNames = []string{
	Disconnected.String(), Connecting.String(), Connected.String(), Failed.String(),
}

// BusClient is the transport to the controller. *mqtt.Client implements it.
//
// Every method must return without waiting on the network; the Controller
// calls them from inside its handlers.
type BusClient interface {
	Connect(ctx context.Context) error
	Disconnect()
	Subscribe(topic string, qos byte) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte) error
	SetHandlers(h mqtt.Handlers)
}

// CommandBuffer is the flush loop the Controller runs while connected.
// *command.Buffer implements it.
type CommandBuffer interface {
	Start(ctx context.Context)
	Stop()
}

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Controller.
type Options struct {
	Bus      BusClient
	Buffer   CommandBuffer
	Registry *device.Registry

	// Profile is the profile creation id that scopes every topic.
	Profile string
	QoS     byte

	Logger  Logger
	Metrics *metrics.Collectors
}

// Controller owns one bus session: it drives the connection state
// machine, routes inbound messages to the registry, and runs the command
// buffer's flush loop while a session is up.
//
// Registration methods may be called at any time. Observers fire on the
// bus delivery goroutine or the goroutine that reported the connection
// outcome, never while the Controller's lock is held.
type Controller struct {
	bus      BusClient
	buffer   CommandBuffer
	registry *device.Registry
	topics   protocol.Topics
	qos      byte
	logger   Logger
	metrics  *metrics.Collectors

	mu            sync.Mutex
	state         State
	cancelRun     context.CancelFunc
	systemInfo    json.RawMessage
	infoObservers []func(json.RawMessage)
	errObservers  []func(error)
	stateObs      []func(State)
}

// New wires a Controller to its bus, buffer and registry and installs
// itself as the bus handler.
func New(opts Options) (*Controller, error) {
	if opts.Bus == nil {
		return nil, errors.New("controller: bus client is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("controller: registry is required")
	}
	if opts.Profile == "" {
		return nil, errors.New("controller: profile is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	c := &Controller{
		bus:      opts.Bus,
		buffer:   opts.Buffer,
		registry: opts.Registry,
		topics:   protocol.NewTopics(opts.Profile),
		qos:      opts.QoS,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		state:    Disconnected,
	}
	c.metrics.SetConnectionState(Disconnected.String(), stateNames)

	c.bus.SetHandlers(mqtt.Handlers{
		OnConnect:    c.handleConnect,
		OnMessage:    c.HandleMessage,
		OnDisconnect: c.handleConnectionLost,
	})
	return c, nil
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Registry returns the device registry fed by this Controller.
func (c *Controller) Registry() *device.Registry {
	return c.registry
}

// Topics returns the topic set of the session's profile.
func (c *Controller) Topics() protocol.Topics {
	return c.topics
}

// Connect starts a session. It is valid from Disconnected or Failed and
// returns ErrAlreadyConnecting otherwise. The outcome arrives later: a
// failure reaches the OnError observers as a *ConnectionError, success
// shows as the Connected state followed by system info and device lists.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Connecting || c.state == Connected {
		c.mu.Unlock()
		return ErrAlreadyConnecting
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel
	c.state = Connecting
	observers := append(([]func(State))(nil), c.stateObs...)
	c.mu.Unlock()
	c.notifyState(Connecting, observers)

	if c.buffer != nil {
		c.buffer.Start(runCtx)
	}

	if err := c.bus.Connect(ctx); err != nil {
		c.fail(0, err)
		return fmt.Errorf("starting connection: %w", err)
	}
	return nil
}

// Disconnect stops the flush loop, closes the bus session and returns to
// Disconnected. It is valid in every state and idempotent. Entities keep
// their last known state.
func (c *Controller) Disconnect() {
	c.stopRun()
	c.bus.Disconnect()
	c.setState(Disconnected)
}

// OnSystemInfo registers fn to receive the controller's system info
// payload. If it has already arrived, fn fires immediately.
func (c *Controller) OnSystemInfo(fn func(info json.RawMessage)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.infoObservers = append(c.infoObservers, fn)
	info := c.systemInfo
	c.mu.Unlock()

	if info != nil {
		c.call("system info", func() { fn(info) })
	}
}

// SystemInfo returns the last system info payload, if any.
func (c *Controller) SystemInfo() (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.systemInfo, c.systemInfo != nil
}

// OnDevices registers fn to receive the entities of class after every
// device snapshot. See device.Registry.OnDevices.
func (c *Controller) OnDevices(class device.Class, fn func([]device.Entity)) {
	c.registry.OnDevices(class, fn)
}

// OnError registers fn to receive connection failures.
func (c *Controller) OnError(fn func(err error)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.errObservers = append(c.errObservers, fn)
	c.mu.Unlock()
}

// OnStateChange registers fn to receive every state transition.
func (c *Controller) OnStateChange(fn func(State)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.stateObs = append(c.stateObs, fn)
	c.mu.Unlock()
}

// handleConnect receives the bus client's connection outcome.
func (c *Controller) handleConnect(code byte, err error) {
	if err != nil || code != mqtt.CodeAccepted {
		c.fail(code, err)
		return
	}
	if !c.transition(Connecting, Connected) {
		c.logger.Debug("ignoring connection result outside connecting state", "code", code)
		return
	}
	c.logger.Info("connected to controller", "profile", c.topics.Profile())

	for _, topic := range c.topics.Subscriptions() {
		if err := c.bus.Subscribe(topic, c.qos); err != nil {
			c.logger.Error("subscribing", "topic", topic, "error", err)
		}
	}
	c.request(c.topics.SystemCommand(), protocol.MethodSystemInfoPublish)
	c.request(c.topics.DevicesCommand(), protocol.MethodDevicesList)
}

// handleConnectionLost receives an unsolicited disconnect.
func (c *Controller) handleConnectionLost(err error) {
	c.logger.Warn("controller connection lost", "error", err)
	c.stopRun()
	c.setState(Disconnected)
	c.registry.MarkAllOffline()
}

// fail moves a pending attempt to Failed and tells the error observers.
func (c *Controller) fail(code byte, err error) {
	if !c.transition(Connecting, Failed) {
		c.logger.Debug("ignoring connection failure outside connecting state", "code", code)
		return
	}
	c.stopRun()
	c.metrics.ConnectFailed(strconv.Itoa(int(code)))

	detail := "unknown error"
	switch {
	case code >= mqtt.CodeUnacceptableProtocol && code <= mqtt.CodeNotAuthorized:
		detail = mqtt.ReasonText(code)
	case err != nil:
		detail = err.Error()
	}
	cerr := &ConnectionError{
		Reason: ReasonConnectionFailed,
		Code:   code,
		Detail: detail,
		Err:    err,
	}
	c.logger.Warn("connection to controller failed",
		"code", code,
		"detail", detail,
	)

	c.mu.Lock()
	observers := append(([]func(error))(nil), c.errObservers...)
	c.mu.Unlock()
	for _, fn := range observers {
		c.call("error", func() { fn(cerr) })
	}
}

// stopRun ends the flush loop and discards unsent commands.
func (c *Controller) stopRun() {
	c.mu.Lock()
	cancel := c.cancelRun
	c.cancelRun = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c.buffer != nil {
		c.buffer.Stop()
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	observers := append(([]func(State))(nil), c.stateObs...)
	c.mu.Unlock()
	c.notifyState(s, observers)
}

// transition moves from one state to another and reports whether the
// controller was in from.
func (c *Controller) transition(from, to State) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	observers := append(([]func(State))(nil), c.stateObs...)
	c.mu.Unlock()
	c.notifyState(to, observers)
	return true
}

func (c *Controller) notifyState(s State, observers []func(State)) {
	c.metrics.SetConnectionState(s.String(), stateNames)
	for _, fn := range observers {
		c.call("state", func() { fn(s) })
	}
}

// request publishes a parameterless request.
func (c *Controller) request(topic, method string) {
	if err := c.bus.Publish(topic, protocol.Request(method), c.qos); err != nil {
		c.logger.Error("publishing request",
			"topic", topic,
			"method", method,
			"error", err,
		)
	}
}

// call runs one observer, containing any panic it raises.
func (c *Controller) call(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("observer panic recovered",
				"observer", kind,
				"panic", r,
			)
		}
	}()
	fn()
}
