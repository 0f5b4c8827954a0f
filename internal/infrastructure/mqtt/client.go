package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/config"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handlers are the callbacks a Client reports to.
//
// OnMessage runs on paho's delivery goroutine, one message at a time and
// in arrival order. OnConnect runs on a goroutine owned by the Client.
// Any of them may call back into the Client.
type Handlers struct {
	// OnConnect reports the outcome of Connect. code is the MQTT CONNACK
	// return code; err is non-nil when the attempt failed for any reason.
	OnConnect func(code byte, err error)

	// OnMessage delivers every message on a subscribed topic.
	OnMessage func(topic string, payload []byte)

	// OnDisconnect reports a connection lost without Disconnect being called.
	OnDisconnect func(err error)
}

// Client is the bus session to one NHC2 controller.
//
// Every operation returns without waiting on the broker: Connect reports
// through Handlers.OnConnect, and publish, subscribe and unsubscribe
// acknowledgements are awaited on separate goroutines and only logged.
// This keeps the Client safe to drive from inside its own handlers, where
// blocking on a token would stall ordered delivery.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - A Client can be connected again after Disconnect or a lost connection.
type Client struct {
	cfg       config.ControllerConfig
	tlsConfig *tls.Config
	logger    Logger

	// newPaho builds the underlying client; replaced in tests.
	newPaho func(*pahomqtt.ClientOptions) pahomqtt.Client

	mu       sync.RWMutex
	client   pahomqtt.Client
	handlers Handlers
}

// New prepares a Client. It loads the CA file but does not connect.
func New(cfg config.ControllerConfig, logger Logger) (*Client, error) {
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		cfg:       cfg,
		tlsConfig: tlsConfig,
		logger:    logger,
		newPaho:   pahomqtt.NewClient,
	}, nil
}

// SetHandlers replaces the callbacks. Call it before Connect.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Connect starts opening a session and returns immediately. The outcome
// is reported once through Handlers.OnConnect. Cancelling ctx before the
// controller answers abandons the attempt and reports it as failed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.client != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	opts := buildClientOptions(c.cfg, c.tlsConfig)
	var cl pahomqtt.Client
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(cl, err)
	})
	cl = c.newPaho(opts)
	c.client = cl
	c.mu.Unlock()

	c.logger.Debug("connecting to controller",
		"address", c.cfg.Address(),
		"client_id", opts.ClientID,
	)

	token := cl.Connect()
	go c.awaitConnect(ctx, cl, token)
	return nil
}

// awaitConnect waits for the CONNACK and reports it.
func (c *Client) awaitConnect(ctx context.Context, cl pahomqtt.Client, token pahomqtt.Token) {
	select {
	case <-token.Done():
	case <-ctx.Done():
		if c.release(cl) {
			cl.Disconnect(0)
			c.reportConnect(0, fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err()))
		}
		return
	}

	// Disconnect was called while the attempt was in flight.
	if c.current() != cl {
		cl.Disconnect(0)
		return
	}

	var code byte
	if ct, ok := token.(interface{ ReturnCode() byte }); ok {
		code = ct.ReturnCode()
	}
	if err := token.Error(); err != nil || code != 0 {
		c.release(cl)
		if err == nil {
			err = errors.New(ReasonText(code))
		}
		c.reportConnect(code, fmt.Errorf("%w: %w", ErrConnectionFailed, err))
		return
	}
	c.reportConnect(0, nil)
}

func (c *Client) reportConnect(code byte, err error) {
	c.mu.RLock()
	fn := c.handlers.OnConnect
	c.mu.RUnlock()
	if fn == nil {
		return
	}
	defer c.recoverHandler("OnConnect")
	fn(code, err)
}

// handleConnectionLost runs when paho detects a dead connection.
func (c *Client) handleConnectionLost(cl pahomqtt.Client, err error) {
	if !c.release(cl) {
		return
	}
	c.logger.Warn("controller connection lost", "error", err)

	c.mu.RLock()
	fn := c.handlers.OnDisconnect
	c.mu.RUnlock()
	if fn == nil {
		return
	}
	defer c.recoverHandler("OnDisconnect")
	fn(err)
}

// release forgets cl if it is still the current session.
func (c *Client) release(cl pahomqtt.Client) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != cl {
		return false
	}
	c.client = nil
	return true
}

// Disconnect closes the session, if any. It is idempotent and does not
// invoke OnDisconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cl := c.client
	c.client = nil
	c.mu.Unlock()

	if cl != nil {
		cl.Disconnect(defaultDisconnectQuiesce)
	}
}

// IsConnected reports whether a session is open.
func (c *Client) IsConnected() bool {
	cl := c.current()
	return cl != nil && cl.IsConnectionOpen()
}

// HealthCheck verifies the session is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) current() pahomqtt.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// deliver is the paho callback for every subscription.
func (c *Client) deliver(_ pahomqtt.Client, msg pahomqtt.Message) {
	c.mu.RLock()
	fn := c.handlers.OnMessage
	c.mu.RUnlock()
	if fn == nil {
		return
	}
	defer c.recoverHandler("OnMessage", "topic", msg.Topic())
	fn(msg.Topic(), msg.Payload())
}

func (c *Client) recoverHandler(name string, args ...any) {
	if r := recover(); r != nil {
		c.logger.Error("MQTT handler panic recovered",
			append([]any{"handler", name, "panic", r}, args...)...,
		)
	}
}
