package mqtt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/config"
)

// fakeToken is a paho token completed by the test.
type fakeToken struct {
	done chan struct{}
	err  error
	code byte
}

func newFakeToken() *fakeToken { return &fakeToken{done: make(chan struct{})} }

func doneToken(code byte, err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err, code: code}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }
func (t *fakeToken) ReturnCode() byte      { return t.code }

// fakeMessage is an inbound message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// fakePaho stands in for the paho client and records every call.
type fakePaho struct {
	mu           sync.Mutex
	opts         *pahomqtt.ClientOptions
	connectTok   pahomqtt.Token
	open         bool
	published    []string
	subscribed   []string
	unsubscribed []string
	callback     pahomqtt.MessageHandler
	disconnects  int
}

func (f *fakePaho) IsConnected() bool { return f.IsConnectionOpen() }
func (f *fakePaho) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}
func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ft, ok := f.connectTok.(*fakeToken); ok && ft.err == nil && ft.code == 0 {
		f.open = true
	}
	return f.connectTok
}
func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.open = false
	f.disconnects++
	f.mu.Unlock()
}
func (f *fakePaho) Publish(topic string, _ byte, _ bool, _ interface{}) pahomqtt.Token {
	f.mu.Lock()
	f.published = append(f.published, topic)
	f.mu.Unlock()
	return doneToken(0, nil)
}
func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	f.subscribed = append(f.subscribed, topic)
	f.callback = cb
	f.mu.Unlock()
	return doneToken(0, nil)
}
func (f *fakePaho) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken(0, nil)
}
func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	f.mu.Unlock()
	return doneToken(0, nil)
}
func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}
func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(f.opts)
}

// loseConnection fires paho's connection-lost handler.
func (f *fakePaho) loseConnection(err error) {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	f.opts.OnConnectionLost(f, err)
}

func testConfig() config.ControllerConfig {
	return config.ControllerConfig{
		Host:               "nhc2.local",
		Port:               8883,
		Username:           "hobby",
		Password:           "secret",
		InsecureSkipVerify: true,
		QoS:                1,
		ConnectTimeout:     time.Second,
		KeepAlive:          30 * time.Second,
	}
}

// newTestClient returns a Client whose paho client is fake.
func newTestClient(t *testing.T, tok pahomqtt.Token) (*Client, *fakePaho) {
	t.Helper()
	c, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fake := &fakePaho{connectTok: tok}
	c.newPaho = func(o *pahomqtt.ClientOptions) pahomqtt.Client {
		fake.opts = o
		return fake
	}
	return c, fake
}

type connectResult struct {
	code byte
	err  error
}

func connectAndWait(t *testing.T, ctx context.Context, c *Client) connectResult {
	t.Helper()
	results := make(chan connectResult, 1)
	c.SetHandlers(Handlers{
		OnConnect: func(code byte, err error) { results <- connectResult{code, err} },
	})
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnect not called")
		return connectResult{}
	}
}

func TestConnect_Accepted(t *testing.T) {
	c, fake := newTestClient(t, doneToken(0, nil))

	r := connectAndWait(t, context.Background(), c)
	if r.code != 0 || r.err != nil {
		t.Fatalf("OnConnect(%d, %v), want (0, nil)", r.code, r.err)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after accepted connect")
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	o := fake.opts
	if !strings.HasPrefix(o.ClientID, clientIDPrefix) {
		t.Errorf("ClientID = %q", o.ClientID)
	}
	if o.AutoReconnect || o.ConnectRetry {
		t.Error("reconnect or connect retry enabled")
	}
	if !o.Order {
		t.Error("ordered delivery disabled")
	}
	if o.Username != "hobby" || o.Password != "secret" {
		t.Errorf("credentials = %q/%q", o.Username, o.Password)
	}
	if got := o.Servers[0].String(); got != "ssl://nhc2.local:8883" {
		t.Errorf("broker = %s", got)
	}

	if err := c.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}
}

func TestConnect_Refused(t *testing.T) {
	tests := []struct {
		name string
		code byte
		err  error
	}{
		{"bad credentials", CodeBadUsernameOrPassword, errors.New("bad user name or password")},
		{"not authorised without token error", CodeNotAuthorized, nil},
		{"network", codeNetworkError, errors.New("dial tcp: connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, doneToken(tt.code, tt.err))

			r := connectAndWait(t, context.Background(), c)
			if r.code != tt.code {
				t.Errorf("code = %d, want %d", r.code, tt.code)
			}
			if !errors.Is(r.err, ErrConnectionFailed) {
				t.Errorf("err = %v, want ErrConnectionFailed", r.err)
			}
			if c.IsConnected() {
				t.Error("IsConnected() = true after refusal")
			}
			// The failed session is released so Connect may be retried.
			if err := c.Connect(context.Background()); err != nil {
				t.Errorf("retry Connect() error = %v", err)
			}
		})
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	c, fake := newTestClient(t, newFakeToken())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := connectAndWait(t, ctx, c)
	if !errors.Is(r.err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", r.err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", fake.disconnects)
	}
}

func TestOperations_NotConnected(t *testing.T) {
	c, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := c.Publish("t", nil, 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v", err)
	}
	if err := c.Subscribe("t", 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v", err)
	}
	if err := c.Unsubscribe("t"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v", err)
	}
	c.Disconnect() // no session: no-op
}

func TestOperations_Validation(t *testing.T) {
	c, _ := newTestClient(t, doneToken(0, nil))
	connectAndWait(t, context.Background(), c)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", []byte("x"), 1), ErrInvalidTopic},
		{"publish bad qos", c.Publish("t", []byte("x"), 3), ErrInvalidQoS},
		{"publish too large", c.Publish("t", make([]byte, maxPayloadSize+1), 1), ErrPublishFailed},
		{"subscribe empty topic", c.Subscribe("", 1), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("t", 9), ErrInvalidQoS},
		{"unsubscribe empty topic", c.Unsubscribe(""), ErrInvalidTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestOperations_DeliverAndForward(t *testing.T) {
	c, fake := newTestClient(t, doneToken(0, nil))

	var mu sync.Mutex
	var got []string
	results := make(chan connectResult, 1)
	c.SetHandlers(Handlers{
		OnConnect: func(code byte, err error) { results <- connectResult{code, err} },
		OnMessage: func(topic string, payload []byte) {
			mu.Lock()
			got = append(got, topic+"="+string(payload))
			mu.Unlock()
		},
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	<-results

	if err := c.Subscribe("hobby/system/evt", 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := c.Publish("hobby/system/cmd", []byte(`{}`), 1); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := c.Unsubscribe("hobby/system/evt"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	fake.mu.Lock()
	cb := fake.callback
	if len(fake.subscribed) != 1 || len(fake.published) != 1 || len(fake.unsubscribed) != 1 {
		t.Errorf("calls: sub=%v pub=%v unsub=%v", fake.subscribed, fake.published, fake.unsubscribed)
	}
	fake.mu.Unlock()

	cb(fake, fakeMessage{topic: "hobby/system/evt", payload: []byte("hello")})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "hobby/system/evt=hello" {
		t.Errorf("delivered = %v", got)
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	c, fake := newTestClient(t, doneToken(0, nil))
	results := make(chan struct{}, 1)
	c.SetHandlers(Handlers{
		OnConnect: func(byte, error) { results <- struct{}{} },
		OnMessage: func(string, []byte) { panic("boom") },
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	<-results
	if err := c.Subscribe("x", 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	fake.callback(fake, fakeMessage{topic: "x"})
}

func TestConnectionLost(t *testing.T) {
	c, fake := newTestClient(t, doneToken(0, nil))

	lost := make(chan error, 2)
	connected := make(chan struct{}, 1)
	c.SetHandlers(Handlers{
		OnConnect:    func(byte, error) { connected <- struct{}{} },
		OnDisconnect: func(err error) { lost <- err },
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	<-connected

	cause := errors.New("EOF")
	fake.loseConnection(cause)
	// A second report for the same session is ignored.
	fake.loseConnection(cause)

	select {
	case err := <-lost:
		if !errors.Is(err, cause) {
			t.Errorf("OnDisconnect(%v), want %v", err, cause)
		}
	default:
		t.Fatal("OnDisconnect not called")
	}
	if len(lost) != 0 {
		t.Error("OnDisconnect called twice")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after loss")
	}
}

func TestDisconnect_NoLostCallback(t *testing.T) {
	c, fake := newTestClient(t, doneToken(0, nil))
	lost := make(chan error, 1)
	connected := make(chan struct{}, 1)
	c.SetHandlers(Handlers{
		OnConnect:    func(byte, error) { connected <- struct{}{} },
		OnDisconnect: func(err error) { lost <- err },
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	<-connected

	c.Disconnect()
	c.Disconnect()
	// paho may still report the closed session; it must not reach the owner.
	fake.loseConnection(errors.New("closed"))

	if len(lost) != 0 {
		t.Error("OnDisconnect called after Disconnect")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.disconnects != 1 {
		t.Errorf("paho Disconnect called %d times, want 1", fake.disconnects)
	}
}

func TestNew_CAFile(t *testing.T) {
	dir := t.TempDir()

	cfg := testConfig()
	cfg.CAFile = filepath.Join(dir, "missing.pem")
	if _, err := New(cfg, nil); !errors.Is(err, ErrCAFile) {
		t.Errorf("missing CA file error = %v, want ErrCAFile", err)
	}

	junk := filepath.Join(dir, "junk.pem")
	if err := os.WriteFile(junk, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.CAFile = junk
	if _, err := New(cfg, nil); !errors.Is(err, ErrCAFile) {
		t.Errorf("junk CA file error = %v, want ErrCAFile", err)
	}
}

func TestNewClientID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := newClientID()
		if seen[id] {
			t.Fatalf("duplicate client id %s", id)
		}
		seen[id] = true
	}
}

func TestReasonText(t *testing.T) {
	tests := []struct {
		code byte
		want string
	}{
		{0, "Connection accepted"},
		{1, "Connection refused - incorrect protocol version"},
		{2, "Connection refused - invalid client identifier"},
		{3, "Connection refused - server unavailable"},
		{4, "Connection refused - bad username or password"},
		{5, "Connection refused - not authorised"},
		{42, "Unknown return code 42"},
	}
	for _, tt := range tests {
		if got := ReasonText(tt.code); got != tt.want {
			t.Errorf("ReasonText(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name   string
		token  *fakeToken
		wantOK bool
		code   byte
	}{
		{"accepted", doneToken(0, nil), true, 0},
		{"bad password", doneToken(CodeBadUsernameOrPassword, errors.New("bad user name or password")), false, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t, tt.token)

			res := c.probe(context.Background())
			if res.OK() != tt.wantOK || res.Code != tt.code {
				t.Errorf("probe() = %+v", res)
			}
			if res.Reason != ReasonText(tt.code) {
				t.Errorf("Reason = %q", res.Reason)
			}
			if c.IsConnected() {
				t.Error("probe left the session open")
			}
			if tt.wantOK {
				fake.mu.Lock()
				if fake.disconnects != 1 {
					t.Errorf("disconnects = %d, want 1", fake.disconnects)
				}
				fake.mu.Unlock()
			}
		})
	}
}
