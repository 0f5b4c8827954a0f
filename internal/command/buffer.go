package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-nhc2/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// Default bounds, matching what the controller tolerates comfortably.
const (
	DefaultMaxDevices    = 16
	DefaultMaxWrites     = 32
	DefaultFlushInterval = 50 * time.Millisecond
)

// Publisher sends one payload to the controller.
// This is typically implemented by the MQTT bus client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte) error
}

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

// Options configures a Buffer.
type Options struct {
	// Publisher receives every flushed batch. Required.
	Publisher Publisher

	// Topic is the scoped devices command topic. Required.
	Topic string

	// QoS for batch publishes. Default: 1.
	QoS byte

	// MaxDevices bounds distinct pending devices. Default: 16.
	MaxDevices int

	// MaxWrites bounds accepted writes since the last flush, counting
	// coalesced writes too. Default: 32.
	MaxWrites int

	// FlushInterval is the flush loop period. Default: 50ms.
	FlushInterval time.Duration

	Logger  Logger
	Metrics *metrics.Collectors
}

// Buffer coalesces per-device property writes and publishes them as a
// single devices.control batch on a fixed interval.
//
// Writes to the same (uuid, key) before a flush collapse to the last value.
// When either bound is reached, Submit parks until the next flush drains
// the buffer or the caller's context ends.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Publishing happens outside the buffer lock; Submit is only ever
//     blocked by the swap itself or by a full buffer.
type Buffer struct {
	pub      Publisher
	topic    string
	qos      byte
	maxDevs  int
	maxWrite int
	interval time.Duration
	logger   Logger
	metrics  *metrics.Collectors

	mu      sync.Mutex
	pending map[string]map[string]string
	writes  int
	// drained is closed and replaced whenever the pending map is emptied.
	drained chan struct{}

	// flushMu serialises swap-and-publish so Stop can wait out a flush
	// that is already running.
	flushMu sync.Mutex

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewBuffer creates a Buffer. Call Start to begin flushing.
func NewBuffer(opts Options) (*Buffer, error) {
	if opts.Publisher == nil {
		return nil, fmt.Errorf("command: publisher is required")
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("command: topic is required")
	}

	b := &Buffer{
		pub:      opts.Publisher,
		topic:    opts.Topic,
		qos:      opts.QoS,
		maxDevs:  opts.MaxDevices,
		maxWrite: opts.MaxWrites,
		interval: opts.FlushInterval,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		pending:  make(map[string]map[string]string),
		drained:  make(chan struct{}),
	}
	if b.qos == 0 {
		b.qos = 1
	}
	if b.maxDevs <= 0 {
		b.maxDevs = DefaultMaxDevices
	}
	if b.maxWrite <= 0 {
		b.maxWrite = DefaultMaxWrites
	}
	if b.interval <= 0 {
		b.interval = DefaultFlushInterval
	}
	if b.logger == nil {
		b.logger = noopLogger{}
	}
	return b, nil
}

// Submit queues value for key on device uuid.
//
// It blocks while the buffer holds MaxDevices devices or MaxWrites writes,
// and returns an error wrapping ErrBackpressure and ctx.Err() if ctx ends
// first. An accepted write is published by exactly one later successful
// flush unless the buffer is stopped before then.
func (b *Buffer) Submit(ctx context.Context, uuid, key, value string) error {
	return b.SubmitAll(ctx, uuid, map[string]string{key: value})
}

// SubmitAll queues several writes for one device as a unit: either all of
// them are accepted or, when ctx ends while waiting, none are. Besides the
// Submit bounds it waits until the group fits under MaxWrites, unless the
// buffer is empty.
func (b *Buffer) SubmitAll(ctx context.Context, uuid string, props map[string]string) error {
	if uuid == "" || len(props) == 0 {
		return ErrInvalidWrite
	}
	for key := range props {
		if key == "" {
			return ErrInvalidWrite
		}
	}

	b.mu.Lock()
	for !b.fits(len(props)) {
		wait := b.drained
		b.mu.Unlock()

		b.metrics.BackpressureWait()
		b.logger.Debug("command buffer full, waiting for flush", "uuid", uuid, "writes", len(props))

		select {
		case <-wait:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrBackpressure, ctx.Err())
		}
		b.mu.Lock()
	}

	pending, ok := b.pending[uuid]
	if !ok {
		pending = make(map[string]string, len(props))
		b.pending[uuid] = pending
	}
	coalesced := make([]bool, 0, len(props))
	for key, value := range props {
		_, dup := pending[key]
		coalesced = append(coalesced, dup)
		pending[key] = value
	}
	b.writes += len(props)
	devices := len(b.pending)
	b.mu.Unlock()

	for _, dup := range coalesced {
		b.metrics.WriteSubmitted(dup)
	}
	b.metrics.SetPendingDevices(devices)
	return nil
}

// fits reports whether n more writes may be accepted now. Caller holds b.mu.
func (b *Buffer) fits(n int) bool {
	if b.full() {
		return false
	}
	return b.writes == 0 || b.writes+n <= b.maxWrite
}

// full reports whether either bound is reached. Caller holds b.mu.
func (b *Buffer) full() bool {
	return len(b.pending) >= b.maxDevs || b.writes >= b.maxWrite
}

// Pending returns the number of pending devices and accepted writes.
func (b *Buffer) Pending() (devices, writes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending), b.writes
}

// Flush swaps out the pending writes and publishes them as one batch.
// An empty buffer publishes nothing. When the publish fails the batch is
// put back for the next flush, behind any value submitted meanwhile for
// the same key, and the error is returned.
func (b *Buffer) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	batch := b.swap()
	if len(batch) == 0 {
		return nil
	}

	payload, err := protocol.Control(batch)
	if err != nil {
		b.metrics.FlushFailed()
		b.logger.Error("encoding command batch failed", "devices", len(batch), "error", err)
		return err
	}

	if err := b.pub.Publish(b.topic, payload, b.qos); err != nil {
		b.metrics.FlushFailed()
		b.requeue(batch)
		b.logger.Warn("publishing command batch failed, will retry",
			"topic", b.topic,
			"devices", len(batch),
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	b.metrics.FlushPublished(len(batch))
	b.logger.Debug("command batch published", "topic", b.topic, "devices", len(batch))
	return nil
}

// swap replaces the pending map with an empty one and wakes any parked
// submitters. It returns the previous contents.
func (b *Buffer) swap() map[string]map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}

	batch := b.pending
	b.pending = make(map[string]map[string]string)
	b.writes = 0
	close(b.drained)
	b.drained = make(chan struct{})
	b.metrics.SetPendingDevices(0)
	return batch
}

// requeue merges an unsent batch back into the pending writes. Values
// submitted since the swap are newer and win. Parked submitters were
// already woken by the swap, so drained is left alone.
func (b *Buffer) requeue(batch map[string]map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for uuid, props := range batch {
		cur, ok := b.pending[uuid]
		if !ok {
			b.pending[uuid] = props
			b.writes += len(props)
			continue
		}
		for key, value := range props {
			if _, newer := cur[key]; newer {
				continue
			}
			cur[key] = value
			b.writes++
		}
	}
	b.metrics.SetPendingDevices(len(b.pending))
}

// Start launches the flush loop. It is a no-op while already running.
// The loop ends on Stop or when ctx is cancelled.
func (b *Buffer) Start(ctx context.Context) {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if b.running {
		return
	}
	b.running = true
	b.stop = make(chan struct{})

	b.wg.Add(1)
	go b.flushLoop(ctx, b.stop)
}

// Stop ends the flush loop, waits for an in-progress flush to complete,
// then discards whatever is still pending. Safe to call multiple times and
// before Start. The buffer may be started again afterwards.
func (b *Buffer) Stop() {
	b.runMu.Lock()
	if b.running {
		b.running = false
		close(b.stop)
	}
	b.runMu.Unlock()

	b.wg.Wait()

	b.flushMu.Lock()
	if dropped := b.swap(); len(dropped) > 0 {
		b.logger.Warn("discarding unsent commands", "devices", len(dropped))
	}
	b.flushMu.Unlock()
}

// Running reports whether the flush loop is active.
func (b *Buffer) Running() bool {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	return b.running
}

func (b *Buffer) flushLoop(ctx context.Context, stop <-chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			// Errors are logged and counted inside Flush.
			_ = b.Flush()
		}
	}
}
