package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nhc2"

// Collectors holds every Prometheus collector the bus exports.
//
// All methods are safe on a nil *Collectors, so components can be built
// without metrics in tests and in one-shot commands.
type Collectors struct {
	writesSubmitted   prometheus.Counter
	writesCoalesced   prometheus.Counter
	backpressureWaits prometheus.Counter
	flushes           prometheus.Counter
	flushErrors       prometheus.Counter
	flushDevices      prometheus.Histogram
	pendingDevices    prometheus.Gauge

	messagesRouted  *prometheus.CounterVec
	stateChanges    *prometheus.CounterVec
	devices         *prometheus.GaugeVec
	connectionState *prometheus.GaugeVec
	connectFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg registers nothing, which keeps tests independent of the
// global default registry.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		writesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "command_buffer", Name: "writes_submitted_total",
			Help: "Property writes accepted by the command buffer.",
		}),
		writesCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "command_buffer", Name: "writes_coalesced_total",
			Help: "Accepted writes that replaced a pending value for the same device and key.",
		}),
		backpressureWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "command_buffer", Name: "backpressure_waits_total",
			Help: "Submits that had to wait for a flush because a bound was reached.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "command_buffer", Name: "flushes_total",
			Help: "Non-empty batches published to the controller.",
		}),
		flushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "command_buffer", Name: "flush_errors_total",
			Help: "Batches whose publish failed.",
		}),
		flushDevices: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "command_buffer", Name: "flush_devices",
			Help:    "Distinct devices per published batch.",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		}),
		pendingDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "command_buffer", Name: "pending_devices",
			Help: "Distinct devices waiting for the next flush.",
		}),
		messagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "router", Name: "messages_total",
			Help: "Inbound messages by classification.",
		}, []string{"kind"}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "registry", Name: "state_changes_total",
			Help: "Entity updates that changed observable state, by device class.",
		}, []string{"class"}),
		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "registry", Name: "devices",
			Help: "Entities bound per device class.",
		}, []string{"class"}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "connection", Name: "state",
			Help: "1 for the current connection state, 0 for the others.",
		}, []string{"state"}),
		connectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connection", Name: "failures_total",
			Help: "Failed connection attempts by broker reason code.",
		}, []string{"code"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.writesSubmitted, c.writesCoalesced, c.backpressureWaits,
			c.flushes, c.flushErrors, c.flushDevices, c.pendingDevices,
			c.messagesRouted, c.stateChanges, c.devices,
			c.connectionState, c.connectFailures,
		)
	}
	return c
}

// =============================================================================
// Command buffer
// =============================================================================

// WriteSubmitted records an accepted write.
func (c *Collectors) WriteSubmitted(coalesced bool) {
	if c == nil {
		return
	}
	c.writesSubmitted.Inc()
	if coalesced {
		c.writesCoalesced.Inc()
	}
}

// BackpressureWait records a submit that blocked on a full buffer.
func (c *Collectors) BackpressureWait() {
	if c == nil {
		return
	}
	c.backpressureWaits.Inc()
}

// FlushPublished records a published batch of the given device count.
func (c *Collectors) FlushPublished(devices int) {
	if c == nil {
		return
	}
	c.flushes.Inc()
	c.flushDevices.Observe(float64(devices))
}

// FlushFailed records a batch whose publish returned an error.
func (c *Collectors) FlushFailed() {
	if c == nil {
		return
	}
	c.flushErrors.Inc()
}

// SetPendingDevices reports the buffer occupancy.
func (c *Collectors) SetPendingDevices(n int) {
	if c == nil {
		return
	}
	c.pendingDevices.Set(float64(n))
}

// =============================================================================
// Router, registry and connection
// =============================================================================

// MessageRouted counts one inbound message of the given kind.
func (c *Collectors) MessageRouted(kind string) {
	if c == nil {
		return
	}
	c.messagesRouted.WithLabelValues(kind).Inc()
}

// StateChanged counts one observable change on an entity of class.
func (c *Collectors) StateChanged(class string) {
	if c == nil {
		return
	}
	c.stateChanges.WithLabelValues(class).Inc()
}

// SetDevices reports how many entities are bound to class.
func (c *Collectors) SetDevices(class string, n int) {
	if c == nil {
		return
	}
	c.devices.WithLabelValues(class).Set(float64(n))
}

// SetConnectionState marks state as current among all known states.
func (c *Collectors) SetConnectionState(state string, all []string) {
	if c == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		c.connectionState.WithLabelValues(s).Set(v)
	}
}

// ConnectFailed counts a failed connection attempt with its reason code.
func (c *Collectors) ConnectFailed(code string) {
	if c == nil {
		return
	}
	c.connectFailures.WithLabelValues(code).Inc()
}
