package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceState = "device_state"
	MeasurementConnection  = "connection"
)

// DeviceState is one entity change to record.
type DeviceState struct {
	UUID  string
	Class string
	Name  string
	Cause string

	// Fields is the entity's state snapshot. Numbers and booleans become
	// point fields; strings become fields except "name", which is a tag.
	Fields map[string]any
}

// NewDeviceStatePoint builds the point for s at t. It returns nil when
// the snapshot carries no usable field.
func NewDeviceStatePoint(s DeviceState, t time.Time) *write.Point {
	fields := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		if k == "name" {
			continue
		}
		switch x := v.(type) {
		case bool, float64, int, int64:
			fields[k] = x
		case string:
			if x != "" {
				fields[k] = x
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{
		"uuid":  s.UUID,
		"class": s.Class,
	}
	if s.Name != "" {
		tags["name"] = s.Name
	}
	if s.Cause != "" {
		tags["cause"] = s.Cause
	}
	return write.NewPoint(MeasurementDeviceState, tags, fields, t)
}

// WriteDeviceState queues one entity change. The write is non-blocking;
// points are batched and failures reach the SetOnError callback.
//
// Example:
//
//	client.WriteDeviceState(influxdb.DeviceState{
//	    UUID: e.UUID(), Class: "lights", Name: e.Name(),
//	    Cause: "event", Fields: e.State(),
//	})
func (c *Client) WriteDeviceState(s DeviceState) {
	if p := NewDeviceStatePoint(s, time.Now()); p != nil {
		c.write(p)
	}
}

// WriteConnectionState records a controller connection state transition.
// The controller is identified by the client's default tag.
func (c *Client) WriteConnectionState(state string) {
	c.write(write.NewPoint(
		MeasurementConnection,
		nil,
		map[string]any{"state": state},
		time.Now(),
	))
}

// write queues p unless the client is closed. The read lock keeps Close
// from tearing down the write API underneath it.
func (c *Client) write(p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.writeAPI.WritePoint(p)
}
