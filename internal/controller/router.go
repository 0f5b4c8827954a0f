package controller

import (
	"encoding/json"

	"github.com/nerrad567/gray-logic-nhc2/internal/protocol"
)

// Routed message kinds, used as the metrics label.
const (
	routeSystemInfo = "system_info"
	routeDeviceList = "device_list"
	routeRefresh    = "refresh"
	routeDeviceEvt  = "device_event"
	routeIgnored    = "ignored"
	routeMalformed  = "malformed"
)

// HandleMessage routes one inbound bus message. It is the bus client's
// OnMessage handler and must not block.
//
//	system rsp   systeminfo.publish    cache info, notify observers
//	devices rsp  devices.list          replace the device snapshot
//	system evt   systeminfo.published  ask for a fresh device list
//	devices evt  devices.status        merge deltas into entities
//	devices evt  devices.changed       merge deltas into entities
//
// Anything else is logged and dropped.
func (c *Controller) HandleMessage(topic string, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		c.metrics.MessageRouted(routeMalformed)
		c.logger.Warn("dropping malformed message", "topic", topic, "error", err)
		return
	}

	switch {
	case topic == c.topics.SystemResponse() && msg.Method == protocol.MethodSystemInfoPublish:
		c.metrics.MessageRouted(routeSystemInfo)
		c.handleSystemInfo(payload)

	case topic == c.topics.DevicesResponse() && msg.Method == protocol.MethodDevicesList:
		c.metrics.MessageRouted(routeDeviceList)
		c.handleDeviceList(msg)

	case topic == c.topics.SystemEvent() && msg.Method == protocol.MethodSystemInfoPublished:
		c.metrics.MessageRouted(routeRefresh)
		c.handleSystemChanged()

	case topic == c.topics.DevicesEvent() &&
		(msg.Method == protocol.MethodDevicesStatus || msg.Method == protocol.MethodDevicesChanged):
		c.metrics.MessageRouted(routeDeviceEvt)
		c.handleDeviceEvent(msg)

	default:
		c.metrics.MessageRouted(routeIgnored)
		c.logger.Debug("ignoring message", "topic", topic, "method", msg.Method)
	}
}

func (c *Controller) handleSystemInfo(payload []byte) {
	info := append(json.RawMessage(nil), payload...)

	c.mu.Lock()
	c.systemInfo = info
	observers := append(([]func(json.RawMessage))(nil), c.infoObservers...)
	c.mu.Unlock()

	for _, fn := range observers {
		c.call("system info", func() { fn(info) })
	}
}

// handleDeviceList stops listening for list responses until the next
// system change, then rebuilds the registry from the snapshot.
func (c *Controller) handleDeviceList(msg protocol.Message) {
	if err := c.bus.Unsubscribe(c.topics.DevicesResponse()); err != nil {
		c.logger.Warn("unsubscribing device responses", "error", err)
	}

	devices := msg.Devices()
	c.logger.Info("device list received", "devices", len(devices))
	c.registry.Bootstrap(devices)
}

// handleSystemChanged re-reads the device list after the controller's
// configuration changed.
func (c *Controller) handleSystemChanged() {
	c.logger.Info("controller configuration changed, refreshing devices")
	if err := c.bus.Subscribe(c.topics.DevicesResponse(), c.qos); err != nil {
		c.logger.Error("subscribing", "topic", c.topics.DevicesResponse(), "error", err)
	}
	c.request(c.topics.DevicesCommand(), protocol.MethodDevicesList)
}

func (c *Controller) handleDeviceEvent(msg protocol.Message) {
	for _, d := range msg.Devices() {
		if d.UUID == "" {
			continue
		}
		if !c.registry.Update(d) {
			c.logger.Debug("event changed nothing", "uuid", d.UUID, "method", msg.Method)
		}
	}
}
