package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish queues a non-retained message and returns without waiting for
// the acknowledgement. A failed delivery is logged.
//
// Example:
//
//	topics := protocol.NewTopics("hobby")
//	err := client.Publish(topics.DevicesCommand(), protocol.Request("devices.list"), 1)
func (c *Client) Publish(topic string, payload []byte, qos byte) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	cl := c.current()
	if cl == nil || !cl.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := cl.Publish(topic, qos, false, payload)
	go c.await(token, "publish", topic, ErrPublishFailed)
	return nil
}

// Subscribe asks for messages on topic, delivered to Handlers.OnMessage.
// It returns without waiting for the SUBACK.
func (c *Client) Subscribe(topic string, qos byte) error {
	if err := validate(topic, qos); err != nil {
		return err
	}

	cl := c.current()
	if cl == nil || !cl.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := cl.Subscribe(topic, qos, c.deliver)
	go c.await(token, "subscribe", topic, ErrSubscribeFailed)
	return nil
}

// Unsubscribe stops delivery for topic. Messages already in flight may
// still arrive. It returns without waiting for the UNSUBACK.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	cl := c.current()
	if cl == nil || !cl.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := cl.Unsubscribe(topic)
	go c.await(token, "unsubscribe", topic, ErrUnsubscribeFailed)
	return nil
}

// await waits out one acknowledgement and logs a failure.
func (c *Client) await(token pahomqtt.Token, op, topic string, sentinel error) {
	if !token.WaitTimeout(defaultOperationTimeout) {
		c.logger.Warn("MQTT operation timed out",
			"op", op,
			"topic", topic,
			"error", fmt.Errorf("%w: %w after %v", sentinel, ErrTimeout, defaultOperationTimeout),
		)
		return
	}
	if err := token.Error(); err != nil {
		c.logger.Warn("MQTT operation failed",
			"op", op,
			"topic", topic,
			"error", fmt.Errorf("%w: %w", sentinel, err),
		)
	}
}

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}
