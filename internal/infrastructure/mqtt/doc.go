// Package mqtt provides the bus session to a Niko Home Control II controller.
//
// This package manages:
//   - One TLS connection per session, authenticated with a profile
//   - Non-blocking publish, subscribe and unsubscribe
//   - Ordered delivery of inbound messages to a single handler
//   - Login probes that report the CONNACK return code
//
// # Architecture
//
// The controller runs its own MQTT broker on port 8883. The profile's
// creation id is both the MQTT username and the topic scope, so one Client
// talks to exactly one profile.
//
//	controller.Controller ──▶ mqtt.Client ──TLS──▶ NHC2 broker
//	          ▲                    │
//	          └──── Handlers ◀─────┘
//
// # Reconnection
//
// Automatic reconnect is disabled. A lost connection is reported through
// Handlers.OnDisconnect and the owner decides whether to Connect again.
//
// # Security Considerations
//
//   - The controller presents a self-signed certificate; set ca_file to
//     pin it, or leave insecure_skip_verify on
//   - The profile password travels only inside the TLS session
//
// # Usage
//
//	client, err := mqtt.New(cfg.Controller, log)
//	if err != nil {
//	    return err
//	}
//	client.SetHandlers(mqtt.Handlers{
//	    OnConnect: func(code byte, err error) { ... },
//	    OnMessage: router.Handle,
//	})
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
package mqtt
