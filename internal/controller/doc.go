// Package controller runs one session with a Niko Home Control II
// controller.
//
// A Controller owns the connection state machine, routes every inbound
// bus message to the device registry, and keeps the command buffer's
// flush loop running while the session is up.
//
// # Architecture
//
//	              ┌──────────────┐  OnConnect / OnDisconnect
//	  mqtt.Client │  BusClient   ├──────────────┐
//	              └──────┬───────┘              ▼
//	                     │ OnMessage     ┌────────────┐
//	                     └──────────────►│ Controller │── state, errors
//	                                     └─────┬──────┘
//	                       Bootstrap / Update  │  Start / Stop
//	                     ┌─────────────────────┼─────────────┐
//	                     ▼                                   ▼
//	             device.Registry ── Submit ──────► command.Buffer ── Publish
//
// # States
//
//	Disconnected ──Connect──► Connecting ──accepted──► Connected
//	      ▲                        │                       │
//	      │                        └──refused──► Failed    │
//	      └──────────── Disconnect / connection lost ──────┘
//
// A refused or unreachable session reports a *ConnectionError to OnError
// observers. Nothing retries; call Connect again from Failed.
// A lost connection marks every entity offline and discards unsent
// commands.
//
// # Usage
//
//	ctrl, err := controller.New(controller.Options{
//	    Bus:      bus,
//	    Buffer:   buffer,
//	    Registry: registry,
//	    Profile:  cfg.Controller.Username,
//	    QoS:      1,
//	})
//	ctrl.OnError(func(err error) { log.Error("controller", "error", err) })
//	ctrl.OnDevices(device.ClassLights, func(lights []device.Entity) { ... })
//	if err := ctrl.Connect(ctx); err != nil {
//	    return err
//	}
//	defer ctrl.Disconnect()
package controller
