// Package device mirrors the controller's devices as typed entities.
//
// A Registry is filled from a device-list snapshot and kept current by
// device events. Each actionable device is bound to one Class through a
// ClassTable and represented by one Entity for the life of the Registry.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                          Registry                            │
//	│                                                              │
//	│  Bootstrap(snapshot) ──▶ ClassTable.Classify(model)          │
//	│                              │                               │
//	│                              ▼                               │
//	│  uuid ─▶ slot ─▶ Entity  (*Switch, *Light, *Shutter, *Fan,   │
//	│                   *SwitchedFan, *Thermostat, *Generic)       │
//	│                              │                               │
//	│  Update(delta) ──▶ apply ──▶ changed? ──▶ onChange           │
//	│                                          └▶ ChangeListeners  │
//	└──────────────────────────────────────────────────────────────┘
//	                               │
//	          RequestStateChange   ▼
//	                          CommandSink (command.Buffer)
//
// # Usage
//
//	reg := device.NewRegistry(device.RegistryOptions{
//	    Classes: device.NewClassTable(cfg.Devices.SwitchesAsLights),
//	    Sink:    buffer,
//	    Logger:  log,
//	})
//
//	reg.OnDevices(device.ClassLights, func(lights []device.Entity) {
//	    for _, l := range lights {
//	        l.SetOnChange(func() { fmt.Println(l) })
//	    }
//	})
//
//	// Later, from any goroutine:
//	err := light.RequestStateChange(ctx, "40")
//
// # Thread Safety
//
// Registry and entity methods are safe for concurrent use. Observers and
// listeners run on the goroutine that delivered the update, with no
// registry lock held, and must not block.
package device
