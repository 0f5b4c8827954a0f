// Package influxdb records device state changes in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library: a ping on connect,
// a batching non-blocking write API, and an error callback for failed
// batches. Every observable entity change becomes one device_state point
// tagged with the device uuid, class and name, and every point carries the
// controller host as a default tag.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Controller.Host)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	registry.AddListener(func(e device.Entity, cause device.Cause) {
//	    client.WriteDeviceState(influxdb.DeviceState{
//	        UUID: e.UUID(), Class: string(e.Class()), Name: e.Name(),
//	        Cause: string(cause), Fields: e.State(),
//	    })
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
