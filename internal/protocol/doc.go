// Package protocol defines the NHC2 wire vocabulary: topics, methods,
// property keys and values, and the JSON message envelope.
//
// The controller exchanges JSON documents over MQTT. Every document carries
// a Method field, and device-bearing methods nest their devices under
// Params[].Devices. Properties travel as a list of single-key objects:
//
//	{"Uuid": "…", "Properties": [{"Status": "On"}, {"Brightness": "40"}]}
//
// This package has no knowledge of the transport; the bus client and the
// router import it to agree on names.
package protocol
