package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedMessage is returned when a payload is not a JSON object
// carrying a Method field.
var ErrMalformedMessage = errors.New("protocol: malformed message")

// Message is the envelope of every NHC2 payload.
//
// Example (devices.status event):
//
//	{
//	  "Method": "devices.status",
//	  "Params": [{"Devices": [{"Uuid": "…", "Properties": [{"Status": "On"}]}]}]
//	}
type Message struct {
	// Method selects the handler, e.g. "devices.list".
	Method string `json:"Method"`

	// Params holds the method arguments. Device-bearing methods put their
	// devices in Params[i].Devices; other fields are ignored here.
	Params []Param `json:"Params,omitempty"`
}

// Param is one element of Message.Params.
type Param struct {
	Devices []Device `json:"Devices,omitempty"`
}

// Device is one device record, either a full snapshot entry (devices.list)
// or a partial delta (devices.status, devices.changed).
//
// Empty string fields mean "not present in this record".
type Device struct {
	UUID       string     `json:"Uuid"`
	Name       string     `json:"Name,omitempty"`
	Type       string     `json:"Type,omitempty"`
	Model      string     `json:"Model,omitempty"`
	Technology string     `json:"Technology,omitempty"`
	Identifier string     `json:"Identifier,omitempty"`
	Online     string     `json:"Online,omitempty"`
	Properties Properties `json:"Properties,omitempty"`
}

// IsActionable reports whether the device can be controlled.
func (d Device) IsActionable() bool {
	return d.Type == TypeAction || d.Type == TypeThermostat
}

// Property returns the value of key and whether the record carried it.
func (d Device) Property(key string) (string, bool) {
	v, ok := d.Properties[key]
	return v, ok
}

// OnlineState returns the decoded Online flag and whether it was present.
func (d Device) OnlineState() (online, present bool) {
	switch d.Online {
	case ValueTrue:
		return true, true
	case ValueFalse:
		return false, true
	default:
		return false, false
	}
}

// Properties is a flattened property set.
//
// On the wire it is a list of single-key objects,
// [{"Status":"On"},{"Brightness":"40"}]. Values are kept as strings; a
// non-string scalar is kept as its JSON text.
type Properties map[string]string

// MarshalJSON encodes the set as a list of single-key objects sorted by key.
func (p Properties) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]map[string]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, map[string]string{k: p[k]})
	}
	return json.Marshal(list)
}

// UnmarshalJSON decodes the list form. Later entries win on duplicate keys.
func (p *Properties) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}

	var list []map[string]json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decoding properties: %w", err)
	}

	out := make(Properties)
	for _, entry := range list {
		for k, raw := range entry {
			out[k] = rawString(raw)
		}
	}
	*p = out
	return nil
}

// rawString renders a JSON value as a property string.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// Decode parses an inbound payload.
func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.Method == "" {
		return Message{}, fmt.Errorf("%w: missing Method", ErrMalformedMessage)
	}
	return msg, nil
}

// Devices flattens the devices of every Params entry.
func (m Message) Devices() []Device {
	var out []Device
	for _, p := range m.Params {
		out = append(out, p.Devices...)
	}
	return out
}

// Request returns a parameterless request payload such as
// {"Method":"devices.list"}.
func Request(method string) []byte {
	// Marshal of a single string field cannot fail.
	b, _ := json.Marshal(struct {
		Method string `json:"Method"`
	}{Method: method})
	return b
}

// Control builds the devices.control payload for a batch of pending writes
// keyed by uuid then property key. Devices are emitted in uuid order so the
// payload is deterministic for a given batch.
func Control(pending map[string]map[string]string) ([]byte, error) {
	uuids := make([]string, 0, len(pending))
	for uuid := range pending {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)

	devices := make([]Device, 0, len(uuids))
	for _, uuid := range uuids {
		devices = append(devices, Device{
			UUID:       uuid,
			Properties: Properties(pending[uuid]),
		})
	}

	msg := Message{
		Method: MethodDevicesControl,
		Params: []Param{{Devices: devices}},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", MethodDevicesControl, err)
	}
	return b, nil
}
