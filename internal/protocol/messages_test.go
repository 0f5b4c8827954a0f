package protocol

import (
	"errors"
	"testing"
)

func TestTopics(t *testing.T) {
	topics := NewTopics("hobby")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"SystemCommand", topics.SystemCommand(), "hobby/system/cmd"},
		{"SystemResponse", topics.SystemResponse(), "hobby/system/rsp"},
		{"SystemEvent", topics.SystemEvent(), "hobby/system/evt"},
		{"DevicesCommand", topics.DevicesCommand(), "hobby/control/devices/cmd"},
		{"DevicesResponse", topics.DevicesResponse(), "hobby/control/devices/rsp"},
		{"DevicesEvent", topics.DevicesEvent(), "hobby/control/devices/evt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}

	if got := len(topics.Subscriptions()); got != 4 {
		t.Errorf("Subscriptions() returned %d topics, want 4", got)
	}
}

func TestDecode_DeviceList(t *testing.T) {
	payload := []byte(`{
		"Method": "devices.list",
		"Params": [{"Devices": [
			{"Uuid": "u1", "Name": "Kitchen", "Type": "action", "Model": "light",
			 "Technology": "nikohomecontrol", "Online": "True",
			 "Properties": [{"Status": "On"}, {"Brightness": 40}]},
			{"Uuid": "u2", "Name": "Hall sensor", "Type": "sensor", "Model": "motion"}
		]}]
	}`)

	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.Method != MethodDevicesList {
		t.Errorf("Method = %q, want %q", msg.Method, MethodDevicesList)
	}

	devices := msg.Devices()
	if len(devices) != 2 {
		t.Fatalf("Devices() returned %d, want 2", len(devices))
	}

	d := devices[0]
	if !d.IsActionable() {
		t.Error("light IsActionable() = false, want true")
	}
	if devices[1].IsActionable() {
		t.Error("sensor IsActionable() = true, want false")
	}
	if v, ok := d.Property(KeyStatus); !ok || v != ValueOn {
		t.Errorf("Property(Status) = %q,%v want On,true", v, ok)
	}
	if v, _ := d.Property(KeyBrightness); v != "40" {
		t.Errorf("numeric Brightness decoded as %q, want \"40\"", v)
	}
	if online, present := d.OnlineState(); !online || !present {
		t.Errorf("OnlineState() = %v,%v want true,true", online, present)
	}
	if _, present := devices[1].OnlineState(); present {
		t.Error("OnlineState() present for record without Online")
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{oops"},
		{"missing method", `{"Params": []}`},
		{"array", `[1,2]`},
		{"bad properties", `{"Method":"devices.status","Params":[{"Devices":[{"Uuid":"u","Properties":"x"}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Decode() error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestRequest(t *testing.T) {
	if got := string(Request(MethodDevicesList)); got != `{"Method":"devices.list"}` {
		t.Errorf("Request() = %s", got)
	}
}

func TestControl_Deterministic(t *testing.T) {
	pending := map[string]map[string]string{
		"b-uuid": {KeyStatus: ValueOn},
		"a-uuid": {KeyBrightness: "40", KeyStatus: ValueOn},
	}

	got, err := Control(pending)
	if err != nil {
		t.Fatalf("Control() error = %v", err)
	}

	want := `{"Method":"devices.control","Params":[{"Devices":[` +
		`{"Uuid":"a-uuid","Properties":[{"Brightness":"40"},{"Status":"On"}]},` +
		`{"Uuid":"b-uuid","Properties":[{"Status":"On"}]}]}]}`
	if string(got) != want {
		t.Errorf("Control() =\n%s\nwant\n%s", got, want)
	}

	msg, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode(Control()) error = %v", err)
	}
	if n := len(msg.Devices()); n != 2 {
		t.Errorf("decoded control carries %d devices, want 2", n)
	}
}
