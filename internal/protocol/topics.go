package protocol

// Topic suffixes appended to the profile creation id.
// The controller namespaces every feed under the authenticated profile:
//
//	{profile}/system/{cmd,rsp,evt}
//	{profile}/control/devices/{cmd,rsp,evt}
const (
	suffixSystemCommand   = "/system/cmd"
	suffixSystemResponse  = "/system/rsp"
	suffixSystemEvent     = "/system/evt"
	suffixDevicesCommand  = "/control/devices/cmd"
	suffixDevicesResponse = "/control/devices/rsp"
	suffixDevicesEvent    = "/control/devices/evt"
)

// Topics provides builders for the NHC2 topics of one profile.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := protocol.NewTopics("hobby")
//	topics.DevicesCommand() // "hobby/control/devices/cmd"
type Topics struct {
	profile string
}

// NewTopics returns the topic set scoped to profile.
func NewTopics(profile string) Topics {
	return Topics{profile: profile}
}

// Profile returns the scope every topic is built under.
func (t Topics) Profile() string {
	return t.profile
}

// =============================================================================
// Public (system) feeds
// =============================================================================

// SystemCommand is where system-info requests are published.
func (t Topics) SystemCommand() string {
	return t.profile + suffixSystemCommand
}

// SystemResponse carries replies to SystemCommand requests.
func (t Topics) SystemResponse() string {
	return t.profile + suffixSystemResponse
}

// SystemEvent carries unsolicited controller notifications such as
// systeminfo.published.
func (t Topics) SystemEvent() string {
	return t.profile + suffixSystemEvent
}

// =============================================================================
// Scoped (devices) feeds
// =============================================================================

// DevicesCommand is where device-list requests and control batches are published.
func (t Topics) DevicesCommand() string {
	return t.profile + suffixDevicesCommand
}

// DevicesResponse carries the device-list snapshot.
func (t Topics) DevicesResponse() string {
	return t.profile + suffixDevicesResponse
}

// DevicesEvent carries devices.status and devices.changed deltas.
func (t Topics) DevicesEvent() string {
	return t.profile + suffixDevicesEvent
}

// Subscriptions returns the four feeds a session listens to after connecting,
// in subscribe order.
func (t Topics) Subscriptions() []string {
	return []string{
		t.DevicesResponse(),
		t.SystemResponse(),
		t.DevicesEvent(),
		t.SystemEvent(),
	}
}
