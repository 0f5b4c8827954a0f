package protocol

// Methods carried in the Method field of every message.
const (
	MethodSystemInfoPublish   = "systeminfo.publish"
	MethodSystemInfoPublished = "systeminfo.published"
	MethodDevicesList         = "devices.list"
	MethodDevicesStatus       = "devices.status"
	MethodDevicesChanged      = "devices.changed"
	MethodDevicesControl      = "devices.control"
)

// Device types. Only these two are actionable; everything else (sensors,
// virtual devices, energy meters) is left out of the registry.
const (
	TypeAction     = "action"
	TypeThermostat = "thermostat"
)

// Property keys read or written by the device classes.
const (
	KeyStatus     = "Status"
	KeyBrightness = "Brightness"
	KeyPosition   = "Position"
	KeyAction     = "Action"
	KeyFanSpeed   = "FanSpeed"
	KeyBasicState = "BasicState"

	KeyAmbientTemperature  = "AmbientTemperature"
	KeySetpointTemperature = "SetpointTemperature"
	KeyProgram             = "Program"
	KeyOverruleActive      = "OverruleActive"
	KeyOverruleSetpoint    = "OverruleSetpoint"
	KeyOverruleTime        = "OverruleTime"
	KeyEcoSave             = "EcoSave"
)

// Property values.
const (
	ValueOn        = "On"
	ValueOff       = "Off"
	ValueOpen      = "Open"
	ValueStop      = "Stop"
	ValueClose     = "Close"
	ValueTriggered = "Triggered"
	ValueTrue      = "True"
	ValueFalse     = "False"
)

// Fan speed levels accepted by the controller.
const (
	FanSpeedLow    = "Low"
	FanSpeedMedium = "Medium"
	FanSpeedHigh   = "High"
	FanSpeedBoost  = "Boost"
)

// FanSpeeds lists the valid speed levels in ascending order.
var FanSpeeds = []string{FanSpeedLow, FanSpeedMedium, FanSpeedHigh, FanSpeedBoost}
