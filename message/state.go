package message

type ConnectionState uint8

const (
	ConnectionStateDisconnected  ConnectionState = 0
	ConnectionStateConnecting    ConnectionState = 1
	ConnectionStateConnected     ConnectionState = 2
	ConnectionStateDisconnecting ConnectionState = 3
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateDisconnected:
		return "Disconnected"
	case ConnectionStateConnecting:
		return "Connecting"
	case ConnectionStateConnected:
		return "Connected"
	case ConnectionStateDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown State"
	}
}

type ProtocolMode uint8

const (
	ProtocolModeInvalid ProtocolMode = 0
	ProtocolModeCurrent ProtocolMode = 1
	ProtocolModeLegacy  ProtocolMode = 2
)

func (m ProtocolMode) String() string {
	switch m {
	case ProtocolModeInvalid:
		return "Invalid Mode"
	case ProtocolModeCurrent:
		return "Current"
	case ProtocolModeLegacy:
		return "Legacy"
	default:
		return "Unknown Mode"
	}
}
