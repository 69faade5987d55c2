package group

type Group uint8

const (
	GroupInvalid       Group = 0
	GroupReconnectWait Group = 1
)

func (g Group) String() string {
	switch g {
	case GroupInvalid:
		return "Invalid Group"
	case GroupReconnectWait:
		return "Reconnect Wait"
	default:
		return "Unknown Group"
	}
}
