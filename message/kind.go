package message

type Kind uint8

const (
	KindInvalid      Kind = 0
	KindCellular     Kind = 1
	KindWifi         Kind = 2
	KindBluetooth    Kind = 3
	KindGnss         Kind = 4
	KindPhoneState   Kind = 5
	KindDeviceStatus Kind = 6
)

// Kinds lists every streamable record kind in wire order.
var Kinds = []Kind{
	KindCellular,
	KindWifi,
	KindBluetooth,
	KindGnss,
	KindPhoneState,
	KindDeviceStatus,
}

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid Kind"
	case KindCellular:
		return "Cellular"
	case KindWifi:
		return "Wifi"
	case KindBluetooth:
		return "Bluetooth"
	case KindGnss:
		return "Gnss"
	case KindPhoneState:
		return "PhoneState"
	case KindDeviceStatus:
		return "DeviceStatus"
	default:
		return "Unknown Kind"
	}
}

// Label is the lowercase form used in metric labels and config keys.
func (k Kind) Label() string {
	switch k {
	case KindCellular:
		return "cellular"
	case KindWifi:
		return "wifi"
	case KindBluetooth:
		return "bluetooth"
	case KindGnss:
		return "gnss"
	case KindPhoneState:
		return "phone_state"
	case KindDeviceStatus:
		return "device_status"
	default:
		return "unknown"
	}
}

// ParseKind accepts either the String or the Label form.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if s == k.String() || s == k.Label() {
			return k, true
		}
	}
	return KindInvalid, false
}
