package message

import "fmt"

// Listener receives typed records from the scanning subsystem. Callbacks are
// invoked on producer goroutines and must not block.
type Listener interface {
	OnCellular(*Cellular)
	OnWifi(*Wifi)
	OnBluetooth(*Bluetooth)
	OnGnss(*Gnss)
	OnPhoneState(*PhoneState)
	OnDeviceStatus(*DeviceStatus)
}

// Deliver routes rec to the kind-specific callback of l.
func Deliver(l Listener, rec Record) error {
	switch r := rec.(type) {
	case *Cellular:
		l.OnCellular(r)
	case *Wifi:
		l.OnWifi(r)
	case *Bluetooth:
		l.OnBluetooth(r)
	case *Gnss:
		l.OnGnss(r)
	case *PhoneState:
		l.OnPhoneState(r)
	case *DeviceStatus:
		l.OnDeviceStatus(r)
	default:
		return fmt.Errorf("unsupported record type %T", rec)
	}
	return nil
}
