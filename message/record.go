package message

import "time"

// Header carries the fields shared by every survey record.
type Header struct {
	DeviceSerialNumber string  `json:"device_serial_number"`
	DeviceName         string  `json:"device_name"`
	DeviceTime         int64   `json:"device_time"` // epoch milliseconds
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Altitude           float32 `json:"altitude"`
	Accuracy           float32 `json:"accuracy"`
	MissionID          string  `json:"mission_id"`
	RecordNumber       uint32  `json:"record_number"`
}

func (h *Header) RecordHeader() *Header {
	return h
}

// Time returns DeviceTime as a UTC time.
func (h *Header) Time() time.Time {
	return time.UnixMilli(h.DeviceTime).UTC()
}

// Record is implemented by every typed survey record.
type Record interface {
	Kind() Kind
	RecordHeader() *Header
}

// New returns an empty record of the given kind, nil for an unknown kind.
func New(kind Kind) Record {
	switch kind {
	case KindCellular:
		return &Cellular{}
	case KindWifi:
		return &Wifi{}
	case KindBluetooth:
		return &Bluetooth{}
	case KindGnss:
		return &Gnss{}
	case KindPhoneState:
		return &PhoneState{}
	case KindDeviceStatus:
		return &DeviceStatus{}
	default:
		return nil
	}
}
