package message

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const legacyTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope wraps one record for the current call family.
type Envelope struct {
	Version     string `json:"version"`
	MessageType string `json:"message_type"`
	Data        Record `json:"data"`
}

// RawEnvelope is the receiving side of Envelope, Data is decoded once the
// record kind is known.
type RawEnvelope struct {
	Version     string             `json:"version"`
	MessageType string             `json:"message_type"`
	Data        msgpack.RawMessage `json:"data"`
}

// Ack is the single reply closing a current-family upload stream.
type Ack struct {
	Received uint64 `json:"received"`
}

func NewEnvelope(rec Record) *Envelope {
	return &Envelope{
		Version:     CurrentVersion,
		MessageType: rec.Kind().String(),
		Data:        rec,
	}
}

func (e *RawEnvelope) Decode() (Record, error) {
	kind, ok := ParseKind(e.MessageType)
	if !ok {
		return nil, fmt.Errorf("unsupported MessageType=%s", e.MessageType)
	}

	rec := New(kind)
	err := msgpack.Unmarshal(e.Data, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s data, err=%w", kind, err)
	}
	return rec, nil
}

// LegacyRecord is the flat first-generation schema: header fields at the top
// level with the device time as text, everything kind specific in Detail.
type LegacyRecord struct {
	Version            string         `json:"version"`
	Kind               string         `json:"kind"`
	DeviceSerialNumber string         `json:"device_serial_number"`
	DeviceName         string         `json:"device_name"`
	DeviceTime         string         `json:"device_time"` // RFC 3339, millisecond precision
	Latitude           float64        `json:"latitude"`
	Longitude          float64        `json:"longitude"`
	Altitude           float64        `json:"altitude"`
	MissionID          string         `json:"mission_id"`
	RecordNumber       uint32         `json:"record_number"`
	Detail             map[string]any `json:"detail"`
}

// LegacyAck is the single reply closing a legacy-family upload stream.
type LegacyAck struct {
	Status string `json:"status"`
}

var headerKeys = []string{
	"DeviceSerialNumber",
	"DeviceName",
	"DeviceTime",
	"Latitude",
	"Longitude",
	"Altitude",
	"Accuracy",
	"MissionID",
	"RecordNumber",
}

// ToLegacy converts a typed record into the legacy schema. Accuracy has no
// legacy field and is not carried.
func ToLegacy(rec Record) (*LegacyRecord, error) {
	b, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s, err=%w", rec.Kind(), err)
	}

	detail := make(map[string]any)
	err = msgpack.Unmarshal(b, &detail)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten %s, err=%w", rec.Kind(), err)
	}
	for _, key := range headerKeys {
		delete(detail, key)
	}

	h := rec.RecordHeader()
	return &LegacyRecord{
		Version:            LegacyVersion,
		Kind:               rec.Kind().Label(),
		DeviceSerialNumber: h.DeviceSerialNumber,
		DeviceName:         h.DeviceName,
		DeviceTime:         h.Time().Format(legacyTimeLayout),
		Latitude:           h.Latitude,
		Longitude:          h.Longitude,
		Altitude:           float64(h.Altitude),
		MissionID:          h.MissionID,
		RecordNumber:       h.RecordNumber,
		Detail:             detail,
	}, nil
}

// FromLegacy rebuilds a typed record from the legacy schema.
func FromLegacy(lr *LegacyRecord) (Record, error) {
	kind, ok := ParseKind(lr.Kind)
	if !ok {
		return nil, fmt.Errorf("unsupported legacy Kind=%s", lr.Kind)
	}

	rec := New(kind)
	if len(lr.Detail) != 0 {
		b, err := msgpack.Marshal(lr.Detail)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal legacy %s detail, err=%w", kind, err)
		}
		err = msgpack.Unmarshal(b, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to decode legacy %s detail, err=%w", kind, err)
		}
	}

	var deviceTime int64
	if lr.DeviceTime != "" {
		t, err := time.Parse(legacyTimeLayout, lr.DeviceTime)
		if err != nil {
			return nil, fmt.Errorf("invalid legacy DeviceTime=%s, err=%w", lr.DeviceTime, err)
		}
		deviceTime = t.UnixMilli()
	}

	h := rec.RecordHeader()
	h.DeviceSerialNumber = lr.DeviceSerialNumber
	h.DeviceName = lr.DeviceName
	h.DeviceTime = deviceTime
	h.Latitude = lr.Latitude
	h.Longitude = lr.Longitude
	h.Altitude = float32(lr.Altitude)
	h.MissionID = lr.MissionID
	h.RecordNumber = lr.RecordNumber

	return rec, nil
}
