package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type recordingListener struct {
	got []Kind
}

func (l *recordingListener) OnCellular(*Cellular)         { l.got = append(l.got, KindCellular) }
func (l *recordingListener) OnWifi(*Wifi)                 { l.got = append(l.got, KindWifi) }
func (l *recordingListener) OnBluetooth(*Bluetooth)       { l.got = append(l.got, KindBluetooth) }
func (l *recordingListener) OnGnss(*Gnss)                 { l.got = append(l.got, KindGnss) }
func (l *recordingListener) OnPhoneState(*PhoneState)     { l.got = append(l.got, KindPhoneState) }
func (l *recordingListener) OnDeviceStatus(*DeviceStatus) { l.got = append(l.got, KindDeviceStatus) }

func TestKindParse(t *testing.T) {
	for _, k := range Kinds {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, parsed)

		parsed, ok = ParseKind(k.Label())
		require.True(t, ok)
		assert.Equal(t, k, parsed)

		rec := New(k)
		require.NotNil(t, rec)
		assert.Equal(t, k, rec.Kind())
	}

	_, ok := ParseKind("lora")
	assert.False(t, ok)
	assert.Nil(t, New(KindInvalid))
}

func TestDeliverRoutesByType(t *testing.T) {
	l := &recordingListener{}
	for _, k := range Kinds {
		require.NoError(t, Deliver(l, New(k)))
	}
	assert.Equal(t, Kinds, l.got)
}

func TestRawEnvelopeDecode(t *testing.T) {
	sent := &Gnss{
		Header: Header{
			DeviceSerialNumber: "353627070000001",
			DeviceTime:         1700000000123,
			Latitude:           51.5,
			Longitude:          -0.12,
			RecordNumber:       7,
		},
		Constellation:  "GPS",
		SpaceVehicleID: 12,
		CarrierToNoise: 41.5,
	}

	b, err := msgpack.Marshal(NewEnvelope(sent))
	require.NoError(t, err)

	var raw RawEnvelope
	require.NoError(t, msgpack.Unmarshal(b, &raw))
	assert.Equal(t, CurrentVersion, raw.Version)

	rec, err := raw.Decode()
	require.NoError(t, err)
	assert.Equal(t, sent, rec)
}

func TestLegacyConversion(t *testing.T) {
	deviceTime := time.Date(2024, 3, 1, 12, 30, 15, 250*int(time.Millisecond), time.UTC)
	sent := &PhoneState{
		Header: Header{
			DeviceSerialNumber: "353627070000001",
			DeviceName:         "survey-1",
			DeviceTime:         deviceTime.UnixMilli(),
			Latitude:           35.1,
			Longitude:          -106.6,
			Altitude:           1600.5,
			Accuracy:           4,
			MissionID:          "mission-a",
			RecordNumber:       42,
		},
		SimState:    "READY",
		SimOperator: "310410",
		NetworkRegistration: []*NetworkRegistration{
			{Domain: "PS", Technology: "LTE", Registration: "HOME"},
		},
	}

	lr, err := ToLegacy(sent)
	require.NoError(t, err)
	assert.Equal(t, LegacyVersion, lr.Version)
	assert.Equal(t, "phone_state", lr.Kind)
	assert.Equal(t, "2024-03-01T12:30:15.250Z", lr.DeviceTime)
	assert.NotContains(t, lr.Detail, "DeviceTime")
	assert.Contains(t, lr.Detail, "SimState")

	// the legacy record travels on the wire before it is converted back
	b, err := msgpack.Marshal(lr)
	require.NoError(t, err)
	var received LegacyRecord
	require.NoError(t, msgpack.Unmarshal(b, &received))

	rec, err := FromLegacy(&received)
	require.NoError(t, err)
	got, ok := rec.(*PhoneState)
	require.True(t, ok)

	// accuracy has no legacy field
	want := *sent
	want.Accuracy = 0
	assert.Equal(t, &want, got)
}

func TestFromLegacyRejectsUnknownKind(t *testing.T) {
	_, err := FromLegacy(&LegacyRecord{Kind: "lora"})
	assert.Error(t, err)

	_, err = FromLegacy(&LegacyRecord{Kind: "gnss", DeviceTime: "yesterday"})
	assert.Error(t, err)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "Connected", ConnectionStateConnected.String())
	assert.Equal(t, "Disconnecting", ConnectionStateDisconnecting.String())
	assert.Equal(t, "Legacy", ProtocolModeLegacy.String())
	assert.Equal(t, "NR", CellularTechnologyNr.String())
	assert.Equal(t, "Unknown Kind", Kind(99).String())
}
