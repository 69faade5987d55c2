package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/Meander-Cloud/go-uplink/message"
)

type gnssListener struct {
	got   []*m.Gnss
	panic bool
}

func (*gnssListener) OnCellular(*m.Cellular)         {}
func (*gnssListener) OnWifi(*m.Wifi)                 {}
func (*gnssListener) OnBluetooth(*m.Bluetooth)       {}
func (*gnssListener) OnPhoneState(*m.PhoneState)     {}
func (*gnssListener) OnDeviceStatus(*m.DeviceStatus) {}

func (l *gnssListener) OnGnss(rec *m.Gnss) {
	if l.panic {
		panic("listener bug")
	}
	l.got = append(l.got, rec)
}

func TestHubPublish(t *testing.T) {
	h := NewHub(m.KindGnss, nil)
	a := &gnssListener{}
	faulty := &gnssListener{panic: true}
	b := &gnssListener{}

	h.Register(a)
	h.Register(a)
	h.Register(faulty)
	h.Register(b)
	assert.Equal(t, 3, h.Listeners())

	rec := &m.Gnss{Constellation: "GALILEO"}
	n, err := h.Publish(rec)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []*m.Gnss{rec}, a.got)
	assert.Equal(t, []*m.Gnss{rec}, b.got)

	h.Unregister(a)
	h.Unregister(a)
	assert.Equal(t, 2, h.Listeners())

	_, err = h.Publish(&m.Wifi{})
	assert.Error(t, err)
}
