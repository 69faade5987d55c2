package uplink

import (
	m "github.com/Meander-Cloud/go-uplink/message"
	"github.com/Meander-Cloud/go-uplink/metric"
)

// The record callbacks run on producer goroutines. A record is queued only
// while connected and its kind's stream is open, otherwise it is dropped.

func (u *Uplink) OnCellular(rec *m.Cellular) {
	u.enqueue(m.KindCellular, rec)
}

func (u *Uplink) OnWifi(rec *m.Wifi) {
	u.enqueue(m.KindWifi, rec)
}

func (u *Uplink) OnBluetooth(rec *m.Bluetooth) {
	u.enqueue(m.KindBluetooth, rec)
}

func (u *Uplink) OnGnss(rec *m.Gnss) {
	u.enqueue(m.KindGnss, rec)
}

func (u *Uplink) OnPhoneState(rec *m.PhoneState) {
	u.enqueue(m.KindPhoneState, rec)
}

func (u *Uplink) OnDeviceStatus(rec *m.DeviceStatus) {
	u.enqueue(m.KindDeviceStatus, rec)
}

func (u *Uplink) enqueue(kind m.Kind, rec m.Record) {
	s := u.live.Load()
	if s == nil {
		u.mt.Dropped(kind, metric.DropNotConnected, 1)
		return
	}

	if !s.settings.Enabled(kind) {
		u.mt.Dropped(kind, metric.DropNotEnabled, 1)
		return
	}

	l, found := s.lanes[kind]
	if !found || !l.push(rec) {
		u.mt.Dropped(kind, metric.DropStreamStopped, 1)
		return
	}

	u.mt.Enqueued(kind)
}
