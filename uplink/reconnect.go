package uplink

import (
	"github.com/Meander-Cloud/go-schedule/scheduler"
	"go.uber.org/zap"

	g "github.com/Meander-Cloud/go-uplink/group"
	m "github.com/Meander-Cloud/go-uplink/message"
)

// arbiter goroutine
func (u *Uplink) maybeReconnect() {
	if !u.state.Retry || u.state.UserCancelled || !u.state.HasSettings {
		u.log.Info(
			"reconnect not scheduled",
			zap.Bool("retry", u.state.Retry),
			zap.Bool("userCancelled", u.state.UserCancelled),
		)
		return
	}

	u.scheduleReconnect()
}

// arbiter goroutine
func (u *Uplink) scheduleReconnect() {
	if u.state.ReconnectScheduled {
		return
	}
	u.state.ReconnectScheduled = true
	u.mt.ReconnectsScheduled.Inc()

	wait := u.c.ReconnectBackoff
	u.a.Scheduler().ProcessSync(
		&scheduler.ScheduleAsyncEvent[g.Group]{
			AsyncVariant: scheduler.TimerAsync(
				true,
				[]g.Group{g.GroupReconnectWait},
				wait,
				func() {
					// invoked on arbiter goroutine
					u.state.ReconnectScheduled = false

					state := u.State()
					if u.state.UserCancelled || state != m.ConnectionStateDisconnected {
						u.log.Info(
							"reconnect superseded",
							zap.Stringer("state", state),
							zap.Bool("userCancelled", u.state.UserCancelled),
						)
						return
					}

					u.log.Info("reconnecting", zap.String("address", u.state.Settings.Address()))
					u.startConnect(
						&connectRequest{
							settings: u.state.Settings,
							retry:    u.state.Retry,
						},
					)
				},
				nil,
			),
		},
	)

	u.log.Info("reconnect scheduled", zap.Duration("wait", wait), zap.Stringer("group", g.GroupReconnectWait))
}

// arbiter goroutine
func (u *Uplink) releaseReconnect() {
	if !u.state.ReconnectScheduled {
		return
	}

	u.a.Scheduler().ProcessSync(
		&scheduler.ReleaseGroupEvent[g.Group]{
			Group: g.GroupReconnectWait,
		},
	)
	u.state.ReconnectScheduled = false

	u.log.Info("released", zap.Stringer("group", g.GroupReconnectWait))
}
