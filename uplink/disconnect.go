package uplink

import (
	"go.uber.org/zap"

	m "github.com/Meander-Cloud/go-uplink/message"
	"github.com/Meander-Cloud/go-uplink/metric"
)

// arbiter goroutine
func (u *Uplink) disconnect(userInitiated bool) {
	// any explicit disconnect supersedes a pending reconnect or connect
	u.releaseReconnect()
	u.state.PendingConnect = nil
	if userInitiated {
		u.state.UserCancelled = true
	}

	state := u.State()
	switch state {
	case m.ConnectionStateConnecting, m.ConnectionStateConnected:
		u.beginTeardown(false)
	default:
		u.log.Info("nothing to disconnect", zap.Stringer("state", state), zap.Bool("userInitiated", userInitiated))
	}
}

// arbiter goroutine
func (u *Uplink) beginTeardown(reconnect bool) {
	s := u.state.Session
	if s == nil || s.tearingDown {
		return
	}
	s.tearingDown = true
	s.reconnect = reconnect

	// stop accepting records before anything else
	u.live.Store(nil)
	u.setState(m.ConnectionStateDisconnecting)

	n := u.r.UnsubscribeAll(u)
	s.cancel()
	s.log.Info("tearing down", zap.Int("unsubscribed", n), zap.Bool("reconnect", reconnect))

	if s.channel == nil {
		// still negotiating, connectFinished completes the teardown
		return
	}

	go u.drain(s)
}

// drain waits for the workers to flush and half close, forces the channel
// shut after the grace period and drops whatever is still queued.
func (u *Uplink) drain(s *session) {
	grace := u.c.ShutdownGrace

	if !s.waitWorkers(grace) {
		s.log.Warn("streams still open after grace, closing channel", zap.Duration("grace", grace))
	}
	s.channel.Close()

	if !s.waitWorkers(grace) {
		s.log.Error("streams still running after channel close", zap.Duration("grace", grace))
	}

	for kind, l := range s.lanes {
		l.close()
		u.mt.Dropped(kind, metric.DropDisconnect, l.discard())
	}

	_ = u.a.DispatchWait(
		func() {
			// invoked on arbiter goroutine
			u.teardownComplete(s)
		},
	)
}

// arbiter goroutine
func (u *Uplink) teardownComplete(s *session) {
	if u.state.Session != s {
		return
	}
	u.state.Session = nil

	u.setState(m.ConnectionStateDisconnected)
	s.log.Info("teardown complete")

	req := u.state.PendingConnect
	if req != nil {
		u.state.PendingConnect = nil
		u.startConnect(req)
		return
	}

	if s.reconnect {
		u.maybeReconnect()
	}
}
