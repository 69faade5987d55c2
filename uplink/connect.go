package uplink

import (
	"go.uber.org/zap"

	m "github.com/Meander-Cloud/go-uplink/message"
	"github.com/Meander-Cloud/go-uplink/metric"
	ugrpc "github.com/Meander-Cloud/go-uplink/net/grpc"
	"github.com/Meander-Cloud/go-uplink/net/grpc/protocol"
)

// arbiter goroutine
func (u *Uplink) connect(req *connectRequest) {
	u.state.UserCancelled = false
	u.releaseReconnect()
	u.rememberSettings(req.settings)
	u.state.Retry = req.retry

	state := u.State()
	switch state {
	case m.ConnectionStateConnecting, m.ConnectionStateConnected:
		if !req.replace {
			u.log.Info("already active, settings remembered", zap.Stringer("state", state))
			return
		}

		u.log.Info("replacing live connection", zap.String("address", req.settings.Address()))
		u.state.PendingConnect = req
		u.beginTeardown(false)

	case m.ConnectionStateDisconnecting:
		u.log.Info("connect deferred until teardown completes")
		u.state.PendingConnect = req

	default:
		u.startConnect(req)
	}
}

// arbiter goroutine
func (u *Uplink) startConnect(req *connectRequest) {
	u.state.Generation++
	s := newSession(u.state.Generation, req.settings, u.log)
	u.state.Session = s

	u.setState(m.ConnectionStateConnecting)
	u.mt.ConnectAttempts.Inc()
	s.log.Info("connecting")

	go u.attempt(s)
}

// runs on its own goroutine, reports back through the arbiter
func (u *Uplink) attempt(s *session) {
	mode := m.ProtocolModeInvalid

	channel, err := ugrpc.Dial(
		&ugrpc.Options{
			Address:           s.settings.Address(),
			KeepAliveInterval: u.c.KeepAliveInterval,
			KeepAliveTimeout:  u.c.KeepAliveTimeout,
			LogPrefix:         "Channel",
			Logger:            s.log,
		},
	)
	if err == nil {
		mode, err = protocol.Negotiate(
			s.ctx,
			channel.Conn(),
			&protocol.NegotiatorOptions{
				DeviceName: s.settings.DeviceName,
				SessionID:  s.id,
				Timeout:    u.c.HandshakeTimeout,
				Logger:     s.log,
			},
		)
	}

	dispatchErr := u.a.DispatchWait(
		func() {
			// invoked on arbiter goroutine
			u.connectFinished(s, channel, mode, err)
		},
	)
	if dispatchErr != nil && channel != nil {
		channel.Close()
	}
}

// arbiter goroutine
func (u *Uplink) connectFinished(s *session, channel *ugrpc.Channel, mode m.ProtocolMode, err error) {
	if u.state.Session != s {
		s.log.Info("superseded attempt finished, discarding")
		if channel != nil {
			channel.Close()
		}
		return
	}
	s.channel = channel

	if s.tearingDown {
		// disconnected while still connecting
		if channel != nil {
			channel.Close()
		}
		u.teardownComplete(s)
		return
	}

	if err != nil {
		s.log.Warn("connect failed", zap.Error(err))
		if channel != nil {
			channel.Close()
		}
		s.cancel()
		u.state.Session = nil
		u.setState(m.ConnectionStateDisconnected)
		u.maybeReconnect()
		return
	}

	s.mode = mode
	u.mt.Negotiated(mode)

	for _, kind := range s.settings.EnabledKinds() {
		l, err := newLane(u, s, kind)
		if err != nil {
			s.log.Error("failed to create stream worker", zap.Stringer("kind", kind), zap.Error(err))
			continue
		}
		s.lanes[kind] = l
	}

	u.setMode(mode)
	for _, l := range s.lanes {
		u.startWorker(s, l)
	}

	// records are accepted before observers hear CONNECTED, so an observer
	// publishing from its callback is not dropped
	u.live.Store(s)
	for kind := range s.lanes {
		u.r.Subscribe(kind, u)
	}

	u.setState(m.ConnectionStateConnected)
	s.log.Info("connected", zap.Stringer("mode", mode), zap.Int("streams", len(s.lanes)))
}

// arbiter goroutine
func (u *Uplink) startWorker(s *session, l lane) {
	conn := s.channel.Conn()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		r := l.run(s.ctx, conn)
		_ = u.a.DispatchWait(
			func() {
				// invoked on arbiter goroutine
				u.workerFinished(s, l, r)
			},
		)
	}()
}

// arbiter goroutine
func (u *Uplink) workerFinished(s *session, l lane, r protocol.Result) {
	u.mt.StreamResult(r.Kind, r.Outcome.String())

	if u.state.Session != s || s.tearingDown {
		return
	}

	logger := s.log.With(
		zap.Stringer("kind", r.Kind),
		zap.Stringer("outcome", r.Outcome),
		zap.Uint64("sent", r.Sent),
		zap.Error(r.Err),
	)

	if !r.Outcome.Fatal() {
		// only this kind stops, the rest of the connection stays up
		l.close()
		u.mt.Dropped(r.Kind, metric.DropStreamStopped, l.discard())
		u.r.Unsubscribe(r.Kind, u)
		logger.Warn("stream stopped")
		return
	}

	logger.Warn("stream ended, tearing down connection")
	u.beginTeardown(true)
}
