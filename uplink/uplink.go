// Package uplink streams survey records to a collection server. It owns the
// connection lifecycle: negotiation, one upload stream per enabled record
// kind, teardown on failure and the fixed-backoff reconnect.
package uplink

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Meander-Cloud/go-uplink/arbiter"
	"github.com/Meander-Cloud/go-uplink/config"
	m "github.com/Meander-Cloud/go-uplink/message"
	"github.com/Meander-Cloud/go-uplink/metric"
	"github.com/Meander-Cloud/go-uplink/registry"
)

type connectRequest struct {
	settings config.Settings
	retry    bool
	replace  bool
}

type ConnectOption func(*connectRequest)

// WithoutRetry disables the automatic reconnect after a failure of this
// connection.
func WithoutRetry() ConnectOption {
	return func(req *connectRequest) {
		req.retry = false
	}
}

// ReplaceLive tears down a connection that is connecting or connected and
// connects again with the new settings.
func ReplaceLive() ConnectOption {
	return func(req *connectRequest) {
		req.replace = true
	}
}

// Uplink is the connection orchestrator. Every exported method is safe for
// concurrent use and returns without waiting on the network.
type Uplink struct {
	c   *config.Config
	a   *arbiter.Arbiter
	r   *registry.Registry
	mt  *metric.Metrics
	log *zap.Logger

	// owned by arbiter goroutine
	state *State

	// written on arbiter goroutine, read anywhere
	mutex           sync.RWMutex
	connectionState m.ConnectionState
	mode            m.ProtocolMode
	settings        config.Settings
	hasSettings     bool

	// set only while connected, read by the record callbacks
	live atomic.Pointer[session]

	inShutdown atomic.Bool
}

func NewUplink(c *config.Config, r *registry.Registry, mt *metric.Metrics, logger *zap.Logger) (*Uplink, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}
	c = c.Resolved()

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(c.LogPrefix)

	if r == nil {
		r = registry.NewRegistry(logger)
	}
	if mt == nil {
		mt = metric.NewMetrics()
	}

	u := &Uplink{
		c:   c,
		r:   r,
		mt:  mt,
		log: logger,
		a: arbiter.NewArbiter(
			&arbiter.Options{
				EventChannelLength: c.EventChannelLength,
				LogPrefix:          "Arbiter",
				LogDebug:           c.LogDebug,
				Logger:             logger,
			},
		),
		state: NewState(),

		connectionState: m.ConnectionStateDisconnected,
		mode:            m.ProtocolModeInvalid,
	}
	u.mt.State(m.ConnectionStateDisconnected)

	return u, nil
}

// Connect validates settings and requests a connection. While connecting or
// connected the settings are only remembered for later reconnects, unless
// ReplaceLive is given.
func (u *Uplink) Connect(settings config.Settings, opts ...ConnectOption) error {
	err := settings.Validate()
	if err != nil {
		u.log.Error("connect rejected", zap.Error(err))
		return err
	}

	req := &connectRequest{
		settings: settings,
		retry:    true,
	}
	for _, opt := range opts {
		opt(req)
	}

	return u.a.DispatchWait(
		func() {
			// invoked on arbiter goroutine
			u.connect(req)
		},
	)
}

// Disconnect tears the connection down. A user-initiated disconnect also
// cancels any pending reconnect and suppresses new ones until the next
// Connect.
func (u *Uplink) Disconnect(userInitiated bool) error {
	return u.a.DispatchWait(
		func() {
			// invoked on arbiter goroutine
			u.disconnect(userInitiated)
		},
	)
}

func (u *Uplink) IsConnected() bool {
	return u.State() == m.ConnectionStateConnected
}

func (u *Uplink) State() m.ConnectionState {
	u.mutex.RLock()
	defer u.mutex.RUnlock()

	return u.connectionState
}

// Mode is the protocol negotiated by the current connection, Invalid when
// not connected.
func (u *Uplink) Mode() m.ProtocolMode {
	u.mutex.RLock()
	defer u.mutex.RUnlock()

	return u.mode
}

// Settings returns the settings remembered from the last Connect.
func (u *Uplink) Settings() (config.Settings, bool) {
	u.mutex.RLock()
	defer u.mutex.RUnlock()

	return u.settings, u.hasSettings
}

// RegisterStateListener adds l, notified synchronously on every state
// transition in registration order.
func (u *Uplink) RegisterStateListener(l registry.StateListener) bool {
	return u.r.AddStateListener(l)
}

func (u *Uplink) UnregisterStateListener(l registry.StateListener) bool {
	return u.r.RemoveStateListener(l)
}

// Shutdown disconnects, waits a bounded time for the teardown to finish and
// stops the arbiter.
func (u *Uplink) Shutdown() {
	if u.inShutdown.Swap(true) {
		return
	}

	waitch := make(chan struct{})
	err := u.a.Call(
		func() {
			// invoked on arbiter goroutine
			u.disconnect(true)

			if u.State() == m.ConnectionStateDisconnected {
				close(waitch)
				return
			}
			u.state.DisconnectWaiters = append(u.state.DisconnectWaiters, waitch)
		},
	)
	if err == nil {
		// two grace periods bound the teardown, see drain
		timeout := 2*u.c.ShutdownGrace + time.Second
		timer := time.NewTimer(timeout)
		select {
		case <-waitch:
		case <-timer.C:
			u.log.Warn("teardown did not finish before shutdown", zap.Duration("timeout", timeout))
		}
		timer.Stop()
	}

	u.a.Shutdown() // wait
	u.log.Info("shutdown complete")
}

// arbiter goroutine
func (u *Uplink) setState(state m.ConnectionState) {
	u.mutex.Lock()
	prev := u.connectionState
	u.connectionState = state
	if state != m.ConnectionStateConnected {
		u.mode = m.ProtocolModeInvalid
	}
	u.mutex.Unlock()

	if prev == state {
		return
	}

	u.log.Info("state transition", zap.String("state", prev.String()+" -> "+state.String()))
	u.mt.State(state)
	u.r.Notify(state)

	if state == m.ConnectionStateDisconnected {
		for _, waitch := range u.state.DisconnectWaiters {
			close(waitch)
		}
		u.state.DisconnectWaiters = nil
	}
}

// arbiter goroutine
func (u *Uplink) setMode(mode m.ProtocolMode) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.mode = mode
}

// arbiter goroutine
func (u *Uplink) rememberSettings(settings config.Settings) {
	u.state.Settings = settings
	u.state.HasSettings = true

	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.settings = settings
	u.hasSettings = true
}
