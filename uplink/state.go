package uplink

import (
	"github.com/Meander-Cloud/go-uplink/config"
)

// State is the orchestrator's bookkeeping, touched only on the arbiter
// goroutine.
type State struct {
	Generation uint64
	Session    *session // nil while disconnected

	Settings    config.Settings
	HasSettings bool
	Retry       bool

	// set by a user-initiated disconnect, cleared by the next connect
	UserCancelled bool

	// connect requested while the previous session was being torn down
	PendingConnect *connectRequest

	ReconnectScheduled bool

	DisconnectWaiters []chan struct{}
}

func NewState() *State {
	return &State{
		Retry: true,
	}
}
