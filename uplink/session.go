package uplink

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Meander-Cloud/go-uplink/config"
	m "github.com/Meander-Cloud/go-uplink/message"
	ugrpc "github.com/Meander-Cloud/go-uplink/net/grpc"
)

// session is one connection attempt and, once negotiated, the live
// connection. Fields without a note are owned by the arbiter goroutine.
type session struct {
	id         string
	generation uint64
	settings   config.Settings
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	channel *ugrpc.Channel
	mode    m.ProtocolMode

	// immutable once the session is published as live
	lanes map[m.Kind]lane
	wg    sync.WaitGroup

	tearingDown bool
	reconnect   bool
}

func newSession(generation uint64, settings config.Settings, logger *zap.Logger) *session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	return &session{
		id:         id,
		generation: generation,
		settings:   settings,
		log: logger.With(
			zap.String("sessionID", id),
			zap.Uint64("generation", generation),
			zap.String("address", settings.Address()),
		),

		ctx:    ctx,
		cancel: cancel,

		mode:  m.ProtocolModeInvalid,
		lanes: make(map[m.Kind]lane),
	}
}

// waitWorkers returns false if the workers are still running after timeout.
func (s *session) waitWorkers(timeout time.Duration) bool {
	donech := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(donech)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-donech:
		return true
	case <-timer.C:
		return false
	}
}
