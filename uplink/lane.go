package uplink

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	m "github.com/Meander-Cloud/go-uplink/message"
	"github.com/Meander-Cloud/go-uplink/net/grpc/protocol"
	"github.com/Meander-Cloud/go-uplink/queue"
)

type laneRecord interface {
	comparable
	m.Record
}

// lane is one record kind of a session: its queue and the worker draining it.
type lane interface {
	Kind() m.Kind
	push(m.Record) bool
	close()
	discard() int
	run(context.Context, grpc.ClientConnInterface) protocol.Result
}

type typedLane[T laneRecord] struct {
	kind m.Kind
	q    *queue.Queue[T]
	runf func(context.Context, grpc.ClientConnInterface) protocol.Result
}

func (l *typedLane[T]) Kind() m.Kind {
	return l.kind
}

func (l *typedLane[T]) push(rec m.Record) bool {
	v, ok := rec.(T)
	if !ok {
		return false
	}
	return l.q.Push(v)
}

func (l *typedLane[T]) close() {
	l.q.Close()
}

func (l *typedLane[T]) discard() int {
	return l.q.Discard()
}

func (l *typedLane[T]) run(ctx context.Context, conn grpc.ClientConnInterface) protocol.Result {
	return l.runf(ctx, conn)
}

func newLane(u *Uplink, s *session, kind m.Kind) (lane, error) {
	switch kind {
	case m.KindCellular:
		return newTypedLane[*m.Cellular](u, s, kind)
	case m.KindWifi:
		return newTypedLane[*m.Wifi](u, s, kind)
	case m.KindBluetooth:
		return newTypedLane[*m.Bluetooth](u, s, kind)
	case m.KindGnss:
		return newTypedLane[*m.Gnss](u, s, kind)
	case m.KindPhoneState:
		return newTypedLane[*m.PhoneState](u, s, kind)
	case m.KindDeviceStatus:
		return newTypedLane[*m.DeviceStatus](u, s, kind)
	default:
		return nil, fmt.Errorf("unsupported kind=%s", kind)
	}
}

// newTypedLane picks the wire encoding and acknowledgement type once, from
// the mode the session negotiated.
func newTypedLane[T laneRecord](u *Uplink, s *session, kind m.Kind) (lane, error) {
	q := queue.NewQueue[T]()
	mode := s.mode

	options := &protocol.WorkerOptions[T]{
		Kind:         kind,
		Method:       protocol.StreamMethod(mode, kind),
		Queue:        q,
		PollInterval: u.c.PollInterval,
		AckTimeout:   u.c.AckTimeout,
		OnSent: func(T) {
			u.mt.Sent(kind, mode)
		},
		Logger: s.log.With(zap.Stringer("mode", mode)),
	}

	l := &typedLane[T]{
		kind: kind,
		q:    q,
	}

	switch mode {
	case m.ProtocolModeCurrent:
		options.Encode = func(rec T) (any, error) {
			return m.NewEnvelope(rec), nil
		}

		w, err := protocol.NewWorker[T, m.Ack](options)
		if err != nil {
			return nil, err
		}
		l.runf = w.Run

	case m.ProtocolModeLegacy:
		options.Encode = func(rec T) (any, error) {
			lr, err := m.ToLegacy(rec)
			if err != nil {
				return nil, err
			}
			return lr, nil
		}

		w, err := protocol.NewWorker[T, m.LegacyAck](options)
		if err != nil {
			return nil, err
		}
		l.runf = w.Run

	default:
		return nil, fmt.Errorf("%s: no worker for mode=%s", kind, mode)
	}

	return l, nil
}
