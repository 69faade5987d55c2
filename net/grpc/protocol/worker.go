package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Meander-Cloud/go-uplink/config"
	m "github.com/Meander-Cloud/go-uplink/message"
	"github.com/Meander-Cloud/go-uplink/queue"
)

type Outcome uint8

const (
	OutcomeInvalid       Outcome = 0
	OutcomeCompleted     Outcome = 1
	OutcomeUnimplemented Outcome = 2
	OutcomeFailed        Outcome = 3
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "Invalid"
	case OutcomeCompleted:
		return "Completed"
	case OutcomeUnimplemented:
		return "Unimplemented"
	case OutcomeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Fatal reports whether the outcome ends the whole connection. Completed is
// fatal too, an upload stream only completes when its connection ends.
func (o Outcome) Fatal() bool {
	return o == OutcomeCompleted || o == OutcomeFailed
}

type Result struct {
	Kind    m.Kind
	Outcome Outcome
	Sent    uint64
	Err     error
}

type WorkerOptions[T comparable] struct {
	Kind   m.Kind
	Method string
	Queue  *queue.Queue[T]
	// Encode maps a queued item to the message written on the stream.
	Encode       func(T) (any, error)
	PollInterval time.Duration
	AckTimeout   time.Duration
	OnSent       func(T)
	Logger       *zap.Logger
}

// Worker drains one queue into one client-streaming call. A is the reply
// type that acknowledges the stream.
type Worker[T comparable, A any] struct {
	options      *WorkerOptions[T]
	log          *zap.Logger
	pollInterval time.Duration
	ackTimeout   time.Duration
}

func NewWorker[T comparable, A any](options *WorkerOptions[T]) (*Worker[T, A], error) {
	if options.Queue == nil {
		return nil, fmt.Errorf("%s: nil Queue", options.Kind)
	}

	if options.Encode == nil {
		return nil, fmt.Errorf("%s: nil Encode", options.Kind)
	}

	if options.Method == "" {
		return nil, fmt.Errorf("%s: empty Method", options.Kind)
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var pollInterval time.Duration
	if options.PollInterval == 0 {
		pollInterval = config.PollInterval
	} else {
		pollInterval = options.PollInterval
	}

	var ackTimeout time.Duration
	if options.AckTimeout == 0 {
		ackTimeout = config.AckTimeout
	} else {
		ackTimeout = options.AckTimeout
	}

	return &Worker[T, A]{
		options:      options,
		log:          logger.With(zap.Stringer("kind", options.Kind), zap.String("method", options.Method)),
		pollInterval: pollInterval,
		ackTimeout:   ackTimeout,
	}, nil
}

// Run blocks until the stream ends. Cancelling ctx stops draining, half
// closes the stream and waits up to the ack timeout for the server's reply.
// The stream itself is only aborted on ack timeout or when conn closes.
func (w *Worker[T, A]) Run(ctx context.Context, conn grpc.ClientConnInterface) Result {
	streamCtx, streamCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer streamCancel()

	stream, err := conn.NewStream(
		streamCtx,
		&grpc.StreamDesc{
			StreamName:    w.options.Method,
			ClientStreams: true,
		},
		w.options.Method,
	)
	if err != nil {
		return w.result(0, err)
	}
	w.log.Info("stream opened")

	// the reply arrives early only if the server ends the call on its own
	ackch := make(chan error, 1)
	go func() {
		ack := new(A)
		ackch <- stream.RecvMsg(ack)
	}()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var sent uint64
	for {
		if ctx.Err() != nil {
			w.log.Info("stream cancelled", zap.Uint64("sent", sent))
			break
		}

		item, ok := w.options.Queue.Pop()
		if ok {
			msg, err := w.options.Encode(item)
			if err != nil {
				// one malformed record must not end the stream
				w.log.Error("failed to encode record, dropping", zap.Error(err))
				continue
			}

			err = stream.SendMsg(msg)
			if errors.Is(err, io.EOF) {
				// server already finished, real status comes with the reply
				return w.awaitAck(ackch, streamCancel, sent)
			}
			if err != nil {
				return w.result(sent, err)
			}

			sent++
			if w.options.OnSent != nil {
				w.options.OnSent(item)
			}
			continue
		}

		if w.options.Queue.Closed() {
			w.log.Info("queue closed", zap.Uint64("sent", sent))
			break
		}

		select {
		case <-ctx.Done():
		case <-w.options.Queue.Ready():
		case <-ticker.C:
		case err := <-ackch:
			w.log.Info("stream ended by server", zap.Uint64("sent", sent))
			return w.result(sent, err)
		}
	}

	err = stream.CloseSend()
	if err != nil {
		w.log.Warn("failed to close send", zap.Error(err))
	}

	return w.awaitAck(ackch, streamCancel, sent)
}

func (w *Worker[T, A]) awaitAck(ackch <-chan error, streamCancel context.CancelFunc, sent uint64) Result {
	timer := time.NewTimer(w.ackTimeout)
	defer timer.Stop()

	select {
	case err := <-ackch:
		return w.result(sent, err)
	case <-timer.C:
		streamCancel()
		return w.result(sent, fmt.Errorf("%w after %v", ErrAckTimeout, w.ackTimeout))
	}
}

func (w *Worker[T, A]) result(sent uint64, err error) Result {
	r := Result{
		Kind: w.options.Kind,
		Sent: sent,
		Err:  err,
	}

	switch {
	case err == nil:
		r.Outcome = OutcomeCompleted
		w.log.Info("stream completed", zap.Uint64("sent", sent))
	case status.Code(err) == codes.Unimplemented:
		r.Outcome = OutcomeUnimplemented
		w.log.Warn("stream unimplemented by server", zap.Error(err))
	default:
		r.Outcome = OutcomeFailed
		w.log.Warn("stream failed", zap.Uint64("sent", sent), zap.Error(err))
	}

	return r
}
