package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	m "github.com/Meander-Cloud/go-uplink/message"
)

// ServerHandler is invoked on gRPC handler goroutines. A non-nil error from
// StreamOpened or RecordReceived ends that stream with the error's status,
// codes.Internal if it carries none.
type ServerHandler interface {
	// returning an error rejects the handshake
	Handshake(*Server, m.ProtocolMode, *m.HandshakeRequest) error
	StreamOpened(*Server, m.ProtocolMode, m.Kind) error
	RecordReceived(*Server, m.ProtocolMode, m.Kind, m.Record) error
}

type ServerOptions struct {
	Address string
	// Families lists the call families served, both when empty.
	Families []m.ProtocolMode
	// Unimplemented kinds are not registered in any family.
	Unimplemented []m.Kind
	ServerHandler

	LogPrefix string
	Logger    *zap.Logger
}

// Server collects uploads from devices. It speaks both call families so the
// same process can serve current and legacy clients.
type Server struct {
	options    *ServerOptions
	log        *zap.Logger
	listener   net.Listener
	grpcServer *grpc.Server
	inShutdown atomic.Bool

	// if increment overflow will wrap to zero
	streamIDGen atomic.Uint32

	servech chan struct{}
}

func NewServer(options *ServerOptions) (*Server, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(options.LogPrefix)

	if options.ServerHandler == nil {
		err := fmt.Errorf("%s: nil ServerHandler", options.LogPrefix)
		logger.Error("invalid options", zap.Error(err))
		return nil, err
	}

	families := options.Families
	if len(families) == 0 {
		families = []m.ProtocolMode{m.ProtocolModeCurrent, m.ProtocolModeLegacy}
	}

	listener, err := net.Listen("tcp", options.Address)
	if err != nil {
		logger.Error("failed to listen", zap.String("address", options.Address), zap.Error(err))
		return nil, err
	}

	p := &Server{
		options:  options,
		log:      logger,
		listener: listener,
		grpcServer: grpc.NewServer(
			grpc.ForceServerCodec(Codec{}),
			grpc.KeepaliveEnforcementPolicy(
				keepalive.EnforcementPolicy{
					MinTime:             10 * time.Second,
					PermitWithoutStream: true,
				},
			),
		),
		servech: make(chan struct{}),
	}

	for _, mode := range families {
		p.grpcServer.RegisterService(p.serviceDesc(mode), p)
	}

	go func() {
		defer close(p.servech)

		err := p.grpcServer.Serve(listener)
		if err != nil && !p.inShutdown.Load() {
			p.log.Error("serve exited", zap.Error(err))
		}
	}()

	p.log.Info(
		"listening",
		zap.Stringer("address", listener.Addr()),
		zap.Stringers("families", families),
		zap.Stringers("unimplemented", options.Unimplemented),
	)

	return p, nil
}

func (p *Server) Addr() net.Addr {
	return p.listener.Addr()
}

// Port is the bound port, useful when Address asked for port 0.
func (p *Server) Port() uint16 {
	addr, ok := p.listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return uint16(addr.Port)
}

// Shutdown stops accepting calls and waits up to grace for open streams to
// finish before closing them.
func (p *Server) Shutdown(grace time.Duration) {
	if p.inShutdown.Swap(true) {
		return
	}
	p.log.Info("server closing")

	stoppedch := make(chan struct{})
	go func() {
		p.grpcServer.GracefulStop()
		close(stoppedch)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-stoppedch:
	case <-timer.C:
		p.log.Warn("graceful stop timed out, forcing", zap.Duration("grace", grace))
		p.grpcServer.Stop()
		<-stoppedch
	}

	<-p.servech
	p.log.Info("server closed")
}

func (p *Server) serviceDesc(mode m.ProtocolMode) *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: serviceName(mode),
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: handshakeName(mode),
				Handler:    p.handshakeHandler(mode),
			},
		},
	}

	for _, kind := range m.Kinds {
		if slices.Contains(p.options.Unimplemented, kind) {
			continue
		}

		desc.Streams = append(
			desc.Streams,
			grpc.StreamDesc{
				StreamName:    streamName(mode, kind),
				Handler:       p.streamHandler(mode, kind),
				ClientStreams: true,
			},
		)
	}

	return desc
}

func (p *Server) handshakeHandler(mode m.ProtocolMode) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(_ any, _ context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		if mode == m.ProtocolModeLegacy {
			hello := &m.LegacyHello{}
			err := dec(hello)
			if err != nil {
				return nil, err
			}

			err = p.options.Handshake(
				p,
				mode,
				&m.HandshakeRequest{
					DeviceName: hello.DeviceName,
					Version:    m.LegacyVersion,
				},
			)
			if err != nil {
				p.log.Info("legacy handshake rejected", zap.String("deviceName", hello.DeviceName), zap.Error(err))
				return nil, toStatus(err, codes.PermissionDenied)
			}

			p.log.Info("legacy handshake accepted", zap.String("deviceName", hello.DeviceName))
			return &m.LegacyHelloReply{Status: "OK"}, nil
		}

		req := &m.HandshakeRequest{}
		err := dec(req)
		if err != nil {
			return nil, err
		}

		err = p.options.Handshake(p, mode, req)
		if err != nil {
			if _, ok := status.FromError(err); ok {
				return nil, err
			}

			p.log.Info("handshake rejected", zap.String("deviceName", req.DeviceName), zap.Error(err))
			return &m.HandshakeResponse{
				Accepted:      false,
				ServerVersion: m.CurrentVersion,
				Reason:        err.Error(),
			}, nil
		}

		p.log.Info("handshake accepted", zap.String("deviceName", req.DeviceName), zap.String("sessionID", req.SessionID))
		return &m.HandshakeResponse{
			Accepted:      true,
			ServerVersion: m.CurrentVersion,
		}, nil
	}
}

func (p *Server) streamHandler(mode m.ProtocolMode, kind m.Kind) grpc.StreamHandler {
	return func(_ any, stream grpc.ServerStream) error {
		streamID := p.streamIDGen.Add(1)
		logger := p.log.With(
			zap.Uint32("streamID", streamID),
			zap.Stringer("mode", mode),
			zap.Stringer("kind", kind),
		)

		err := p.options.StreamOpened(p, mode, kind)
		if err != nil {
			logger.Info("stream refused", zap.Error(err))
			return toStatus(err, codes.Internal)
		}
		logger.Info("stream opened")

		var received uint64
		for {
			rec, err := p.readRecord(stream, mode)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				logger.Warn("failed to read record", zap.Uint64("received", received), zap.Error(err))
				return err
			}
			if rec.Kind() != kind {
				logger.Warn("record kind mismatch", zap.Stringer("recordKind", rec.Kind()))
				return status.Errorf(codes.InvalidArgument, "%s record on %s stream", rec.Kind(), kind)
			}

			err = p.options.RecordReceived(p, mode, kind, rec)
			if err != nil {
				logger.Info("record refused", zap.Uint64("received", received), zap.Error(err))
				return toStatus(err, codes.Internal)
			}
			received++
		}

		logger.Info("stream closed by client", zap.Uint64("received", received))

		if mode == m.ProtocolModeLegacy {
			return stream.SendMsg(&m.LegacyAck{Status: "OK"})
		}
		return stream.SendMsg(&m.Ack{Received: received})
	}
}

func (p *Server) readRecord(stream grpc.ServerStream, mode m.ProtocolMode) (m.Record, error) {
	if mode == m.ProtocolModeLegacy {
		lr := &m.LegacyRecord{}
		err := stream.RecvMsg(lr)
		if err != nil {
			return nil, err
		}

		rec, err := m.FromLegacy(lr)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return rec, nil
	}

	env := &m.RawEnvelope{}
	err := stream.RecvMsg(env)
	if err != nil {
		return nil, err
	}

	rec, err := env.Decode()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return rec, nil
}

func toStatus(err error, code codes.Code) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(code, err.Error())
}
