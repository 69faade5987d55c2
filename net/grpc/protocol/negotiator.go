package protocol

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Meander-Cloud/go-uplink/config"
	m "github.com/Meander-Cloud/go-uplink/message"
)

type NegotiatorOptions struct {
	DeviceName string
	SessionID  string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Negotiate determines which call family the server behind conn speaks. The
// current handshake is tried first; only an Unimplemented status falls back
// to the legacy handshake, any other failure ends negotiation.
func Negotiate(ctx context.Context, conn grpc.ClientConnInterface, options *NegotiatorOptions) (m.ProtocolMode, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var timeout time.Duration
	if options.Timeout == 0 {
		timeout = config.HandshakeTimeout
	} else {
		timeout = options.Timeout
	}

	err := func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp := &m.HandshakeResponse{}
		err := conn.Invoke(
			callCtx,
			HandshakeMethod(m.ProtocolModeCurrent),
			&m.HandshakeRequest{
				DeviceName: options.DeviceName,
				SessionID:  options.SessionID,
				Version:    m.CurrentVersion,
				Txtime:     time.Now().UTC().UnixMilli(),
			},
			resp,
		)
		if err != nil {
			return err
		}

		if !resp.Accepted {
			return fmt.Errorf("%w: serverVersion=%s, reason=%s", ErrHandshakeRejected, resp.ServerVersion, resp.Reason)
		}

		logger.Info("current handshake accepted", zap.String("serverVersion", resp.ServerVersion))
		return nil
	}()
	if err == nil {
		return m.ProtocolModeCurrent, nil
	}

	if status.Code(err) != codes.Unimplemented {
		err = fmt.Errorf("%w: current handshake, err=%w", ErrNegotiationFailed, err)
		logger.Warn("negotiation failed", zap.Error(err))
		return m.ProtocolModeInvalid, err
	}

	logger.Info("current handshake unimplemented, trying legacy")

	err = func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return conn.Invoke(
			callCtx,
			HandshakeMethod(m.ProtocolModeLegacy),
			&m.LegacyHello{
				DeviceName: options.DeviceName,
			},
			&m.LegacyHelloReply{},
		)
	}()
	if err != nil {
		err = fmt.Errorf("%w: legacy handshake, err=%w", ErrNegotiationFailed, err)
		logger.Warn("negotiation failed", zap.Error(err))
		return m.ProtocolModeInvalid, err
	}

	logger.Info("legacy handshake accepted")
	return m.ProtocolModeLegacy, nil
}
