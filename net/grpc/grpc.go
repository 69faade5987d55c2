// Package grpc owns the transport channel the uplink multiplexes its
// streams over.
package grpc

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/Meander-Cloud/go-uplink/config"
	tp "github.com/Meander-Cloud/go-uplink/net/grpc/protocol"
)

type Options struct {
	Address           string
	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration
	// Credentials defaults to plaintext.
	Credentials credentials.TransportCredentials

	LogPrefix string
	Logger    *zap.Logger
}

// Channel is one client connection. Every call made on it uses the msgpack
// codec.
type Channel struct {
	options *Options
	log     *zap.Logger
	conn    *ggrpc.ClientConn
	closed  atomic.Bool
}

func Dial(options *Options) (*Channel, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(options.LogPrefix).With(zap.String("address", options.Address))

	var keepAliveInterval time.Duration
	if options.KeepAliveInterval == 0 {
		keepAliveInterval = config.KeepAliveInterval
	} else {
		keepAliveInterval = options.KeepAliveInterval
	}

	var keepAliveTimeout time.Duration
	if options.KeepAliveTimeout == 0 {
		keepAliveTimeout = config.KeepAliveTimeout
	} else {
		keepAliveTimeout = options.KeepAliveTimeout
	}

	creds := options.Credentials
	if creds == nil {
		creds = insecure.NewCredentials()
	}

	conn, err := ggrpc.NewClient(
		options.Address,
		ggrpc.WithTransportCredentials(creds),
		ggrpc.WithDefaultCallOptions(ggrpc.ForceCodec(tp.Codec{})),
		ggrpc.WithKeepaliveParams(
			keepalive.ClientParameters{
				Time:    keepAliveInterval,
				Timeout: keepAliveTimeout,
			},
		),
	)
	if err != nil {
		err = fmt.Errorf("failed to create channel to %s, err=%w", options.Address, err)
		logger.Error("dial failed", zap.Error(err))
		return nil, err
	}

	// leave idle mode right away so the handshake does not pay for it
	conn.Connect()
	logger.Info("channel opened")

	return &Channel{
		options: options,
		log:     logger,
		conn:    conn,
	}, nil
}

func (ch *Channel) Conn() ggrpc.ClientConnInterface {
	return ch.conn
}

func (ch *Channel) Address() string {
	return ch.options.Address
}

// Close aborts every call still open on the channel. Safe to call twice.
func (ch *Channel) Close() {
	if ch.closed.Swap(true) {
		return
	}

	err := ch.conn.Close()
	if err != nil {
		ch.log.Warn("channel close", zap.Error(err))
		return
	}
	ch.log.Info("channel closed")
}
