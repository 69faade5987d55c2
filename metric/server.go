package metric

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const Path = "/metrics"

// Server exposes a prometheus gatherer over HTTP.
type Server struct {
	log      *zap.Logger
	listener net.Listener
	server   *http.Server
	servech  chan struct{}
}

func NewServer(address string, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("MetricServer")

	listener, err := net.Listen("tcp", address)
	if err != nil {
		logger.Error("failed to listen", zap.String("address", address), zap.Error(err))
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(
		Path,
		promhttp.HandlerFor(
			gatherer,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		),
	)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s := &Server{
		log:      logger,
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		servech: make(chan struct{}),
	}

	go func() {
		defer close(s.servech)

		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve exited", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.Stringer("address", listener.Addr()), zap.String("path", Path))
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) Shutdown(grace time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		s.log.Warn("shutdown", zap.Error(err))
		_ = s.server.Close()
	}
	<-s.servech
}
