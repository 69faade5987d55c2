// Package metric holds the prometheus instrumentation of the uplink.
package metric

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	m "github.com/Meander-Cloud/go-uplink/message"
)

const namespace = "uplink"

// Drop reasons used for RecordsDropped.
const (
	DropNotConnected  = "not_connected"
	DropNotEnabled    = "not_enabled"
	DropStreamStopped = "stream_stopped"
	DropDisconnect    = "disconnect"
)

type Metrics struct {
	RecordsEnqueued *prometheus.CounterVec
	RecordsSent     *prometheus.CounterVec
	RecordsDropped  *prometheus.CounterVec
	StreamResults   *prometheus.CounterVec
	Negotiations    *prometheus.CounterVec

	ConnectionState     prometheus.Gauge
	ConnectAttempts     prometheus.Counter
	ReconnectsScheduled prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		RecordsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "records",
				Name:      "enqueued_total",
				Help:      "Records accepted into a stream queue",
			},
			[]string{"kind"},
		),

		RecordsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "records",
				Name:      "sent_total",
				Help:      "Records written to an upload stream",
			},
			[]string{"kind", "mode"},
		),

		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "records",
				Name:      "dropped_total",
				Help:      "Records dropped before transmission",
			},
			[]string{"kind", "reason"},
		),

		StreamResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "results_total",
				Help:      "Stream worker results by outcome",
			},
			[]string{"kind", "outcome"},
		),

		Negotiations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "connection",
				Name:      "negotiations_total",
				Help:      "Protocol negotiations by resulting mode",
			},
			[]string{"mode"},
		),

		ConnectionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "connection",
				Name:      "state",
				Help:      "Connection state (0=disconnected, 1=connecting, 2=connected, 3=disconnecting)",
			},
		),

		ConnectAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "connection",
				Name:      "attempts_total",
				Help:      "Connection attempts started",
			},
		),

		ReconnectsScheduled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "connection",
				Name:      "reconnects_scheduled_total",
				Help:      "Automatic reconnects scheduled after a failure",
			},
		),
	}
}

func (mt *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		mt.RecordsEnqueued,
		mt.RecordsSent,
		mt.RecordsDropped,
		mt.StreamResults,
		mt.Negotiations,
		mt.ConnectionState,
		mt.ConnectAttempts,
		mt.ReconnectsScheduled,
	}
}

// Register adds every collector to reg. Collectors already registered with
// reg are accepted so a restarted uplink can share one registry.
func (mt *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range mt.collectors() {
		err := reg.Register(c)
		if err == nil {
			continue
		}

		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) && alreadyRegErr.ExistingCollector == c {
			continue
		}
		return fmt.Errorf("failed to register collector, err=%w", err)
	}
	return nil
}

func (mt *Metrics) Enqueued(kind m.Kind) {
	mt.RecordsEnqueued.WithLabelValues(kind.Label()).Inc()
}

func (mt *Metrics) Sent(kind m.Kind, mode m.ProtocolMode) {
	mt.RecordsSent.WithLabelValues(kind.Label(), mode.String()).Inc()
}

func (mt *Metrics) Dropped(kind m.Kind, reason string, n int) {
	if n <= 0 {
		return
	}
	mt.RecordsDropped.WithLabelValues(kind.Label(), reason).Add(float64(n))
}

func (mt *Metrics) StreamResult(kind m.Kind, outcome string) {
	mt.StreamResults.WithLabelValues(kind.Label(), outcome).Inc()
}

func (mt *Metrics) Negotiated(mode m.ProtocolMode) {
	mt.Negotiations.WithLabelValues(mode.String()).Inc()
}

func (mt *Metrics) State(state m.ConnectionState) {
	mt.ConnectionState.Set(float64(state))
}
