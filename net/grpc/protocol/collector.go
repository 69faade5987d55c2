package protocol

import (
	"sync"

	"go.uber.org/zap"

	m "github.com/Meander-Cloud/go-uplink/message"
)

// Collector is an in-memory ServerHandler. It keeps every accepted record
// per kind and can be told to reject handshakes or refuse streams, which is
// how field servers are exercised without a backend.
type Collector struct {
	log *zap.Logger

	mutex          sync.Mutex
	handshakeErr   map[m.ProtocolMode]error
	streamErr      map[m.Kind]error
	handshakes     map[m.ProtocolMode]int
	streams        map[m.Kind]int
	records        map[m.Kind][]m.Record
	recordCallback func(m.ProtocolMode, m.Record)
}

func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{
		log: logger.Named("Collector"),

		handshakeErr: make(map[m.ProtocolMode]error),
		streamErr:    make(map[m.Kind]error),
		handshakes:   make(map[m.ProtocolMode]int),
		streams:      make(map[m.Kind]int),
		records:      make(map[m.Kind][]m.Record),
	}
}

// RejectHandshake makes every handshake of mode fail with err, nil accepts
// again.
func (c *Collector) RejectHandshake(mode m.ProtocolMode, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err == nil {
		delete(c.handshakeErr, mode)
		return
	}
	c.handshakeErr[mode] = err
}

// RefuseStream makes every new stream of kind end with err, nil accepts
// again.
func (c *Collector) RefuseStream(kind m.Kind, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err == nil {
		delete(c.streamErr, kind)
		return
	}
	c.streamErr[kind] = err
}

// OnRecord installs a callback run for every accepted record.
func (c *Collector) OnRecord(f func(m.ProtocolMode, m.Record)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.recordCallback = f
}

func (c *Collector) Handshake(_ *Server, mode m.ProtocolMode, req *m.HandshakeRequest) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.handshakes[mode]++
	return c.handshakeErr[mode]
}

func (c *Collector) StreamOpened(_ *Server, _ m.ProtocolMode, kind m.Kind) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.streams[kind]++
	return c.streamErr[kind]
}

func (c *Collector) RecordReceived(_ *Server, mode m.ProtocolMode, kind m.Kind, rec m.Record) error {
	c.mutex.Lock()
	c.records[kind] = append(c.records[kind], rec)
	f := c.recordCallback
	c.mutex.Unlock()

	c.log.Debug("record", zap.Stringer("mode", mode), zap.Stringer("kind", kind), zap.Uint32("recordNumber", rec.RecordHeader().RecordNumber))
	if f != nil {
		f(mode, rec)
	}
	return nil
}

func (c *Collector) Handshakes(mode m.ProtocolMode) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.handshakes[mode]
}

func (c *Collector) Streams(kind m.Kind) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.streams[kind]
}

// Records returns a copy of the records received for kind, in arrival order.
func (c *Collector) Records(kind m.Kind) []m.Record {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]m.Record(nil), c.records[kind]...)
}
