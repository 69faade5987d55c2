package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Meander-Cloud/go-uplink/config"
	m "github.com/Meander-Cloud/go-uplink/message"
	"github.com/Meander-Cloud/go-uplink/metric"
	"github.com/Meander-Cloud/go-uplink/net/grpc/protocol"
	"github.com/Meander-Cloud/go-uplink/producer"
	"github.com/Meander-Cloud/go-uplink/registry"
	"github.com/Meander-Cloud/go-uplink/uplink"
)

type options struct {
	configPath string
	host       string
	port       uint16
	deviceName string
	interval   time.Duration
	debug      bool
}

type StateLogger struct {
	log *zap.Logger
}

func (sl *StateLogger) OnConnectionStateChange(state m.ConnectionState) {
	sl.log.Info("connection state changed", zap.Stringer("state", state))
}

func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !debug {
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zc.Build()
}

func waitSignal(logger *zap.Logger) {
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigch // wait
	logger.Info("received signal, exiting", zap.String("signal", sig.String()))
}

func loadFile(o *options, logger *zap.Logger) (*config.File, error) {
	f := &config.File{}
	if o.configPath != "" {
		var err error
		f, err = config.Load(o.configPath, logger)
		if err != nil {
			return nil, err
		}
	}

	// flags win over the file
	if o.host != "" {
		f.Connection.Host = o.host
	}
	if o.port != 0 {
		f.Connection.Port = o.port
	}
	if o.deviceName != "" {
		f.Connection.DeviceName = o.deviceName
	}
	if o.debug {
		f.Uplink.LogDebug = true
	}
	if f.Server.Address == "" && f.Connection.Port != 0 {
		f.Server.Address = f.Connection.Address()
	}

	return f, nil
}

func serve(f *config.File, logger *zap.Logger) error {
	families := []m.ProtocolMode{m.ProtocolModeCurrent, m.ProtocolModeLegacy}
	if f.Server.DisableLegacy {
		families = families[:1]
	}

	var unimplemented []m.Kind
	for _, s := range f.Server.Unimplemented {
		kind, ok := m.ParseKind(s)
		if !ok {
			return fmt.Errorf("%w: unknown kind %q in server.unimplemented", config.ErrInvalidConfig, s)
		}
		unimplemented = append(unimplemented, kind)
	}

	c := protocol.NewCollector(logger)
	c.OnRecord(func(mode m.ProtocolMode, rec m.Record) {
		h := rec.RecordHeader()
		logger.Info(
			"record",
			zap.Stringer("mode", mode),
			zap.Stringer("kind", rec.Kind()),
			zap.String("deviceName", h.DeviceName),
			zap.Uint32("recordNumber", h.RecordNumber),
			zap.Time("deviceTime", h.Time()),
		)
	})

	s, err := protocol.NewServer(
		&protocol.ServerOptions{
			Address:       f.Server.Address,
			Families:      families,
			Unimplemented: unimplemented,
			ServerHandler: c,
			LogPrefix:     "Server",
			Logger:        logger,
		},
	)
	if err != nil {
		return err
	}

	waitSignal(logger)
	s.Shutdown(config.ShutdownGrace)
	return nil
}

// synthesize feeds every enabled kind with a fabricated record per tick
// until stopch closes.
func synthesize(hubs map[m.Kind]*producer.Hub, c *config.Config, settings config.Settings, interval time.Duration, stopch <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var recordNumber uint32
	for {
		select {
		case <-stopch:
			return
		case t := <-ticker.C:
			recordNumber++
			header := m.Header{
				DeviceSerialNumber: c.DeviceSerialNumber,
				DeviceName:         settings.DeviceName,
				DeviceTime:         t.UTC().UnixMilli(),
				Latitude:           51.5007,
				Longitude:          -0.1246,
				Altitude:           12,
				Accuracy:           4,
				MissionID:          "synthetic",
				RecordNumber:       recordNumber,
			}

			for kind, hub := range hubs {
				rec := m.New(kind)
				*rec.RecordHeader() = header

				switch r := rec.(type) {
				case *m.Cellular:
					r.Technology = m.CellularTechnologyLte
					r.Mcc = 234
					r.Mnc = 15
					r.Serving = true
				case *m.Wifi:
					r.Bssid = "00:11:22:33:44:55"
					r.Ssid = "survey"
					r.Channel = 6
				case *m.Bluetooth:
					r.SourceAddress = "AA:BB:CC:DD:EE:FF"
					r.Technology = "LE"
				case *m.Gnss:
					r.Constellation = "GPS"
					r.SpaceVehicleID = recordNumber%32 + 1
				case *m.PhoneState:
					r.SimState = "READY"
					r.ServiceState = "IN_SERVICE"
				case *m.DeviceStatus:
					r.BatteryLevelPercent = uint8(100 - recordNumber%100)
					r.GnssFix = true
				}

				_, err := hub.Publish(rec)
				if err != nil {
					logger.Error("publish failed", zap.Error(err))
				}
			}
		}
	}
}

func client(f *config.File, interval time.Duration, logger *zap.Logger) error {
	c := f.Uplink.Resolved()
	settings := f.Connection
	err := settings.Validate()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	mt := metric.NewMetrics()
	err = mt.Register(reg)
	if err != nil {
		return err
	}

	if c.MetricsAddress != "" {
		ms, err := metric.NewServer(c.MetricsAddress, reg, logger)
		if err != nil {
			return err
		}
		defer ms.Shutdown(c.ShutdownGrace)
	}

	r := registry.NewRegistry(logger)
	hubs := make(map[m.Kind]*producer.Hub)
	for _, kind := range settings.EnabledKinds() {
		hubs[kind] = producer.NewHub(kind, logger)
		r.SetProducer(kind, hubs[kind])
	}

	u, err := uplink.NewUplink(c, r, mt, logger)
	if err != nil {
		return err
	}
	defer u.Shutdown() // wait

	u.RegisterStateListener(&StateLogger{log: logger.Named("StateLogger")})

	err = u.Connect(settings)
	if err != nil {
		return err
	}

	stopch := make(chan struct{})
	go synthesize(hubs, c, settings, interval, stopch, logger)

	waitSignal(logger)
	close(stopch)
	return nil
}

func run() error {
	o := &options{}

	flagSet := pflag.NewFlagSet("go-uplink", pflag.ContinueOnError)
	flagSet.StringVarP(&o.configPath, "config", "c", "", "path to YAML config file")
	flagSet.StringVar(&o.host, "host", "", "server host, overrides connection.host")
	flagSet.Uint16Var(&o.port, "port", 0, "server port, overrides connection.port")
	flagSet.StringVar(&o.deviceName, "device-name", "", "device name sent in the handshake")
	flagSet.DurationVar(&o.interval, "interval", time.Second, "synthetic record interval in client mode")
	flagSet.BoolVar(&o.debug, "debug", false, "enable debug logging")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: go-uplink [client|serve] [flags]\n\n%s", flagSet.FlagUsages())
	}

	err := flagSet.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	mode := "client"
	if flagSet.NArg() > 0 {
		mode = flagSet.Arg(0)
	}

	logger, err := newLogger(o.debug)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	f, err := loadFile(o, logger)
	if err != nil {
		return err
	}

	switch mode {
	case "serve":
		return serve(f, logger.Named("serve"))
	case "client":
		return client(f, o.interval, logger.Named("client"))
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
