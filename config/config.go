package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	// defaults for when not provided in Config
	EventChannelLength uint16        = 1024
	ReconnectBackoff   time.Duration = time.Second * 10
	HandshakeTimeout   time.Duration = time.Second * 10
	PollInterval       time.Duration = time.Second
	AckTimeout         time.Duration = time.Second * 60
	ShutdownGrace      time.Duration = time.Second * 5
	KeepAliveInterval  time.Duration = time.Second * 17
	KeepAliveTimeout   time.Duration = time.Second * 5
)

var ErrInvalidConfig = errors.New("invalid config")

// Config tunes the uplink process. Zero durations fall back to the defaults
// above.
type Config struct {
	EventChannelLength uint16 `yaml:"event_channel_length"`

	ReconnectBackoff  time.Duration `yaml:"reconnect_backoff"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	AckTimeout        time.Duration `yaml:"ack_timeout"`
	ShutdownGrace     time.Duration `yaml:"shutdown_grace"`
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
	KeepAliveTimeout  time.Duration `yaml:"keep_alive_timeout"`

	DeviceSerialNumber string `yaml:"device_serial_number"`
	MetricsAddress     string `yaml:"metrics_address"`

	LogPrefix string `yaml:"log_prefix"`
	LogDebug  bool   `yaml:"log_debug"`
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	for name, d := range map[string]time.Duration{
		"ReconnectBackoff":  c.ReconnectBackoff,
		"HandshakeTimeout":  c.HandshakeTimeout,
		"PollInterval":      c.PollInterval,
		"AckTimeout":        c.AckTimeout,
		"ShutdownGrace":     c.ShutdownGrace,
		"KeepAliveInterval": c.KeepAliveInterval,
		"KeepAliveTimeout":  c.KeepAliveTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidConfig, name, d)
		}
	}

	return nil
}

// Resolved returns a copy with every zero field replaced by its default.
func (c *Config) Resolved() *Config {
	r := *c

	if r.EventChannelLength == 0 {
		r.EventChannelLength = EventChannelLength
	}
	if r.ReconnectBackoff == 0 {
		r.ReconnectBackoff = ReconnectBackoff
	}
	if r.HandshakeTimeout == 0 {
		r.HandshakeTimeout = HandshakeTimeout
	}
	if r.PollInterval == 0 {
		r.PollInterval = PollInterval
	}
	if r.AckTimeout == 0 {
		r.AckTimeout = AckTimeout
	}
	if r.ShutdownGrace == 0 {
		r.ShutdownGrace = ShutdownGrace
	}
	if r.KeepAliveInterval == 0 {
		r.KeepAliveInterval = KeepAliveInterval
	}
	if r.KeepAliveTimeout == 0 {
		r.KeepAliveTimeout = KeepAliveTimeout
	}
	if r.LogPrefix == "" {
		r.LogPrefix = "Uplink"
	}

	return &r
}

// File is the on-disk layout read by Load.
type File struct {
	Uplink     Config   `yaml:"uplink"`
	Connection Settings `yaml:"connection"`
	Server     Server   `yaml:"server"`
}

// Server configures the collection server run by `serve`.
type Server struct {
	Address       string   `yaml:"address"`
	DisableLegacy bool     `yaml:"disable_legacy"`
	Unimplemented []string `yaml:"unimplemented"`
}

func Load(path string, logger *zap.Logger) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read config", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	f := &File{}
	err = yaml.Unmarshal(b, f)
	if err != nil {
		err = fmt.Errorf("%w: path=%s, err=%w", ErrInvalidConfig, path, err)
		logger.Error("failed to parse config", zap.Error(err))
		return nil, err
	}

	err = f.Uplink.Validate()
	if err != nil {
		logger.Error("failed to validate config", zap.Error(err))
		return nil, err
	}

	return f, nil
}
