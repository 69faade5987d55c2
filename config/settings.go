package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	m "github.com/Meander-Cloud/go-uplink/message"
)

var ErrInvalidSettings = errors.New("invalid connection settings")

// Settings describes one connection request. It is passed and stored by
// value, a new Connect replaces it wholesale.
type Settings struct {
	Host       string `yaml:"host"`
	Port       uint16 `yaml:"port"`
	DeviceName string `yaml:"device_name"`

	Cellular     bool `yaml:"cellular"`
	Wifi         bool `yaml:"wifi"`
	Bluetooth    bool `yaml:"bluetooth"`
	Gnss         bool `yaml:"gnss"`
	PhoneState   bool `yaml:"phone_state"`
	DeviceStatus bool `yaml:"device_status"`
}

func (s Settings) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("%w: empty Host", ErrInvalidSettings)
	}

	// no default port, caller must supply one
	if s.Port == 0 {
		return fmt.Errorf("%w: invalid Port=%d", ErrInvalidSettings, s.Port)
	}

	return nil
}

func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

func (s Settings) Enabled(kind m.Kind) bool {
	switch kind {
	case m.KindCellular:
		return s.Cellular
	case m.KindWifi:
		return s.Wifi
	case m.KindBluetooth:
		return s.Bluetooth
	case m.KindGnss:
		return s.Gnss
	case m.KindPhoneState:
		return s.PhoneState
	case m.KindDeviceStatus:
		return s.DeviceStatus
	default:
		return false
	}
}

// EnabledKinds lists the enabled kinds in wire order.
func (s Settings) EnabledKinds() []m.Kind {
	var kinds []m.Kind
	for _, kind := range m.Kinds {
		if s.Enabled(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// WithKinds returns a copy with exactly the given kinds enabled.
func (s Settings) WithKinds(kinds ...m.Kind) Settings {
	s.Cellular = false
	s.Wifi = false
	s.Bluetooth = false
	s.Gnss = false
	s.PhoneState = false
	s.DeviceStatus = false

	for _, kind := range kinds {
		switch kind {
		case m.KindCellular:
			s.Cellular = true
		case m.KindWifi:
			s.Wifi = true
		case m.KindBluetooth:
			s.Bluetooth = true
		case m.KindGnss:
			s.Gnss = true
		case m.KindPhoneState:
			s.PhoneState = true
		case m.KindDeviceStatus:
			s.DeviceStatus = true
		}
	}
	return s
}
