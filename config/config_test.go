package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	m "github.com/Meander-Cloud/go-uplink/message"
)

func TestResolvedDefaults(t *testing.T) {
	c := (&Config{PollInterval: 250 * time.Millisecond}).Resolved()

	assert.Equal(t, EventChannelLength, c.EventChannelLength)
	assert.Equal(t, ReconnectBackoff, c.ReconnectBackoff)
	assert.Equal(t, HandshakeTimeout, c.HandshakeTimeout)
	assert.Equal(t, 250*time.Millisecond, c.PollInterval)
	assert.Equal(t, AckTimeout, c.AckTimeout)
	assert.Equal(t, ShutdownGrace, c.ShutdownGrace)
	assert.Equal(t, "Uplink", c.LogPrefix)
}

func TestValidate(t *testing.T) {
	var c *Config
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c = &Config{AckTimeout: -time.Second}
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)

	c = &Config{}
	assert.NoError(t, c.Validate())
}

func TestSettings(t *testing.T) {
	s := Settings{Host: "10.0.0.5", Port: 4040, DeviceName: "survey-1"}
	require.NoError(t, s.Validate())
	assert.Equal(t, "10.0.0.5:4040", s.Address())
	assert.Empty(t, s.EnabledKinds())

	s = s.WithKinds(m.KindGnss, m.KindCellular)
	assert.Equal(t, []m.Kind{m.KindCellular, m.KindGnss}, s.EnabledKinds())
	assert.True(t, s.Enabled(m.KindGnss))
	assert.False(t, s.Enabled(m.KindWifi))
	assert.False(t, s.Enabled(m.KindInvalid))

	assert.ErrorIs(t, Settings{Port: 4040}.Validate(), ErrInvalidSettings)
	assert.ErrorIs(t, Settings{Host: "10.0.0.5"}.Validate(), ErrInvalidSettings)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uplink.yaml")
	err := os.WriteFile(path, []byte(`
uplink:
  reconnect_backoff: 2s
  poll_interval: 500ms
  log_prefix: Field
connection:
  host: 10.0.0.5
  port: 4040
  device_name: survey-1
  gnss: true
  device_status: true
server:
  address: ":4040"
  unimplemented: [wifi]
`), 0o600)
	require.NoError(t, err)

	f, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, f.Uplink.ReconnectBackoff)
	assert.Equal(t, 500*time.Millisecond, f.Uplink.PollInterval)
	assert.Equal(t, "Field", f.Uplink.LogPrefix)
	assert.Equal(t, uint16(4040), f.Connection.Port)
	assert.Equal(t, []m.Kind{m.KindGnss, m.KindDeviceStatus}, f.Connection.EnabledKinds())
	assert.Equal(t, []string{"wifi"}, f.Server.Unimplemented)
}

func TestLoadRejectsBadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), zap.NewNop())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("uplink:\n  ack_timeout: -1s\n"), 0o600))
	_, err = Load(path, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
