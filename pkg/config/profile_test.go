package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/lightning/as3935"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeProfile(t, `
adapter: generic
device: /dev/i2c-1
address: 0x03
pin:
  kind: host
  name: GPIO24
placement: outdoor
noise_floor: 4
signal_verification: 3
minimum_lightning: 9
ignore_disturbances: true
`)
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AdapterGeneric, p.Adapter)
	assert.Equal(t, "/dev/i2c-1", p.Device)
	assert.Equal(t, uint8(3), p.Address)
	assert.Equal(t, "GPIO24", p.Pin.Name)
	// default kept for fields absent from the file
	assert.Equal(t, 10*time.Millisecond, p.Pin.PollInterval)

	params, err := p.ListenParameters()
	require.NoError(t, err)
	require.NotNil(t, params.SensorPlacing)
	assert.Equal(t, as3935.Outdoor, *params.SensorPlacing)
	require.NotNil(t, params.NoiseFloorThreshold)
	assert.Equal(t, uint8(4), params.NoiseFloorThreshold.Value())
	require.NotNil(t, params.SignalVerificationThreshold)
	assert.Equal(t, uint8(3), params.SignalVerificationThreshold.Value())
	require.NotNil(t, params.MinimumLightningThreshold)
	assert.Equal(t, as3935.Nine, *params.MinimumLightningThreshold)
	require.NotNil(t, params.IgnoreDisturbances)
	assert.Equal(t, as3935.IgnoreDisturbancesYes, *params.IgnoreDisturbances)
}

func TestLoad_Expander(t *testing.T) {
	path := writeProfile(t, `
adapter: nanopi
bus: 0
pin:
  kind: mcp23017
  expander_address: 0x21
  port: B
  bit: 2
  poll_interval: 5ms
`)
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x21), p.Pin.ExpanderAddress)
	assert.Equal(t, 5*time.Millisecond, p.Pin.PollInterval)

	params, err := p.ListenParameters()
	require.NoError(t, err)
	assert.Equal(t, as3935.ListenParameters{}, params)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown adapter", "adapter: ftdi\n"},
		{"mcp2221 pin on host bus", "adapter: generic\npin:\n  kind: mcp2221\n"},
		{"host pin without name", "adapter: generic\npin:\n  kind: host\n"},
		{"expander port", "adapter: generic\npin:\n  kind: mcp23017\n  port: C\n"},
		{"address", "adapter: mcp2221\naddress: 200\n"},
		{"poll interval", "adapter: mcp2221\npin:\n  kind: mcp2221\n  poll_interval: 0s\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeProfile(t, test.content))
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListenParameters_OutOfRange(t *testing.T) {
	nf := uint8(12)
	_, err := Profile{NoiseFloor: &nf}.ListenParameters()
	assert.ErrorIs(t, err, as3935.ErrInvalidParameter)

	mlt := 3
	_, err = Profile{MinimumLightning: &mlt}.ListenParameters()
	assert.ErrorIs(t, err, as3935.ErrInvalidParameter)

	_, err = Profile{Placement: "attic"}.ListenParameters()
	assert.ErrorIs(t, err, as3935.ErrInvalidParameter)
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "dev-unknown-none", VersionString())
}

func TestLoad_Speed(t *testing.T) {
	path := writeProfile(t, `
adapter: generic
device: /dev/i2c-1
speed_hz: 100000
pin:
  kind: host
  name: GPIO24
`)
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(100000), p.SpeedHz)

	path = writeProfile(t, `
adapter: mcp2221
speed_hz: 100000
`)
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidProfile)
}
