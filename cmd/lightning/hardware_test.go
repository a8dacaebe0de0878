package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/lightning/as3935"
	"github.com/mklimuk/lightning/i2c"
	"github.com/mklimuk/lightning/pkg/config"
)

func runCommand(t *testing.T, flags []cli.Flag, args []string, action cli.ActionFunc) error {
	t.Helper()
	app := &cli.App{
		Name:     "lightning",
		Commands: []*cli.Command{{Name: "cmd", Flags: flags, Action: action}},
	}
	return app.Run(append([]string{"lightning", "cmd"}, args...))
}

func TestLoadProfile_FlagOverrides(t *testing.T) {
	var profile config.Profile
	err := runCommand(t, hardwareFlags, []string{
		"--adapter", "generic", "--device", "/dev/i2c-1",
		"--address", "2", "--pin-kind", "host", "--pin", "GPIO24",
	}, func(c *cli.Context) error {
		var err error
		profile, err = loadProfile(c)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, config.AdapterGeneric, profile.Adapter)
	assert.Equal(t, "/dev/i2c-1", profile.Device)
	assert.Equal(t, uint8(2), profile.Address)
	assert.Equal(t, config.PinHost, profile.Pin.Kind)
	assert.Equal(t, "GPIO24", profile.Pin.Name)
	assert.Equal(t, 10*time.Millisecond, profile.Pin.PollInterval)
}

func TestLoadProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"address", []string{"--address", "300"}},
		{"adapter", []string{"--adapter", "ftdi"}},
		{"mcp2221 pin on generic bus", []string{"--adapter", "generic"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := runCommand(t, hardwareFlags, test.args, func(c *cli.Context) error {
				_, err := loadProfile(c)
				return err
			})
			assert.ErrorIs(t, err, config.ErrInvalidProfile)
		})
	}
}

func TestListenParameters_Flags(t *testing.T) {
	var params as3935.ListenParameters
	err := runCommand(t, listenCmd.Flags, []string{
		"--placement", "outdoor", "--minimum-lightning", "5", "--ignore-disturbers",
	}, func(c *cli.Context) error {
		var err error
		params, err = listenParameters(c, config.Default())
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, params.SensorPlacing)
	assert.Equal(t, as3935.Outdoor, *params.SensorPlacing)
	require.NotNil(t, params.MinimumLightningThreshold)
	assert.Equal(t, as3935.Five, *params.MinimumLightningThreshold)
	require.NotNil(t, params.IgnoreDisturbances)
	assert.Equal(t, as3935.IgnoreDisturbancesYes, *params.IgnoreDisturbances)
	assert.Nil(t, params.NoiseFloorThreshold)
}

func TestListenParameters_OutOfRange(t *testing.T) {
	err := runCommand(t, listenCmd.Flags, []string{"--noise-floor", "12"}, func(c *cli.Context) error {
		_, err := listenParameters(c, config.Default())
		return err
	})
	assert.ErrorIs(t, err, as3935.ErrInvalidParameter)
}

func TestHardware_CloseOrder(t *testing.T) {
	var order []string
	first := errors.New("adaptor")
	h := &hardware{closers: []func() error{
		func() error { order = append(order, "adaptor"); return first },
		func() error { order = append(order, "bus"); return nil },
	}}
	err := h.Close()
	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"bus", "adaptor"}, order)
}

type clockedBus struct {
	i2ctest.Playback
	speed physic.Frequency
}

func (b *clockedBus) SetSpeed(f physic.Frequency) error {
	b.speed = f
	return nil
}

func TestSetBusSpeed(t *testing.T) {
	clocked := &clockedBus{}
	bus := i2c.NewBus(clocked)

	require.NoError(t, setBusSpeed(bus, 0))
	assert.Zero(t, clocked.speed, "controller default kept")

	require.NoError(t, setBusSpeed(bus, 100000))
	assert.Equal(t, 100*physic.KiloHertz, clocked.speed)
}

func TestLoadProfile_Speed(t *testing.T) {
	var profile config.Profile
	err := runCommand(t, hardwareFlags, []string{
		"--adapter", "generic", "--device", "/dev/i2c-1",
		"--pin-kind", "host", "--pin", "GPIO24", "--speed", "400000",
	}, func(c *cli.Context) error {
		var err error
		profile, err = loadProfile(c)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(400000), profile.SpeedHz)

	err = runCommand(t, hardwareFlags, []string{"--speed", "400000"}, func(c *cli.Context) error {
		_, err := loadProfile(c)
		return err
	})
	assert.ErrorIs(t, err, config.ErrInvalidProfile)
}
