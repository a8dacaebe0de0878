package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	pio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/lightning"
	"github.com/mklimuk/lightning/adapter"
	"github.com/mklimuk/lightning/gpio"
	"github.com/mklimuk/lightning/i2c"
	"github.com/mklimuk/lightning/pkg/config"
)

var hardwareFlags = []cli.Flag{
	&cli.StringFlag{Name: "profile", Usage: "YAML listening profile"},
	&cli.StringFlag{Name: "adapter", Usage: "bus adapter: mcp2221, generic or nanopi"},
	&cli.StringFlag{Name: "device", Usage: "periph i2c bus name for the generic adapter (e.g. /dev/i2c-1)"},
	&cli.IntFlag{Name: "bus", Usage: "i2c bus number for the nanopi adapter"},
	&cli.UintFlag{Name: "speed", Usage: "i2c clock in Hz for the generic adapter (0 keeps the default)"},
	&cli.UintFlag{Name: "address", Usage: "sensor i2c address"},
	&cli.StringFlag{Name: "pin-kind", Usage: "irq line: mcp2221, host or mcp23017"},
	&cli.StringFlag{Name: "pin", Usage: "host pin name (e.g. GPIO24)"},
	&cli.UintFlag{Name: "expander-address", Usage: "MCP23017 i2c address"},
	&cli.StringFlag{Name: "expander-port", Usage: "MCP23017 port: A or B"},
	&cli.UintFlag{Name: "expander-bit", Usage: "MCP23017 input bit (0-7)"},
	&cli.DurationFlag{Name: "poll-interval", Usage: "irq poll interval for polled lines"},
}

// loadProfile reads the profile file, if given, and applies flag overrides.
func loadProfile(c *cli.Context) (config.Profile, error) {
	profile := config.Default()
	if c.IsSet("profile") {
		var err error
		profile, err = config.Load(c.String("profile"))
		if err != nil {
			return profile, err
		}
	}
	if c.IsSet("adapter") {
		profile.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		profile.Device = c.String("device")
	}
	if c.IsSet("bus") {
		profile.Bus = c.Int("bus")
	}
	if c.IsSet("speed") {
		profile.SpeedHz = uint32(c.Uint("speed"))
	}
	if c.IsSet("address") {
		profile.Address = uint8(c.Uint("address"))
	}
	if c.IsSet("pin-kind") {
		profile.Pin.Kind = c.String("pin-kind")
	}
	if c.IsSet("pin") {
		profile.Pin.Name = c.String("pin")
	}
	if c.IsSet("expander-address") {
		profile.Pin.ExpanderAddress = uint8(c.Uint("expander-address"))
	}
	if c.IsSet("expander-port") {
		profile.Pin.Port = c.String("expander-port")
	}
	if c.IsSet("expander-bit") {
		profile.Pin.Bit = uint8(c.Uint("expander-bit"))
	}
	if c.IsSet("poll-interval") {
		profile.Pin.PollInterval = c.Duration("poll-interval")
	}
	if c.IsSet("address") && c.Uint("address") > 127 {
		return profile, fmt.Errorf("%w: address %#x", config.ErrInvalidProfile, c.Uint("address"))
	}
	return profile, profile.Validate()
}

type hardware struct {
	bus     lightning.I2CBus
	pin     lightning.InterruptPin
	mcp     *adapter.MCP2221
	closers []func() error
}

func (h *hardware) Close() error {
	var err error
	for i := len(h.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, h.closers[i]())
	}
	return err
}

// openHardware opens the bus described by the profile and, when withPin is
// set, the line the sensor IRQ output is wired to.
func openHardware(ctx context.Context, profile config.Profile, withPin bool) (*hardware, error) {
	h := &hardware{}
	switch profile.Adapter {
	case config.AdapterMCP2221:
		h.mcp = adapter.NewMCP2221()
		h.bus = h.mcp
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(profile.Device)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, bus.Close)
		if err := setBusSpeed(bus, profile.SpeedHz); err != nil {
			return nil, multierr.Append(err, h.Close())
		}
		h.bus = bus
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		h.closers = append(h.closers, npi.I2cBusAdaptor.Finalize)
		bus := i2c.NewGobotBus(npi, profile.Bus)
		h.bus = bus
		h.closers = append(h.closers, bus.Close)
	default:
		return nil, fmt.Errorf("%w: unknown adapter %q", config.ErrInvalidProfile, profile.Adapter)
	}
	if !withPin {
		return h, nil
	}
	pin, err := openPin(ctx, h, profile.Pin)
	if err != nil {
		return nil, multierr.Append(err, h.Close())
	}
	h.pin = pin
	return h, nil
}

type speedSetter interface {
	SetSpeed(f physic.Frequency) error
}

func setBusSpeed(bus speedSetter, hz uint32) error {
	if hz == 0 {
		return nil
	}
	return bus.SetSpeed(physic.Frequency(hz) * physic.Hertz)
}

func openPin(ctx context.Context, h *hardware, p config.Pin) (lightning.InterruptPin, error) {
	switch p.Kind {
	case config.PinMCP2221:
		if h.mcp == nil {
			return nil, fmt.Errorf("%w: mcp2221 pin requires the mcp2221 adapter", config.ErrInvalidProfile)
		}
		return adapter.NewMCP2221Pin(h.mcp, p.PollInterval), nil
	case config.PinHost:
		pin, err := gpio.OpenWatchedPin(p.Name, pio.PullDown)
		if err != nil {
			return nil, err
		}
		return pin, nil
	case config.PinMCP23017:
		address := p.ExpanderAddress
		if address == 0 {
			address = gpio.DefaultMCP23017Address
		}
		port := gpio.PortA
		if p.Port == "B" {
			port = gpio.PortB
		}
		expander := gpio.NewMCP23017(h.bus, address)
		if err := expander.SetDirection(ctx, port, 0xFF); err != nil {
			return nil, err
		}
		return gpio.NewExpanderPin(expander, port, p.Bit, p.PollInterval), nil
	default:
		return nil, fmt.Errorf("%w: unknown pin kind %q", config.ErrInvalidProfile, p.Kind)
	}
}
