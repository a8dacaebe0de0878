package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/lightning/as3935"
	"github.com/mklimuk/lightning/cmd/lightning/console"
	"github.com/mklimuk/lightning/pkg/config"
	"github.com/mklimuk/lightning/snsctx"
)

var listenCmd = cli.Command{
	Name:  "listen",
	Usage: "configure the sensor and print detected events until interrupted",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "placement", Usage: "sensor placing: indoor or outdoor"},
		&cli.UintFlag{Name: "noise-floor", Usage: "noise floor threshold (0-11)"},
		&cli.UintFlag{Name: "signal-verification", Usage: "signal verification threshold (0-10)"},
		&cli.IntFlag{Name: "minimum-lightning", Usage: "lightning count before an interrupt: 1, 5, 9 or 16"},
		&cli.BoolFlag{Name: "ignore-disturbers", Usage: "mask disturber interrupts"},
	}, hardwareFlags...),
	Action: func(c *cli.Context) error {
		profile, err := loadProfile(c)
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		params, err := listenParameters(c, profile)
		if err != nil {
			return console.Exit(1, "invalid sensor settings: %s", console.Red(err))
		}
		ctx, stop := signal.NotifyContext(snsctx.SetVerbose(c.Context, c.Bool("verbose")), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hw, err := openHardware(ctx, profile, true)
		if err != nil {
			return console.Exit(1, "could not open hardware: %s", console.Red(err))
		}
		defer func() {
			if err := hw.Close(); err != nil {
				console.Warnf("could not release hardware: %s", err)
			}
		}()

		dev, err := as3935.New(as3935.I2C(hw.bus, profile.Address), hw.pin)
		if err != nil {
			return console.Exit(1, "could not create device: %s", console.Red(err))
		}
		events, err := dev.Listen(ctx, params)
		if err != nil {
			return console.Exit(1, "could not start listening: %s", console.Red(err))
		}
		console.PInfof(console.PictoLightning, "listening on %s adapter, address %#02x", console.White(profile.Adapter), profile.Address)

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case e, ok := <-events:
				if !ok {
					break loop
				}
				printEvent(e)
			}
		}

		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = dev.Terminate(tctx)
		// events queued before the power down are still delivered
		for e := range events {
			printEvent(e)
		}
		if err != nil {
			return console.Exit(1, "terminate failed: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "sensor powered down")
		return nil
	},
}

// listenParameters applies sensor flags on top of the profile.
func listenParameters(c *cli.Context, profile config.Profile) (as3935.ListenParameters, error) {
	if c.IsSet("placement") {
		profile.Placement = c.String("placement")
	}
	if c.IsSet("noise-floor") {
		v, err := flagByte(c, "noise-floor")
		if err != nil {
			return as3935.ListenParameters{}, err
		}
		profile.NoiseFloor = &v
	}
	if c.IsSet("signal-verification") {
		v, err := flagByte(c, "signal-verification")
		if err != nil {
			return as3935.ListenParameters{}, err
		}
		profile.SignalVerification = &v
	}
	if c.IsSet("minimum-lightning") {
		v := c.Int("minimum-lightning")
		profile.MinimumLightning = &v
	}
	if c.IsSet("ignore-disturbers") {
		v := c.Bool("ignore-disturbers")
		profile.IgnoreDisturbances = &v
	}
	return profile.ListenParameters()
}

func flagByte(c *cli.Context, name string) (uint8, error) {
	v := c.Uint(name)
	if v > 0xFF {
		return 0, fmt.Errorf("%s: %d does not fit in a byte", name, v)
	}
	return uint8(v), nil
}

func printEvent(e as3935.Event) {
	stamp := console.White(e.Time.Format(time.DateTime))
	switch e.Kind {
	case as3935.EventLightning:
		console.PInfof(console.PictoLightning, "%s %s", stamp, console.Yellow(e.String()))
	case as3935.EventDisturbance:
		console.PInfof(console.PictoStop, "%s %s", stamp, e.String())
	default:
		console.PInfof(console.PictoGhost, "%s %s", stamp, console.Red(e.String()))
	}
}
