package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/lightning/as3935"
	"github.com/mklimuk/lightning/cmd/lightning/console"
	"github.com/mklimuk/lightning/snsctx"
)

var registersCmd = cli.Command{
	Name:  "registers",
	Usage: "inspect and modify sensor register fields",
	Subcommands: cli.Commands{
		&registersDumpCmd,
		&registersSetCmd,
	},
}

type fieldValue struct {
	Name        string `yaml:"name"`
	Address     string `yaml:"address"`
	Mask        string `yaml:"mask"`
	Value       byte   `yaml:"value"`
	Default     byte   `yaml:"default"`
	Description string `yaml:"description"`
}

var registersDumpCmd = cli.Command{
	Name:  "dump",
	Usage: "read every readable field",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "format", Value: "table", Usage: "output format: table or yaml"},
	}, hardwareFlags...),
	Action: func(c *cli.Context) error {
		profile, err := loadProfile(c)
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		ctx, cancel := context.WithTimeout(snsctx.SetVerbose(c.Context, c.Bool("verbose")), 10*time.Second)
		defer cancel()
		hw, err := openHardware(ctx, profile, false)
		if err != nil {
			return console.Exit(1, "could not open hardware: %s", console.Red(err))
		}
		defer func() { _ = hw.Close() }()

		dump, err := as3935.NewInterface(hw.bus, profile.Address).Dump(ctx)
		if err != nil {
			return console.Exit(1, "could not read registers: %s", console.Red(err))
		}
		var fields []fieldValue
		for _, reg := range as3935.Registers() {
			v, ok := dump[reg]
			if !ok {
				continue
			}
			d := reg.Descriptor()
			fields = append(fields, fieldValue{
				Name:        d.Name,
				Address:     fmt.Sprintf("%#02x", d.Address),
				Mask:        fmt.Sprintf("%08b", d.Mask),
				Value:       v,
				Default:     d.Default,
				Description: d.Description,
			})
		}

		switch c.String("format") {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			if err := enc.Encode(fields); err != nil {
				return console.Exit(1, "encoding error: %s", console.Red(err))
			}
			return enc.Close()
		default:
			w := tabwriter.NewWriter(os.Stdout, 8, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "FIELD\tADDRESS\tMASK\tVALUE\tDEFAULT\tDESCRIPTION\n")
			for _, f := range fields {
				value := fmt.Sprintf("%d", f.Value)
				// changed from the power-on default
				if f.Value != f.Default {
					value += "*"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", f.Name, f.Address, f.Mask, value, f.Default, f.Description)
			}
			return w.Flush()
		}
	},
}

var registersSetCmd = cli.Command{
	Name:      "set",
	Usage:     "write a single field",
	ArgsUsage: "FIELD VALUE",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	}, hardwareFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		reg, ok := as3935.RegisterByName(strings.ToUpper(c.Args().Get(0)))
		if !ok {
			return console.Exit(1, "unknown field %s", console.Red(c.Args().Get(0)))
		}
		value, err := strconv.ParseUint(c.Args().Get(1), 0, 8)
		if err != nil {
			return console.Exit(1, "could not parse value: %s", console.Red(err))
		}
		profile, err := loadProfile(c)
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		if !c.Bool("yes") {
			answer, err := console.Prompt(fmt.Sprintf("write %d to %s?", value, reg), console.No, console.Yes)
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if answer != console.Yes {
				console.Info("aborted")
				return nil
			}
		}
		ctx, cancel := context.WithTimeout(snsctx.SetVerbose(c.Context, c.Bool("verbose")), 10*time.Second)
		defer cancel()
		hw, err := openHardware(ctx, profile, false)
		if err != nil {
			return console.Exit(1, "could not open hardware: %s", console.Red(err))
		}
		defer func() { _ = hw.Close() }()

		iface := as3935.NewInterface(hw.bus, profile.Address)
		if err := iface.Write(ctx, reg, byte(value)); err != nil {
			return console.Exit(1, "could not write %s: %s", reg, console.Red(err))
		}
		console.PInfof(console.PictoPin, "%s set to %s", reg, console.Green(value))
		return nil
	},
}
