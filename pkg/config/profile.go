package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/lightning/as3935"
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterNanoPi  = "nanopi"

	PinMCP2221  = "mcp2221"
	PinHost     = "host"
	PinMCP23017 = "mcp23017"
)

var ErrInvalidProfile = errors.New("invalid profile")

// Pin describes where the IRQ output of the sensor is wired.
type Pin struct {
	Kind            string        `yaml:"kind"`
	Name            string        `yaml:"name,omitempty"`
	ExpanderAddress uint8         `yaml:"expander_address,omitempty"`
	Port            string        `yaml:"port,omitempty"`
	Bit             uint8         `yaml:"bit,omitempty"`
	PollInterval    time.Duration `yaml:"poll_interval,omitempty"`
}

// Profile is a listening setup stored as YAML. Sensor settings left out of
// the file keep the chip defaults. SpeedHz applies to the generic adapter
// only; zero keeps the controller clock.
type Profile struct {
	Adapter            string `yaml:"adapter"`
	Device             string `yaml:"device,omitempty"`
	Bus                int    `yaml:"bus,omitempty"`
	SpeedHz            uint32 `yaml:"speed_hz,omitempty"`
	Address            uint8  `yaml:"address"`
	Pin                Pin    `yaml:"pin"`
	Placement          string `yaml:"placement,omitempty"`
	NoiseFloor         *uint8 `yaml:"noise_floor,omitempty"`
	SignalVerification *uint8 `yaml:"signal_verification,omitempty"`
	MinimumLightning   *int   `yaml:"minimum_lightning,omitempty"`
	IgnoreDisturbances *bool  `yaml:"ignore_disturbances,omitempty"`
}

func Default() Profile {
	return Profile{
		Adapter: AdapterMCP2221,
		Address: as3935.DefaultAddress,
		Pin: Pin{
			Kind:         PinMCP2221,
			PollInterval: 10 * time.Millisecond,
		},
	}
}

// Load reads a profile on top of the defaults.
func Load(path string) (Profile, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("could not read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("could not decode profile %s: %w", path, err)
	}
	return p, p.Validate()
}

func (p Profile) Validate() error {
	switch p.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterNanoPi:
	default:
		return fmt.Errorf("%w: unknown adapter %q", ErrInvalidProfile, p.Adapter)
	}
	switch p.Pin.Kind {
	case PinMCP2221:
		if p.Adapter != AdapterMCP2221 {
			return fmt.Errorf("%w: mcp2221 pin requires the mcp2221 adapter", ErrInvalidProfile)
		}
	case PinHost:
		if p.Pin.Name == "" {
			return fmt.Errorf("%w: host pin requires a name", ErrInvalidProfile)
		}
	case PinMCP23017:
		if p.Pin.Port != "" && p.Pin.Port != "A" && p.Pin.Port != "B" {
			return fmt.Errorf("%w: expander port must be A or B (default A)", ErrInvalidProfile)
		}
		if p.Pin.Bit > 7 {
			return fmt.Errorf("%w: expander bit must be 0-7", ErrInvalidProfile)
		}
	default:
		return fmt.Errorf("%w: unknown pin kind %q", ErrInvalidProfile, p.Pin.Kind)
	}
	if p.Pin.Kind != PinHost && p.Pin.PollInterval <= 0 {
		return fmt.Errorf("%w: polled irq line needs a positive poll interval", ErrInvalidProfile)
	}
	if p.SpeedHz != 0 && p.Adapter != AdapterGeneric {
		return fmt.Errorf("%w: bus speed can only be set on the generic adapter", ErrInvalidProfile)
	}
	if p.Address > 127 {
		return fmt.Errorf("%w: address %#x", ErrInvalidProfile, p.Address)
	}
	return nil
}

// ListenParameters converts the sensor settings through the as3935
// factories so out-of-range values never reach the device.
func (p Profile) ListenParameters() (as3935.ListenParameters, error) {
	var params as3935.ListenParameters
	if p.Placement != "" {
		placing, err := as3935.ParseSensorPlacing(p.Placement)
		if err != nil {
			return params, err
		}
		params = params.WithSensorPlacing(placing)
	}
	if p.NoiseFloor != nil {
		nf, err := as3935.NewNoiseFloorThreshold(*p.NoiseFloor)
		if err != nil {
			return params, err
		}
		params = params.WithNoiseFloorThreshold(nf)
	}
	if p.SignalVerification != nil {
		svt, err := as3935.NewSignalVerificationThreshold(*p.SignalVerification)
		if err != nil {
			return params, err
		}
		params = params.WithSignalVerificationThreshold(svt)
	}
	if p.MinimumLightning != nil {
		mlt, err := as3935.ParseMinimumLightningThreshold(*p.MinimumLightning)
		if err != nil {
			return params, err
		}
		params = params.WithMinimumLightningThreshold(mlt)
	}
	if p.IgnoreDisturbances != nil {
		ignore := as3935.IgnoreDisturbancesNo
		if *p.IgnoreDisturbances {
			ignore = as3935.IgnoreDisturbancesYes
		}
		params = params.WithIgnoreDisturbances(ignore)
	}
	return params, nil
}
