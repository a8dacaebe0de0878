package as3935

import (
	"fmt"
	"math/bits"
)

// Mode is the access type of a register field.
type Mode int

const (
	Read Mode = iota + 1
	Write
	ReadWrite
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "R"
	case Write:
		return "W"
	case ReadWrite:
		return "R/W"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) Readable() bool { return m == Read || m == ReadWrite }
func (m Mode) Writable() bool { return m == Write || m == ReadWrite }

// Register identifies one field of the AS3935 register map.
type Register int

const (
	AFEGainBoost Register = iota
	PowerDown
	NoiseFloorLevel
	WatchdogThreshold
	ClearStatistics
	MinimumNumberOfLightning
	SpikeRejection
	FrequencyDivisionRatio
	MaskDisturber
	Interrupt
	DistanceEstimation
	DisplayLCOOnIRQPin
	DisplaySRCOOnIRQPin
	DisplayTRCOOnIRQPin
	InternalTuningCapacitors
	PresetDefault
	CalibrateOscillators
	registerCount
)

// Descriptor describes a register field as listed in the detailed register map
// (datasheet Table 9).
type Descriptor struct {
	Name        string
	Description string
	Address     byte
	Mode        Mode
	Mask        byte
	Default     byte
}

// Shift is the position of the least significant bit of the field.
func (d Descriptor) Shift() int {
	return bits.TrailingZeros8(d.Mask)
}

// Max is the largest value the field can hold.
func (d Descriptor) Max() byte {
	return d.Mask >> d.Shift()
}

var catalog = [registerCount]Descriptor{
	AFEGainBoost:             {Name: "AFE_GB", Description: "AFE Gain Boost", Address: 0x00, Mode: ReadWrite, Mask: 0b0011_1110, Default: 0b1_0010},
	PowerDown:                {Name: "PWD", Description: "Power-down", Address: 0x00, Mode: ReadWrite, Mask: 0b0000_0001, Default: 0b0},
	NoiseFloorLevel:          {Name: "NF_LEV", Description: "Noise Floor Level", Address: 0x01, Mode: ReadWrite, Mask: 0b0111_0000, Default: 0b010},
	WatchdogThreshold:        {Name: "WDTH", Description: "Watchdog threshold", Address: 0x01, Mode: ReadWrite, Mask: 0b0000_1111, Default: 0b0001},
	ClearStatistics:          {Name: "CL_STAT", Description: "Clear statistics", Address: 0x02, Mode: ReadWrite, Mask: 0b0100_0000, Default: 0b1},
	MinimumNumberOfLightning: {Name: "MIN_NUM_LIGH", Description: "Minimum number of lightning", Address: 0x02, Mode: ReadWrite, Mask: 0b0011_0000, Default: 0b00},
	SpikeRejection:           {Name: "SREJ", Description: "Spike rejection", Address: 0x02, Mode: ReadWrite, Mask: 0b0000_1111, Default: 0b0010},
	FrequencyDivisionRatio:   {Name: "LCO_FDIV", Description: "Frequency division ratio for antenna tuning", Address: 0x03, Mode: ReadWrite, Mask: 0b1100_0000, Default: 0b00},
	MaskDisturber:            {Name: "MASK_DIST", Description: "Mask Disturber", Address: 0x03, Mode: ReadWrite, Mask: 0b0010_0000, Default: 0b0},
	Interrupt:                {Name: "INT", Description: "Interrupt", Address: 0x03, Mode: Read, Mask: 0b0000_1111, Default: 0b0000},
	DistanceEstimation:       {Name: "DISTANCE", Description: "Distance estimation", Address: 0x07, Mode: Read, Mask: 0b0011_1111, Default: 0b00_0000},
	DisplayLCOOnIRQPin:       {Name: "DISP_LCO", Description: "Display LCO on IRQ pin", Address: 0x08, Mode: ReadWrite, Mask: 0b1000_0000, Default: 0b0},
	DisplaySRCOOnIRQPin:      {Name: "DISP_SRCO", Description: "Display SRCO on IRQ pin", Address: 0x08, Mode: ReadWrite, Mask: 0b0100_0000, Default: 0b0},
	DisplayTRCOOnIRQPin:      {Name: "DISP_TRCO", Description: "Display TRCO on IRQ pin", Address: 0x08, Mode: ReadWrite, Mask: 0b0010_0000, Default: 0b0},
	InternalTuningCapacitors: {Name: "TUN_CAP", Description: "Internal Tuning Capacitors (from 0 to 120pF in steps of 8pf)", Address: 0x08, Mode: ReadWrite, Mask: 0b0000_1111, Default: 0b0000},
	PresetDefault:            {Name: "PRESET_DEFAULT", Description: "Sets all registers in default mode", Address: 0x3C, Mode: Write, Mask: 0b1111_1111, Default: 0b0000_0000},
	CalibrateOscillators:     {Name: "CALIB_RCO", Description: "Calibrates automatically the internal RC Oscillators", Address: 0x3D, Mode: Write, Mask: 0b1111_1111, Default: 0b0000_0000},
}

// Descriptor returns the static description of r.
func (r Register) Descriptor() Descriptor {
	if r < 0 || r >= registerCount {
		return Descriptor{}
	}
	return catalog[r]
}

func (r Register) String() string {
	if r < 0 || r >= registerCount {
		return fmt.Sprintf("Register(%d)", int(r))
	}
	return catalog[r].Name
}

// Registers lists every register field in map order.
func Registers() []Register {
	regs := make([]Register, registerCount)
	for i := range regs {
		regs[i] = Register(i)
	}
	return regs
}

// RegisterByName finds a register by its datasheet name (e.g. "NF_LEV").
func RegisterByName(name string) (Register, bool) {
	for i, d := range catalog {
		if d.Name == name {
			return Register(i), true
		}
	}
	return 0, false
}
