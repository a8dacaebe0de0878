package as3935

import "fmt"

// Irq is the interrupt cause read from the low nibble of register 0x03.
type Irq byte

const (
	IrqDistanceEstimationChanged Irq = 0b0000
	IrqNoiseLevelTooHigh         Irq = 0b0001 // INT_NH
	IrqDisturberDetected         Irq = 0b0100 // INT_D
	IrqLightning                 Irq = 0b1000 // INT_L
)

func (i Irq) String() string {
	switch i {
	case IrqDistanceEstimationChanged:
		return "distance estimation changed"
	case IrqNoiseLevelTooHigh:
		return "noise level too high"
	case IrqDisturberDetected:
		return "disturber detected"
	case IrqLightning:
		return "lightning"
	default:
		return fmt.Sprintf("Irq(%#04b)", byte(i))
	}
}

func DecodeIrq(code byte) (Irq, error) {
	switch irq := Irq(code); irq {
	case IrqDistanceEstimationChanged, IrqNoiseLevelTooHigh, IrqDisturberDetected, IrqLightning:
		return irq, nil
	default:
		return 0, &DecodeError{Register: Interrupt, Code: code}
	}
}

type DistanceKind int

const (
	DistanceKilometers DistanceKind = iota + 1
	// DistanceOutOfRange means the storm is further than 40 km.
	DistanceOutOfRange
	// DistanceOverhead means the storm is closer than 5 km.
	DistanceOverhead
)

// HeadOfStormDistance is the chip's estimate of the distance to the head of
// the storm.
type HeadOfStormDistance struct {
	Kind       DistanceKind
	Kilometers uint8
}

func Kilometers(km uint8) HeadOfStormDistance {
	return HeadOfStormDistance{Kind: DistanceKilometers, Kilometers: km}
}

var (
	OutOfRange = HeadOfStormDistance{Kind: DistanceOutOfRange}
	Overhead   = HeadOfStormDistance{Kind: DistanceOverhead}
)

func (d HeadOfStormDistance) String() string {
	switch d.Kind {
	case DistanceKilometers:
		return fmt.Sprintf("%d km", d.Kilometers)
	case DistanceOutOfRange:
		return "out of range"
	case DistanceOverhead:
		return "overhead"
	default:
		return "unknown"
	}
}

var distances = map[byte]HeadOfStormDistance{
	0b11_1111: OutOfRange,
	0b10_1000: Kilometers(40),
	0b10_0101: Kilometers(37),
	0b10_0010: Kilometers(34),
	0b01_1111: Kilometers(31),
	0b01_1011: Kilometers(27),
	0b01_1000: Kilometers(24),
	0b01_0100: Kilometers(20),
	0b01_0001: Kilometers(17),
	0b00_1110: Kilometers(14),
	0b00_1100: Kilometers(12),
	0b00_1010: Kilometers(10),
	0b00_1000: Kilometers(8),
	0b00_0110: Kilometers(6),
	0b00_0101: Kilometers(5),
	0b00_0001: Overhead,
}

func DecodeDistance(code byte) (HeadOfStormDistance, error) {
	d, ok := distances[code]
	if !ok {
		return HeadOfStormDistance{}, &DecodeError{Register: DistanceEstimation, Code: code}
	}
	return d, nil
}
