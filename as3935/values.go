package as3935

import "fmt"

type SensorPlacing int

const (
	Indoor SensorPlacing = iota + 1
	Outdoor
)

// gain returns the AFE_GB setting recommended for the placement.
func (p SensorPlacing) gain() (byte, error) {
	switch p {
	case Indoor:
		return 0b1_0010, nil
	case Outdoor:
		return 0b0_1110, nil
	default:
		return 0, fmt.Errorf("%w: sensor placing %d", ErrInvalidParameter, int(p))
	}
}

func (p SensorPlacing) String() string {
	switch p {
	case Indoor:
		return "indoor"
	case Outdoor:
		return "outdoor"
	default:
		return fmt.Sprintf("SensorPlacing(%d)", int(p))
	}
}

// ParseSensorPlacing accepts "indoor" or "outdoor".
func ParseSensorPlacing(s string) (SensorPlacing, error) {
	switch s {
	case "indoor":
		return Indoor, nil
	case "outdoor":
		return Outdoor, nil
	default:
		return 0, fmt.Errorf("%w: sensor placing must be indoor or outdoor, got %q", ErrInvalidParameter, s)
	}
}

// MinimumLightningThreshold is the number of lightning events within 15
// minutes required before the chip raises a lightning interrupt.
type MinimumLightningThreshold int

const (
	One MinimumLightningThreshold = iota + 1
	Five
	Nine
	Sixteen
)

func (t MinimumLightningThreshold) code() (byte, error) {
	switch t {
	case One:
		return 0b00, nil
	case Five:
		return 0b01, nil
	case Nine:
		return 0b10, nil
	case Sixteen:
		return 0b11, nil
	default:
		return 0, fmt.Errorf("%w: minimum lightning threshold %d", ErrInvalidParameter, int(t))
	}
}

// ParseMinimumLightningThreshold accepts the lightning counts 1, 5, 9 and 16.
func ParseMinimumLightningThreshold(count int) (MinimumLightningThreshold, error) {
	switch count {
	case 1:
		return One, nil
	case 5:
		return Five, nil
	case 9:
		return Nine, nil
	case 16:
		return Sixteen, nil
	default:
		return 0, fmt.Errorf("%w: minimum lightning threshold must be one of 1, 5, 9, 16, got %d", ErrInvalidParameter, count)
	}
}

// NoiseFloorThreshold selects the noise floor level; valid range is 0-11.
type NoiseFloorThreshold struct {
	value byte
}

func NewNoiseFloorThreshold(value uint8) (NoiseFloorThreshold, error) {
	if value > 11 {
		return NoiseFloorThreshold{}, fmt.Errorf("%w: noise floor threshold must be in range 0-11, got %d", ErrInvalidParameter, value)
	}
	return NoiseFloorThreshold{value: value}, nil
}

func (t NoiseFloorThreshold) Value() uint8 { return t.value }

// SignalVerificationThreshold is the watchdog threshold; valid range is 0-10.
// Larger values reject disturbers more robustly at the cost of detection
// efficiency (datasheet Figure 20). The chip default is 2.
type SignalVerificationThreshold struct {
	value byte
}

func NewSignalVerificationThreshold(value uint8) (SignalVerificationThreshold, error) {
	if value > 10 {
		return SignalVerificationThreshold{}, fmt.Errorf("%w: signal verification threshold must be in range 0-10, got %d", ErrInvalidParameter, value)
	}
	return SignalVerificationThreshold{value: value}, nil
}

func (t SignalVerificationThreshold) Value() uint8 { return t.value }

type IgnoreDisturbances int

const (
	IgnoreDisturbancesNo IgnoreDisturbances = iota
	IgnoreDisturbancesYes
)

func (i IgnoreDisturbances) code() (byte, error) {
	switch i {
	case IgnoreDisturbancesYes:
		return 1, nil
	case IgnoreDisturbancesNo:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: ignore disturbances %d", ErrInvalidParameter, int(i))
	}
}

// ListenParameters holds the optional settings applied by Listen.
// A nil field leaves the chip default untouched.
type ListenParameters struct {
	SensorPlacing               *SensorPlacing
	MinimumLightningThreshold   *MinimumLightningThreshold
	NoiseFloorThreshold         *NoiseFloorThreshold
	SignalVerificationThreshold *SignalVerificationThreshold
	IgnoreDisturbances          *IgnoreDisturbances
}

func (p ListenParameters) WithSensorPlacing(v SensorPlacing) ListenParameters {
	p.SensorPlacing = &v
	return p
}

func (p ListenParameters) WithMinimumLightningThreshold(v MinimumLightningThreshold) ListenParameters {
	p.MinimumLightningThreshold = &v
	return p
}

func (p ListenParameters) WithNoiseFloorThreshold(v NoiseFloorThreshold) ListenParameters {
	p.NoiseFloorThreshold = &v
	return p
}

func (p ListenParameters) WithSignalVerificationThreshold(v SignalVerificationThreshold) ListenParameters {
	p.SignalVerificationThreshold = &v
	return p
}

func (p ListenParameters) WithIgnoreDisturbances(v IgnoreDisturbances) ListenParameters {
	p.IgnoreDisturbances = &v
	return p
}

type setting struct {
	register Register
	value    byte
}

// settings translates the present parameters into field writes, in the
// order they are applied.
func (p ListenParameters) settings() ([]setting, error) {
	var res []setting
	if p.SensorPlacing != nil {
		v, err := p.SensorPlacing.gain()
		if err != nil {
			return nil, err
		}
		res = append(res, setting{AFEGainBoost, v})
	}
	if p.MinimumLightningThreshold != nil {
		v, err := p.MinimumLightningThreshold.code()
		if err != nil {
			return nil, err
		}
		res = append(res, setting{MinimumNumberOfLightning, v})
	}
	if p.NoiseFloorThreshold != nil {
		res = append(res, setting{NoiseFloorLevel, p.NoiseFloorThreshold.value})
	}
	if p.SignalVerificationThreshold != nil {
		res = append(res, setting{WatchdogThreshold, p.SignalVerificationThreshold.value})
	}
	if p.IgnoreDisturbances != nil {
		v, err := p.IgnoreDisturbances.code()
		if err != nil {
			return nil, err
		}
		res = append(res, setting{MaskDisturber, v})
	}
	// reject values the field cannot hold before anything reaches the bus
	for _, s := range res {
		d := s.register.Descriptor()
		if s.value > d.Max() {
			return nil, fmt.Errorf("%w: %s accepts 0-%d, got %d", ErrValueOutOfRange, d.Name, d.Max(), s.value)
		}
	}
	return res, nil
}
