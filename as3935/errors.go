package as3935

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState         = errors.New("as3935: operation not allowed in current state")
	ErrValueOutOfRange      = errors.New("as3935: value does not fit register field")
	ErrInvalidParameter     = errors.New("as3935: invalid parameter")
	ErrNotReadable          = errors.New("as3935: register is write-only")
	ErrNotWritable          = errors.New("as3935: register is read-only")
	ErrUnknownInterrupt     = errors.New("as3935: unknown interrupt code")
	ErrUnknownDistance      = errors.New("as3935: unknown distance code")
	ErrUnsupportedTransport = errors.New("as3935: transport not supported")
	ErrInvalidAddress       = errors.New("as3935: invalid i2c address")
)

// DecodeError reports a raw code the chip returned that is not in the
// corresponding lookup table.
type DecodeError struct {
	Register Register
	Code     byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("as3935: unknown %s code %#08b", e.Register, e.Code)
}

func (e *DecodeError) Unwrap() error {
	switch e.Register {
	case Interrupt:
		return ErrUnknownInterrupt
	case DistanceEstimation:
		return ErrUnknownDistance
	default:
		return nil
	}
}
