package as3935

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklimuk/lightning"
)

// DefaultAddress is the I2C address selected with both ADD pins high.
const DefaultAddress = 0x03

// Interface performs masked field reads and read-modify-write field writes.
// It is not safe for concurrent use: writes to different fields of the same
// byte must be serialized by the caller.
type Interface struct {
	bus     lightning.I2CBus
	address byte
	logger  *slog.Logger
	buf     []byte
}

func NewInterface(bus lightning.I2CBus, address byte) *Interface {
	return &Interface{bus: bus, address: address, logger: slog.Default(), buf: make([]byte, 1)}
}

// Read returns the value of the field, aligned to bit 0.
func (i *Interface) Read(ctx context.Context, reg Register) (byte, error) {
	d := reg.Descriptor()
	if !d.Mode.Readable() {
		return 0, fmt.Errorf("%w: %s", ErrNotReadable, d.Name)
	}
	raw, err := i.readByte(ctx, d.Address)
	if err != nil {
		return 0, fmt.Errorf("as3935: could not read %s: %w", d.Name, err)
	}
	value := (raw & d.Mask) >> d.Shift()
	i.logger.Debug("register read", "register", d.Name, "address", d.Address, "value", value)
	return value, nil
}

// Write stores value in the field leaving the other bits of the byte intact.
func (i *Interface) Write(ctx context.Context, reg Register, value byte) error {
	d := reg.Descriptor()
	if !d.Mode.Writable() {
		return fmt.Errorf("%w: %s", ErrNotWritable, d.Name)
	}
	if value > d.Max() {
		return fmt.Errorf("%w: %s accepts 0-%d, got %d", ErrValueOutOfRange, d.Name, d.Max(), value)
	}
	i.logger.Debug("register write", "register", d.Name, "address", d.Address, "value", value)
	var current byte
	// a full byte field (direct command) keeps nothing of the old content
	if d.Mask != 0xFF {
		var err error
		current, err = i.readByte(ctx, d.Address)
		if err != nil {
			return fmt.Errorf("as3935: could not read %s before write: %w", d.Name, err)
		}
	}
	next := current&^d.Mask | value<<d.Shift()
	err := i.bus.WriteToAddr(ctx, i.address, []byte{d.Address, next})
	if err != nil {
		return fmt.Errorf("as3935: could not write %s: %w", d.Name, err)
	}
	return nil
}

// Dump reads every readable field. Write-only direct commands are left out.
func (i *Interface) Dump(ctx context.Context) (map[Register]byte, error) {
	res := make(map[Register]byte)
	for _, reg := range Registers() {
		if !reg.Descriptor().Mode.Readable() {
			continue
		}
		v, err := i.Read(ctx, reg)
		if err != nil {
			return nil, err
		}
		res[reg] = v
	}
	return res, nil
}

func (i *Interface) readByte(ctx context.Context, address byte) (byte, error) {
	err := i.bus.WriteReadAddr(ctx, i.address, []byte{address}, i.buf)
	if err != nil {
		return 0, err
	}
	return i.buf[0], nil
}
