package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/lightning"
)

type registry int

const DefaultMCP23017Address = 0x21

const (
	IODIRA registry = iota
	GPPUA
	GPIOA
	IODIRB
	GPPUB
	GPIOB
)

// Port selects one of the two 8-bit I/O ports.
type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

var (
	// BankAddr maps registries to addresses for IOCON.BANK=0 and IOCON.BANK=1.
	BankAddr = []map[registry]byte{
		{
			IODIRA: 0x00,
			GPPUA:  0x0C,
			GPIOA:  0x12,
			IODIRB: 0x01,
			GPPUB:  0x0D,
			GPIOB:  0x13,
		},
		{
			IODIRA: 0x00,
			GPPUA:  0x06,
			GPIOA:  0x09,
			IODIRB: 0x10,
			GPPUB:  0x16,
			GPIOB:  0x19,
		},
	}
)

var portRegistries = map[Port]struct{ dir, pullUp, gpio registry }{
	PortA: {IODIRA, GPPUA, GPIOA},
	PortB: {IODIRB, GPPUB, GPIOB},
}

// MCP23017 is a Microchip 16-bit I/O expander. Here it lends input lines to
// devices whose IRQ output is not wired to the host.
type MCP23017 struct {
	mx         sync.Mutex
	transport  lightning.I2CBus
	bank       int
	address    byte
	retryLimit int
}

func NewMCP23017(bus lightning.I2CBus, address byte) *MCP23017 {
	return &MCP23017{retryLimit: 1, transport: bus, address: address}
}

// SetDirection sets IODIR of the port; 1 bits are inputs.
func (m *MCP23017) SetDirection(ctx context.Context, port Port, inout byte) error {
	return m.writeRegistry(ctx, portRegistries[port].dir, inout, fmt.Sprintf("set direction on gpio %s set", port))
}

// PullUp sets up pull up resistors on the port.
func (m *MCP23017) PullUp(ctx context.Context, port Port, settings byte) error {
	return m.writeRegistry(ctx, portRegistries[port].pullUp, settings, fmt.Sprintf("set pull-up on gpio %s set", port))
}

// Read reads the port's input levels.
func (m *MCP23017) Read(ctx context.Context, port Port) (byte, error) {
	var err error
	var res byte
	for i := m.retryLimit; i > 0; i-- {
		res, err = m.readRegistry(ctx, BankAddr[m.bank][portRegistries[port].gpio])
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, lightning.ErrBusBusy) {
			return res, fmt.Errorf("could not read gpio %s set: %w", port, err)
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return res, fmt.Errorf("could not read gpio %s set (retry limit reached): %w", port, err)
}

func (m *MCP23017) writeRegistry(ctx context.Context, reg registry, value byte, what string) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		m.mx.Lock()
		err = m.transport.WriteToAddr(ctx, m.address, []byte{BankAddr[m.bank][reg], value})
		m.mx.Unlock()
		if err == nil {
			return nil
		}
		if !errors.Is(err, lightning.ErrBusBusy) {
			return fmt.Errorf("could not %s: %w", what, err)
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return fmt.Errorf("could not %s (retry limit reached): %w", what, err)
}

func (m *MCP23017) readRegistry(ctx context.Context, addr byte) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	buf := make([]byte, 1)
	err := m.transport.WriteReadAddr(ctx, m.address, []byte{addr}, buf)
	if err != nil {
		return 0x00, fmt.Errorf("could not read gpio data: %w", err)
	}
	return buf[0], nil
}
