package i2c

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/mklimuk/lightning"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

var _ lightning.I2CBus = &GobotBus{}

// GobotBus uses a gobot I2C connector (e.g. nanopi.NewNeoAdaptor()) as transport.
// Connections are opened lazily, one per device address.
type GobotBus struct {
	mx          sync.Mutex
	connector   gobot.Connector
	busNr       int
	connections map[byte]gobot.Connection
}

func NewGobotBus(connector gobot.Connector, busNr int) *GobotBus {
	return &GobotBus{
		connector:   connector,
		busNr:       busNr,
		connections: make(map[byte]gobot.Connection),
	}
}

func (b *GobotBus) connection(address byte) (gobot.Connection, error) {
	if conn, ok := b.connections[address]; ok {
		return conn, nil
	}
	conn, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %x on bus %d: %w", address, b.busNr, err)
	}
	b.connections[address] = conn
	return conn, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	if _, err := conn.Read(buffer); err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	if _, err := conn.Write(buffer); err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// WriteReadAddr performs a write followed by a read while holding the bus.
// Gobot connections do not expose repeated start so the two phases are
// separate messages.
func (b *GobotBus) WriteReadAddr(ctx context.Context, address byte, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	if _, err := conn.Write(w); err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	if _, err := conn.Read(r); err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var err error
	for addr, conn := range b.connections {
		if cerr := conn.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("could not close connection to %x: %w", addr, cerr))
		}
		delete(b.connections, addr)
	}
	return err
}
