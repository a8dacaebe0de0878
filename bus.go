package lightning

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// AddressableTransceiver writes w and then reads len(r) bytes from the device
// at address as one transaction.
type AddressableTransceiver interface {
	WriteReadAddr(ctx context.Context, address byte, w, r []byte) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
	AddressableTransceiver
}

// InterruptPin is an input line able to call back asynchronously on edges.
// The handler runs in a context owned by the pin implementation.
type InterruptPin interface {
	Watch(edge gpio.Edge, handler func()) error
	Unwatch() error
}
