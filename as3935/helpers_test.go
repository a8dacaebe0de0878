package as3935

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
	"periph.io/x/conn/v3/gpio"
)

// chip is an in-memory register file standing in for the sensor.
// It records every write issued to it.
type chip struct {
	mx        sync.Mutex
	registers [0x40]byte
	writes    []busWrite
	reads     int
	failWrite map[byte]error
}

type busWrite struct {
	Address byte
	Value   byte
}

func newChip() *chip {
	c := &chip{failWrite: map[byte]error{}}
	for _, reg := range Registers() {
		d := reg.Descriptor()
		if d.Mask == 0xFF {
			continue
		}
		c.registers[d.Address] |= d.Default << d.Shift()
	}
	return c
}

func (c *chip) set(address, value byte) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.registers[address] = value
}

func (c *chip) get(address byte) byte {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.registers[address]
}

func (c *chip) recorded() []busWrite {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]busWrite(nil), c.writes...)
}

func (c *chip) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return errors.New("chip: plain read not supported")
}

func (c *chip) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if err := c.failWrite[buffer[0]]; err != nil {
		return err
	}
	c.writes = append(c.writes, busWrite{Address: buffer[0], Value: buffer[1]})
	c.registers[buffer[0]] = buffer[1]
	return nil
}

func (c *chip) WriteReadAddr(ctx context.Context, address byte, w, r []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.reads++
	r[0] = c.registers[w[0]]
	return nil
}

func (c *chip) Release(ctx context.Context) error {
	return nil
}

// MockI2CBus is a testify mock of lightning.I2CBus.
type MockI2CBus struct {
	mock.Mock
	concurrentOps int64
	maxConcurrent int64
}

func (m *MockI2CBus) enter() {
	n := atomic.AddInt64(&m.concurrentOps, 1)
	for {
		peak := atomic.LoadInt64(&m.maxConcurrent)
		if n <= peak || atomic.CompareAndSwapInt64(&m.maxConcurrent, peak, n) {
			return
		}
	}
}

func (m *MockI2CBus) leave() {
	atomic.AddInt64(&m.concurrentOps, -1)
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	m.enter()
	defer m.leave()
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	m.enter()
	defer m.leave()
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) WriteReadAddr(ctx context.Context, address byte, w, r []byte) error {
	m.enter()
	defer m.leave()
	args := m.Called(ctx, address, w, r)
	if data, ok := args.Get(0).([]byte); ok {
		copy(r, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// fakePin keeps the armed handler so tests can fire it synchronously.
type fakePin struct {
	mx         sync.Mutex
	handler    func()
	edge       gpio.Edge
	watchErr   error
	unwatchErr error
	watches    int
	unwatches  int
}

func (p *fakePin) Watch(edge gpio.Edge, handler func()) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.watchErr != nil {
		return p.watchErr
	}
	p.watches++
	p.edge = edge
	p.handler = handler
	return nil
}

func (p *fakePin) Unwatch() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.unwatches++
	p.handler = nil
	return p.unwatchErr
}

func (p *fakePin) armed() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.handler != nil
}

// fire runs the handler in the calling goroutine, like an edge would.
func (p *fakePin) fire() {
	p.mx.Lock()
	h := p.handler
	p.mx.Unlock()
	if h != nil {
		h()
	}
}

func noDelays() []DeviceOpt {
	return []DeviceOpt{
		WithSettleDelay(0),
		WithClockGenerationDelay(0),
		WithIRQReadyDelay(0),
		WithLightningCalculationDelay(0),
	}
}
