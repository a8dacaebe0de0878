package gpio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pio "periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/lightning"
)

// expanderBus emulates the register file of a single MCP23017.
type expanderBus struct {
	mx        sync.Mutex
	registers [0x20]byte
	writes    [][]byte
	busy      int
	releases  int
	readErr   error
}

func (b *expanderBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return errors.New("not supported")
}

func (b *expanderBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.busy > 0 {
		b.busy--
		return lightning.ErrBusBusy
	}
	b.writes = append(b.writes, append([]byte(nil), buffer...))
	b.registers[buffer[0]] = buffer[1]
	return nil
}

func (b *expanderBus) Release(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.releases++
	return nil
}

func (b *expanderBus) WriteReadAddr(ctx context.Context, address byte, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.readErr != nil {
		return b.readErr
	}
	r[0] = b.registers[w[0]]
	return nil
}

func (b *expanderBus) set(reg, value byte) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.registers[reg] = value
}

func TestMCP23017_Configure(t *testing.T) {
	bus := &expanderBus{}
	m := NewMCP23017(bus, DefaultMCP23017Address)
	ctx := context.Background()

	require.NoError(t, m.SetDirection(ctx, PortA, 0xFF))
	require.NoError(t, m.PullUp(ctx, PortB, 0x0F))
	assert.Equal(t, [][]byte{{0x00, 0xFF}, {0x0D, 0x0F}}, bus.writes)

	bus.set(0x13, 0b1010_0000)
	v, err := m.Read(ctx, PortB)
	require.NoError(t, err)
	assert.Equal(t, byte(0b1010_0000), v)
}

func TestMCP23017_BusyBus(t *testing.T) {
	bus := &expanderBus{busy: 1}
	m := NewMCP23017(bus, DefaultMCP23017Address)

	err := m.SetDirection(context.Background(), PortA, 0xFF)
	assert.ErrorIs(t, err, lightning.ErrBusBusy)
	assert.ErrorContains(t, err, "retry limit reached")
	assert.Equal(t, 1, bus.releases)
}

func TestExpanderPin_RisingEdge(t *testing.T) {
	bus := &expanderBus{}
	m := NewMCP23017(bus, DefaultMCP23017Address)
	p := NewExpanderPin(m, PortA, 3, time.Millisecond)

	var calls int64
	require.NoError(t, p.Watch(pio.RisingEdge, func() { atomic.AddInt64(&calls, 1) }))
	assert.ErrorIs(t, p.Watch(pio.RisingEdge, func() {}), ErrAlreadyWatching)

	// other bits do not matter
	bus.set(0x12, 0b1111_0111)
	assert.Never(t, func() bool { return atomic.LoadInt64(&calls) > 0 }, 20*time.Millisecond, time.Millisecond)

	bus.set(0x12, 0b0000_1000)
	assert.Eventually(t, func() bool { return atomic.LoadInt64(&calls) == 1 }, time.Second, time.Millisecond)

	// level held high is a single edge
	assert.Never(t, func() bool { return atomic.LoadInt64(&calls) > 1 }, 20*time.Millisecond, time.Millisecond)

	require.NoError(t, p.Unwatch())
	assert.NoError(t, p.Unwatch())
}

func TestExpanderPin_ReadFailure(t *testing.T) {
	bus := &expanderBus{readErr: errors.New("nack")}
	m := NewMCP23017(bus, DefaultMCP23017Address)
	p := NewExpanderPin(m, PortB, 0, time.Millisecond)

	err := p.Watch(pio.RisingEdge, func() {})
	assert.ErrorIs(t, err, bus.readErr)
	assert.ErrorContains(t, p.Watch(pio.NoEdge, func() {}), "edge required")
}

func TestExpanderPin_NonPositiveInterval(t *testing.T) {
	bus := &expanderBus{}
	m := NewMCP23017(bus, DefaultMCP23017Address)
	for _, interval := range []time.Duration{0, -time.Millisecond} {
		p := NewExpanderPin(m, PortA, 0, interval)
		err := p.Watch(pio.RisingEdge, func() {})
		assert.ErrorContains(t, err, "poll interval must be positive")
		// nothing was started
		assert.NoError(t, p.Unwatch())
	}
}
