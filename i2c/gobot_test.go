package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

type fakeConnection struct {
	gobot.Connection
	registers map[byte]byte
	pointer   byte
	writes    [][]byte
	closed    bool
	closeErr  error
}

func (c *fakeConnection) Write(b []byte) (int, error) {
	c.writes = append(c.writes, append([]byte(nil), b...))
	c.pointer = b[0]
	if len(b) > 1 {
		c.registers[b[0]] = b[1]
	}
	return len(b), nil
}

func (c *fakeConnection) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = c.registers[c.pointer+byte(i)]
	}
	return len(b), nil
}

func (c *fakeConnection) Close() error {
	c.closed = true
	return c.closeErr
}

type fakeConnector struct {
	gobot.Connector
	opened map[int]*fakeConnection
	busNrs []int
	err    error
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (gobot.Connection, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.busNrs = append(f.busNrs, busNr)
	conn := &fakeConnection{registers: map[byte]byte{0x07: 0x0A}}
	f.opened[address] = conn
	return conn, nil
}

func TestGobotBus_ReusesConnection(t *testing.T) {
	connector := &fakeConnector{opened: map[int]*fakeConnection{}}
	bus := NewGobotBus(connector, 2)
	ctx := context.Background()

	buf := make([]byte, 1)
	require.NoError(t, bus.WriteReadAddr(ctx, 0x03, []byte{0x07}, buf))
	assert.Equal(t, byte(0x0A), buf[0])
	require.NoError(t, bus.WriteToAddr(ctx, 0x03, []byte{0x00, 0x24}))

	assert.Len(t, connector.opened, 1)
	assert.Equal(t, []int{2}, connector.busNrs)
	assert.Equal(t, [][]byte{{0x07}, {0x00, 0x24}}, connector.opened[0x03].writes)

	require.NoError(t, bus.Close())
	assert.True(t, connector.opened[0x03].closed)
}

func TestGobotBus_ConnectionError(t *testing.T) {
	connector := &fakeConnector{opened: map[int]*fakeConnection{}, err: errors.New("no such bus")}
	bus := NewGobotBus(connector, 1)
	err := bus.WriteToAddr(context.Background(), 0x03, []byte{0x00})
	assert.ErrorIs(t, err, connector.err)
}

func TestGobotBus_CloseReportsEveryFailure(t *testing.T) {
	connector := &fakeConnector{opened: map[int]*fakeConnection{}}
	bus := NewGobotBus(connector, 0)
	ctx := context.Background()
	require.NoError(t, bus.WriteToAddr(ctx, 0x03, []byte{0x00, 0x24}))
	require.NoError(t, bus.WriteToAddr(ctx, 0x21, []byte{0x00, 0xFF}))
	first := errors.New("sensor connection stuck")
	second := errors.New("expander connection stuck")
	connector.opened[0x03].closeErr = first
	connector.opened[0x21].closeErr = second

	err := bus.Close()
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Len(t, multierr.Errors(err), 2)
	assert.True(t, connector.opened[0x03].closed)
	assert.True(t, connector.opened[0x21].closed)
	// connections are forgotten even when closing fails
	assert.NoError(t, bus.Close())
}
