package as3935

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInterface_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	for _, reg := range Registers() {
		d := reg.Descriptor()
		if d.Mode != ReadWrite {
			continue
		}
		t.Run(d.Name, func(t *testing.T) {
			c := newChip()
			iface := NewInterface(c, DefaultAddress)
			for v := 0; v <= int(d.Max()); v++ {
				require.NoError(t, iface.Write(ctx, reg, byte(v)))
				got, err := iface.Read(ctx, reg)
				require.NoError(t, err)
				assert.Equal(t, byte(v), got)
			}
		})
	}
}

func TestInterface_WriteKeepsNeighbourBits(t *testing.T) {
	ctx := context.Background()
	c := newChip()
	c.set(0x03, 0b1100_0101)
	iface := NewInterface(c, DefaultAddress)

	require.NoError(t, iface.Write(ctx, MaskDisturber, 1))
	assert.Equal(t, byte(0b1110_0101), c.get(0x03))

	require.NoError(t, iface.Write(ctx, FrequencyDivisionRatio, 0b01))
	assert.Equal(t, byte(0b0110_0101), c.get(0x03))

	require.NoError(t, iface.Write(ctx, MaskDisturber, 0))
	assert.Equal(t, byte(0b0100_0101), c.get(0x03))
}

func TestInterface_ReadExtractsField(t *testing.T) {
	c := newChip()
	c.set(0x01, 0b0101_0011)
	iface := NewInterface(c, DefaultAddress)

	nf, err := iface.Read(context.Background(), NoiseFloorLevel)
	require.NoError(t, err)
	assert.Equal(t, byte(0b101), nf)

	wd, err := iface.Read(context.Background(), WatchdogThreshold)
	require.NoError(t, err)
	assert.Equal(t, byte(0b0011), wd)
}

func TestInterface_OutOfRangeRejectedBeforeBusAccess(t *testing.T) {
	tests := []struct {
		reg   Register
		value byte
	}{
		{PowerDown, 2},
		{NoiseFloorLevel, 8},
		{MinimumNumberOfLightning, 4},
		{AFEGainBoost, 32},
		{WatchdogThreshold, 16},
	}
	for _, test := range tests {
		t.Run(test.reg.String(), func(t *testing.T) {
			bus := new(MockI2CBus)
			iface := NewInterface(bus, DefaultAddress)
			err := iface.Write(context.Background(), test.reg, test.value)
			assert.ErrorIs(t, err, ErrValueOutOfRange)
			bus.AssertNotCalled(t, "WriteReadAddr", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestInterface_AccessMode(t *testing.T) {
	bus := new(MockI2CBus)
	iface := NewInterface(bus, DefaultAddress)
	ctx := context.Background()

	_, err := iface.Read(ctx, PresetDefault)
	assert.ErrorIs(t, err, ErrNotReadable)

	err = iface.Write(ctx, Interrupt, 1)
	assert.ErrorIs(t, err, ErrNotWritable)

	bus.AssertExpectations(t)
}

func TestInterface_DirectCommandSkipsRead(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("WriteToAddr", mock.Anything, byte(DefaultAddress), []byte{0x3D, 0x96}).Return(nil).Once()
	iface := NewInterface(bus, DefaultAddress)

	require.NoError(t, iface.Write(context.Background(), CalibrateOscillators, 0x96))
	bus.AssertNotCalled(t, "WriteReadAddr", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	bus.AssertExpectations(t)
}

func TestInterface_TransportErrors(t *testing.T) {
	busErr := errors.New("nack")
	ctx := context.Background()

	t.Run("read", func(t *testing.T) {
		bus := new(MockI2CBus)
		bus.On("WriteReadAddr", mock.Anything, byte(DefaultAddress), []byte{0x07}, mock.Anything).Return(nil, busErr).Once()
		_, err := NewInterface(bus, DefaultAddress).Read(ctx, DistanceEstimation)
		assert.ErrorIs(t, err, busErr)
		bus.AssertExpectations(t)
	})

	t.Run("read before write", func(t *testing.T) {
		bus := new(MockI2CBus)
		bus.On("WriteReadAddr", mock.Anything, byte(DefaultAddress), []byte{0x00}, mock.Anything).Return(nil, busErr).Once()
		err := NewInterface(bus, DefaultAddress).Write(ctx, PowerDown, 1)
		assert.ErrorIs(t, err, busErr)
		bus.AssertNotCalled(t, "WriteToAddr", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("write", func(t *testing.T) {
		bus := new(MockI2CBus)
		bus.On("WriteReadAddr", mock.Anything, byte(DefaultAddress), []byte{0x00}, mock.Anything).Return([]byte{0x24}, nil).Once()
		bus.On("WriteToAddr", mock.Anything, byte(DefaultAddress), []byte{0x00, 0x25}).Return(busErr).Once()
		err := NewInterface(bus, DefaultAddress).Write(ctx, PowerDown, 1)
		assert.ErrorIs(t, err, busErr)
		bus.AssertExpectations(t)
	})
}

func TestInterface_Dump(t *testing.T) {
	c := newChip()
	c.set(0x01, 0b0101_0011)
	iface := NewInterface(c, DefaultAddress)

	dump, err := iface.Dump(context.Background())
	require.NoError(t, err)
	for _, reg := range Registers() {
		_, ok := dump[reg]
		assert.Equal(t, reg.Descriptor().Mode.Readable(), ok, reg.Descriptor().Name)
	}
	assert.Equal(t, byte(0b101), dump[NoiseFloorLevel])
	assert.Equal(t, byte(0b0011), dump[WatchdogThreshold])
	assert.NotContains(t, dump, CalibrateOscillators)
	// reading never writes
	assert.Empty(t, c.recorded())
}

func TestInterface_DumpStopsOnTransportError(t *testing.T) {
	busErr := errors.New("nack")
	bus := new(MockI2CBus)
	bus.On("WriteReadAddr", mock.Anything, byte(DefaultAddress), mock.Anything, mock.Anything).Return(nil, busErr).Once()

	dump, err := NewInterface(bus, DefaultAddress).Dump(context.Background())
	assert.ErrorIs(t, err, busErr)
	assert.Nil(t, dump)
	bus.AssertExpectations(t)
}
