package as3935

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/lightning"
)

const (
	// DisturberDeactivationPeriod is how long the chip ignores signals after
	// a disturber has been detected.
	DisturberDeactivationPeriod = 1500 * time.Millisecond
	// ApproximateMinimumLightningInterval is the shortest interval between
	// two lightning interrupts.
	ApproximateMinimumLightningInterval = time.Second
)

// calibrationCommand is the value written to direct command registers.
const calibrationCommand = 0x96

type State int

const (
	StandingBy State = iota
	PoweredDown
	Listening
)

func (s State) String() string {
	switch s {
	case StandingBy:
		return "standing by"
	case PoweredDown:
		return "powered down"
	case Listening:
		return "listening"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type TransportKind int

const (
	TransportI2C TransportKind = iota + 1
	TransportSPI
)

// Transport selects how the chip is reached.
type Transport struct {
	Kind    TransportKind
	Bus     lightning.I2CBus
	Address byte
}

func I2C(bus lightning.I2CBus, address byte) Transport {
	return Transport{Kind: TransportI2C, Bus: bus, Address: address}
}

// SPI is declared for completeness; New rejects it with ErrUnsupportedTransport.
func SPI() Transport {
	return Transport{Kind: TransportSPI}
}

type DeviceOpts struct {
	SettleDelay               time.Duration
	ClockGenerationDelay      time.Duration
	IRQReadyDelay             time.Duration
	LightningCalculationDelay time.Duration
	Logger                    *slog.Logger
	ErrorHandler              func(error)
}

type DeviceOpt func(*DeviceOpts)

// WithSettleDelay sets the wait after power-up and oscillator commands.
func WithSettleDelay(delay time.Duration) DeviceOpt {
	return func(o *DeviceOpts) {
		o.SettleDelay = delay
	}
}

func WithClockGenerationDelay(delay time.Duration) DeviceOpt {
	return func(o *DeviceOpts) {
		o.ClockGenerationDelay = delay
	}
}

// WithIRQReadyDelay sets the wait between the interrupt edge and reading the
// interrupt register.
func WithIRQReadyDelay(delay time.Duration) DeviceOpt {
	return func(o *DeviceOpts) {
		o.IRQReadyDelay = delay
	}
}

func WithLightningCalculationDelay(delay time.Duration) DeviceOpt {
	return func(o *DeviceOpts) {
		o.LightningCalculationDelay = delay
	}
}

func WithLogger(logger *slog.Logger) DeviceOpt {
	return func(o *DeviceOpts) {
		o.Logger = logger
	}
}

// WithErrorHandler registers a callback receiving errors raised while
// handling interrupts.
func WithErrorHandler(handler func(error)) DeviceOpt {
	return func(o *DeviceOpts) {
		o.ErrorHandler = handler
	}
}

// Device drives an AS3935 Franklin lightning sensor.
// See: https://ams.com/documents/20143/36005/AS3935_DS000365_2-00.pdf
//
// Usage:
//
//	dev, err := as3935.New(as3935.I2C(bus, as3935.DefaultAddress), pin)
//	events, err := dev.Listen(ctx, as3935.ListenParameters{}.WithSensorPlacing(as3935.Outdoor))
//	for e := range events { ... }
//	err = dev.Terminate(ctx)
//
// The interrupt handler and the caller share the chip through one lock that
// is held for single register operations only, never across a delay.
type Device struct {
	mx    sync.Mutex // serializes state transitions
	state State

	commMx sync.Mutex // guards iface
	iface  *Interface

	pin    lightning.InterruptPin
	events *eventQueue
	cancel context.CancelFunc

	config DeviceOpts
	logger *slog.Logger
}

func New(transport Transport, pin lightning.InterruptPin, opts ...DeviceOpt) (*Device, error) {
	config := DeviceOpts{
		SettleDelay:               2 * time.Millisecond,
		ClockGenerationDelay:      2 * time.Millisecond,
		IRQReadyDelay:             2 * time.Millisecond,
		LightningCalculationDelay: 2 * time.Millisecond,
		Logger:                    slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	switch transport.Kind {
	case TransportI2C:
	case TransportSPI:
		return nil, fmt.Errorf("%w: spi", ErrUnsupportedTransport)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedTransport, int(transport.Kind))
	}
	if transport.Address > 127 {
		return nil, fmt.Errorf("%w: %#x exceeds 7 bits", ErrInvalidAddress, transport.Address)
	}
	if transport.Bus == nil {
		return nil, fmt.Errorf("%w: nil bus", ErrInvalidParameter)
	}
	if pin == nil {
		return nil, fmt.Errorf("%w: nil interrupt pin", ErrInvalidParameter)
	}
	iface := NewInterface(transport.Bus, transport.Address)
	iface.logger = config.Logger
	return &Device{
		state:  StandingBy,
		iface:  iface,
		pin:    pin,
		config: config,
		logger: config.Logger,
	}, nil
}

// Listen powers the chip up, calibrates its oscillators, applies params and
// starts delivering events. It is valid from StandingBy and PoweredDown.
// On failure the state is left unchanged; writes already sent are not undone.
//
// The returned channel is closed after Terminate once pending events have
// been delivered; consumers should drain it.
func (d *Device) Listen(ctx context.Context, params ListenParameters) (<-chan Event, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.assertState(StandingBy, PoweredDown); err != nil {
		return nil, err
	}
	settings, err := params.settings()
	if err != nil {
		return nil, err
	}

	d.logger.Info("starting listen sequence")

	d.logger.Debug("powering up")
	if err := d.powerUp(ctx); err != nil {
		return nil, err
	}
	d.logger.Debug("calibrating clock")
	if err := d.calibrateClock(ctx); err != nil {
		return nil, err
	}
	d.logger.Debug("resetting to defaults")
	if err := d.write(ctx, PresetDefault, calibrationCommand); err != nil {
		return nil, err
	}
	d.logger.Debug("configuring listen parameters")
	for _, s := range settings {
		if err := d.write(ctx, s.register, s.value); err != nil {
			return nil, err
		}
	}

	queue := newEventQueue()
	// the handler outlives the caller's context; Terminate cancels it
	handlerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	err = d.pin.Watch(gpio.RisingEdge, d.interruptHandler(handlerCtx, queue))
	if err != nil {
		cancel()
		queue.close()
		return nil, fmt.Errorf("as3935: could not arm interrupt pin: %w", err)
	}
	d.events = queue
	d.cancel = cancel
	d.state = Listening
	return queue.out, nil
}

// Terminate disarms the interrupt pin and powers the chip down.
// A handler already running when Terminate starts may still complete and
// emit its event.
func (d *Device) Terminate(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.assertState(Listening); err != nil {
		return err
	}
	d.logger.Info("terminating")
	var err error
	if uerr := d.pin.Unwatch(); uerr != nil {
		err = multierr.Append(err, fmt.Errorf("as3935: could not disarm interrupt pin: %w", uerr))
	}
	if perr := d.write(ctx, PowerDown, 1); perr != nil {
		return multierr.Append(err, perr)
	}
	d.cancel()
	d.events.close()
	d.cancel = nil
	d.events = nil
	d.state = PoweredDown
	return err
}

func (d *Device) IsListening() bool {
	return d.State() == Listening
}

func (d *Device) State() State {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.state
}

// ReadRegister reads a single field.
func (d *Device) ReadRegister(ctx context.Context, reg Register) (byte, error) {
	return d.read(ctx, reg)
}

// Dump reads every readable field.
func (d *Device) Dump(ctx context.Context) (map[Register]byte, error) {
	d.commMx.Lock()
	defer d.commMx.Unlock()
	return d.iface.Dump(ctx)
}

// ClearStatistics resets the lightning distance estimation statistics by
// toggling CL_STAT high-low-high.
func (d *Device) ClearStatistics(ctx context.Context) error {
	for _, v := range []byte{1, 0, 1} {
		if err := d.write(ctx, ClearStatistics, v); err != nil {
			return err
		}
	}
	return nil
}

// SetTuningCapacitors sets the antenna tuning capacitance in 8pF steps (0-15).
func (d *Device) SetTuningCapacitors(ctx context.Context, steps uint8) error {
	return d.write(ctx, InternalTuningCapacitors, steps)
}

func (d *Device) powerUp(ctx context.Context) error {
	if err := d.write(ctx, PowerDown, 0); err != nil {
		return err
	}
	return d.wait(ctx, d.config.SettleDelay)
}

// calibrateClock runs CALIB_RCO and then routes TRCO to the IRQ pin for a
// moment so the chip can tune the RC oscillators against it.
func (d *Device) calibrateClock(ctx context.Context) error {
	d.logger.Debug("sending CALIB_RCO direct command")
	if err := d.write(ctx, CalibrateOscillators, calibrationCommand); err != nil {
		return err
	}
	if err := d.wait(ctx, d.config.SettleDelay); err != nil {
		return err
	}
	d.logger.Debug("setting DISP_TRCO=1")
	if err := d.write(ctx, DisplayTRCOOnIRQPin, 1); err != nil {
		return err
	}
	if err := d.wait(ctx, d.config.ClockGenerationDelay); err != nil {
		return err
	}
	d.logger.Debug("setting DISP_TRCO=0")
	if err := d.write(ctx, DisplayTRCOOnIRQPin, 0); err != nil {
		return err
	}
	return d.wait(ctx, d.config.SettleDelay)
}

func (d *Device) read(ctx context.Context, reg Register) (byte, error) {
	d.commMx.Lock()
	defer d.commMx.Unlock()
	return d.iface.Read(ctx, reg)
}

func (d *Device) write(ctx context.Context, reg Register, value byte) error {
	d.commMx.Lock()
	defer d.commMx.Unlock()
	return d.iface.Write(ctx, reg, value)
}

func (d *Device) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Device) assertState(valid ...State) error {
	for _, s := range valid {
		if d.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, d.state)
}
