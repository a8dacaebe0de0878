package as3935

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// interruptHandler builds the callback armed on the IRQ pin. It runs in the
// pin's own goroutine.
func (d *Device) interruptHandler(ctx context.Context, queue *eventQueue) func() {
	return func() {
		event, ok, err := d.handleInterrupt(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				d.logger.Debug("interrupt handling cancelled")
				return
			}
			d.logger.Error("could not handle interrupt", "error", err)
			if d.config.ErrorHandler != nil {
				d.config.ErrorHandler(err)
			}
			return
		}
		if !ok {
			return
		}
		d.logger.Debug("emitting event", "event", event.Kind)
		if !queue.push(event) {
			d.logger.Debug("event stream closed, dropping event", "event", event.Kind)
		}
	}
}

// handleInterrupt decodes the interrupt cause. ok is false when the cause
// does not produce an event.
func (d *Device) handleInterrupt(ctx context.Context) (Event, bool, error) {
	// INT register is valid 2ms after the IRQ edge
	if err := d.wait(ctx, d.config.IRQReadyDelay); err != nil {
		return Event{}, false, err
	}
	code, err := d.read(ctx, Interrupt)
	if err != nil {
		return Event{}, false, err
	}
	irq, err := DecodeIrq(code)
	if err != nil {
		return Event{}, false, err
	}
	switch irq {
	case IrqDistanceEstimationChanged:
		return Event{}, false, nil
	case IrqDisturberDetected:
		return Event{Kind: EventDisturbance, Time: time.Now()}, true, nil
	case IrqNoiseLevelTooHigh:
		return Event{Kind: EventNoise, Time: time.Now()}, true, nil
	case IrqLightning:
		if err := d.wait(ctx, d.config.LightningCalculationDelay); err != nil {
			return Event{}, false, err
		}
		code, err := d.read(ctx, DistanceEstimation)
		if err != nil {
			return Event{}, false, err
		}
		distance, err := DecodeDistance(code)
		if err != nil {
			return Event{}, false, err
		}
		return Event{Kind: EventLightning, Distance: distance, Time: time.Now()}, true, nil
	default:
		return Event{}, false, fmt.Errorf("as3935: unhandled interrupt %s", irq)
	}
}
