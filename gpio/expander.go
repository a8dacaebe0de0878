package gpio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pio "periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/lightning"
)

var _ lightning.InterruptPin = &ExpanderPin{}

// ExpanderPin watches one input of an MCP23017 by polling its port.
// Pulses shorter than the poll interval are missed; the AS3935 keeps IRQ high
// until the interrupt register is read, so polling is enough for it.
type ExpanderPin struct {
	mx       sync.Mutex
	expander *MCP23017
	port     Port
	mask     byte
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewExpanderPin(expander *MCP23017, port Port, bit uint8, interval time.Duration) *ExpanderPin {
	return &ExpanderPin{
		expander: expander,
		port:     port,
		mask:     1 << (bit & 0x07),
		interval: interval,
	}
}

func (p *ExpanderPin) Watch(edge pio.Edge, handler func()) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.cancel != nil {
		return fmt.Errorf("expander pin %s/%#02x: %w", p.port, p.mask, ErrAlreadyWatching)
	}
	if edge == pio.NoEdge {
		return fmt.Errorf("expander pin %s/%#02x: edge required", p.port, p.mask)
	}
	if p.interval <= 0 {
		return fmt.Errorf("expander pin %s/%#02x: poll interval must be positive, got %s", p.port, p.mask, p.interval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	level, err := p.level(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("could not read initial level: %w", err)
	}
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.poll(ctx, edge, level, handler)
	return nil
}

func (p *ExpanderPin) poll(ctx context.Context, edge pio.Edge, last pio.Level, handler func()) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		level, err := p.level(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("could not poll expander pin", "port", p.port.String(), "error", err)
			}
			continue
		}
		rising := last == pio.Low && level == pio.High
		falling := last == pio.High && level == pio.Low
		last = level
		if (rising && edge != pio.FallingEdge) || (falling && edge != pio.RisingEdge) {
			handler()
		}
	}
}

func (p *ExpanderPin) level(ctx context.Context) (pio.Level, error) {
	port, err := p.expander.Read(ctx, p.port)
	if err != nil {
		return pio.Low, err
	}
	return port&p.mask != 0, nil
}

func (p *ExpanderPin) Unwatch() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	return nil
}
