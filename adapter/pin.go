package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/mklimuk/lightning"
)

var ErrAlreadyWatching = errors.New("interrupt detection already running")

var _ lightning.InterruptPin = &MCP2221Pin{}

// MCP2221Pin uses the GP1 interrupt-on-change detector of the adapter as an
// interrupt line. The adapter latches the edge so the pin is polled through
// the status command and the latch is cleared before the handler runs.
type MCP2221Pin struct {
	mx       sync.Mutex
	adapter  *MCP2221
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewMCP2221Pin(adapter *MCP2221, interval time.Duration) *MCP2221Pin {
	return &MCP2221Pin{adapter: adapter, interval: interval}
}

func edgeBits(edge gpio.Edge) (byte, error) {
	switch edge {
	case gpio.RisingEdge:
		return interruptPositiveEdge, nil
	case gpio.FallingEdge:
		return interruptNegativeEdge, nil
	case gpio.BothEdges:
		return interruptPositiveEdge | interruptNegativeEdge, nil
	default:
		return 0, fmt.Errorf("unsupported edge %s", edge)
	}
}

func (p *MCP2221Pin) Watch(edge gpio.Edge, handler func()) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.cancel != nil {
		return ErrAlreadyWatching
	}
	bits, err := edgeBits(edge)
	if err != nil {
		return err
	}
	if p.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.interval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.adapter.configureInterrupt(ctx, bits); err != nil {
		cancel()
		return fmt.Errorf("could not configure GP1 interrupt detection: %w", err)
	}
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.poll(ctx, handler)
	return nil
}

func (p *MCP2221Pin) poll(ctx context.Context, handler func()) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		status, err := p.adapter.Status(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("could not poll adapter status", "error", err)
			}
			continue
		}
		if !status.InterruptDetected {
			continue
		}
		if err := p.adapter.clearInterrupt(ctx); err != nil {
			slog.Warn("interrupt flag not cleared", "error", err)
		}
		handler()
	}
}

func (p *MCP2221Pin) Unwatch() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	if err := p.adapter.configureInterrupt(context.Background(), 0); err != nil {
		return fmt.Errorf("could not disable GP1 interrupt detection: %w", err)
	}
	return nil
}
