package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/lightning"
)

var ErrAlreadyWatching = errors.New("pin is already watched")

var _ lightning.InterruptPin = &WatchedPin{}

// WatchedPin turns periph's blocking WaitForEdge into a callback.
// Unwatch returns once the watching goroutine, including a handler it may be
// running, has finished.
type WatchedPin struct {
	mx   sync.Mutex
	pin  pio.PinIn
	pull pio.Pull
	poll time.Duration
	stop chan struct{}
	done chan struct{}
}

func NewWatchedPin(pin pio.PinIn, pull pio.Pull) *WatchedPin {
	return &WatchedPin{pin: pin, pull: pull, poll: 100 * time.Millisecond}
}

// OpenWatchedPin looks a host pin up by name (e.g. "GPIO24").
func OpenWatchedPin(name string, pull pio.Pull) (*WatchedPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %s not found", name)
	}
	return NewWatchedPin(pin, pull), nil
}

func (w *WatchedPin) Watch(edge pio.Edge, handler func()) error {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.stop != nil {
		return fmt.Errorf("%s: %w", w.pin, ErrAlreadyWatching)
	}
	if err := w.pin.In(w.pull, edge); err != nil {
		return fmt.Errorf("could not enable edge detection on %s: %w", w.pin, err)
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.watch(w.stop, w.done, handler)
	return nil
}

func (w *WatchedPin) watch(stop, done chan struct{}, handler func()) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !w.pin.WaitForEdge(w.poll) {
			continue
		}
		select {
		case <-stop:
			return
		default:
		}
		handler()
	}
}

func (w *WatchedPin) Unwatch() error {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.stop == nil {
		return nil
	}
	close(w.stop)
	<-w.done
	w.stop = nil
	w.done = nil
	if err := w.pin.In(w.pull, pio.NoEdge); err != nil {
		return fmt.Errorf("could not disable edge detection on %s: %w", w.pin, err)
	}
	return nil
}
