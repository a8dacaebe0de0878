package as3935

import (
	"fmt"
	"sync"
	"time"
)

type EventKind int

const (
	EventDisturbance EventKind = iota + 1
	EventLightning
	EventNoise
)

func (k EventKind) String() string {
	switch k {
	case EventDisturbance:
		return "disturbance"
	case EventLightning:
		return "lightning"
	case EventNoise:
		return "noise"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted for every user relevant interrupt.
// Distance is set only for lightning events.
type Event struct {
	Kind     EventKind
	Distance HeadOfStormDistance
	Time     time.Time
}

func (e Event) String() string {
	switch e.Kind {
	case EventLightning:
		return fmt.Sprintf("Lightning detected: %s.", e.Distance)
	case EventNoise:
		return "Noise detected."
	case EventDisturbance:
		return "Disturber detected."
	default:
		return e.Kind.String()
	}
}

// eventQueue is an unbounded FIFO feeding a receive-only channel.
// push never blocks; the forwarding goroutine delivers items in push order
// and closes the channel once the queue is closed and drained.
type eventQueue struct {
	mx     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
	out    chan Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{out: make(chan Event)}
	q.cond = sync.NewCond(&q.mx)
	go q.forward()
	return q
}

func (q *eventQueue) push(e Event) bool {
	q.mx.Lock()
	defer q.mx.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, e)
	q.cond.Signal()
	return true
}

func (q *eventQueue) close() {
	q.mx.Lock()
	defer q.mx.Unlock()
	q.closed = true
	q.cond.Signal()
}

func (q *eventQueue) forward() {
	defer close(q.out)
	for {
		q.mx.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mx.Unlock()
			return
		}
		e := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.mx.Unlock()
		q.out <- e
	}
}
