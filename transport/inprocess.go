package transport

import (
	"sync"

	"github.com/dls-controls/tickit/sim"
)

// InProcessBus is the default Bus implementation: publish and subscribe
// within a single process by calling each subscribed handler directly, with
// no channels and no serialization.
// It is the transport every scheduler uses unless a run's configuration
// asks for the external-bus variant.
type InProcessBus struct {
	*sim.HookableBase

	mu          sync.RWMutex
	subscribers map[Topic][]Handler
	closed      bool
	wg          sync.WaitGroup
}

// NewInProcessBus creates an empty InProcessBus.
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{
		HookableBase: sim.NewHookableBase(),
		subscribers:  map[Topic][]Handler{},
	}
}

// Publish dispatches msg synchronously to every handler subscribed to
// topic, in subscription order. A handler panicking is recovered and
// surfaced as a *sim.TransportError so a single misbehaving subscriber
// cannot take down the publisher.
func (b *InProcessBus) Publish(topic Topic, msg sim.Message) (err error) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[topic]...)
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return sim.NewTransportError(errClosed)
	}

	for _, h := range handlers {
		if perr := b.invoke(h, msg); perr != nil {
			err = perr
		}
	}

	return err
}

func (b *InProcessBus) invoke(h Handler, msg sim.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sim.NewTransportError(panicError{r})
		}
	}()

	h(msg)

	return nil
}

// Subscribe registers handler for every topic in topics.
func (b *InProcessBus) Subscribe(topics []Topic, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return sim.NewTransportError(errClosed)
	}

	for _, topic := range topics {
		b.subscribers[topic] = append(b.subscribers[topic], handler)
	}

	return nil
}

// Close marks the bus closed; further Publish/Subscribe calls fail.
func (b *InProcessBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subscribers = map[Topic][]Handler{}

	return nil
}

type panicError struct{ v interface{} }

func (e panicError) Error() string { return "subscriber panicked: " + errToString(e.v) }

func errToString(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}

	return "non-error panic value"
}

var errClosed = closedError{}

type closedError struct{}

func (closedError) Error() string { return "bus is closed" }
