// Package transport implements the State Interface described by the
// kernel specification: a minimal publish/subscribe/close contract used to
// move Input, Output, Interrupt and control messages between schedulers and
// components without either side holding a direct reference to the other.
package transport

import "github.com/dls-controls/tickit/sim"

// Topic names a channel of messages on a Bus.
type Topic string

// Handler processes a single message delivered on a subscribed Topic.
type Handler func(sim.Message)

// Bus is the State Interface contract every transport implementation
// satisfies: publish a message to a topic, subscribe a handler to a set of
// topics, and close down cleanly when the simulation ends. Both
// implementations call in-process handlers synchronously, so a publisher
// waits for every handler of its topic to return; a handler panic or a
// closed bus is surfaced as a *sim.TransportError.
type Bus interface {
	// Publish delivers msg to every handler subscribed to topic. It
	// returns a *sim.TransportError if delivery could not be completed.
	Publish(topic Topic, msg sim.Message) error

	// Subscribe registers handler to be called for every message
	// published to any of topics from this point forward.
	Subscribe(topics []Topic, handler Handler) error

	// Close releases any resources held by the Bus. Publish and Subscribe
	// must not be called after Close returns.
	Close() error
}
