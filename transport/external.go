package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/dls-controls/tickit/sim"
)

// ExternalBus is the external-bus variant of the State Interface: the same
// publish/subscribe/close contract, fronted by an HTTP+JSON topic endpoint
// so an out-of-process adapter could publish or observe messages on a named
// topic. In-process delivery is still handled synchronously, the same way
// InProcessBus does it; the HTTP surface is additive, not a replacement for
// it, since Tickit does not depend on any particular message broker client
// library (see DESIGN.md).
//
// Envelopes on the wire are plain JSON: {"topic": "...", "kind": "...",
// "payload": <msg>}. kind names which of sim.Input/Output/Interrupt/
// ComponentException/StopComponent payload decodes as, since the State
// Interface contract carries a closed set of concrete message types rather
// than one self-describing wire format.
type ExternalBus struct {
	inner *InProcessBus

	mu       sync.Mutex
	router   *mux.Router
	server   *http.Server
	listener net.Listener

	observersMu sync.RWMutex
	observers   map[Topic][]chan envelope
}

type envelope struct {
	Topic Topic  `json:"topic"`
	Kind  string `json:"kind"`

	// CorrelationID identifies this particular envelope for an observer
	// correlating it against a later reply on a different topic. It is
	// generated fresh per publish and never interpreted by ExternalBus
	// itself.
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

// wireComponentException is the wire shape of sim.ComponentException: Err
// is an error interface with no exported fields of its own, so it is
// carried as its formatted message and reconstructed with errors.New on
// decode, which loses any original error type but preserves the text a
// remote adapter needs to report.
type wireComponentException struct {
	Source sim.ComponentID `json:"source"`
	Err    string          `json:"err"`
}

// encodeMessage reports which of the State Interface's closed set of
// message kinds msg is, and its JSON payload.
func encodeMessage(msg sim.Message) (string, json.RawMessage, error) {
	var (
		kind string
		v    any
	)

	switch m := msg.(type) {
	case sim.Input:
		kind, v = "input", m
	case sim.Output:
		kind, v = "output", m
	case sim.Interrupt:
		kind, v = "interrupt", m
	case sim.ComponentException:
		kind, v = "exception", wireComponentException{Source: m.Source, Err: m.Err.Error()}
	case sim.StopComponent:
		kind, v = "stop", m
	default:
		return "", nil, fmt.Errorf("transport: unsupported message type %T", msg)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}

	return kind, payload, nil
}

// decodeMessage reverses encodeMessage, turning a wire kind/payload pair
// back into the concrete sim.Message type scheduler.Master/scheduler.Slave
// expect from their message handlers.
func decodeMessage(kind string, payload json.RawMessage) (sim.Message, error) {
	switch kind {
	case "input":
		var v sim.Input
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}

		return v, nil
	case "output":
		var v sim.Output
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}

		return v, nil
	case "interrupt":
		var v sim.Interrupt
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}

		return v, nil
	case "exception":
		var v wireComponentException
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}

		return sim.ComponentException{Source: v.Source, Err: errors.New(v.Err)}, nil
	case "stop":
		return sim.StopComponent{}, nil
	default:
		return nil, fmt.Errorf("transport: unknown message kind %q", kind)
	}
}

// NewExternalBus creates an ExternalBus. Call ListenAndServe to start its
// HTTP endpoint; the bus is usable for in-process publish/subscribe before
// that point.
func NewExternalBus() *ExternalBus {
	b := &ExternalBus{
		inner:     NewInProcessBus(),
		observers: map[Topic][]chan envelope{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/topics/{topic}", b.handlePublish).Methods(http.MethodPost)
	r.HandleFunc("/topics/{topic}", b.handleObserve).Methods(http.MethodGet)
	b.router = r

	return b
}

// Publish satisfies Bus by delivering to in-process subscribers and to any
// HTTP long-poll observer currently registered on topic.
func (b *ExternalBus) Publish(topic Topic, msg sim.Message) error {
	if err := b.inner.Publish(topic, msg); err != nil {
		return err
	}

	kind, payload, err := encodeMessage(msg)
	if err != nil {
		return sim.NewTransportError(err)
	}

	b.observersMu.RLock()
	chans := append([]chan envelope(nil), b.observers[topic]...)
	b.observersMu.RUnlock()

	env := envelope{
		Topic:         topic,
		Kind:          kind,
		CorrelationID: sim.GetGenerator().Generate(),
		Payload:       payload,
	}
	for _, ch := range chans {
		select {
		case ch <- env:
		default:
			// A slow observer misses a message rather than blocking the
			// publisher; the in-process delivery above already happened.
		}
	}

	return nil
}

// Subscribe satisfies Bus for in-process handlers.
func (b *ExternalBus) Subscribe(topics []Topic, handler Handler) error {
	return b.inner.Subscribe(topics, handler)
}

// Close shuts down the HTTP listener, if running, and the underlying
// in-process bus.
func (b *ExternalBus) Close() error {
	b.mu.Lock()
	server := b.server
	b.mu.Unlock()

	if server != nil {
		_ = server.Close()
	}

	return b.inner.Close()
}

// ListenAndServe starts the HTTP topic endpoint on addr in a background
// goroutine and returns once it is accepting connections.
func (b *ExternalBus) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return sim.NewTransportError(err)
	}

	b.mu.Lock()
	b.listener = listener
	b.server = &http.Server{Handler: b.router}
	server := b.server
	b.mu.Unlock()

	go func() {
		_ = server.Serve(listener)
	}()

	return nil
}

// Addr returns the address the HTTP endpoint is listening on, once
// ListenAndServe has started it.
func (b *ExternalBus) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listener == nil {
		return nil
	}

	return b.listener.Addr()
}

func (b *ExternalBus) handlePublish(w http.ResponseWriter, r *http.Request) {
	topic := Topic(mux.Vars(r)["topic"])

	var wire struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := decodeMessage(wire.Kind, wire.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := b.Publish(topic, msg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (b *ExternalBus) handleObserve(w http.ResponseWriter, r *http.Request) {
	topic := Topic(mux.Vars(r)["topic"])

	ch := make(chan envelope, 16)

	b.observersMu.Lock()
	b.observers[topic] = append(b.observers[topic], ch)
	b.observersMu.Unlock()

	defer b.removeObserver(topic, ch)

	select {
	case env := <-ch:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(env)
	case <-r.Context().Done():
		w.WriteHeader(http.StatusRequestTimeout)
	}
}

func (b *ExternalBus) removeObserver(topic Topic, ch chan envelope) {
	b.observersMu.Lock()
	defer b.observersMu.Unlock()

	chans := b.observers[topic]
	for i, c := range chans {
		if c == ch {
			b.observers[topic] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
}
