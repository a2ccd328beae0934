package sim

import "github.com/pkg/errors"

// ConfigError reports that a simulation's static configuration is invalid:
// a cyclic Wiring graph, a wiring entry naming an undeclared component, or a
// component requesting a wakeup before the current simulation time.
// ConfigError is always fatal; a scheduler must not attempt to continue
// running after one occurs.
type ConfigError struct {
	cause error
}

// NewConfigError wraps cause as a ConfigError.
func NewConfigError(cause error) *ConfigError {
	return &ConfigError{cause: errors.WithStack(cause)}
}

func (e *ConfigError) Error() string { return "tickit: config error: " + e.cause.Error() }

// Unwrap allows errors.Is/errors.As to see the wrapped cause.
func (e *ConfigError) Unwrap() error { return e.cause }

// OrderingError reports that the ticker observed a well-formedness
// violation during a tick: an Output arrived for a component not awaiting
// one (including a second Output in the same tick), or an Output carried a
// time other than the tick's.
// OrderingError is fatal; it indicates a bug in a component or in the
// kernel itself, not a recoverable runtime condition.
type OrderingError struct {
	cause error
}

// NewOrderingError wraps cause as an OrderingError.
func NewOrderingError(cause error) *OrderingError {
	return &OrderingError{cause: errors.WithStack(cause)}
}

func (e *OrderingError) Error() string { return "tickit: ordering error: " + e.cause.Error() }

// Unwrap allows errors.Is/errors.As to see the wrapped cause.
func (e *OrderingError) Unwrap() error { return e.cause }

// ComponentTimeout reports that a component did not reply to an Input
// within the time the scheduler was prepared to wait for it. The ticker
// fails the tick with it, and the scheduler driving that tick returns it,
// which ends the run.
type ComponentTimeout struct {
	Component ComponentID
}

// NewComponentTimeout reports that component did not reply within the
// ticker's configured per-tick deadline.
func NewComponentTimeout(component ComponentID) *ComponentTimeout {
	return &ComponentTimeout{Component: component}
}

func (e *ComponentTimeout) Error() string {
	return "tickit: component " + string(e.Component) + " timed out"
}

// TransportError reports a failure delivering or receiving a message over
// a State Interface implementation. No retry is attempted: a scheduler that
// fails to publish an Input fails the tick with it, which ends the run.
type TransportError struct {
	cause error
}

// NewTransportError wraps cause as a TransportError.
func NewTransportError(cause error) *TransportError {
	return &TransportError{cause: errors.WithStack(cause)}
}

func (e *TransportError) Error() string { return "tickit: transport error: " + e.cause.Error() }

// Unwrap allows errors.Is/errors.As to see the wrapped cause.
func (e *TransportError) Unwrap() error { return e.cause }

// ComponentError reports that a component's own update logic failed.
// scheduler.Master broadcasts StopComponent to every component and ends its
// run with this error; the run does not continue past the failed component.
type ComponentError struct {
	Component ComponentID
	cause     error
}

// NewComponentError wraps cause as a ComponentError raised by component.
func NewComponentError(component ComponentID, cause error) *ComponentError {
	return &ComponentError{Component: component, cause: errors.WithStack(cause)}
}

func (e *ComponentError) Error() string {
	return "tickit: component " + string(e.Component) + " error: " + e.cause.Error()
}

// Unwrap allows errors.Is/errors.As to see the wrapped cause.
func (e *ComponentError) Unwrap() error { return e.cause }
