package transport

import "github.com/dls-controls/tickit/sim"

// InputTopic is the topic a scheduler publishes a component's Input to.
func InputTopic(component sim.ComponentID) Topic {
	return Topic("tickit-" + string(component) + "-in")
}

// OutputTopic is the topic a component publishes its Output, Interrupt, or
// ComponentException to.
func OutputTopic(component sim.ComponentID) Topic {
	return Topic("tickit-" + string(component) + "-out")
}

// ControlTopic is the reserved topic name for scheduler-wide control
// messages. Nothing in this repository publishes on it: scheduler.Master
// sends its StopComponent broadcast to each component's InputTopic, and
// component.Runner subscribes only to its InputTopic.
const ControlTopic Topic = "tickit-control"
