package sim

import (
	"fmt"
	"strings"
)

// ValidateComponentID reports an error if id does not follow Tickit's
// naming convention: non-empty, no surrounding whitespace, no path
// separators (components are flat, unlike Akita's hierarchical dotted
// names — Tickit has no sub-component addressing).
func ValidateComponentID(id ComponentID) error {
	return validateID("component", string(id))
}

// ValidatePortID reports an error if id does not follow Tickit's naming
// convention, as ValidateComponentID.
func ValidatePortID(id PortID) error {
	return validateID("port", string(id))
}

func validateID(kind, id string) error {
	if id == "" {
		return NewConfigError(fmt.Errorf("%s id must not be empty", kind))
	}

	if strings.TrimSpace(id) != id {
		return NewConfigError(fmt.Errorf("%s id %q must not have leading or trailing whitespace", kind, id))
	}

	if strings.ContainsAny(id, ".[]") {
		return NewConfigError(fmt.Errorf(
			"%s id %q must not contain '.', '[' or ']'; tickit component ids are flat", kind, id))
	}

	return nil
}
