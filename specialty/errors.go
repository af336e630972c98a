package specialty

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("specialty configuration error")

// ConfigurationError reports a missing or inconsistent catalogue entry.
// It indicates a deployment defect, never bad user input, and callers
// should not retry.
type ConfigurationError struct {
	Specialty string
	EntryType string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Specialty == "":
		return fmt.Sprintf("specialty configuration: %s", e.Reason)
	case e.EntryType == "":
		return fmt.Sprintf("specialty %q: %s", e.Specialty, e.Reason)
	default:
		return fmt.Sprintf("specialty %q entry type %q: %s", e.Specialty, e.EntryType, e.Reason)
	}
}

// Is makes errors.Is(err, ErrConfiguration) true for any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
