package models

import "fmt"

// TriState is the pre-existing state of a toggled setting.
type TriState string

const (
	Enabled  TriState = "enabled"
	Disabled TriState = "disabled"
	Missing  TriState = "missing"
)

// Valid reports whether s is one of the three known states
func (s TriState) Valid() bool {
	switch s {
	case Enabled, Disabled, Missing:
		return true
	default:
		return false
	}
}

// ParseTriState converts a stored string into a TriState
func ParseTriState(v string) (TriState, error) {
	s := TriState(v)
	if !s.Valid() {
		return "", fmt.Errorf("%q is not an allowed value", v)
	}
	return s, nil
}

// TriStateOf maps a desired boolean onto Enabled or Disabled
func TriStateOf(enabled bool) TriState {
	if enabled {
		return Enabled
	}
	return Disabled
}
