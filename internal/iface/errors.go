package iface

import (
	"errors"
	"fmt"
)

var (
	// ErrInterfaceNotFound is returned when the requested adapter is absent or not wireless.
	ErrInterfaceNotFound = errors.New("interface not found")
	// ErrModeSwitchFailed is returned when the driver tooling refuses a mode change.
	ErrModeSwitchFailed = errors.New("mode switch failed")
)

// ModeSwitchError carries the device, the direction and the tool output of a
// failed mode change.
type ModeSwitchError struct {
	Interface string
	Target    InterfaceState
	Output    string
	Err       error
}

func (e *ModeSwitchError) Error() string {
	msg := fmt.Sprintf("switch %s to %s: %v", e.Interface, e.Target, e.Err)
	if e.Output != "" {
		msg += "\nOutput: " + e.Output
	}
	return msg
}

func (e *ModeSwitchError) Unwrap() error { return e.Err }

func (e *ModeSwitchError) Is(target error) bool { return target == ErrModeSwitchFailed }
