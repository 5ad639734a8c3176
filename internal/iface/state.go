package iface

// InterfaceState is the operating mode of the adapter owned by a StateMachine.
type InterfaceState int

const (
	StateUnknown InterfaceState = iota
	StateManaged
	StateTransitioningToMonitor
	StateMonitor
	StateTransitioningToManaged
)

func (s InterfaceState) String() string {
	switch s {
	case StateManaged:
		return "managed"
	case StateTransitioningToMonitor:
		return "managed->monitor"
	case StateMonitor:
		return "monitor"
	case StateTransitioningToManaged:
		return "monitor->managed"
	default:
		return "unknown"
	}
}
