package iface

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gunwifi/gunwifi/internal/tools"
)

// ModeTool performs driver-level mode switches. *tools.AirmonNG satisfies it.
type ModeTool interface {
	CheckKill(ctx context.Context) error
	Start(ctx context.Context, iface string) (string, error)
	Stop(ctx context.Context, iface string) error
}

// ServiceManager stops and restarts host services. *tools.Systemctl satisfies it.
type ServiceManager interface {
	Stop(ctx context.Context, service string) error
	Start(ctx context.Context, service string) error
}

// DefaultConflictingServices are stopped before entering monitor mode.
var DefaultConflictingServices = []string{"NetworkManager"}

// StateMachine owns the managed/monitor transition of one adapter. All
// transitions are serialized.
type StateMachine struct {
	Mode     ModeTool
	Services ServiceManager
	// Conflicting lists services stopped before monitor mode.
	Conflicting []string
	// Exists reports whether a device name is present; used when the tool
	// output names no monitor device.
	Exists func(name string) bool
	Logger *slog.Logger

	mu      sync.Mutex
	iface   WirelessInterface
	state   InterfaceState
	stopped []string
}

// NewStateMachine starts in Managed, or in Monitor if the adapter was
// discovered already in monitor mode.
func NewStateMachine(wi WirelessInterface, mode ModeTool, services ServiceManager, logger *slog.Logger) *StateMachine {
	sm := &StateMachine{
		Mode:        mode,
		Services:    services,
		Conflicting: DefaultConflictingServices,
		Logger:      logger,
		iface:       wi,
		state:       StateManaged,
	}
	if wi.Monitor {
		if sm.iface.MonitorName == "" {
			sm.iface.MonitorName = wi.Name
		}
		sm.state = StateMonitor
	}
	return sm
}

func (sm *StateMachine) logger() *slog.Logger {
	if sm.Logger != nil {
		return sm.Logger
	}
	return slog.Default()
}

// EnterMonitorMode switches the adapter to monitor mode and returns the
// active device name, which may differ from the managed name.
func (sm *StateMachine) EnterMonitorMode(ctx context.Context) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.state == StateMonitor {
		return sm.iface.ActiveName(), nil
	}

	log := sm.logger().With("interface", sm.iface.Name)
	sm.state = StateTransitioningToMonitor

	for _, svc := range sm.Conflicting {
		if sm.Services == nil {
			break
		}
		if err := sm.Services.Stop(ctx, svc); err != nil {
			log.Warn("could not stop conflicting service", "service", svc, "err", err)
			continue
		}
		sm.stopped = appendUnique(sm.stopped, svc)
	}

	if err := sm.Mode.CheckKill(ctx); err != nil {
		log.Warn("airmon-ng check kill failed", "err", err)
	}

	out, err := sm.Mode.Start(ctx, sm.iface.Name)
	if err != nil {
		sm.state = StateManaged
		sm.restoreServicesLocked(ctx)
		return "", &ModeSwitchError{Interface: sm.iface.Name, Target: StateMonitor, Output: out, Err: err}
	}

	sm.iface.MonitorName = sm.monitorNameFrom(out)
	sm.state = StateMonitor
	log.Info("monitor mode enabled", "device", sm.iface.MonitorName)
	return sm.iface.MonitorName, nil
}

func (sm *StateMachine) monitorNameFrom(out string) string {
	if name, ok := tools.ParseMonitorInterface(out, sm.iface.Name); ok {
		return name
	}
	if guess := sm.iface.Name + "mon"; sm.Exists != nil && sm.Exists(guess) {
		return guess
	}
	return sm.iface.Name
}

// LeaveMonitorMode restores managed mode and restarts any service stopped on
// the way in. It is a no-op outside monitor mode.
func (sm *StateMachine) LeaveMonitorMode(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.state != StateMonitor {
		return nil
	}

	active := sm.iface.ActiveName()
	sm.state = StateTransitioningToManaged
	if err := sm.Mode.Stop(ctx, active); err != nil {
		sm.state = StateMonitor
		return &ModeSwitchError{Interface: active, Target: StateManaged, Err: err}
	}

	sm.iface.MonitorName = ""
	sm.iface.Monitor = false
	sm.state = StateManaged
	sm.logger().Info("monitor mode disabled", "interface", sm.iface.Name)
	sm.restoreServicesLocked(ctx)
	return nil
}

// RestoreServices restarts services stopped for monitor mode. Safe to call
// repeatedly.
func (sm *StateMachine) RestoreServices(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.restoreServicesLocked(ctx)
}

func (sm *StateMachine) restoreServicesLocked(ctx context.Context) error {
	var errs []error
	remaining := sm.stopped[:0]
	for _, svc := range sm.stopped {
		if err := sm.Services.Start(ctx, svc); err != nil {
			sm.logger().Warn("could not restart service", "service", svc, "err", err)
			errs = append(errs, err)
			remaining = append(remaining, svc)
		}
	}
	sm.stopped = remaining
	return errors.Join(errs...)
}

// ActiveDevice is the name to use for I/O at this moment. Never cache it
// across a mode switch.
func (sm *StateMachine) ActiveDevice() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.iface.ActiveName()
}

func (sm *StateMachine) State() InterfaceState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// Interface returns a copy of the owned adapter.
func (sm *StateMachine) Interface() WirelessInterface {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.iface
}

// StoppedServices lists services awaiting restart.
func (sm *StateMachine) StoppedServices() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return append([]string(nil), sm.stopped...)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
