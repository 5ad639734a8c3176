package tools

import (
	"context"
	"fmt"
)

// Systemctl starts and stops host services that fight over the radio.
type Systemctl struct {
	run Runner
}

func NewSystemctl(run Runner) *Systemctl {
	if run == nil {
		run = ExecRunner{}
	}
	return &Systemctl{run: run}
}

// Stop stops a systemd unit.
func (s *Systemctl) Stop(ctx context.Context, service string) error {
	if out, err := s.run.Run(ctx, "systemctl", "stop", service); err != nil {
		return fmt.Errorf("systemctl stop %s: %w (%s)", service, err, out)
	}
	return nil
}

// Start starts a systemd unit.
func (s *Systemctl) Start(ctx context.Context, service string) error {
	if out, err := s.run.Run(ctx, "systemctl", "start", service); err != nil {
		return fmt.Errorf("systemctl start %s: %w (%s)", service, err, out)
	}
	return nil
}
