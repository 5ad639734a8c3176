package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	monIfaceRe = regexp.MustCompile(`monitor mode (?:vif )?enabled(?: for \[\w+\]\S+)? on (?:\[\w+\])?([^\s)\]]+)\)`)
	phyPrefix  = regexp.MustCompile(`^\[\w+\]`)
)

// AirmonNG wraps airmon-ng for monitor mode management.
type AirmonNG struct {
	run Runner
}

func NewAirmonNG(run Runner) *AirmonNG {
	if run == nil {
		run = ExecRunner{}
	}
	return &AirmonNG{run: run}
}

func (a *AirmonNG) Available() bool {
	_, err := a.run.LookPath("airmon-ng")
	return err == nil
}

// Start enables monitor mode on the given interface and returns the raw
// tool output. Use ParseMonitorInterface to recover the new device name.
func (a *AirmonNG) Start(ctx context.Context, iface string) (string, error) {
	out, err := a.run.Run(ctx, "airmon-ng", "start", iface)
	if err != nil {
		return out, fmt.Errorf("airmon-ng start %s: %w", iface, err)
	}
	return out, nil
}

// Stop disables monitor mode.
func (a *AirmonNG) Stop(ctx context.Context, iface string) error {
	out, err := a.run.Run(ctx, "airmon-ng", "stop", iface)
	if err != nil {
		return fmt.Errorf("airmon-ng stop %s: %w\nOutput: %s", iface, err, out)
	}
	return nil
}

// CheckKill kills interfering processes.
func (a *AirmonNG) CheckKill(ctx context.Context) error {
	_, err := a.run.Run(ctx, "airmon-ng", "check", "kill")
	return err
}

// ParseMonitorInterface extracts the monitor device airmon-ng reports for
// iface. The bool is false when the output names no device other than iface.
func ParseMonitorInterface(output, iface string) (string, bool) {
	if match := monIfaceRe.FindStringSubmatch(output); len(match) > 1 {
		name := strings.TrimSpace(match[1])
		if name != "" {
			return name, true
		}
	}

	// Older airmon-ng versions print free-form lines; take the first token
	// that looks like a renamed device.
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "monitor mode enabled") && !strings.Contains(line, "enabled on") {
			continue
		}
		for _, tok := range strings.Fields(line) {
			tok = strings.Trim(tok, "()[],.")
			tok = phyPrefix.ReplaceAllString(tok, "")
			if tok == "" || tok == iface || strings.HasPrefix(tok, "monitor") {
				continue
			}
			if strings.Contains(tok, "mon") || (iface != "" && strings.Contains(tok, iface)) {
				return tok, true
			}
		}
	}
	return "", false
}
