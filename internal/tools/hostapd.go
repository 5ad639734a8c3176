package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// APConfig describes a hostapd access point.
type APConfig struct {
	Interface  string
	SSID       string
	Channel    int
	Passphrase string // empty runs an open network
}

// Render produces the hostapd configuration file body.
func (c APConfig) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "interface=%s\n", c.Interface)
	sb.WriteString("driver=nl80211\n")
	fmt.Fprintf(&sb, "ssid=%s\n", c.SSID)
	sb.WriteString("hw_mode=g\n")
	fmt.Fprintf(&sb, "channel=%d\n", c.Channel)
	sb.WriteString("macaddr_acl=0\n")
	sb.WriteString("auth_algs=1\n")
	sb.WriteString("ignore_broadcast_ssid=0\n")
	if c.Passphrase != "" {
		sb.WriteString("wpa=2\n")
		fmt.Fprintf(&sb, "wpa_passphrase=%s\n", c.Passphrase)
		sb.WriteString("wpa_key_mgmt=WPA-PSK\n")
		sb.WriteString("wpa_pairwise=TKIP\n")
		sb.WriteString("rsn_pairwise=CCMP\n")
	}
	return sb.String()
}

// Hostapd launches and tears down rogue access points.
type Hostapd struct {
	run Runner
	dir string
}

// NewHostapd writes config files under dir (os.TempDir() when empty).
func NewHostapd(run Runner, dir string) *Hostapd {
	if run == nil {
		run = ExecRunner{}
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Hostapd{run: run, dir: dir}
}

// Launch writes the configuration and starts hostapd in the background.
func (h *Hostapd) Launch(ctx context.Context, cfg APConfig) (Proc, error) {
	if cfg.Passphrase != "" && (len(cfg.Passphrase) < 8 || len(cfg.Passphrase) > 63) {
		return nil, fmt.Errorf("hostapd: passphrase must be 8-63 characters")
	}
	path := filepath.Join(h.dir, "gunwifi-hostapd.conf")
	if err := os.WriteFile(path, []byte(cfg.Render()), 0o600); err != nil {
		return nil, fmt.Errorf("write hostapd config: %w", err)
	}
	proc, err := h.run.Start(ctx, nil, "hostapd", path)
	if err != nil {
		return nil, fmt.Errorf("start hostapd: %w", err)
	}
	return proc, nil
}

// KillAll terminates every hostapd process on the host, including ones
// this process did not start.
func (h *Hostapd) KillAll(ctx context.Context) error {
	_, err := h.run.Run(ctx, "pkill", "-f", "hostapd")
	return err
}
