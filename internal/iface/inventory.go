package iface

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	nlwifi "github.com/mdlayher/wifi"

	"github.com/gunwifi/gunwifi/internal/tools"
)

// WirelessNamePrefixes is the last-resort name match used only when neither
// nl80211 nor sysfs can be consulted.
var WirelessNamePrefixes = []string{"wlan", "wlp", "wlo", "wlx", "wifi"}

// fallbackWiredInterfaces are tried in order when no default route exists.
var fallbackWiredInterfaces = []string{"eth0", "enp0s3", "ens33", "ens18"}

const arphrdIEEE80211Radiotap = "803"

// WirelessInterface represents a WiFi adapter.
type WirelessInterface struct {
	Name        string // managed-mode name
	MonitorName string // set by the state machine while in monitor mode
	PHY         string
	Driver      string
	MAC         net.HardwareAddr
	Wireless    bool
	Monitor     bool // already in monitor mode when discovered
}

// ActiveName is the device name frames should be sent on right now.
func (w WirelessInterface) ActiveName() string {
	if w.MonitorName != "" {
		return w.MonitorName
	}
	return w.Name
}

// nl80211Client is the subset of *nlwifi.Client the inventory needs.
type nl80211Client interface {
	Interfaces() ([]*nlwifi.Interface, error)
	Close() error
}

// Inventory discovers wireless adapters.
type Inventory struct {
	// SysfsRoot defaults to /sys/class/net.
	SysfsRoot string
	// Dial opens an nl80211 client; defaults to nlwifi.New.
	Dial func() (nl80211Client, error)
	// Names lists OS interface names for the prefix fallback; defaults to net.Interfaces.
	Names  func() ([]string, error)
	Run    tools.Runner
	Logger *slog.Logger
}

func NewInventory(run tools.Runner, logger *slog.Logger) *Inventory {
	return &Inventory{Run: run, Logger: logger}
}

func (inv *Inventory) logger() *slog.Logger {
	if inv.Logger != nil {
		return inv.Logger
	}
	return slog.Default()
}

func (inv *Inventory) runner() tools.Runner {
	if inv.Run != nil {
		return inv.Run
	}
	return tools.ExecRunner{}
}

func (inv *Inventory) sysfsRoot() string {
	if inv.SysfsRoot != "" {
		return inv.SysfsRoot
	}
	return "/sys/class/net"
}

func (inv *Inventory) dial() (nl80211Client, error) {
	if inv.Dial != nil {
		return inv.Dial()
	}
	c, err := nlwifi.New()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (inv *Inventory) names() ([]string, error) {
	if inv.Names != nil {
		return inv.Names()
	}
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ifs))
	for _, ifi := range ifs {
		names = append(names, ifi.Name)
	}
	return names, nil
}

// ListWirelessInterfaces finds all wireless interfaces on the system. It
// never fails; an empty result means nothing was found.
func (inv *Inventory) ListWirelessInterfaces(ctx context.Context) []WirelessInterface {
	log := inv.logger()
	found := make(map[string]*WirelessInterface)

	// nl80211 is authoritative when available.
	nlOK := false
	if c, err := inv.dial(); err != nil {
		log.Debug("nl80211 unavailable", "err", err)
	} else {
		ifis, err := c.Interfaces()
		_ = c.Close()
		if err != nil {
			log.Debug("nl80211 interface dump failed", "err", err)
		} else {
			nlOK = true
			for _, ifi := range ifis {
				if ifi.Name == "" {
					continue // P2P device entries carry no netdev
				}
				found[ifi.Name] = &WirelessInterface{
					Name:     ifi.Name,
					PHY:      fmt.Sprintf("phy%d", ifi.PHY),
					MAC:      ifi.HardwareAddr,
					Wireless: true,
					Monitor:  ifi.Type == nlwifi.InterfaceTypeMonitor,
				}
			}
		}
	}

	root := inv.sysfsRoot()
	entries, err := os.ReadDir(root)
	sysfsOK := err == nil
	if err != nil {
		log.Debug("sysfs unavailable", "path", root, "err", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		dir := filepath.Join(root, name)
		if !exists(filepath.Join(dir, "wireless")) && !exists(filepath.Join(dir, "phy80211")) {
			continue
		}
		wi, ok := found[name]
		if !ok {
			wi = &WirelessInterface{Name: name, Wireless: true}
			found[name] = wi
		}
		inv.enrichFromSysfs(dir, wi)
	}

	if !nlOK && !sysfsOK {
		names, err := inv.names()
		if err != nil {
			log.Warn("cannot enumerate interfaces", "err", err)
		}
		for _, name := range names {
			if hasWirelessPrefix(name) {
				found[name] = &WirelessInterface{Name: name, Wireless: true}
			}
		}
	}

	out := make([]WirelessInterface, 0, len(found))
	for _, wi := range found {
		out = append(out, *wi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (inv *Inventory) enrichFromSysfs(dir string, wi *WirelessInterface) {
	if wi.MAC == nil {
		if b, err := os.ReadFile(filepath.Join(dir, "address")); err == nil {
			if mac, err := net.ParseMAC(strings.TrimSpace(string(b))); err == nil {
				wi.MAC = mac
			}
		}
	}
	if wi.PHY == "" {
		if link, err := os.Readlink(filepath.Join(dir, "phy80211")); err == nil {
			wi.PHY = filepath.Base(link)
		}
	}
	if link, err := os.Readlink(filepath.Join(dir, "device", "driver")); err == nil {
		wi.Driver = filepath.Base(link)
	}
	if b, err := os.ReadFile(filepath.Join(dir, "type")); err == nil {
		if strings.TrimSpace(string(b)) == arphrdIEEE80211Radiotap {
			wi.Monitor = true
		}
	}
}

// Lookup returns the named wireless interface. After airmon-ng renamed it,
// the "mon" sibling is returned under the managed name with MonitorName set.
func (inv *Inventory) Lookup(ctx context.Context, name string) (WirelessInterface, error) {
	ifaces := inv.ListWirelessInterfaces(ctx)
	for _, wi := range ifaces {
		if wi.Name == name {
			return wi, nil
		}
	}
	for _, wi := range ifaces {
		if wi.Monitor && wi.Name == name+"mon" {
			wi.MonitorName = wi.Name
			wi.Name = name
			return wi, nil
		}
	}
	return WirelessInterface{}, fmt.Errorf("%s: %w", name, ErrInterfaceNotFound)
}

// Select picks the preferred interface, or the first one not already in
// monitor mode, or the first one found.
func (inv *Inventory) Select(ctx context.Context, preferred string) (WirelessInterface, error) {
	if preferred != "" {
		return inv.Lookup(ctx, preferred)
	}

	ifaces := inv.ListWirelessInterfaces(ctx)
	if len(ifaces) == 0 {
		return WirelessInterface{}, fmt.Errorf("no wireless interfaces: %w", ErrInterfaceNotFound)
	}
	for _, wi := range ifaces {
		if !wi.Monitor {
			return wi, nil
		}
	}
	return ifaces[0], nil
}

// Exists reports whether the OS has a network interface with this name.
func (inv *Inventory) Exists(name string) bool {
	if exists(filepath.Join(inv.sysfsRoot(), name)) {
		return true
	}
	_, err := net.InterfaceByName(name)
	return err == nil
}

// DefaultRouteInterface returns the interface carrying the default route,
// falling back to common wired names, and finally eth0.
func (inv *Inventory) DefaultRouteInterface(ctx context.Context) string {
	run := inv.runner()
	if out, err := run.Run(ctx, "ip", "route", "show", "default"); err == nil {
		if dev := ParseDefaultRoute(out); dev != "" {
			return dev
		}
	} else {
		inv.logger().Debug("default route lookup failed", "err", err)
	}

	for _, name := range fallbackWiredInterfaces {
		if _, err := run.Run(ctx, "ip", "link", "show", name); err == nil {
			inv.logger().Warn("using fallback network interface", "interface", name)
			return name
		}
	}
	return fallbackWiredInterfaces[0]
}

// ParseDefaultRoute extracts the device from `ip route show default` output.
func ParseDefaultRoute(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "default" {
			continue
		}
		for i := 0; i+1 < len(fields); i++ {
			if fields[i] == "dev" {
				return fields[i+1]
			}
		}
	}
	return ""
}

func hasWirelessPrefix(name string) bool {
	for _, p := range WirelessNamePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
