package iface

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	nlwifi "github.com/mdlayher/wifi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNL struct {
	ifis []*nlwifi.Interface
	err  error
}

func (f *fakeNL) Interfaces() ([]*nlwifi.Interface, error) { return f.ifis, f.err }
func (f *fakeNL) Close() error                               { return nil }

func noNetlink() (nl80211Client, error) { return nil, errors.New("nl80211 not found") }

// mkSysfs lays out a fake /sys/class/net entry.
func mkSysfs(t *testing.T, root, name string, wireless bool, devType, mac string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if wireless {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "wireless"), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "type"), []byte(devType+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "address"), []byte(mac+"\n"), 0o644))
}

func TestListWirelessInterfacesSysfs(t *testing.T) {
	root := t.TempDir()
	mkSysfs(t, root, "eth0", false, "1", "52:54:00:12:34:56")
	mkSysfs(t, root, "wlan0", true, "1", "00:c0:ca:11:22:33")
	mkSysfs(t, root, "wlan1mon", true, "803", "00:c0:ca:44:55:66")
	mkSysfs(t, root, "wlan9", false, "1", "00:c0:ca:77:88:99") // name looks wireless, no indicator

	inv := &Inventory{SysfsRoot: root, Dial: noNetlink}
	got := inv.ListWirelessInterfaces(context.Background())

	require.Len(t, got, 2)
	assert.Equal(t, "wlan0", got[0].Name)
	assert.False(t, got[0].Monitor)
	assert.Equal(t, "00:c0:ca:11:22:33", got[0].MAC.String())
	assert.Equal(t, "wlan1mon", got[1].Name)
	assert.True(t, got[1].Monitor)
	for _, wi := range got {
		assert.True(t, wi.Wireless)
	}
}

func TestListWirelessInterfacesNetlink(t *testing.T) {
	mac, _ := net.ParseMAC("00:c0:ca:aa:bb:cc")
	nl := &fakeNL{ifis: []*nlwifi.Interface{
		{Name: "wlp2s0", PHY: 0, HardwareAddr: mac, Type: nlwifi.InterfaceTypeStation},
		{Name: "", PHY: 0, Type: nlwifi.InterfaceTypeP2PDevice},
		{Name: "mon0", PHY: 1, Type: nlwifi.InterfaceTypeMonitor},
	}}
	inv := &Inventory{
		SysfsRoot: filepath.Join(t.TempDir(), "missing"),
		Dial:      func() (nl80211Client, error) { return nl, nil },
	}

	got := inv.ListWirelessInterfaces(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "mon0", got[0].Name)
	assert.True(t, got[0].Monitor)
	assert.Equal(t, "phy1", got[0].PHY)
	assert.Equal(t, "wlp2s0", got[1].Name)
	assert.Equal(t, mac, got[1].MAC)
}

func TestListWirelessInterfacesPrefixFallback(t *testing.T) {
	inv := &Inventory{
		SysfsRoot: filepath.Join(t.TempDir(), "missing"),
		Dial:      noNetlink,
		Names: func() ([]string, error) {
			return []string{"lo", "eth0", "wlx00c0ca112233", "wifi0", "docker0"}, nil
		},
	}

	got := inv.ListWirelessInterfaces(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "wifi0", got[0].Name)
	assert.Equal(t, "wlx00c0ca112233", got[1].Name)
}

func TestListWirelessInterfacesEmpty(t *testing.T) {
	inv := &Inventory{
		SysfsRoot: filepath.Join(t.TempDir(), "missing"),
		Dial:      noNetlink,
		Names:     func() ([]string, error) { return nil, errors.New("boom") },
	}
	assert.Empty(t, inv.ListWirelessInterfaces(context.Background()))
}

func TestLookupAndSelect(t *testing.T) {
	root := t.TempDir()
	mkSysfs(t, root, "wlan0mon", true, "803", "00:c0:ca:44:55:66")
	mkSysfs(t, root, "wlan1", true, "1", "00:c0:ca:11:22:33")
	mkSysfs(t, root, "eth0", false, "1", "52:54:00:12:34:56")
	inv := &Inventory{SysfsRoot: root, Dial: noNetlink}
	ctx := context.Background()

	wi, err := inv.Lookup(ctx, "wlan1")
	require.NoError(t, err)
	assert.Equal(t, "wlan1", wi.Name)

	_, err = inv.Lookup(ctx, "eth0")
	assert.ErrorIs(t, err, ErrInterfaceNotFound)

	sel, err := inv.Select(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "wlan1", sel.Name, "prefers an adapter not already in monitor mode")

	assert.True(t, inv.Exists("eth0"))
	assert.False(t, inv.Exists("definitely-not-here0"))

	empty := &Inventory{SysfsRoot: t.TempDir(), Dial: noNetlink}
	_, err = empty.Select(ctx, "")
	assert.ErrorIs(t, err, ErrInterfaceNotFound)
}

func TestLookupAfterAirmonRename(t *testing.T) {
	root := t.TempDir()
	mkSysfs(t, root, "wlan0mon", true, "803", "00:c0:ca:44:55:66")
	inv := &Inventory{SysfsRoot: root, Dial: noNetlink}
	ctx := context.Background()

	wi, err := inv.Select(ctx, "wlan0")
	require.NoError(t, err)
	assert.Equal(t, "wlan0", wi.Name)
	assert.Equal(t, "wlan0mon", wi.MonitorName)
	assert.True(t, wi.Monitor)
	assert.Equal(t, "wlan0mon", wi.ActiveName())

	wi, err = inv.Lookup(ctx, "wlan0mon")
	require.NoError(t, err)
	assert.Equal(t, "wlan0mon", wi.Name)
	assert.Empty(t, wi.MonitorName)

	_, err = inv.Lookup(ctx, "wlan1")
	assert.ErrorIs(t, err, ErrInterfaceNotFound)
}

func TestWirelessInterfaceActiveName(t *testing.T) {
	wi := WirelessInterface{Name: "wlan0"}
	assert.Equal(t, "wlan0", wi.ActiveName())
	wi.MonitorName = "wlan0mon"
	assert.Equal(t, "wlan0mon", wi.ActiveName())
}

func TestParseDefaultRoute(t *testing.T) {
	out := "default via 192.168.1.1 dev enp3s0 proto dhcp src 192.168.1.20 metric 100"
	assert.Equal(t, "enp3s0", ParseDefaultRoute(out))
	assert.Equal(t, "", ParseDefaultRoute(""))
	assert.Equal(t, "", ParseDefaultRoute("10.0.0.0/8 dev tun0 scope link"))
}

func TestDefaultRouteInterface(t *testing.T) {
	ctx := context.Background()

	run := &scriptRunner{outputs: map[string]string{
		"ip route show default": "default via 10.0.0.1 dev wlan0 proto dhcp metric 600",
	}}
	inv := &Inventory{Run: run}
	assert.Equal(t, "wlan0", inv.DefaultRouteInterface(ctx))

	run = &scriptRunner{fail: map[string]bool{
		"ip route show default": true,
		"ip link show eth0":     true,
	}}
	inv = &Inventory{Run: run}
	assert.Equal(t, "enp0s3", inv.DefaultRouteInterface(ctx))

	run = &scriptRunner{fail: map[string]bool{
		"ip link show eth0":   true,
		"ip link show enp0s3": true,
		"ip link show ens33":  true,
		"ip link show ens18":  true,
	}}
	inv = &Inventory{Run: run}
	assert.Equal(t, "eth0", inv.DefaultRouteInterface(ctx))
}
