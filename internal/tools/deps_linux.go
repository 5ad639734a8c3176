//go:build linux

package tools

func platformRequiredTools() []*ExternalTool {
	return []*ExternalTool{
		{Name: "iw", Required: false, Note: "channel setting"},
		{Name: "ip", Required: true, Note: "default route lookup"},
	}
}

func platformInstallHint() string {
	return "sudo apt install aircrack-ng iw iproute2 wireless-tools hostapd"
}
