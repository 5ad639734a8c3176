package scan

import (
	"fmt"
	"strings"

	"github.com/gunwifi/gunwifi/pkg/wifi"
)

// FormatNetworkTable creates a formatted table of networks for display.
func FormatNetworkTable(records []wifi.NetworkRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %-4s %-24s %-19s %4s %-6s %5s\n",
		"#", "ESSID", "BSSID", "CH", "ENC", "PWR"))
	sb.WriteString(fmt.Sprintf("  %-4s %-24s %-19s %4s %-6s %5s\n",
		"─", "─────", "─────", "──", "───", "───"))

	for i, r := range records {
		essid := r.ESSID
		if len(essid) > 22 {
			essid = essid[:22] + ".."
		}
		sb.WriteString(fmt.Sprintf("  %-4d %-24s %-19s %4d %-6s %5d\n",
			i+1, essid, r.BSSID, r.Channel, r.Encryption, r.Power))
	}

	return sb.String()
}
