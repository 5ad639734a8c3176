package wifi

import (
	"fmt"
	"math/rand"
	"net"
	"strings"
)

type EncryptionType int

const (
	EncOpen EncryptionType = iota
	EncWEP
	EncWPA
	EncWPA2
	EncWPA3
	EncUnknown
)

func (e EncryptionType) String() string {
	switch e {
	case EncOpen:
		return "Open"
	case EncWEP:
		return "WEP"
	case EncWPA:
		return "WPA"
	case EncWPA2:
		return "WPA2"
	case EncWPA3:
		return "WPA3"
	default:
		return "Unknown"
	}
}

// ParseEncryption maps a privacy label as printed by airodump-ng ("WPA2 WPA",
// "OPN", "WEP", ...) to the strongest scheme it mentions.
func ParseEncryption(label string) EncryptionType {
	s := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case strings.Contains(s, "WPA3"):
		return EncWPA3
	case strings.Contains(s, "WPA2"):
		return EncWPA2
	case strings.Contains(s, "WPA"):
		return EncWPA
	case strings.Contains(s, "WEP"):
		return EncWEP
	case s == "OPN" || s == "OPEN":
		return EncOpen
	default:
		return EncUnknown
	}
}

const (
	MinChannel     = 1
	MaxChannel     = 196
	DefaultChannel = 6
)

// PreferredChannels are the non-overlapping 2.4 GHz channels, in preference order.
var PreferredChannels = []int{1, 6, 11}

// ValidChannel reports whether ch is a channel number this tool will operate on.
func ValidChannel(ch int) bool {
	return ch >= MinChannel && ch <= MaxChannel
}

// BroadcastMAC addresses every station on a segment.
var BroadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsBroadcast reports whether mac is the all-ones address. Malformed
// addresses are treated as broadcast.
func IsBroadcast(mac net.HardwareAddr) bool {
	if len(mac) != 6 {
		return true
	}
	return mac[0] == 0xff && mac[1] == 0xff && mac[2] == 0xff &&
		mac[3] == 0xff && mac[4] == 0xff && mac[5] == 0xff
}

// RandomMAC generates a random locally-administered unicast MAC from r.
func RandomMAC(r *rand.Rand) net.HardwareAddr {
	mac := make(net.HardwareAddr, 6)
	for i := range mac {
		mac[i] = byte(r.Intn(256))
	}
	// Set locally administered bit, clear multicast bit
	mac[0] = (mac[0] | 0x02) & 0xfe
	return mac
}

// NetworkRecord is one access point row from a scan.
type NetworkRecord struct {
	BSSID           net.HardwareAddr
	ESSID           string
	Channel         int
	Encryption      EncryptionType
	EncryptionLabel string // as reported by the scanner
	Power           int    // dBm
}

func (n NetworkRecord) String() string {
	return fmt.Sprintf("%s [%s] Ch:%d %s %ddBm", n.ESSID, n.BSSID, n.Channel, n.Encryption, n.Power)
}
