package attack

import (
	"math/rand"
	"net"
	"regexp"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunwifi/gunwifi/pkg/wifi"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func decodeRadio(data []byte) gopacket.Packet {
	return gopacket.NewPacket(data, layers.LayerTypeRadioTap, gopacket.Default)
}

func ssidOf(p gopacket.Packet) string {
	for _, l := range p.Layers() {
		if ie, ok := l.(*layers.Dot11InformationElement); ok && ie.ID == layers.Dot11InformationElementIDSSID {
			return string(ie.Info)
		}
	}
	return ""
}

// beaconDSChannel returns the channel advertised in a beacon's DS set.
func beaconDSChannel(data []byte) (int, bool) {
	pkt := decodeRadio(data)
	if pkt.ErrorLayer() != nil {
		return 0, false
	}
	for _, l := range pkt.Layers() {
		if ie, ok := l.(*layers.Dot11InformationElement); ok && ie.ID == layers.Dot11InformationElementIDDSSet && len(ie.Info) == 1 {
			return int(ie.Info[0]), true
		}
	}
	return 0, false
}

func TestBuildDeauthFrame(t *testing.T) {
	bssid := mustMAC(t, "00:11:22:33:44:55")
	client := mustMAC(t, "66:77:88:99:aa:bb")

	data, err := DeauthFrames{BSSID: bssid, Client: client}.Frame(3)
	require.NoError(t, err)

	pkt := decodeRadio(data)
	dot11, ok := pkt.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	require.True(t, ok)
	assert.Equal(t, layers.Dot11TypeMgmtDeauthentication, dot11.Type)
	assert.Equal(t, client, dot11.Address1)
	assert.Equal(t, bssid, dot11.Address2)
	assert.Equal(t, bssid, dot11.Address3)
	assert.Equal(t, uint16(3), dot11.SequenceNumber)

	deauth, ok := pkt.Layer(layers.LayerTypeDot11MgmtDeauthentication).(*layers.Dot11MgmtDeauthentication)
	require.True(t, ok)
	assert.Equal(t, ReasonClass3FromNonAssoc, deauth.Reason)
}

func TestBuildDeauthFrameBroadcast(t *testing.T) {
	data, err := DeauthFrames{BSSID: mustMAC(t, "00:11:22:33:44:55")}.Frame(0)
	require.NoError(t, err)

	dot11 := decodeRadio(data).Layer(layers.LayerTypeDot11).(*layers.Dot11)
	assert.Equal(t, wifi.BroadcastMAC, dot11.Address1)

	_, err = DeauthFrames{}.Frame(0)
	assert.Error(t, err)
}

func TestBeaconFrames(t *testing.T) {
	src := &BeaconFrames{Rand: rand.New(rand.NewSource(42)), Channel: 6}
	ssidRe := regexp.MustCompile(`^FakeAP_[1-9]\d{3}$`)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		data, err := src.Frame(i)
		require.NoError(t, err)
		pkt := decodeRadio(data)

		dot11, ok := pkt.Layer(layers.LayerTypeDot11).(*layers.Dot11)
		require.True(t, ok)
		assert.Equal(t, layers.Dot11TypeMgmtBeacon, dot11.Type)
		assert.Equal(t, wifi.BroadcastMAC, dot11.Address1)
		assert.Equal(t, dot11.Address2, dot11.Address3)
		assert.Equal(t, byte(0x02), dot11.Address2[0]&0x03, "locally administered unicast")

		beacon, ok := pkt.Layer(layers.LayerTypeDot11MgmtBeacon).(*layers.Dot11MgmtBeacon)
		require.True(t, ok)
		assert.Equal(t, uint16(100), beacon.Interval)
		assert.Equal(t, uint16(0x0001), beacon.Flags&0x0001)

		require.Nil(t, pkt.ErrorLayer())
		ch, ok := beaconDSChannel(data)
		require.True(t, ok)
		assert.Equal(t, 6, ch)

		ssid := ssidOf(pkt)
		assert.Regexp(t, ssidRe, ssid)
		seen[dot11.Address2.String()] = true
	}
	assert.Greater(t, len(seen), 1)

	noDS, err := (&BeaconFrames{Rand: rand.New(rand.NewSource(1))}).Frame(0)
	require.NoError(t, err)
	_, ok := beaconDSChannel(noDS)
	assert.False(t, ok)

	// Same seed, same sequence.
	a := &BeaconFrames{Rand: rand.New(rand.NewSource(7))}
	b := &BeaconFrames{Rand: rand.New(rand.NewSource(7))}
	fa, _ := a.Frame(0)
	fb, _ := b.Frame(0)
	pa, pb := decodeRadio(fa), decodeRadio(fb)
	assert.Equal(t, ssidOf(pa), ssidOf(pb))
	assert.Equal(t,
		pa.Layer(layers.LayerTypeDot11).(*layers.Dot11).Address2,
		pb.Layer(layers.LayerTypeDot11).(*layers.Dot11).Address2)
}

func TestBuildBeaconFrameRejectsLongSSID(t *testing.T) {
	_, err := BuildBeaconFrame("this-ssid-is-definitely-longer-than-32", wifi.BroadcastMAC, 1, 0)
	assert.Error(t, err)
}

func TestRandomSSIDRange(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	re := regexp.MustCompile(`^FakeAP_\d{4}$`)
	for i := 0; i < 200; i++ {
		assert.Regexp(t, re, RandomSSID(r))
	}
}

func TestDHCPFrames(t *testing.T) {
	src := &DHCPFrames{Rand: rand.New(rand.NewSource(99))}
	macs := make(map[string]bool)

	for i := 0; i < 3; i++ {
		data, err := src.Frame(i)
		require.NoError(t, err)
		pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)

		eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
		require.True(t, ok)
		assert.Equal(t, wifi.BroadcastMAC, eth.DstMAC)

		ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		require.True(t, ok)
		assert.True(t, ip.SrcIP.Equal(net.IPv4zero))
		assert.True(t, ip.DstIP.Equal(net.IPv4bcast))

		udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		require.True(t, ok)
		assert.Equal(t, layers.UDPPort(68), udp.SrcPort)
		assert.Equal(t, layers.UDPPort(67), udp.DstPort)

		dhcp, ok := pkt.Layer(layers.LayerTypeDHCPv4).(*layers.DHCPv4)
		require.True(t, ok)
		assert.Equal(t, layers.DHCPOpRequest, dhcp.Operation)
		assert.Equal(t, eth.SrcMAC, dhcp.ClientHWAddr)

		var msgType layers.DHCPMsgType
		for _, o := range dhcp.Options {
			if o.Type == layers.DHCPOptMessageType && len(o.Data) == 1 {
				msgType = layers.DHCPMsgType(o.Data[0])
			}
		}
		assert.Equal(t, layers.DHCPMsgTypeDiscover, msgType)
		macs[eth.SrcMAC.String()] = true
	}
	assert.Len(t, macs, 3)
}
