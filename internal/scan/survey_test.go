package scan

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunwifi/gunwifi/pkg/wifi"
)

func beaconBytes(t *testing.T, bssid string, ssid string, channel byte, signal int8, rsn bool) []byte {
	t.Helper()
	mac, err := net.ParseMAC(bssid)
	require.NoError(t, err)

	ls := []gopacket.SerializableLayer{
		&layers.RadioTap{Present: layers.RadioTapPresentDBMAntennaSignal, DBMAntennaSignal: signal},
		&layers.Dot11{
			Type:     layers.Dot11TypeMgmtBeacon,
			Address1: layers.EthernetBroadcast,
			Address2: mac,
			Address3: mac,
		},
		&layers.Dot11MgmtBeacon{Interval: 100, Flags: 0x0001},
		&layers.Dot11InformationElement{ID: layers.Dot11InformationElementIDSSID, Length: uint8(len(ssid)), Info: []byte(ssid)},
		&layers.Dot11InformationElement{ID: layers.Dot11InformationElementIDDSSet, Length: 1, Info: []byte{channel}},
	}
	if rsn {
		// version 1, CCMP group and pairwise, PSK
		info := []byte{
			0x01, 0x00,
			0x00, 0x0f, 0xac, 0x04,
			0x01, 0x00, 0x00, 0x0f, 0xac, 0x04,
			0x01, 0x00, 0x00, 0x0f, 0xac, 0x02,
		}
		ls = append(ls, &layers.Dot11InformationElement{ID: layers.Dot11InformationElementIDRSNInfo, Length: uint8(len(info)), Info: info})
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func TestDecodeBeacon(t *testing.T) {
	data := beaconBytes(t, "aa:bb:cc:00:00:01", "Lab", 11, -55, true)
	pkt := gopacket.NewPacket(data, layers.LayerTypeRadioTap, gopacket.Default)

	rec, ok := DecodeBeacon(pkt)
	require.True(t, ok)
	assert.Equal(t, "aa:bb:cc:00:00:01", rec.BSSID.String())
	assert.Equal(t, "Lab", rec.ESSID)
	assert.Equal(t, 11, rec.Channel)
	assert.Equal(t, -55, rec.Power)
	assert.Equal(t, wifi.EncWPA2, rec.Encryption)

	hidden := beaconBytes(t, "aa:bb:cc:00:00:02", "\x00\x00\x00", 1, -70, false)
	rec, ok = DecodeBeacon(gopacket.NewPacket(hidden, layers.LayerTypeRadioTap, gopacket.Default))
	require.True(t, ok)
	assert.Empty(t, rec.ESSID)
	assert.Equal(t, 1, rec.Channel)
	assert.Equal(t, wifi.EncOpen, rec.Encryption)
}

func TestDecodeBeaconTrailingShortIE(t *testing.T) {
	// Without an RSN element the 3-byte DS set ends the frame, which
	// gopacket's IE decoder rejects.
	data := beaconBytes(t, "aa:bb:cc:00:00:02", "B", 6, -60, false)
	pkt := gopacket.NewPacket(data, layers.LayerTypeRadioTap, gopacket.Default)
	require.NotNil(t, pkt.ErrorLayer())

	rec, ok := DecodeBeacon(pkt)
	require.True(t, ok)
	assert.Equal(t, "B", rec.ESSID)
	assert.Equal(t, 6, rec.Channel)
	assert.Equal(t, -60, rec.Power)
	assert.Equal(t, wifi.EncOpen, rec.Encryption)
}

type replayHandle struct {
	frames [][]byte
	closed bool
}

func (h *replayHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if len(h.frames) == 0 {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	f := h.frames[0]
	h.frames = h.frames[1:]
	return f, gopacket.CaptureInfo{CaptureLength: len(f), Length: len(f)}, nil
}

func (h *replayHandle) LinkType() layers.LinkType { return layers.LinkTypeIEEE80211Radio }
func (h *replayHandle) Close()                    { h.closed = true }

func TestBeaconSurveyOccupancy(t *testing.T) {
	h := &replayHandle{frames: [][]byte{
		beaconBytes(t, "aa:bb:cc:00:00:01", "A", 1, -40, true),
		beaconBytes(t, "aa:bb:cc:00:00:01", "A", 1, -42, true),
		beaconBytes(t, "aa:bb:cc:00:00:02", "B", 6, -60, false),
		beaconBytes(t, "aa:bb:cc:00:00:03", "C", 1, -70, false),
		{0x00, 0x01}, // garbage
	}}
	survey := &BeaconSurvey{
		Duration:    time.Minute,
		HopInterval: time.Hour,
		Run:         &airodumpRunner{},
		Open:        func(string) (PacketHandle, error) { return h, nil },
	}

	occ, err := survey.Occupancy(context.Background(), "wlan0mon")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2, 6: 1}, occ)
	assert.True(t, h.closed)
}

func TestBeaconSurveyOpenFails(t *testing.T) {
	survey := &BeaconSurvey{Open: func(string) (PacketHandle, error) { return nil, io.ErrClosedPipe }}
	_, err := survey.Survey(context.Background(), "wlan0mon")
	assert.ErrorIs(t, err, ErrScanUnavailable)
}
