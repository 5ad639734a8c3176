package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/gunwifi/gunwifi/internal/iface"
	"github.com/gunwifi/gunwifi/internal/tools"
	"github.com/gunwifi/gunwifi/pkg/wifi"
)

// PacketHandle is the subset of *pcap.Handle the survey reads from.
type PacketHandle interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Close()
}

// OpenLive opens a pcap handle in monitor-friendly mode. The read timeout
// lets the capture loop notice cancellation.
func OpenLive(dev string) (PacketHandle, error) {
	handle, err := pcap.OpenLive(dev, 65536, true, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("open pcap on %s: %w", dev, err)
	}
	if err := handle.SetBPFFilter("type mgt subtype beacon or type mgt subtype probe-resp"); err != nil {
		slog.Debug("could not set BPF filter", "interface", dev, "err", err)
	}
	return handle, nil
}

// BeaconSurvey passively listens for beacons and probe responses on a
// monitor interface while hopping channels.
type BeaconSurvey struct {
	Duration    time.Duration
	Channels    []int
	HopInterval time.Duration
	Run         tools.Runner
	Open        func(dev string) (PacketHandle, error)
	Logger      *slog.Logger
}

func (b *BeaconSurvey) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Occupancy counts distinct access points per channel.
func (b *BeaconSurvey) Occupancy(ctx context.Context, dev string) (map[int]int, error) {
	records, err := b.Survey(ctx, dev)
	if err != nil {
		return nil, err
	}
	return iface.RecordOccupancy(records), nil
}

// Survey returns one record per access point heard, including hidden ones.
func (b *BeaconSurvey) Survey(ctx context.Context, dev string) ([]wifi.NetworkRecord, error) {
	open := b.Open
	if open == nil {
		open = OpenLive
	}
	handle, err := open(dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanUnavailable, err)
	}
	defer handle.Close()

	duration := b.Duration
	if duration == 0 {
		duration = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	hopper := iface.NewChannelHopper(b.Run, dev, b.Channels, b.HopInterval)
	hopper.Start(ctx)
	defer hopper.Stop()

	db := newSightings()
	linkType := handle.LinkType()
	for ctx.Err() == nil {
		data, _, err := handle.ReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF):
			return db.Records(), nil
		default:
			b.logger().Debug("packet read failed", "interface", dev, "err", err)
			return db.Records(), nil
		}

		packet := gopacket.NewPacket(data, linkType, gopacket.NoCopy)
		if rec, ok := DecodeBeacon(packet); ok {
			db.Update(rec)
		}
	}
	return db.Records(), nil
}

// DecodeBeacon extracts an access point record from a beacon or probe
// response. Hidden networks come back with an empty ESSID.
func DecodeBeacon(packet gopacket.Packet) (wifi.NetworkRecord, bool) {
	dot11Layer := packet.Layer(layers.LayerTypeDot11)
	if dot11Layer == nil {
		return wifi.NetworkRecord{}, false
	}
	dot11 := dot11Layer.(*layers.Dot11)
	if dot11.Type != layers.Dot11TypeMgmtBeacon && dot11.Type != layers.Dot11TypeMgmtProbeResp {
		return wifi.NetworkRecord{}, false
	}

	bssid := dot11.Address3
	if wifi.IsBroadcast(bssid) {
		return wifi.NetworkRecord{}, false
	}

	// Extract radiotap info for signal strength
	power := -100
	if rtLayer := packet.Layer(layers.LayerTypeRadioTap); rtLayer != nil {
		rt := rtLayer.(*layers.RadioTap)
		if rt.DBMAntennaSignal != 0 {
			power = int(rt.DBMAntennaSignal)
		}
	}

	rec := wifi.NetworkRecord{
		BSSID:      append(net.HardwareAddr(nil), bssid...),
		Power:      power,
		Encryption: wifi.EncOpen,
	}

	for _, ie := range informationElements(packet, dot11) {
		switch ie.ID {
		case layers.Dot11InformationElementIDSSID:
			if !isNullSSID(ie.Info) {
				rec.ESSID = string(ie.Info)
			}
		case layers.Dot11InformationElementIDDSSet:
			if len(ie.Info) > 0 {
				rec.Channel = int(ie.Info[0])
			}
		case layers.Dot11InformationElementIDRSNInfo:
			rec.Encryption = parseRSN(ie.Info)
		case layers.Dot11InformationElementIDVendor:
			if rec.Encryption == wifi.EncOpen && isWPAVendor(ie.Info) {
				rec.Encryption = wifi.EncWPA
			}
		}
	}

	// Check for WEP from capability info
	if rec.Encryption == wifi.EncOpen && privacyBit(packet) {
		rec.Encryption = wifi.EncWEP
	}
	rec.EncryptionLabel = rec.Encryption.String()
	return rec, true
}

// mgmtFixedLen is the timestamp, interval and capability prefix of the
// management bodies DecodeBeacon accepts.
const mgmtFixedLen = 12

// informationElements returns the tagged parameters of an accepted
// management frame. gopacket stops at an IE it cannot decode, such as a
// short one at the end of the frame; the elements are then walked by hand.
func informationElements(packet gopacket.Packet, dot11 *layers.Dot11) []*layers.Dot11InformationElement {
	if packet.ErrorLayer() == nil {
		var ies []*layers.Dot11InformationElement
		for _, layer := range packet.Layers() {
			if ie, ok := layer.(*layers.Dot11InformationElement); ok {
				ies = append(ies, ie)
			}
		}
		return ies
	}

	body := dot11.Payload
	if len(body) < mgmtFixedLen {
		return nil
	}
	body = body[mgmtFixedLen:]
	var ies []*layers.Dot11InformationElement
	for len(body) >= 2 {
		n := int(body[1])
		if len(body) < 2+n {
			break
		}
		ies = append(ies, &layers.Dot11InformationElement{
			ID:     layers.Dot11InformationElementID(body[0]),
			Length: uint8(n),
			Info:   body[2 : 2+n],
		})
		body = body[2+n:]
	}
	return ies
}

func privacyBit(packet gopacket.Packet) bool {
	if l := packet.Layer(layers.LayerTypeDot11MgmtBeacon); l != nil {
		return l.(*layers.Dot11MgmtBeacon).Flags&0x0010 != 0
	}
	if l := packet.Layer(layers.LayerTypeDot11MgmtProbeResp); l != nil {
		return l.(*layers.Dot11MgmtProbeResp).Flags&0x0010 != 0
	}
	return false
}

// parseRSN reports WPA3 when the first AKM suite is SAE, WPA2 otherwise.
func parseRSN(data []byte) wifi.EncryptionType {
	if len(data) < 10 {
		return wifi.EncOpen
	}
	if len(data) >= 18 && data[17] == 8 {
		return wifi.EncWPA3
	}
	return wifi.EncWPA2
}

// isWPAVendor matches the WPA (v1) OUI 00:50:F2 type 1.
func isWPAVendor(data []byte) bool {
	return len(data) >= 4 && data[0] == 0x00 && data[1] == 0x50 && data[2] == 0xF2 && data[3] == 0x01
}

func isNullSSID(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// sightings is a thread-safe table of access points keyed by BSSID.
type sightings struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]*wifi.NetworkRecord
}

func newSightings() *sightings {
	return &sightings{byKey: make(map[string]*wifi.NetworkRecord)}
}

// Update adds or merges a record. Later frames fill in a missing ESSID or
// channel and refresh the signal level.
func (s *sightings) Update(rec wifi.NetworkRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.BSSID.String()
	cur, ok := s.byKey[key]
	if !ok {
		r := rec
		s.byKey[key] = &r
		s.order = append(s.order, key)
		return
	}
	if rec.ESSID != "" && cur.ESSID == "" {
		cur.ESSID = rec.ESSID
	}
	if rec.Channel != 0 {
		cur.Channel = rec.Channel
	}
	if rec.Power != -100 {
		cur.Power = rec.Power
	}
	if rec.Encryption != wifi.EncOpen {
		cur.Encryption = rec.Encryption
		cur.EncryptionLabel = rec.EncryptionLabel
	}
}

// Records returns the table sorted by descending signal strength.
func (s *sightings) Records() []wifi.NetworkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]wifi.NetworkRecord, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Power > out[j].Power })
	return out
}
