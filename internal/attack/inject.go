package attack

import (
	"fmt"

	"github.com/google/gopacket/pcap"
)

// Transmitter puts raw frames on the wire.
type Transmitter interface {
	Transmit(frame []byte) error
	Close() error
}

// Opener opens a transmitter on a device.
type Opener func(dev string) (Transmitter, error)

// PcapInjector handles raw frame injection via pcap.
type PcapInjector struct {
	handle *pcap.Handle
	iface  string
}

// NewPcapInjector opens a pcap handle for packet injection. 802.11 frames
// need a monitor-mode interface; Ethernet frames go out on any interface.
func NewPcapInjector(iface string) (*PcapInjector, error) {
	handle, err := pcap.OpenLive(iface, 65536, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open pcap for injection on %s: %w", iface, err)
	}

	return &PcapInjector{
		handle: handle,
		iface:  iface,
	}, nil
}

// OpenPcap is the production Opener.
func OpenPcap(dev string) (Transmitter, error) {
	inj, err := NewPcapInjector(dev)
	if err != nil {
		return nil, err
	}
	return inj, nil
}

func (inj *PcapInjector) Transmit(frame []byte) error {
	if err := inj.handle.WritePacketData(frame); err != nil {
		return fmt.Errorf("inject on %s: %w", inj.iface, err)
	}
	return nil
}

// Close closes the pcap handle.
func (inj *PcapInjector) Close() error {
	if inj.handle != nil {
		inj.handle.Close()
		inj.handle = nil
	}
	return nil
}
