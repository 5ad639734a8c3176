package iface

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gunwifi/gunwifi/internal/tools"
)

// Standard 2.4 GHz channels
var Channels2GHz = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}

// Standard 5 GHz channels
var Channels5GHz = []int{
	36, 40, 44, 48, 52, 56, 60, 64,
	100, 104, 108, 112, 116, 120, 124, 128, 132, 136, 140, 144,
	149, 153, 157, 161, 165,
}

// ChannelHopper cycles through WiFi channels on a monitor interface.
type ChannelHopper struct {
	run      tools.Runner
	iface    string
	channels []int
	interval time.Duration
	current  atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewChannelHopper creates a new channel hopper.
func NewChannelHopper(run tools.Runner, iface string, channels []int, interval time.Duration) *ChannelHopper {
	if run == nil {
		run = tools.ExecRunner{}
	}
	if len(channels) == 0 {
		channels = Channels2GHz
	}
	if interval == 0 {
		interval = 250 * time.Millisecond
	}
	return &ChannelHopper{
		run:      run,
		iface:    iface,
		channels: channels,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins channel hopping in a goroutine.
func (ch *ChannelHopper) Start(ctx context.Context) {
	go ch.loop(ctx)
}

// Stop halts channel hopping.
func (ch *ChannelHopper) Stop() {
	ch.stopOnce.Do(func() { close(ch.stopCh) })
}

// Current returns the current channel, 0 before the first hop.
func (ch *ChannelHopper) Current() int {
	return int(ch.current.Load())
}

func (ch *ChannelHopper) loop(ctx context.Context) {
	idx := 0
	ticker := time.NewTicker(ch.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch.stopCh:
			return
		case <-ticker.C:
			channel := ch.channels[idx%len(ch.channels)]
			if err := SetChannel(ctx, ch.run, ch.iface, channel); err == nil {
				ch.current.Store(int32(channel))
			}
			idx++
		}
	}
}

// SetChannel tunes a monitor interface. Callers align the channel before an
// attack starts, never while one is running.
func SetChannel(ctx context.Context, run tools.Runner, iface string, channel int) error {
	if run == nil {
		run = tools.ExecRunner{}
	}
	// Use iwconfig to set channel (most compatible)
	_, err := run.Run(ctx, "iwconfig", iface, "channel", strconv.Itoa(channel))
	if err != nil {
		// Fallback to iw
		_, err = run.Run(ctx, "iw", "dev", iface, "set", "channel", strconv.Itoa(channel))
	}
	return err
}

// ChannelsForBand returns channel list for the specified band.
func ChannelsForBand(band string) []int {
	switch band {
	case "5ghz":
		return Channels5GHz
	case "both":
		all := make([]int, 0, len(Channels2GHz)+len(Channels5GHz))
		all = append(all, Channels2GHz...)
		all = append(all, Channels5GHz...)
		return all
	default:
		return Channels2GHz
	}
}
