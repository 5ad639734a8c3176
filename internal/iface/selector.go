package iface

import (
	"context"
	"log/slog"
	"sort"

	"github.com/gunwifi/gunwifi/pkg/wifi"
)

// OccupancySource reports how many networks were observed per channel.
type OccupancySource interface {
	Occupancy(ctx context.Context, dev string) (map[int]int, error)
}

// OccupancyFunc adapts a function to OccupancySource.
type OccupancyFunc func(ctx context.Context, dev string) (map[int]int, error)

func (f OccupancyFunc) Occupancy(ctx context.Context, dev string) (map[int]int, error) {
	return f(ctx, dev)
}

// ChannelSelector picks the least congested channel.
type ChannelSelector struct {
	Source  OccupancySource
	Default int
	Logger  *slog.Logger
}

// SelectChannel surveys dev once and picks a channel. It never fails: a
// survey error or an empty survey yields the default channel.
func (cs *ChannelSelector) SelectChannel(ctx context.Context, dev string) int {
	log := cs.Logger
	if log == nil {
		log = slog.Default()
	}
	def := cs.Default
	if !wifi.ValidChannel(def) {
		def = wifi.DefaultChannel
	}
	if cs.Source == nil {
		return def
	}

	occ, err := cs.Source.Occupancy(ctx, dev)
	if err != nil {
		log.Warn("channel survey failed, using default", "interface", dev, "channel", def, "err", err)
		return def
	}
	if len(occ) == 0 {
		log.Info("no channel data, using default", "interface", dev, "channel", def)
		return def
	}
	ch := PickChannel(occ)
	log.Info("selected channel", "interface", dev, "channel", ch, "occupancy", occ[ch])
	return ch
}

// PickChannel applies the least-congestion heuristic. The first of 1, 6 and
// 11 whose occupancy equals the global minimum wins; a preferred channel
// absent from the survey counts as unoccupied. Otherwise the channel with
// the lowest occupancy wins, ties going to the lower channel number. An
// empty survey yields wifi.DefaultChannel.
func PickChannel(occupancy map[int]int) int {
	if len(occupancy) == 0 {
		return wifi.DefaultChannel
	}

	channels := make([]int, 0, len(occupancy))
	for ch := range occupancy {
		channels = append(channels, ch)
	}
	sort.Ints(channels)

	lowest := occupancy[channels[0]]
	for _, ch := range channels[1:] {
		if occupancy[ch] < lowest {
			lowest = occupancy[ch]
		}
	}

	for _, ch := range wifi.PreferredChannels {
		n, seen := occupancy[ch]
		if !seen || n == lowest {
			return ch
		}
	}

	for _, ch := range channels {
		if occupancy[ch] == lowest {
			return ch
		}
	}
	return wifi.DefaultChannel
}

// RecordOccupancy tallies access points per channel from a scan result.
func RecordOccupancy(records []wifi.NetworkRecord) map[int]int {
	occ := make(map[int]int)
	for _, r := range records {
		if wifi.ValidChannel(r.Channel) {
			occ[r.Channel]++
		}
	}
	return occ
}
