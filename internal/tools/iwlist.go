package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

var iwlistChannelRe = regexp.MustCompile(`Channel:\s*(\d+)`)

// Iwlist surveys nearby access points through `iwlist <dev> scan`, which
// works on a managed interface.
type Iwlist struct {
	run Runner
}

func NewIwlist(run Runner) *Iwlist {
	if run == nil {
		run = ExecRunner{}
	}
	return &Iwlist{run: run}
}

// Occupancy returns the number of access points seen per channel.
func (w *Iwlist) Occupancy(ctx context.Context, dev string) (map[int]int, error) {
	out, err := w.run.Run(ctx, "iwlist", dev, "scan")
	if err != nil {
		return nil, fmt.Errorf("iwlist %s scan: %w", dev, err)
	}
	return ParseIwlistChannels(out), nil
}

// ParseIwlistChannels tallies "Channel:N" lines, one per cell. The
// "(Channel N)" suffix on the frequency line is not counted.
func ParseIwlistChannels(out string) map[int]int {
	counts := make(map[int]int)
	for _, m := range iwlistChannelRe.FindAllStringSubmatch(out, -1) {
		ch, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		counts[ch]++
	}
	return counts
}
