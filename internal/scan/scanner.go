package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gunwifi/gunwifi/internal/tools"
	"github.com/gunwifi/gunwifi/pkg/wifi"
)

// ErrScanUnavailable means the scanning tool is missing or did not produce results.
var ErrScanUnavailable = errors.New("scan unavailable")

// NetworkScanner runs timed airodump-ng scans.
type NetworkScanner struct {
	Airodump *tools.AirodumpNG
	Parser   Parser
	Logger   *slog.Logger
}

func NewNetworkScanner(run tools.Runner, logger *slog.Logger) *NetworkScanner {
	return &NetworkScanner{
		Airodump: tools.NewAirodumpNG(run),
		Parser:   Parser{Logger: logger},
		Logger:   logger,
	}
}

// Scan captures on dev for duration and returns the networks seen. The wait
// ends early when ctx is cancelled.
func (s *NetworkScanner) Scan(ctx context.Context, dev string, duration time.Duration) ([]wifi.NetworkRecord, error) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	if !s.Airodump.Available() {
		return nil, fmt.Errorf("%w: airodump-ng not installed", ErrScanUnavailable)
	}

	session, err := s.Airodump.StartScan(ctx, dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanUnavailable, err)
	}
	defer session.Cleanup()

	log.Info("scanning", "interface", dev, "duration", duration)
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-session.Exited():
		log.Warn("airodump-ng exited early", "interface", dev)
	case <-ctx.Done():
		session.Stop()
		return nil, ctx.Err()
	}
	session.Stop()

	raw, err := os.ReadFile(session.CSVFile())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScanUnavailable, err)
	}

	records := s.Parser.Parse(raw)
	log.Info("scan complete", "interface", dev, "networks", len(records))
	return records, nil
}
