package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/gopacket/layers"
	"github.com/schollz/progressbar/v3"

	"github.com/gunwifi/gunwifi/internal/attack"
	"github.com/gunwifi/gunwifi/internal/config"
	"github.com/gunwifi/gunwifi/internal/iface"
	"github.com/gunwifi/gunwifi/internal/scan"
	"github.com/gunwifi/gunwifi/internal/tools"
)

const surveyHopInterval = 300 * time.Millisecond

// session holds everything one command invocation needs to drive the adapter.
type session struct {
	cfg     *config.Config
	log     *slog.Logger
	run     tools.Runner
	inv     *iface.Inventory
	engine  *attack.Engine
	hostapd *tools.Hostapd
	orch    *attack.Orchestrator
	status  chan attack.StatusUpdate

	// startedInMonitor is set when the adapter was already in monitor
	// mode; teardown then leaves it that way.
	startedInMonitor bool
}

// newSession discovers the adapter and wires the orchestrator. When
// wireless is false a missing adapter is tolerated.
func newSession(ctx context.Context, cfg *config.Config, log *slog.Logger, wireless bool) (*session, error) {
	run := tools.ExecRunner{}
	inv := iface.NewInventory(run, log)

	wi, err := inv.Select(ctx, cfg.Interface)
	if err != nil {
		if wireless {
			return nil, fmt.Errorf("interface selection: %w", err)
		}
		log.Debug("no wireless interface", "err", err)
	}
	if wireless {
		if missing := tools.NewDependencyChecker().MissingRequired(); len(missing) > 0 {
			return nil, fmt.Errorf("missing required tools: %v\n  Install with: %s", missing, tools.InstallHint())
		}
	}

	sm := iface.NewStateMachine(wi, tools.NewAirmonNG(run), tools.NewSystemctl(run), log)
	sm.Conflicting = cfg.Monitor.ConflictingServices
	sm.Exists = inv.Exists

	engine := attack.NewEngine(attack.OpenPcap, log)
	engine.Interval = cfg.Attack.Interval

	hostapd := tools.NewHostapd(run, cfg.AP.ConfigDir)
	status := make(chan attack.StatusUpdate, 100)

	survey := &scan.BeaconSurvey{
		Duration:    cfg.Scan.SurveyDuration,
		Channels:    iface.ChannelsForBand(cfg.Scan.Band),
		HopInterval: surveyHopInterval,
		Run:         run,
		Logger:      log,
	}

	orch := attack.NewOrchestrator(attack.Deps{
		Machine:       sm,
		Engine:        engine,
		Scanner:       scan.NewNetworkScanner(run, log),
		AP:            hostapd,
		Routes:        inv,
		ManagedSurvey: tools.NewIwlist(run),
		MonitorSurvey: survey,
		SetChannel: func(ctx context.Context, dev string, ch int) error {
			return iface.SetChannel(ctx, run, dev, ch)
		},
		DeauthReason: layers.Dot11Reason(cfg.Attack.DeauthReason),
		Passphrase:   cfg.AP.Passphrase,
		Status:       status,
		Logger:       log,
	})

	return &session{
		cfg:              cfg,
		log:              log,
		run:              run,
		inv:              inv,
		engine:           engine,
		hostapd:          hostapd,
		orch:             orch,
		status:           status,
		startedInMonitor: wi.Monitor,
	}, nil
}

// ensureMonitor enters monitor mode unless already there.
func (s *session) ensureMonitor(ctx context.Context) (string, error) {
	sm := s.orch.Machine()
	if sm.State() == iface.StateMonitor {
		return sm.ActiveDevice(), nil
	}
	fmt.Printf("  Enabling monitor mode on %s...\n", sm.Interface().Name)
	dev, err := s.orch.EnterMonitor(ctx)
	if err != nil {
		return "", err
	}
	fmt.Printf("  Monitor interface: %s\n", color.CyanString(dev))
	return dev, nil
}

// teardown runs the full shutdown path, or only cancels jobs when the
// adapter was found in monitor mode.
func (s *session) teardown() {
	if s.startedInMonitor {
		for _, j := range s.orch.Jobs() {
			s.orch.CancelJob(j.ID)
		}
		return
	}
	fmt.Println("\n  Cleaning up...")
	s.orch.StopAll()
	fmt.Println("  Done.")
}

// withProgress draws a progress bar for the next injection job.
func (s *session) withProgress(desc string, count int) func(sent int) {
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionFullWidth(),
	)
	s.engine.Progress = func(p attack.Progress) {
		_ = bar.Set(p.Sent)
	}
	return func(sent int) {
		_ = bar.Set(sent)
		_ = bar.Finish()
		s.engine.Progress = nil
		fmt.Fprintln(os.Stderr)
	}
}
