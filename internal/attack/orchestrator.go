package attack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/gopacket/layers"

	"github.com/gunwifi/gunwifi/internal/iface"
	"github.com/gunwifi/gunwifi/internal/telemetry"
	"github.com/gunwifi/gunwifi/internal/tools"
	"github.com/gunwifi/gunwifi/pkg/wifi"
)

var (
	// ErrNotInMonitorMode is returned by 802.11 attacks started while the
	// adapter is managed.
	ErrNotInMonitorMode = errors.New("interface not in monitor mode")
	// ErrInvalidChannel is returned for channels outside 1-196.
	ErrInvalidChannel = errors.New("invalid channel")
)

// stopTimeout bounds the whole teardown.
const stopTimeout = 15 * time.Second

// jobDrainSlack is added to the pacing interval when waiting for cancelled jobs.
const jobDrainSlack = time.Second

// StatusUpdate represents a real-time status message from an operation.
type StatusUpdate struct {
	Attack   string
	Message  string
	Progress float64 // 0.0 - 1.0
	Done     bool
	Success  bool
}

// NetworkScanner lists nearby networks from a monitor interface.
type NetworkScanner interface {
	Scan(ctx context.Context, dev string, duration time.Duration) ([]wifi.NetworkRecord, error)
}

// APLauncher starts and kills rogue access points.
type APLauncher interface {
	Launch(ctx context.Context, cfg tools.APConfig) (tools.Proc, error)
	KillAll(ctx context.Context) error
}

// RouteResolver finds a wired interface for DHCP floods.
type RouteResolver interface {
	DefaultRouteInterface(ctx context.Context) string
}

// Deps wires an Orchestrator.
type Deps struct {
	Machine *iface.StateMachine
	Engine  *Engine
	Scanner NetworkScanner
	AP      APLauncher
	Routes  RouteResolver
	// ManagedSurvey and MonitorSurvey feed channel selection in each mode.
	ManagedSurvey iface.OccupancySource
	MonitorSurvey iface.OccupancySource
	// SetChannel tunes the monitor device; defaults to iface.SetChannel.
	SetChannel func(ctx context.Context, dev string, ch int) error
	// Rand seeds frame generators; defaults to a time-seeded source.
	Rand         func() *rand.Rand
	DeauthReason layers.Dot11Reason
	Passphrase   string
	Status       chan StatusUpdate
	Logger       *slog.Logger
}

// DeauthParams selects the BSS and, optionally, one client to disconnect.
type DeauthParams struct {
	BSSID   net.HardwareAddr
	Client  net.HardwareAddr // nil for broadcast
	Count   int
	Channel int // 0 leaves the monitor device where it is
}

// RogueAP describes a launched access point.
type RogueAP struct {
	SSID      string
	Channel   int
	Interface string
	PID       int
}

// Orchestrator sequences interface state, scans and injection jobs and owns
// the single teardown path.
type Orchestrator struct {
	d   Deps
	log *slog.Logger

	// modeMu is held for writing across mode switches and for reading while
	// a monitor-mode job is checked and registered.
	modeMu sync.RWMutex

	mu         sync.Mutex
	jobs       map[string]*InjectionJob
	ap         tools.Proc
	apLaunched bool
}

func NewOrchestrator(d Deps) *Orchestrator {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	if d.Engine == nil {
		d.Engine = NewEngine(nil, log)
	}
	if d.SetChannel == nil {
		d.SetChannel = func(ctx context.Context, dev string, ch int) error {
			return iface.SetChannel(ctx, nil, dev, ch)
		}
	}
	if d.Rand == nil {
		d.Rand = func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	}
	if d.DeauthReason == 0 {
		d.DeauthReason = ReasonClass3FromNonAssoc
	}
	return &Orchestrator{
		d:    d,
		log:  log,
		jobs: make(map[string]*InjectionJob),
	}
}

// Machine exposes the interface state machine for read-only queries.
func (o *Orchestrator) Machine() *iface.StateMachine {
	return o.d.Machine
}

// EnterMonitor puts the adapter in monitor mode and returns the active device.
func (o *Orchestrator) EnterMonitor(ctx context.Context) (string, error) {
	o.modeMu.Lock()
	defer o.modeMu.Unlock()

	name := o.d.Machine.Interface().Name
	dev, err := o.d.Machine.EnterMonitorMode(ctx)
	if err != nil {
		telemetry.ModeSwitches.WithLabelValues(name, "monitor", "error").Inc()
		o.sendStatus(StatusUpdate{Attack: "monitor", Message: err.Error(), Done: true})
		return "", err
	}
	telemetry.ModeSwitches.WithLabelValues(name, "monitor", "ok").Inc()
	o.sendStatus(StatusUpdate{Attack: "monitor", Message: "Monitor mode enabled on " + dev, Done: true, Success: true})
	return dev, nil
}

// LeaveMonitor stops jobs running on the monitor device, then restores
// managed mode.
func (o *Orchestrator) LeaveMonitor(ctx context.Context) error {
	o.modeMu.Lock()
	defer o.modeMu.Unlock()

	o.drainJobs(o.d.Machine.ActiveDevice())

	name := o.d.Machine.Interface().Name
	if err := o.d.Machine.LeaveMonitorMode(ctx); err != nil {
		telemetry.ModeSwitches.WithLabelValues(name, "managed", "error").Inc()
		return err
	}
	telemetry.ModeSwitches.WithLabelValues(name, "managed", "ok").Inc()
	o.sendStatus(StatusUpdate{Attack: "monitor", Message: "Managed mode restored on " + name, Done: true, Success: true})
	return nil
}

func (o *Orchestrator) requireMonitor() (string, error) {
	if o.d.Machine.State() != iface.StateMonitor {
		return "", ErrNotInMonitorMode
	}
	return o.d.Machine.ActiveDevice(), nil
}

// Scan lists nearby networks. The adapter must be in monitor mode.
func (o *Orchestrator) Scan(ctx context.Context, duration time.Duration) ([]wifi.NetworkRecord, error) {
	dev, err := o.requireMonitor()
	if err != nil {
		return nil, err
	}
	if o.d.Scanner == nil {
		return nil, fmt.Errorf("no scanner configured")
	}
	o.sendStatus(StatusUpdate{Attack: "scan", Message: fmt.Sprintf("Scanning on %s for %s", dev, duration)})
	recs, err := o.d.Scanner.Scan(ctx, dev, duration)
	if err != nil {
		o.sendStatus(StatusUpdate{Attack: "scan", Message: err.Error(), Done: true})
		return nil, err
	}
	o.sendStatus(StatusUpdate{Attack: "scan", Message: fmt.Sprintf("%d networks", len(recs)), Done: true, Success: true})
	return recs, nil
}

// SelectChannel picks the least congested channel. It never fails.
func (o *Orchestrator) SelectChannel(ctx context.Context) int {
	src := o.d.ManagedSurvey
	if o.d.Machine.State() == iface.StateMonitor && o.d.MonitorSurvey != nil {
		src = o.d.MonitorSurvey
	}
	sel := iface.ChannelSelector{Source: src, Default: wifi.DefaultChannel, Logger: o.log}
	return sel.SelectChannel(ctx, o.d.Machine.ActiveDevice())
}

// Deauth disconnects stations from a BSS. The adapter must be in monitor
// mode; the channel is only changed before the first frame.
func (o *Orchestrator) Deauth(ctx context.Context, p DeauthParams) (int, error) {
	if len(p.BSSID) != 6 {
		return 0, fmt.Errorf("deauth: BSSID required")
	}
	if p.Channel != 0 && !wifi.ValidChannel(p.Channel) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, p.Channel)
	}

	job, err := o.admitMonitorJob(ctx, p.Channel, func(dev string) *InjectionJob {
		frames := DeauthFrames{BSSID: p.BSSID, Client: p.Client, Reason: o.d.DeauthReason}
		return NewInjectionJob(KindDeauth, dev, p.Count, frames)
	})
	if err != nil {
		return 0, err
	}
	return o.run(ctx, job)
}

// BeaconFlood advertises count fake networks. A non-zero channel tunes the
// monitor device first and is carried in each beacon. The adapter must be in
// monitor mode.
func (o *Orchestrator) BeaconFlood(ctx context.Context, count, channel int) (int, error) {
	if channel != 0 && !wifi.ValidChannel(channel) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	job, err := o.admitMonitorJob(ctx, channel, func(dev string) *InjectionJob {
		frames := &BeaconFrames{Rand: o.d.Rand(), Channel: channel}
		return NewInjectionJob(KindBeaconFlood, dev, count, frames)
	})
	if err != nil {
		return 0, err
	}
	return o.run(ctx, job)
}

// admitMonitorJob checks monitor mode, aligns the channel and registers the
// job without letting a mode switch in between. A later mode switch drains
// the registered job before touching the interface.
func (o *Orchestrator) admitMonitorJob(ctx context.Context, channel int, build func(dev string) *InjectionJob) (*InjectionJob, error) {
	o.modeMu.RLock()
	defer o.modeMu.RUnlock()

	dev, err := o.requireMonitor()
	if err != nil {
		return nil, err
	}
	if channel != 0 {
		if err := o.d.SetChannel(ctx, dev, channel); err != nil {
			return nil, fmt.Errorf("set channel %d on %s: %w", channel, dev, err)
		}
	}
	job := build(dev)
	o.register(job)
	return job, nil
}

func (o *Orchestrator) register(job *InjectionJob) {
	o.mu.Lock()
	o.jobs[job.ID.String()] = job
	o.mu.Unlock()
}

// DHCPFlood sends count DHCPDISCOVERs from random clients on device, or on
// the default route interface when device is empty. Any mode is fine.
func (o *Orchestrator) DHCPFlood(ctx context.Context, device string, count int) (int, error) {
	if device == "" {
		if o.d.Routes == nil {
			return 0, fmt.Errorf("dhcp flood: no interface given")
		}
		device = o.d.Routes.DefaultRouteInterface(ctx)
	}
	job := NewInjectionJob(KindDHCPFlood, device, count, &DHCPFrames{Rand: o.d.Rand()})
	o.register(job)
	return o.run(ctx, job)
}

// run executes a registered job and unregisters it when done.
func (o *Orchestrator) run(ctx context.Context, job *InjectionJob) (int, error) {
	defer func() {
		o.mu.Lock()
		delete(o.jobs, job.ID.String())
		o.mu.Unlock()
	}()

	eng := *o.d.Engine
	user := eng.Progress
	eng.Progress = func(p Progress) {
		frac := 0.0
		if p.Total > 0 {
			frac = float64(p.Sent) / float64(p.Total)
		}
		o.sendStatus(StatusUpdate{
			Attack:   string(p.Kind),
			Message:  fmt.Sprintf("Sent %d/%d", p.Sent, p.Total),
			Progress: frac,
		})
		if user != nil {
			user(p)
		}
	}

	o.sendStatus(StatusUpdate{Attack: string(job.Kind), Message: "Starting on " + job.Device})
	sent, err := eng.Run(ctx, job)
	if err != nil {
		o.sendStatus(StatusUpdate{Attack: string(job.Kind), Message: fmt.Sprintf("Failed: %v", err), Done: true})
		return sent, err
	}
	o.sendStatus(StatusUpdate{
		Attack:   string(job.Kind),
		Message:  fmt.Sprintf("Sent %d/%d", sent, job.Count),
		Progress: 1,
		Done:     true,
		Success:  sent == job.Count,
	})
	return sent, nil
}

// StartRogueAP launches an access point on the managed interface. Channel 0
// picks one automatically. A previously launched AP is stopped first.
func (o *Orchestrator) StartRogueAP(ctx context.Context, ssid string, channel int) (RogueAP, error) {
	if o.d.AP == nil {
		return RogueAP{}, fmt.Errorf("no access point launcher configured")
	}
	if ssid == "" || len(ssid) > 32 {
		return RogueAP{}, fmt.Errorf("rogue ap: SSID must be 1-32 bytes")
	}
	if channel == 0 {
		channel = o.SelectChannel(ctx)
	}
	if !wifi.ValidChannel(channel) {
		return RogueAP{}, fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	o.stopAP()

	dev := o.d.Machine.Interface().Name
	proc, err := o.d.AP.Launch(ctx, tools.APConfig{
		Interface:  dev,
		SSID:       ssid,
		Channel:    channel,
		Passphrase: o.d.Passphrase,
	})
	if err != nil {
		return RogueAP{}, err
	}

	o.mu.Lock()
	o.ap = proc
	o.apLaunched = true
	o.mu.Unlock()

	ap := RogueAP{SSID: ssid, Channel: channel, Interface: dev, PID: proc.Pid()}
	o.log.Info("rogue access point started", "ssid", ssid, "channel", channel, "interface", dev, "pid", ap.PID)
	o.sendStatus(StatusUpdate{Attack: "rogue-ap", Message: fmt.Sprintf("%s on channel %d", ssid, channel), Done: true, Success: true})
	return ap, nil
}

func (o *Orchestrator) stopAP() {
	o.mu.Lock()
	proc := o.ap
	o.ap = nil
	o.mu.Unlock()
	if proc != nil {
		if err := proc.Stop(); err != nil {
			o.log.Warn("stop rogue access point", "pid", proc.Pid(), "err", err)
		}
	}
}

// Jobs lists running injection jobs, oldest first.
func (o *Orchestrator) Jobs() []JobInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]JobInfo, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, j.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// CancelJob requests cancellation of a running job.
func (o *Orchestrator) CancelJob(id string) bool {
	o.mu.Lock()
	job, ok := o.jobs[id]
	o.mu.Unlock()
	if ok {
		job.Cancel()
	}
	return ok
}

// drainJobs cancels jobs on dev (all jobs when dev is empty) and waits up to
// one pacing interval plus slack for them to exit.
func (o *Orchestrator) drainJobs(dev string) {
	o.mu.Lock()
	var live []*InjectionJob
	for _, j := range o.jobs {
		if dev == "" || j.Device == dev {
			live = append(live, j)
		}
	}
	o.mu.Unlock()

	for _, j := range live {
		j.Cancel()
	}

	deadline := time.NewTimer(o.d.Engine.Interval + jobDrainSlack)
	defer deadline.Stop()
	for _, j := range live {
		select {
		case <-j.Done():
		case <-deadline.C:
			o.log.Warn("injection job did not stop in time", "job", j.ID.String())
			return
		}
	}
}

// StopAll is the shutdown path for normal exit, interrupts and fatal
// errors. Every step runs even if an earlier one fails; failures are logged.
// Safe to call repeatedly and before anything was started.
func (o *Orchestrator) StopAll() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	o.modeMu.Lock()
	defer o.modeMu.Unlock()

	o.drainJobs("")

	o.stopAP()
	o.mu.Lock()
	launched := o.apLaunched
	o.apLaunched = false
	o.mu.Unlock()
	if launched && o.d.AP != nil {
		if err := o.d.AP.KillAll(ctx); err != nil {
			o.log.Debug("pkill hostapd", "err", err)
		}
	}

	if err := o.d.Machine.LeaveMonitorMode(ctx); err != nil {
		o.log.Warn("leave monitor mode", "err", err)
	}
	if err := o.d.Machine.RestoreServices(ctx); err != nil {
		o.log.Warn("restore services", "err", err)
	}

	o.sendStatus(StatusUpdate{Attack: "stop", Message: "All attacks stopped", Done: true, Success: true})
}

func (o *Orchestrator) sendStatus(s StatusUpdate) {
	if o.d.Status == nil {
		return
	}
	select {
	case o.d.Status <- s:
	default:
	}
}
