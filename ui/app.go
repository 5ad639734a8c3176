package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gunwifi/gunwifi/internal/attack"
	"github.com/gunwifi/gunwifi/internal/config"
	"github.com/gunwifi/gunwifi/internal/iface"
	"github.com/gunwifi/gunwifi/pkg/wifi"
)

// maxSteps bounds the activity list.
const maxSteps = 50

// View represents which screen the TUI is showing.
type View int

const (
	ViewNetworks View = iota
	ViewActivity
	ViewHelp
)

// Controller is the part of the orchestrator the TUI drives.
type Controller interface {
	Machine() *iface.StateMachine
	EnterMonitor(ctx context.Context) (string, error)
	LeaveMonitor(ctx context.Context) error
	Scan(ctx context.Context, duration time.Duration) ([]wifi.NetworkRecord, error)
	SelectChannel(ctx context.Context) int
	Deauth(ctx context.Context, p attack.DeauthParams) (int, error)
	BeaconFlood(ctx context.Context, count, channel int) (int, error)
	DHCPFlood(ctx context.Context, device string, count int) (int, error)
	StartRogueAP(ctx context.Context, ssid string, channel int) (attack.RogueAP, error)
	Jobs() []attack.JobInfo
	CancelJob(id string) bool
}

// App is the main Bubble Tea model.
type App struct {
	cfg     *config.Config
	ctl     Controller
	status  <-chan attack.StatusUpdate
	version string
	ctx     context.Context
	cancel  context.CancelFunc

	view      View
	width     int
	height    int
	elapsed   time.Duration
	startTime time.Time
	channel   int

	networks []wifi.NetworkRecord
	cursor   int

	steps []step
	jobs  []attack.JobInfo
	busy  string
	ap    attack.RogueAP

	err error
}

type step struct {
	name     string
	status   string
	done     bool
	success  bool
	progress float64
}

type tickMsg time.Time
type statusMsg attack.StatusUpdate

type monitorDoneMsg struct {
	dev string
	err error
}

type scanDoneMsg struct {
	networks []wifi.NetworkRecord
	err      error
}

type channelMsg int

type apStartedMsg struct {
	ap  attack.RogueAP
	err error
}

type jobDoneMsg struct {
	kind  attack.Kind
	sent  int
	total int
	err   error
}

func NewApp(ctx context.Context, cfg *config.Config, ctl Controller, status <-chan attack.StatusUpdate, version string) *App {
	ctx, cancel := context.WithCancel(ctx)
	return &App{
		cfg:       cfg,
		ctl:       ctl,
		status:    status,
		version:   version,
		ctx:       ctx,
		cancel:    cancel,
		view:      ViewNetworks,
		startTime: time.Now(),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(tickCmd(), a.waitStatus())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tickMsg:
		a.elapsed = time.Since(a.startTime)
		a.jobs = a.ctl.Jobs()
		return a, tickCmd()

	case statusMsg:
		a.updateStep(attack.StatusUpdate(msg))
		return a, a.waitStatus()

	case monitorDoneMsg:
		a.busy = ""
		a.err = msg.err
		return a, nil

	case scanDoneMsg:
		a.busy = ""
		a.err = msg.err
		if msg.err == nil {
			a.networks = msg.networks
			if a.cursor >= len(a.networks) {
				a.cursor = 0
			}
		}
		return a, nil

	case channelMsg:
		a.busy = ""
		a.channel = int(msg)
		return a, nil

	case apStartedMsg:
		a.busy = ""
		a.err = msg.err
		if msg.err == nil {
			a.ap = msg.ap
		}
		return a, nil

	case jobDoneMsg:
		a.jobs = a.ctl.Jobs()
		if msg.err != nil {
			a.err = fmt.Errorf("%s: %w", msg.kind, msg.err)
		}
		return a, nil
	}

	return a, nil
}

func (a *App) View() string {
	switch a.view {
	case ViewActivity:
		return a.renderActivityView()
	case ViewHelp:
		return a.renderHelpView()
	default:
		return a.renderNetworksView()
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		a.cancel()
		return a, tea.Quit

	case "?":
		if a.view == ViewHelp {
			a.view = ViewNetworks
		} else {
			a.view = ViewHelp
		}
		return a, nil

	case "tab":
		if a.view == ViewActivity {
			a.view = ViewNetworks
		} else {
			a.view = ViewActivity
		}
		return a, nil

	case "esc":
		a.view = ViewNetworks
		return a, nil

	case "x":
		for _, j := range a.ctl.Jobs() {
			a.ctl.CancelJob(j.ID)
		}
		return a, nil
	}

	if a.view == ViewNetworks {
		return a.handleNetworksKey(msg)
	}
	return a, nil
}

func (a *App) handleNetworksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.networks)-1 {
			a.cursor++
		}
	case "m":
		return a, a.toggleMonitor()
	case "s":
		return a, a.startScan()
	case "c":
		return a, a.selectChannel()
	case "d", "enter":
		if len(a.networks) > 0 {
			return a, a.startDeauth(a.networks[a.cursor])
		}
	case "b":
		return a, a.startBeaconFlood()
	case "h":
		return a, a.startDHCPFlood()
	case "a":
		return a, a.startRogueAP()
	}
	return a, nil
}

// Mode switches, scans and channel surveys are exclusive; injection jobs may
// run alongside each other.
func (a *App) exclusive(what string) bool {
	if a.busy != "" {
		a.err = fmt.Errorf("%s in progress", a.busy)
		return false
	}
	a.busy = what
	a.err = nil
	return true
}

func (a *App) toggleMonitor() tea.Cmd {
	if !a.exclusive("mode switch") {
		return nil
	}
	ctx := a.ctx
	if a.ctl.Machine().State() == iface.StateMonitor {
		return func() tea.Msg {
			return monitorDoneMsg{err: a.ctl.LeaveMonitor(ctx)}
		}
	}
	return func() tea.Msg {
		dev, err := a.ctl.EnterMonitor(ctx)
		return monitorDoneMsg{dev: dev, err: err}
	}
}

func (a *App) startScan() tea.Cmd {
	if !a.exclusive("scan") {
		return nil
	}
	ctx, duration := a.ctx, a.cfg.Scan.Duration
	return func() tea.Msg {
		recs, err := a.ctl.Scan(ctx, duration)
		return scanDoneMsg{networks: recs, err: err}
	}
}

func (a *App) selectChannel() tea.Cmd {
	if !a.exclusive("channel survey") {
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg {
		return channelMsg(a.ctl.SelectChannel(ctx))
	}
}

func (a *App) startDeauth(n wifi.NetworkRecord) tea.Cmd {
	a.err = nil
	p := attack.DeauthParams{BSSID: n.BSSID, Count: a.cfg.Attack.DeauthCount}
	if wifi.ValidChannel(n.Channel) {
		p.Channel = n.Channel
	}
	ctx := a.ctx
	return func() tea.Msg {
		sent, err := a.ctl.Deauth(ctx, p)
		return jobDoneMsg{kind: attack.KindDeauth, sent: sent, total: p.Count, err: err}
	}
}

func (a *App) startBeaconFlood() tea.Cmd {
	a.err = nil
	ctx, count, channel := a.ctx, a.cfg.Attack.BeaconCount, a.channel
	return func() tea.Msg {
		sent, err := a.ctl.BeaconFlood(ctx, count, channel)
		return jobDoneMsg{kind: attack.KindBeaconFlood, sent: sent, total: count, err: err}
	}
}

func (a *App) startDHCPFlood() tea.Cmd {
	a.err = nil
	ctx, count := a.ctx, a.cfg.Attack.DHCPCount
	return func() tea.Msg {
		sent, err := a.ctl.DHCPFlood(ctx, "", count)
		return jobDoneMsg{kind: attack.KindDHCPFlood, sent: sent, total: count, err: err}
	}
}

// startRogueAP clones the selected network's name, or uses the configured
// SSID when nothing is selected. Without a picked channel one is chosen
// automatically.
func (a *App) startRogueAP() tea.Cmd {
	ssid := a.cfg.AP.SSID
	if len(a.networks) > 0 && a.networks[a.cursor].ESSID != "" {
		ssid = a.networks[a.cursor].ESSID
	}
	if !a.exclusive("rogue AP") {
		return nil
	}
	ctx, channel := a.ctx, a.channel
	return func() tea.Msg {
		ap, err := a.ctl.StartRogueAP(ctx, ssid, channel)
		return apStartedMsg{ap: ap, err: err}
	}
}

// updateStep folds a status update into the step of the same name, or opens
// a new step once the previous one finished.
func (a *App) updateStep(s attack.StatusUpdate) {
	for i := len(a.steps) - 1; i >= 0; i-- {
		st := &a.steps[i]
		if st.name != s.Attack || st.done {
			continue
		}
		st.status = s.Message
		st.done = s.Done
		st.success = s.Success
		st.progress = s.Progress
		return
	}
	a.steps = append(a.steps, step{
		name:     s.Attack,
		status:   s.Message,
		done:     s.Done,
		success:  s.Success,
		progress: s.Progress,
	})
	if len(a.steps) > maxSteps {
		a.steps = a.steps[len(a.steps)-maxSteps:]
	}
}

func (a *App) waitStatus() tea.Cmd {
	if a.status == nil {
		return nil
	}
	ch := a.status
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return statusMsg(s)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Rendering

func (a *App) renderNetworksView() string {
	var sb strings.Builder
	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")

	if len(a.networks) == 0 {
		hint := "  No networks yet. Press [m] for monitor mode, then [s] to scan."
		if a.busy == "scan" {
			hint = fmt.Sprintf("  Scanning for %s...", a.cfg.Scan.Duration)
		}
		sb.WriteString("\n" + dimStyle.Render(hint) + "\n")
	} else {
		sb.WriteString(a.renderNetworkTable())
	}

	sb.WriteString(a.renderError())
	sb.WriteString("\n")
	sb.WriteString(renderKeys([]keyHelp{
		{"m", "Monitor"},
		{"s", "Scan"},
		{"c", "Channel"},
		{"d", "Deauth"},
		{"b", "Beacons"},
		{"h", "DHCP"},
		{"a", "Rogue AP"},
		{"Tab", "Activity"},
		{"?", "Help"},
		{"q", "Quit"},
	}))
	return sb.String()
}

func (a *App) renderHeader() string {
	elapsed := a.elapsed.Round(time.Second)
	sm := a.ctl.Machine()

	title := titleStyle.Render("gunwifi " + a.version)
	ch := "-"
	if a.channel > 0 {
		ch = fmt.Sprint(a.channel)
	}
	info := fmt.Sprintf(" %s | Ch: %s | Networks: %d | Jobs: %d | %s",
		sm.ActiveDevice(), ch, len(a.networks), len(a.jobs), elapsed)
	if a.ap.PID != 0 {
		info += fmt.Sprintf(" | AP: %s", a.ap.SSID)
	}
	if a.busy != "" {
		info += " | " + a.busy + "..."
	}
	status := StateBadge(sm.State()) + statusBarStyle.Render(info)

	gap := ""
	if a.width > 0 {
		if n := a.width - len("gunwifi "+a.version) - len(info) - 16; n > 0 {
			gap = strings.Repeat(" ", n)
		}
	}
	return borderStyle.Render(title + gap + status)
}

func (a *App) renderNetworkTable() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf(
		"%-4s %-24s %-19s %3s %-6s %5s %s",
		"#", "ESSID", "BSSID", "CH", "ENC", "PWR", "SIG",
	)))
	sb.WriteString("\n")

	for i, n := range a.networks {
		essid := n.ESSID
		if len(essid) > 22 {
			essid = essid[:22] + ".."
		}
		line := fmt.Sprintf("%-4d %-24s %-19s %3d %-6s %5d %s",
			i+1, essid, n.BSSID, n.Channel, EncryptionColor(n.Encryption), n.Power, SignalBar(n.Power))
		if i == a.cursor {
			line = selectedRowStyle.Render("> " + line)
		} else {
			line = normalRowStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (a *App) renderActivityView() string {
	var sb strings.Builder
	sb.WriteString(a.renderHeader() + "\n\n")

	sb.WriteString(infoStyle.Render("  Running jobs:") + "\n")
	if len(a.jobs) == 0 {
		sb.WriteString(dimStyle.Render("  none") + "\n")
	}
	for _, j := range a.jobs {
		sb.WriteString(fmt.Sprintf("  %s %-13s %-10s %d/%d\n",
			progressStyle.Render("[>]"), j.Kind, j.Device, j.Sent, j.Count))
	}

	sb.WriteString("\n" + infoStyle.Render("  Activity:") + "\n")
	for _, st := range a.steps {
		icon := waitingStyle.Render("[ ]")
		status := waitingStyle.Render(st.status)

		switch {
		case st.done && st.success:
			icon = successStyle.Render("[+]")
			status = successStyle.Render(st.status)
		case st.done:
			icon = failStyle.Render("[-]")
			status = failStyle.Render(st.status)
		case st.progress > 0:
			icon = progressStyle.Render("[>]")
			status = progressStyle.Render(fmt.Sprintf("%s (%.0f%%)", st.status, st.progress*100))
		}
		sb.WriteString(fmt.Sprintf("  %s %s ... %s\n", icon, st.name, status))
	}

	sb.WriteString(a.renderError())
	sb.WriteString("\n")
	sb.WriteString(renderKeys([]keyHelp{
		{"x", "Cancel jobs"},
		{"Tab", "Networks"},
		{"q", "Quit"},
	}))
	return sb.String()
}

func (a *App) renderHelpView() string {
	var sb strings.Builder
	sb.WriteString(a.renderHeader() + "\n\n")
	sb.WriteString(bannerStyle.Render("  Keyboard Shortcuts") + "\n\n")

	help := []keyHelp{
		{"j/k or Up/Down", "Navigate networks"},
		{"m", "Toggle monitor mode"},
		{"s", "Scan for networks"},
		{"c", "Pick least congested channel"},
		{"d or Enter", "Deauth selected network"},
		{"b", "Beacon flood on the picked channel"},
		{"h", "DHCP flood on the default route interface"},
		{"a", "Rogue AP cloning the selected network"},
		{"x", "Cancel running jobs"},
		{"Tab", "Toggle activity view"},
		{"?", "Toggle help"},
		{"Esc", "Go back"},
		{"q / Ctrl+C", "Quit (restores the interface)"},
	}
	for _, h := range help {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-20s", h.key)),
			helpStyle.Render(h.desc),
		))
	}

	sb.WriteString("\n")
	sb.WriteString(renderKeys([]keyHelp{{"Esc", "Back"}}))
	return sb.String()
}

func (a *App) renderError() string {
	if a.err == nil {
		return ""
	}
	return "\n" + failStyle.Render(fmt.Sprintf("  Error: %v", a.err)) + "\n"
}

type keyHelp struct{ key, desc string }

func renderKeys(keys []keyHelp) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, keyStyle.Render("["+k.key+"]")+" "+helpStyle.Render(k.desc))
	}
	return borderStyle.Render("  " + strings.Join(parts, "  "))
}

// Run starts the Bubble Tea program.
func Run(app *App) error {
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
