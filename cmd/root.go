package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/gunwifi/gunwifi/internal/config"
	"github.com/gunwifi/gunwifi/internal/tools"
	"github.com/gunwifi/gunwifi/ui"
)

const banner = `
   __ _ _  _ _ _ __ __ _(_)/ _(_)
  / _' | || | ' \\ V  V / |  _| |
  \__, |\_,_|_||_\_/\_/|_|_| |_|
  |___/
`

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath  string
	iface       string
	verbose     int
	metricsAddr string
	logPath     string

	cfg     *config.Config
	log     *slog.Logger
	logFile *os.File
}

func Execute(version string) error {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "gunwifi",
		Short: "WiFi interface control and frame injection toolkit",
		Long:  banner + "\n  gunwifi v" + version + " - WiFi testing toolkit\n",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			g.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return cmd.Help()
			}
			return runTUI(cmd.Context(), g, version)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := rootCmd.PersistentFlags()
	f.StringVarP(&g.configPath, "config", "c", "", "Path to a TOML config file")
	f.StringVarP(&g.iface, "interface", "i", "", "Wireless interface to use")
	f.IntVarP(&g.verbose, "verbose", "v", 0, "Verbosity level (0-2)")
	f.StringVar(&g.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&g.logPath, "log-file", "", "Append log records (info and above) to this file")

	rootCmd.AddCommand(
		interfacesCmd(g),
		monitorCmd(g),
		scanCmd(g),
		channelCmd(g),
		deauthCmd(g),
		beaconFloodCmd(g),
		dhcpFloodCmd(g),
		rogueAPCmd(g),
		stopCmd(g),
		depsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// load reads the config file, then lets explicitly set flags override it.
func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Interface = g.iface
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose = g.verbose
	}
	if flags.Changed("metrics-addr") {
		cfg.Output.MetricsAddr = g.metricsAddr
	}
	if flags.Changed("log-file") {
		cfg.Output.LogFile = g.logPath
	}

	g.close()
	if cfg.Output.LogFile != "" {
		if g.logFile, err = openLogFile(cfg.Output.LogFile); err != nil {
			return err
		}
	}

	g.cfg = cfg
	g.log = teeLogger(os.Stderr, g.fileSink(), cfg.Output.Verbose)
	slog.SetDefault(g.log)

	if cfg.Output.MetricsAddr != "" {
		serveMetrics(cmd.Context(), cfg.Output.MetricsAddr, g.log)
	}
	return nil
}

// fileSink returns the open log file, or nil without the interface wrapping
// a nil pointer.
func (g *globals) fileSink() io.Writer {
	if g.logFile == nil {
		return nil
	}
	return g.logFile
}

func (g *globals) close() {
	if g.logFile != nil {
		_ = g.logFile.Close()
		g.logFile = nil
	}
}

func requireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("gunwifi must be run as root (try: sudo gunwifi)")
	}
	return nil
}

func runTUI(ctx context.Context, g *globals, version string) error {
	if err := requireRoot(); err != nil {
		return err
	}
	// The TUI owns the terminal; keep log lines out of it.
	log := g.log
	if g.cfg.Output.Verbose == 0 {
		log = teeLogger(io.Discard, g.fileSink(), 0)
	}
	sess, err := newSession(ctx, g.cfg, log, true)
	if err != nil {
		return err
	}
	defer sess.teardown()

	app := ui.NewApp(ctx, g.cfg, sess.orch, sess.status, version)
	return ui.Run(app)
}

// depsCmd shows dependency status.
func depsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check tool dependencies",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(banner)
			fmt.Println("\n  Dependency Check:")
			deps := tools.NewDependencyChecker()
			fmt.Print(tools.FormatStatus(deps.CheckAll()))
		},
	}
}
