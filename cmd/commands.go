package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gunwifi/gunwifi/internal/attack"
	"github.com/gunwifi/gunwifi/internal/config"
	"github.com/gunwifi/gunwifi/internal/iface"
	"github.com/gunwifi/gunwifi/internal/scan"
	"github.com/gunwifi/gunwifi/internal/tools"
)

var (
	okColor   = color.New(color.FgHiGreen).SprintFunc()
	warnColor = color.New(color.FgHiYellow).SprintFunc()
	headColor = color.New(color.Bold, color.FgCyan).SprintFunc()
)

// interfacesCmd lists wireless adapters.
func interfacesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "List wireless interfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := iface.NewInventory(tools.ExecRunner{}, g.log)
			ifaces := inv.ListWirelessInterfaces(cmd.Context())
			if len(ifaces) == 0 {
				fmt.Println(warnColor("  No wireless interfaces found."))
				return nil
			}
			fmt.Println(headColor(fmt.Sprintf("  %-14s %-6s %-12s %-18s %s", "NAME", "PHY", "DRIVER", "MAC", "MODE")))
			for _, wi := range ifaces {
				mode := "managed"
				if wi.Monitor {
					mode = okColor("monitor")
				}
				fmt.Printf("  %-14s %-6s %-12s %-18s %s\n", wi.Name, wi.PHY, wi.Driver, wi.MAC, mode)
			}
			return nil
		},
	}
}

// monitorCmd enables monitor mode and leaves it enabled; `stop` undoes it.
func monitorCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Put the wireless interface in monitor mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			sess, err := newSession(cmd.Context(), g.cfg, g.log, true)
			if err != nil {
				return err
			}
			dev, err := sess.ensureMonitor(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("  %s %s\n", okColor("[+]"), dev)
			return nil
		},
	}
}

func scanCmd(g *globals) *cobra.Command {
	var duration time.Duration
	c := &cobra.Command{
		Use:   "scan",
		Short: "List nearby networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("duration") {
				duration = g.cfg.Scan.Duration
			}
			return withSession(cmd.Context(), g, true, func(ctx context.Context, sess *session) error {
				if _, err := sess.ensureMonitor(ctx); err != nil {
					return err
				}
				fmt.Printf("  Scanning for %s...\n\n", duration)
				recs, err := sess.orch.Scan(ctx, duration)
				if err != nil {
					return err
				}
				fmt.Print(scan.FormatNetworkTable(recs))
				return nil
			})
		},
	}
	c.Flags().DurationVarP(&duration, "duration", "d", config.DefaultConfig().Scan.Duration, "Scan duration")
	return c
}

func channelCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "channel",
		Short: "Pick the least congested channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			sess, err := newSession(cmd.Context(), g.cfg, g.log, true)
			if err != nil {
				return err
			}
			ch := sess.orch.SelectChannel(cmd.Context())
			fmt.Printf("  Best channel: %s\n", okColor(ch))
			return nil
		},
	}
}

func deauthCmd(g *globals) *cobra.Command {
	var (
		bssid, client string
		count         int
		channel       int
	)
	c := &cobra.Command{
		Use:   "deauth",
		Short: "Send deauthentication frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			p, err := deauthParams(bssid, client, channel)
			if err != nil {
				return err
			}
			p.Count = count
			if !cmd.Flags().Changed("count") {
				p.Count = g.cfg.Attack.DeauthCount
			}
			return withSession(cmd.Context(), g, true, func(ctx context.Context, sess *session) error {
				if _, err := sess.ensureMonitor(ctx); err != nil {
					return err
				}
				done := sess.withProgress("deauth", p.Count)
				sent, err := sess.orch.Deauth(ctx, p)
				done(sent)
				return reportSent(sent, p.Count, err)
			})
		},
	}
	f := c.Flags()
	f.StringVarP(&bssid, "bssid", "b", "", "Access point BSSID (required)")
	f.StringVar(&client, "client", "", "Station to disconnect (default broadcast)")
	f.IntVarP(&count, "count", "n", config.DefaultConfig().Attack.DeauthCount, "Frames to send")
	f.IntVar(&channel, "channel", 0, "Tune to this channel first")
	_ = c.MarkFlagRequired("bssid")
	return c
}

// deauthParams validates the user-supplied addresses and channel.
func deauthParams(bssid, client string, channel int) (attack.DeauthParams, error) {
	var p attack.DeauthParams
	mac, err := net.ParseMAC(bssid)
	if err != nil || len(mac) != 6 {
		return p, fmt.Errorf("invalid BSSID %q", bssid)
	}
	p.BSSID = mac
	if client != "" {
		cmac, err := net.ParseMAC(client)
		if err != nil || len(cmac) != 6 {
			return p, fmt.Errorf("invalid client MAC %q", client)
		}
		p.Client = cmac
	}
	if err := config.ValidChannel(channel); err != nil {
		return p, err
	}
	p.Channel = channel
	return p, nil
}

func beaconFloodCmd(g *globals) *cobra.Command {
	var count, channel int
	c := &cobra.Command{
		Use:   "beacon-flood",
		Short: "Advertise random fake networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if err := config.ValidChannel(channel); err != nil {
				return err
			}
			if !cmd.Flags().Changed("count") {
				count = g.cfg.Attack.BeaconCount
			}
			return withSession(cmd.Context(), g, true, func(ctx context.Context, sess *session) error {
				if _, err := sess.ensureMonitor(ctx); err != nil {
					return err
				}
				done := sess.withProgress("beacons", count)
				sent, err := sess.orch.BeaconFlood(ctx, count, channel)
				done(sent)
				return reportSent(sent, count, err)
			})
		},
	}
	c.Flags().IntVarP(&count, "count", "n", config.DefaultConfig().Attack.BeaconCount, "Beacons to send")
	c.Flags().IntVar(&channel, "channel", 0, "Tune to and advertise this channel")
	return c
}

func dhcpFloodCmd(g *globals) *cobra.Command {
	var (
		device string
		count  int
	)
	c := &cobra.Command{
		Use:   "dhcp-flood",
		Short: "Send DHCPDISCOVERs from random clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("count") {
				count = g.cfg.Attack.DHCPCount
			}
			return withSession(cmd.Context(), g, false, func(ctx context.Context, sess *session) error {
				dev := device
				if dev == "" {
					dev = sess.inv.DefaultRouteInterface(ctx)
				}
				fmt.Printf("  Flooding DHCP on %s\n", color.CyanString(dev))
				done := sess.withProgress("discovers", count)
				sent, err := sess.orch.DHCPFlood(ctx, dev, count)
				done(sent)
				return reportSent(sent, count, err)
			})
		},
	}
	f := c.Flags()
	f.StringVarP(&device, "device", "d", "", "Interface to send on (default route interface)")
	f.IntVarP(&count, "count", "n", config.DefaultConfig().Attack.DHCPCount, "Discovers to send")
	return c
}

func rogueAPCmd(g *globals) *cobra.Command {
	var (
		ssid    string
		channel int
	)
	c := &cobra.Command{
		Use:   "rogue-ap",
		Short: "Run an access point until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if err := config.ValidChannel(channel); err != nil {
				return err
			}
			return withSession(cmd.Context(), g, true, func(ctx context.Context, sess *session) error {
				ap, err := sess.orch.StartRogueAP(ctx, ssid, channel)
				if err != nil {
					return err
				}
				fmt.Printf("  %s %q on %s channel %d (pid %d)\n", okColor("[+]"), ap.SSID, ap.Interface, ap.Channel, ap.PID)
				fmt.Println("  Press Ctrl+C to stop.")
				<-ctx.Done()
				return nil
			})
		},
	}
	f := c.Flags()
	f.StringVarP(&ssid, "ssid", "s", "", "Network name (required)")
	f.IntVar(&channel, "channel", 0, "Channel (default least congested)")
	_ = c.MarkFlagRequired("ssid")
	return c
}

// stopCmd restores an adapter left in monitor mode by an earlier run.
func stopCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Leave monitor mode, stop access points and restart network services",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			ctx := cmd.Context()
			run := tools.ExecRunner{}
			inv := iface.NewInventory(run, g.log)

			var errs []error
			if err := tools.NewHostapd(run, g.cfg.AP.ConfigDir).KillAll(ctx); err != nil {
				g.log.Debug("pkill hostapd", "err", err)
			}

			if wi, ok := monitorInterface(inv.ListWirelessInterfaces(ctx), g.cfg.Interface); ok {
				sm := iface.NewStateMachine(wi, tools.NewAirmonNG(run), tools.NewSystemctl(run), g.log)
				orch := attack.NewOrchestrator(attack.Deps{Machine: sm, Logger: g.log})
				orch.StopAll()
				if sm.State() == iface.StateMonitor {
					errs = append(errs, fmt.Errorf("%s is still in monitor mode", wi.Name))
				} else {
					fmt.Printf("  %s monitor mode disabled on %s\n", okColor("[+]"), wi.Name)
				}
			} else {
				fmt.Println("  No interface in monitor mode.")
			}

			svc := tools.NewSystemctl(run)
			for _, name := range g.cfg.Monitor.ConflictingServices {
				if err := svc.Start(ctx, name); err != nil {
					errs = append(errs, fmt.Errorf("start %s: %w", name, err))
					continue
				}
				fmt.Printf("  %s %s started\n", okColor("[+]"), name)
			}
			return errors.Join(errs...)
		},
	}
}

// monitorInterface finds the monitor device for preferred (or its "mon"
// sibling), or the first monitor device when preferred is empty.
func monitorInterface(ifaces []iface.WirelessInterface, preferred string) (iface.WirelessInterface, bool) {
	for _, wi := range ifaces {
		if !wi.Monitor {
			continue
		}
		if preferred == "" || wi.Name == preferred || wi.Name == preferred+"mon" {
			return wi, true
		}
	}
	return iface.WirelessInterface{}, false
}

// withSession builds a session, runs fn and always tears down.
func withSession(ctx context.Context, g *globals, wireless bool, fn func(context.Context, *session) error) error {
	sess, err := newSession(ctx, g.cfg, g.log, wireless)
	if err != nil {
		return err
	}
	defer sess.teardown()
	return fn(ctx, sess)
}

func reportSent(sent, total int, err error) error {
	if err != nil {
		return err
	}
	line := fmt.Sprintf("  Sent %d/%d frames", sent, total)
	if sent < total {
		fmt.Println(warnColor(line + " (interrupted)"))
		return nil
	}
	fmt.Println(okColor(line))
	return nil
}
