package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gunwifi/gunwifi/pkg/wifi"
)

type Config struct {
	Interface string `toml:"interface"`

	Scan    ScanConfig    `toml:"scan"`
	Attack  AttackConfig  `toml:"attack"`
	Monitor MonitorConfig `toml:"monitor"`
	AP      APConfig      `toml:"ap"`
	Output  OutputConfig  `toml:"output"`
}

type ScanConfig struct {
	Duration time.Duration `toml:"duration"`

	// SurveyDuration bounds the passive beacon survey used for channel selection.
	SurveyDuration time.Duration `toml:"survey_duration"`

	// Band is the set of channels the beacon survey hops: 2.4ghz, 5ghz or both.
	Band string `toml:"band"`
}

type AttackConfig struct {
	Interval     time.Duration `toml:"interval"`
	DeauthCount  int           `toml:"deauth_count"`
	BeaconCount  int           `toml:"beacon_count"`
	DHCPCount    int           `toml:"dhcp_count"`
	DeauthReason int           `toml:"deauth_reason"`
}

type MonitorConfig struct {
	ConflictingServices []string `toml:"conflicting_services"`
}

type APConfig struct {
	// SSID is used when no network is selected in the TUI.
	SSID       string `toml:"ssid"`
	Passphrase string `toml:"passphrase"`
	ConfigDir  string `toml:"config_dir"`
}

type OutputConfig struct {
	Verbose     int    `toml:"verbose"`
	MetricsAddr string `toml:"metrics_addr"`
	LogFile     string `toml:"log_file"`
}

func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Duration:       30 * time.Second,
			SurveyDuration: 5 * time.Second,
			Band:           "2.4ghz",
		},
		Attack: AttackConfig{
			Interval:     100 * time.Millisecond,
			DeauthCount:  50,
			BeaconCount:  50,
			DHCPCount:    100,
			DeauthReason: 7,
		},
		Monitor: MonitorConfig{
			ConflictingServices: []string{"NetworkManager"},
		},
		AP: APConfig{
			SSID: "FreeWiFi",
		},
		Output: OutputConfig{
			Verbose: 0,
		},
	}
}

// Load returns the defaults overlaid with the TOML file at path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parsing %s: unknown keys %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no operation could run with.
func (c *Config) Validate() error {
	switch {
	case c.Scan.Duration <= 0:
		return fmt.Errorf("scan.duration must be positive")
	case c.Scan.Band != "2.4ghz" && c.Scan.Band != "5ghz" && c.Scan.Band != "both":
		return fmt.Errorf("scan.band %q must be 2.4ghz, 5ghz or both", c.Scan.Band)
	case c.Attack.Interval < 0:
		return fmt.Errorf("attack.interval must not be negative")
	case c.Attack.DeauthCount < 0 || c.Attack.BeaconCount < 0 || c.Attack.DHCPCount < 0:
		return fmt.Errorf("attack counts must not be negative")
	case c.Attack.DeauthReason < 1 || c.Attack.DeauthReason > 0xffff:
		return fmt.Errorf("attack.deauth_reason %d out of range", c.Attack.DeauthReason)
	case len(c.AP.SSID) > 32:
		return fmt.Errorf("ap.ssid longer than 32 bytes")
	case c.AP.Passphrase != "" && (len(c.AP.Passphrase) < 8 || len(c.AP.Passphrase) > 63):
		return fmt.Errorf("ap.passphrase must be 8-63 characters")
	}
	return nil
}

// ValidChannel reports a channel error for the given value, with 0 meaning auto.
func ValidChannel(ch int) error {
	if ch == 0 || wifi.ValidChannel(ch) {
		return nil
	}
	return fmt.Errorf("channel %d outside %d-%d", ch, wifi.MinChannel, wifi.MaxChannel)
}
