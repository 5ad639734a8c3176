package scan

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/gunwifi/gunwifi/pkg/wifi"
)

// Fixed column offsets in the airodump-ng access point table.
const (
	colBSSID      = 0
	colChannel    = 3
	colEncryption = 5
	colPower      = 8
	colESSID      = 13
	minFields     = 14
)

// stationHeader opens the client section of an airodump-ng CSV.
const stationHeader = "Station MAC"

// MalformedRowError describes a skipped scan row. Parse logs these and never
// returns them.
type MalformedRowError struct {
	Row    int
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("scan row %d: %s", e.Row, e.Reason)
}

// Parser turns airodump-ng CSV into network records.
type Parser struct {
	Logger *slog.Logger
}

// Parse is Parser{}.Parse.
func Parse(raw []byte) []wifi.NetworkRecord {
	return Parser{}.Parse(raw)
}

// Parse reads the access point table. The first row is a header; empty rows,
// rows with fewer than 14 fields, rows whose BSSID is not a MAC address or
// whose channel is not in 1-196, and rows with an empty ESSID are dropped. Input order is kept and repeated
// BSSIDs are not collapsed.
func (p Parser) Parse(raw []byte) []wifi.NetworkRecord {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	records, malformed := parseTable(string(raw))
	for _, err := range malformed {
		log.Debug("skipping scan row", "err", err)
	}
	return records
}

func parseTable(raw string) ([]wifi.NetworkRecord, []*MalformedRowError) {
	var (
		records   []wifi.NetworkRecord
		malformed []*MalformedRowError
	)

	for i, line := range splitLines(raw) {
		if i == 0 {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, ",")
		for j := range fields {
			fields[j] = strings.TrimSpace(fields[j])
		}
		if fields[0] == stationHeader {
			break
		}
		if len(fields) < minFields {
			malformed = append(malformed, &MalformedRowError{Row: i, Reason: fmt.Sprintf("%d fields", len(fields))})
			continue
		}

		essid := fields[colESSID]
		if essid == "" {
			continue
		}

		bssid, err := net.ParseMAC(fields[colBSSID])
		if err != nil || len(bssid) != 6 {
			malformed = append(malformed, &MalformedRowError{Row: i, Reason: fmt.Sprintf("bad BSSID %q", fields[colBSSID])})
			continue
		}

		channel, err := strconv.Atoi(fields[colChannel])
		if err != nil || !wifi.ValidChannel(channel) {
			malformed = append(malformed, &MalformedRowError{Row: i, Reason: fmt.Sprintf("bad channel %q", fields[colChannel])})
			continue
		}
		power, _ := strconv.Atoi(fields[colPower])
		label := fields[colEncryption]

		records = append(records, wifi.NetworkRecord{
			BSSID:           bssid,
			ESSID:           essid,
			Channel:         channel,
			Encryption:      wifi.ParseEncryption(label),
			EncryptionLabel: label,
			Power:           power,
		})
	}

	return records, malformed
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
