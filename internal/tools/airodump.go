package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// AirodumpNG wraps airodump-ng for network scanning.
type AirodumpNG struct {
	run Runner
}

func NewAirodumpNG(run Runner) *AirodumpNG {
	if run == nil {
		run = ExecRunner{}
	}
	return &AirodumpNG{run: run}
}

func (a *AirodumpNG) Available() bool {
	_, err := a.run.LookPath("airodump-ng")
	return err == nil
}

// CaptureSession holds the state of an airodump-ng capture.
type CaptureSession struct {
	proc    Proc
	prefix  string
	tempDir string
}

// StartScan starts a general scan (all channels) writing CSV once a second.
func (a *AirodumpNG) StartScan(ctx context.Context, iface string) (*CaptureSession, error) {
	tempDir, err := os.MkdirTemp("", "gunwifi-scan-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	prefix := filepath.Join(tempDir, "scan")
	args := []string{
		"--write", prefix,
		"--write-interval", "1",
		"--output-format", "csv",
		iface,
	}

	proc, err := a.run.Start(ctx, nil, "airodump-ng", args...)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("start airodump scan: %w", err)
	}

	return &CaptureSession{
		proc:    proc,
		prefix:  prefix,
		tempDir: tempDir,
	}, nil
}

// Prefix is the --write prefix handed to airodump-ng.
func (cs *CaptureSession) Prefix() string {
	return cs.prefix
}

// CSVFile returns the path to the .csv file.
func (cs *CaptureSession) CSVFile() string {
	return cs.prefix + "-01.csv"
}

// Exited is closed if airodump-ng terminates on its own.
func (cs *CaptureSession) Exited() <-chan struct{} {
	return cs.proc.Done()
}

// Stop terminates the capture process.
func (cs *CaptureSession) Stop() {
	if cs.proc != nil {
		_ = cs.proc.Stop()
	}
}

// Cleanup removes temporary files.
func (cs *CaptureSession) Cleanup() {
	os.RemoveAll(cs.tempDir)
}
