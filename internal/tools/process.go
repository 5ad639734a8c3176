package tools

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// stopGrace is how long Stop waits after SIGTERM before killing outright.
const stopGrace = 3 * time.Second

// Proc is a running background command.
type Proc interface {
	Pid() int
	Stop() error
	Done() <-chan struct{}
}

// Runner executes external commands. ExecRunner is the real implementation;
// tests substitute their own.
type Runner interface {
	// Run executes a command to completion and returns its trimmed combined output.
	Run(ctx context.Context, name string, args ...string) (string, error)
	// Start launches a long-running command whose output goes to out (nil discards it).
	Start(ctx context.Context, out io.Writer, name string, args ...string) (Proc, error)
	// LookPath resolves a binary on PATH.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return RunCapture(ctx, name, args...)
}

func (ExecRunner) Start(ctx context.Context, out io.Writer, name string, args ...string) (Proc, error) {
	return StartProcess(ctx, out, name, args...)
}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Process wraps an exec.Cmd with context-aware lifecycle management.
type Process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

// StartProcess launches a command with context cancellation support.
func StartProcess(ctx context.Context, out io.Writer, name string, args ...string) (*Process, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)

	// Use process groups so we can kill the entire tree
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p := &Process{
		cmd:    cmd,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// RunCapture executes a command and returns its combined output.
func RunCapture(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stop sends SIGTERM to the process group and kills it if it lingers.
// Safe to call more than once.
func (p *Process) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Running() && p.cmd.Process != nil {
		// Kill the entire process group
		if pgid, err := syscall.Getpgid(p.cmd.Process.Pid); err == nil {
			_ = syscall.Kill(-pgid, syscall.SIGTERM)
		}
		select {
		case <-p.done:
		case <-time.After(stopGrace):
			p.cancel()
			<-p.done
		}
	}
	p.cancel()
	return nil
}

// Pid returns the process ID.
func (p *Process) Pid() int {
	if p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}

// Running returns true if the process has not exited.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}
