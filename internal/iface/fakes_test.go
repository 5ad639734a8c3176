package iface

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gunwifi/gunwifi/internal/tools"
)

type fakeMode struct {
	mu        sync.Mutex
	startOut  string
	startErr  error
	stopErr   error
	killErr   error
	starts    int
	stops     []string
	checkKill int

	startDelay time.Duration
}

func (f *fakeMode) CheckKill(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkKill++
	return f.killErr
}

func (f *fakeMode) Start(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.starts++
	delay := f.startDelay
	f.mu.Unlock()
	time.Sleep(delay)
	return f.startOut, f.startErr
}

func (f *fakeMode) Stop(_ context.Context, dev string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, dev)
	return f.stopErr
}

type fakeServices struct {
	running  map[string]bool
	stopErr  error
	startErr error
	starts   int
}

func newFakeServices(names ...string) *fakeServices {
	fs := &fakeServices{running: make(map[string]bool)}
	for _, n := range names {
		fs.running[n] = true
	}
	return fs
}

func (f *fakeServices) Stop(_ context.Context, svc string) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.running[svc] = false
	return nil
}

func (f *fakeServices) Start(_ context.Context, svc string) error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.running[svc] = true
	return nil
}

// scriptRunner answers Run calls by exact command line.
type scriptRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	fail    map[string]bool
	calls   []string
}

func (s *scriptRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, line)
	if s.fail[line] {
		return "", errors.New("exit status 1")
	}
	return s.outputs[line], nil
}

func (s *scriptRunner) Start(context.Context, io.Writer, string, ...string) (tools.Proc, error) {
	return nil, errors.New("not supported")
}

func (s *scriptRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}
