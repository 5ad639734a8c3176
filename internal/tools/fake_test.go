package tools

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
)

type call struct {
	name string
	args []string
}

func (c call) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

type fakeProc struct {
	done    chan struct{}
	stopped bool
	once    sync.Once
}

func newFakeProc() *fakeProc { return &fakeProc{done: make(chan struct{})} }

func (p *fakeProc) Pid() int { return 4242 }

func (p *fakeProc) Stop() error {
	p.once.Do(func() {
		p.stopped = true
		close(p.done)
	})
	return nil
}

func (p *fakeProc) Done() <-chan struct{} { return p.done }

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	outputs map[string]string
	errs    map[string]error
	started []*fakeProc
	missing map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	c := call{name: name, args: args}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.outputs[c.String()], f.errs[c.String()]
}

func (f *fakeRunner) Start(_ context.Context, _ io.Writer, name string, args ...string) (Proc, error) {
	c := call{name: name, args: args}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if err := f.errs[c.String()]; err != nil {
		return nil, err
	}
	p := newFakeProc()
	f.started = append(f.started, p)
	return p, nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", exec.ErrNotFound
	}
	return "/usr/sbin/" + name, nil
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}
