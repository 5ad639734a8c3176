package attack

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind names an injection attack.
type Kind string

const (
	KindDeauth      Kind = "deauth"
	KindBeaconFlood Kind = "beacon-flood"
	KindDHCPFlood   Kind = "dhcp-flood"
)

// FrameSource builds the i-th frame of a job.
type FrameSource interface {
	Frame(i int) ([]byte, error)
}

// InjectionJob is the execution context of one running attack.
type InjectionJob struct {
	ID      uuid.UUID
	Kind    Kind
	Device  string
	Count   int
	Frames  FrameSource
	Started time.Time

	sent       atomic.Int64
	cancelled  atomic.Bool
	cancelCh   chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
}

func NewInjectionJob(kind Kind, device string, count int, frames FrameSource) *InjectionJob {
	if count < 0 {
		count = 0
	}
	return &InjectionJob{
		ID:       uuid.New(),
		Kind:     kind,
		Device:   device,
		Count:    count,
		Frames:   frames,
		Started:  time.Now(),
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Sent is the number of frames transmitted so far.
func (j *InjectionJob) Sent() int {
	return int(j.sent.Load())
}

// Cancel asks the loop to stop before its next frame.
func (j *InjectionJob) Cancel() {
	j.cancelOnce.Do(func() {
		j.cancelled.Store(true)
		close(j.cancelCh)
	})
}

func (j *InjectionJob) Cancelled() bool {
	return j.cancelled.Load()
}

// Done is closed when the injection loop has exited.
func (j *InjectionJob) Done() <-chan struct{} {
	return j.done
}

func (j *InjectionJob) finish() {
	j.doneOnce.Do(func() { close(j.done) })
}

// JobInfo is a snapshot of a job for display.
type JobInfo struct {
	ID      string
	Kind    Kind
	Device  string
	Sent    int
	Count   int
	Started time.Time
}

func (j *InjectionJob) Info() JobInfo {
	return JobInfo{
		ID:      j.ID.String(),
		Kind:    j.Kind,
		Device:  j.Device,
		Sent:    j.Sent(),
		Count:   j.Count,
		Started: j.Started,
	}
}
