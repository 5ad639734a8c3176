package attack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gunwifi/gunwifi/internal/telemetry"
)

// DefaultInterval paces frames so the local transmit queue keeps up and
// progress stays observable.
const DefaultInterval = 100 * time.Millisecond

// progressEvery is the notification cadence, in frames.
const progressEvery = 10

// ErrInjectionFailed matches every *InjectionError.
var ErrInjectionFailed = errors.New("injection failed")

// InjectionError reports the frame that could not be built or sent.
type InjectionError struct {
	Index int
	Cause error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("injection failed at frame %d: %v", e.Index, e.Cause)
}

func (e *InjectionError) Unwrap() error { return e.Cause }

func (e *InjectionError) Is(target error) bool { return target == ErrInjectionFailed }

// Progress is emitted on frames 0, 10, 20, ... of a job.
type Progress struct {
	JobID string
	Kind  Kind
	Index int
	Sent  int
	Total int
}

// Engine runs injection jobs.
type Engine struct {
	Open     Opener
	Interval time.Duration
	Progress func(Progress)
	Logger   *slog.Logger
}

func NewEngine(open Opener, logger *slog.Logger) *Engine {
	if open == nil {
		open = OpenPcap
	}
	return &Engine{Open: open, Interval: DefaultInterval, Logger: logger}
}

// Run sends job.Count frames and returns how many went out. Cancelling the
// job or ctx stops the loop before the next frame and is not an error. A
// failed frame aborts the job with an *InjectionError; frames already sent
// stay counted.
func (e *Engine) Run(ctx context.Context, job *InjectionJob) (int, error) {
	defer job.finish()

	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("job", job.ID.String(), "type", string(job.Kind), "interface", job.Device)

	if job.Count == 0 || job.Cancelled() || ctx.Err() != nil {
		return 0, nil
	}

	open := e.Open
	if open == nil {
		open = OpenPcap
	}
	tx, err := open(job.Device)
	if err != nil {
		return 0, &InjectionError{Index: 0, Cause: err}
	}
	defer tx.Close()

	injected := telemetry.InjectionsTotal.WithLabelValues(job.Device, string(job.Kind))
	failed := telemetry.InjectionErrors.WithLabelValues(job.Device, string(job.Kind))

	log.Info("injection started", "count", job.Count)
	for i := 0; i < job.Count; i++ {
		if job.Cancelled() || ctx.Err() != nil {
			log.Info("injection cancelled", "sent", job.Sent())
			return job.Sent(), nil
		}

		frame, err := job.Frames.Frame(i)
		if err != nil {
			failed.Inc()
			return job.Sent(), &InjectionError{Index: i, Cause: err}
		}
		if err := tx.Transmit(frame); err != nil {
			failed.Inc()
			log.Warn("transmit failed", "index", i, "err", err)
			return job.Sent(), &InjectionError{Index: i, Cause: err}
		}
		job.sent.Add(1)
		injected.Inc()

		if i%progressEvery == 0 {
			log.Debug("injection progress", "sent", i+1, "total", job.Count)
			if e.Progress != nil {
				e.Progress(Progress{
					JobID: job.ID.String(),
					Kind:  job.Kind,
					Index: i,
					Sent:  i + 1,
					Total: job.Count,
				})
			}
		}

		if i < job.Count-1 && e.Interval > 0 {
			if !e.pace(ctx, job) {
				log.Info("injection cancelled", "sent", job.Sent())
				return job.Sent(), nil
			}
		}
	}

	log.Info("injection complete", "sent", job.Sent())
	return job.Sent(), nil
}

// pace sleeps one interval and reports false if the job was cancelled meanwhile.
func (e *Engine) pace(ctx context.Context, job *InjectionJob) bool {
	timer := time.NewTimer(e.Interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-job.cancelCh:
		return false
	case <-ctx.Done():
		return false
	}
}
