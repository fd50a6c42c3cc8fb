package jobqueue

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler processes one job's payload. Returning an error causes Fail to
// be called (retry or dead-letter); returning nil calls Complete.
type Handler func(ctx context.Context, job Job) error

// pollInterval is how often an idle worker re-checks its queue for work
// (spec.md §5 Suspension points: "job workers yield between jobs").
const pollInterval = 500 * time.Millisecond

// DefaultConcurrency returns the teacher-default worker count per queue
// (spec.md §4.6: thumbnail=N_cpu, metadata=N_cpu, proxy=1).
func DefaultConcurrency(queue string) int {
	if queue == QueueProxy {
		return 1
	}
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// Pool runs a fixed number of worker goroutines against one queue,
// claiming, heartbeating, and dispatching jobs to handler until ctx is
// cancelled.
type Pool struct {
	q       *Queue
	queue   string
	handler Handler
	log     *logrus.Entry

	wg sync.WaitGroup
}

// NewPool starts a worker pool of size concurrency for queue, invoking
// handler for each claimed job until ctx is cancelled. Pass concurrency<=0
// to use DefaultConcurrency.
func NewPool(ctx context.Context, q *Queue, queue string, concurrency int, workerID string, handler Handler, log *logrus.Entry) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency(queue)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if workerID == "" {
		workerID = "worker"
	}
	p := &Pool{q: q, queue: queue, handler: handler, log: log.WithField("queue", queue)}
	p.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go p.run(ctx, i, workerID)
	}
	return p
}

// Wait blocks until every worker goroutine has exited.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, slot int, workerID string) {
	defer p.wg.Done()
	log := p.log.WithField("slot", slot)

	for {
		if ctx.Err() != nil {
			return
		}
		job, ok, err := p.q.Claim(p.queue, workerID)
		if err != nil {
			log.WithError(err).Error("claim failed")
			if waitForContext(ctx, pollInterval) != nil {
				return
			}
			continue
		}
		if !ok {
			if waitForContext(ctx, pollInterval) != nil {
				return
			}
			continue
		}

		jobLog := log.WithField("job_id", job.ID)
		heartbeatDone := make(chan struct{})
		go p.heartbeatLoop(job.ID, heartbeatDone)

		hErr := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					jobLog.WithField("panic", r).Error("job handler panicked")
					err = errPanic
				}
			}()
			return p.handler(ctx, job)
		}()
		close(heartbeatDone)

		if hErr != nil {
			jobLog.WithError(hErr).Warn("job failed")
			if err := p.q.Fail(p.queue, job.ID, hErr); err != nil {
				jobLog.WithError(err).Error("failed to record job failure")
			}
			continue
		}
		if err := p.q.Complete(p.queue, job.ID); err != nil {
			jobLog.WithError(err).Error("failed to mark job completed")
		}
	}
}

func (p *Pool) heartbeatLoop(jobID uint64, done <-chan struct{}) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			_ = p.q.Heartbeat(p.queue, jobID)
		}
	}
}

var errPanic = panicError{}

type panicError struct{}

func (panicError) Error() string { return "job handler panicked" }
