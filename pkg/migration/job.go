package migration

import (
	"context"
)

// Job runs a migration off the caller's thread and exposes the three
// observable outcomes: success with a result, failure with an error, and a
// completion notification. Hosts with a responsiveness thread submit a job
// and observe completion via callback or Wait; they never block on the
// pipeline itself.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}

	result *LoadResult
	err    error
}

// Callbacks are invoked from the job's goroutine when it finishes. Any of
// them may be nil. OnDone fires after OnSuccess or OnError.
type Callbacks struct {
	OnSuccess func(*LoadResult)
	OnError   func(error)
	OnDone    func()
}

// Submit starts the migrator in the background and returns immediately
func Submit(ctx context.Context, m *Migrator, callbacks Callbacks) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(job.done)
		defer cancel()

		job.result, job.err = m.Run(jobCtx)

		if job.err != nil {
			if callbacks.OnError != nil {
				callbacks.OnError(job.err)
			}
		} else if callbacks.OnSuccess != nil {
			callbacks.OnSuccess(job.result)
		}
		if callbacks.OnDone != nil {
			callbacks.OnDone()
		}
	}()

	return job
}

// Cancel requests cancellation of the running job
func (j *Job) Cancel() {
	j.cancel()
}

// Done returns a channel closed when the job finishes
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes and returns its outcome
func (j *Job) Wait() (*LoadResult, error) {
	<-j.done
	return j.result, j.err
}
