package jobqueue_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizzlechizzle/archive-core/internal/jobqueue"
)

func newQueue(t *testing.T) *jobqueue.Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.db")
	q, err := jobqueue.Open(path, jobqueue.Options{MaxAttempts: 3, StalledAfter: time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestEnqueueClaimFIFO(t *testing.T) {
	q := newQueue(t)

	id1, err := q.Enqueue(jobqueue.QueueThumbnail, map[string]string{"hash": "aaa"})
	require.NoError(t, err)
	id2, err := q.Enqueue(jobqueue.QueueThumbnail, map[string]string{"hash": "bbb"})
	require.NoError(t, err)
	assert.Less(t, id1, id2)

	job, ok, err := q.Claim(jobqueue.QueueThumbnail, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id1, job.ID)
	assert.Equal(t, jobqueue.StateProcessing, job.State)

	job2, ok, err := q.Claim(jobqueue.QueueThumbnail, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id2, job2.ID)
}

func TestClaimReturnsFalseWhenEmpty(t *testing.T) {
	q := newQueue(t)
	_, ok, err := q.Claim(jobqueue.QueueMetadata, "worker-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// claimAfterBackoff polls Claim until it hands out a job or errors, for
// up to 10s: a failed job is not claimable again until its jittered
// retry backoff (at most 2s after the first failure, 4s after the second)
// has elapsed.
func claimAfterBackoff(q *jobqueue.Queue, queue string) (jobqueue.Job, bool, error) {
	deadline := time.Now().Add(10 * time.Second)
	for {
		job, ok, err := q.Claim(queue, "worker-1")
		if err != nil || ok || time.Now().After(deadline) {
			return job, ok, err
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestFailRetriesThenDeadLetters(t *testing.T) {
	q := newQueue(t)
	id, err := q.Enqueue(jobqueue.QueueProxy, map[string]string{"hash": "ccc"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		job, ok, err := claimAfterBackoff(q, jobqueue.QueueProxy)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, id, job.ID)
		require.NoError(t, q.Fail(jobqueue.QueueProxy, job.ID, errors.New("transcode failed")))
	}

	// Third and final attempt exhausts MaxAttempts=3.
	job, ok, err := claimAfterBackoff(q, jobqueue.QueueProxy)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, q.Fail(jobqueue.QueueProxy, job.ID, errors.New("transcode failed")))

	_, ok, err = q.Claim(jobqueue.QueueProxy, "worker-1")
	require.NoError(t, err)
	assert.False(t, ok, "job should be dead-lettered, not pending")

	entries, err := q.DeadLetter(jobqueue.QueueProxy)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].OriginalJobID)
	assert.False(t, entries[0].Acknowledged)
}

func TestCompleteThenStatus(t *testing.T) {
	q := newQueue(t)
	id, err := q.Enqueue(jobqueue.QueueThumbnail, map[string]string{"hash": "ddd"})
	require.NoError(t, err)
	job, ok, err := q.Claim(jobqueue.QueueThumbnail, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, job.ID)
	require.NoError(t, q.Complete(jobqueue.QueueThumbnail, job.ID))

	st, err := q.Status(jobqueue.QueueThumbnail)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Completed)
	assert.Equal(t, 0, st.Pending)
}

func TestSweepStalledReturnsJobToPending(t *testing.T) {
	q := newQueue(t)
	id, err := q.Enqueue(jobqueue.QueueMetadata, map[string]string{"hash": "eee"})
	require.NoError(t, err)
	_, ok, err := q.Claim(jobqueue.QueueMetadata, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(2 * time.Millisecond)
	swept, err := q.SweepStalled(jobqueue.QueueMetadata)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	job, ok, err := q.Claim(jobqueue.QueueMetadata, "worker-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, 1, job.Attempts)
}

func TestRetryDeadLetterReenqueues(t *testing.T) {
	q := newQueue(t)
	id, err := q.Enqueue(jobqueue.QueueProxy, map[string]string{"hash": "fff"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		job, ok, err := claimAfterBackoff(q, jobqueue.QueueProxy)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, id, job.ID)
		require.NoError(t, q.Fail(jobqueue.QueueProxy, job.ID, errors.New("fail")))
	}
	entries, err := q.DeadLetter(jobqueue.QueueProxy)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	newID, err := q.RetryDeadLetter(entries[0].ID)
	require.NoError(t, err)
	assert.NotZero(t, newID)

	job, ok, err := q.Claim(jobqueue.QueueProxy, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newID, job.ID)
	assert.Equal(t, 0, job.Attempts)

	entries, err = q.DeadLetter(jobqueue.QueueProxy)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCancelRequestFlag(t *testing.T) {
	q := newQueue(t)
	id, err := q.Enqueue(jobqueue.QueueProxy, map[string]string{"hash": "ggg"})
	require.NoError(t, err)
	require.NoError(t, q.CancelRequest(jobqueue.QueueProxy, id))

	job, ok, err := q.Claim(jobqueue.QueueProxy, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, job.CancelRequest)

	requested, err := q.CancelRequested(jobqueue.QueueProxy, id)
	require.NoError(t, err)
	assert.True(t, requested)
}

func TestWorkerPoolProcessesJobs(t *testing.T) {
	q := newQueue(t)
	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(jobqueue.QueueThumbnail, map[string]int{"n": i})
		require.NoError(t, err)
	}

	var processed int64
	ctx, cancel := context.WithCancel(context.Background())
	pool := jobqueue.NewPool(ctx, q, jobqueue.QueueThumbnail, 2, "test-worker", func(_ context.Context, _ jobqueue.Job) error {
		atomic.AddInt64(&processed, 1)
		return nil
	}, nil)

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&processed) == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()

	st, err := q.Status(jobqueue.QueueThumbnail)
	require.NoError(t, err)
	assert.Equal(t, 5, st.Completed)
}
