package archive

import (
	"time"

	"github.com/bizzlechizzle/archive-core/internal/jobqueue"
)

var allQueues = []string{jobqueue.QueueThumbnail, jobqueue.QueueMetadata, jobqueue.QueueProxy}

// JobsStatus reports per-queue counts across every derivative queue
// (spec.md §6.4 Jobs: status).
func (h *Handle) JobsStatus() (map[string]jobqueue.Status, error) {
	out := make(map[string]jobqueue.Status, len(allQueues))
	for _, q := range allQueues {
		st, err := h.Jobs.Status(q)
		if err != nil {
			return nil, err
		}
		out[q] = st
	}
	return out, nil
}

// DeadLetter lists dead-lettered jobs. An empty queue name lists across
// all queues (spec.md §6.4 Jobs: dead_letter).
func (h *Handle) DeadLetter(queue string) ([]jobqueue.DeadLetterEntry, error) {
	if queue != "" {
		return h.Jobs.DeadLetter(queue)
	}
	var all []jobqueue.DeadLetterEntry
	for _, q := range allQueues {
		entries, err := h.Jobs.DeadLetter(q)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// RetryJob re-enqueues a dead-lettered job, resetting its attempt count
// (spec.md §6.4 Jobs: retry).
func (h *Handle) RetryJob(deadLetterID uint64) (uint64, error) {
	return h.Jobs.RetryDeadLetter(deadLetterID)
}

// AcknowledgeJobs marks dead-letter entries reviewed without retrying
// them (spec.md §6.4 Jobs: acknowledge).
func (h *Handle) AcknowledgeJobs(ids []uint64) error {
	return h.Jobs.AcknowledgeDeadLetter(ids)
}

// ClearCompletedJobs purges completed job records older than olderThan
// across every queue, for routine housekeeping (spec.md §6.4 Jobs:
// clear_completed). A zero olderThan purges all completed jobs.
func (h *Handle) ClearCompletedJobs(olderThan time.Duration) (int, error) {
	total := 0
	for _, q := range allQueues {
		n, err := h.Jobs.PurgeCompleted(q, olderThan)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
