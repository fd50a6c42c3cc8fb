// Package jobqueue implements the archive's durable background job queue
// (spec.md §4.6, component C6): a per-queue FIFO backed by a bbolt
// database, at-least-once delivery via atomic pending->processing claims,
// exponential-backoff retry with full jitter, and dead-letter handling for
// jobs that exhaust their attempts.
//
// The bucket-per-queue layout, cursor-based claim scan, and JSON-encoded
// record values are grounded on the teacher's persistent cache storage
// (backend/cache/storage_persistent.go's tempBucket/getPendingUpload: a
// bbolt bucket scanned with a Cursor, each pending item flagged "started"
// inside the same Update transaction that reads it) and its gob-encoded
// hash records (backend/hasher/kv.go), generalized here to JSON so job
// payloads stay introspectable on disk for operator debugging.
package jobqueue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bizzlechizzle/archive-core/internal/errs"
)

// Queue names used by the derivative generator (spec.md §4.6).
const (
	QueueThumbnail = "thumbnail"
	QueueMetadata  = "metadata"
	QueueProxy     = "proxy"
)

// State is a Job's lifecycle state.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
)

// Job is one queued unit of background work (spec.md §3.1).
type Job struct {
	ID            uint64          `json:"id"`
	Queue         string          `json:"queue"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	State         State           `json:"state"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	ClaimedBy     string          `json:"claimed_by,omitempty"`
	ClaimedAt     time.Time       `json:"claimed_at,omitempty"`
	HeartbeatAt   time.Time       `json:"heartbeat_at,omitempty"`
	CancelRequest bool            `json:"cancel_requested"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DeadLetterEntry records a job that exhausted its retries (spec.md §3.1).
type DeadLetterEntry struct {
	ID            uint64    `json:"id"`
	OriginalJobID uint64    `json:"original_job_id"`
	Queue         string    `json:"queue"`
	Payload       json.RawMessage `json:"payload"`
	FailedAt      time.Time `json:"failed_at"`
	LastError     string    `json:"last_error"`
	Acknowledged  bool      `json:"acknowledged"`
}

// ProgressEvent is emitted as jobs make progress (spec.md §4.6 Events).
type ProgressEvent struct {
	Queue   string
	JobID   uint64
	Percent int
	Message string
}

// AssetReadyEvent is emitted once a derivative finishes (spec.md §4.6).
type AssetReadyEvent struct {
	Kind string // "thumb_sm" | "thumb_lg" | "preview" | "poster" | "proxy"
	Hash string
}

var (
	deadLetterBucket = []byte("dead_letter")
)

func queueBucketName(queue string) []byte { return []byte("queue:" + queue) }

// Queue is a durable, bbolt-backed multi-queue FIFO.
type Queue struct {
	db *bolt.DB

	mu            sync.Mutex
	maxAttempts   int
	stalledAfter  time.Duration

	progressCh  chan ProgressEvent
	assetReadyCh chan AssetReadyEvent
}

// Options configures a Queue.
type Options struct {
	// MaxAttempts bounds retries before a job is dead-lettered.
	MaxAttempts int
	// StalledAfter is how long a claimed-but-silent job may go before a
	// sweep returns it to pending (spec.md §4.6, §5 Timeouts).
	StalledAfter time.Duration
	// EventBuffer sizes the progress/asset-ready channels; events are
	// dropped (never block a worker) once the buffer is full, since the
	// catalog remains the source of truth and subscribers can re-poll.
	EventBuffer int
}

// Open opens (creating if necessary) a bbolt-backed queue at path.
func Open(path string, opts Options) (*Queue, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.IO(err, "open job queue db %s", path)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.StalledAfter <= 0 {
		opts.StalledAfter = 10 * time.Minute
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, q := range []string{QueueThumbnail, QueueMetadata, QueueProxy} {
			if _, err := tx.CreateBucketIfNotExists(queueBucketName(q)); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucketIfNotExists(deadLetterBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errs.Internal(err, "initialize job queue buckets")
	}

	return &Queue{
		db:           db,
		maxAttempts:  opts.MaxAttempts,
		stalledAfter: opts.StalledAfter,
		progressCh:   make(chan ProgressEvent, opts.EventBuffer),
		assetReadyCh: make(chan AssetReadyEvent, opts.EventBuffer),
	}, nil
}

// Close releases the underlying bbolt database.
func (q *Queue) Close() error { return q.db.Close() }

// Progress returns the read side of the progress-event channel.
func (q *Queue) Progress() <-chan ProgressEvent { return q.progressCh }

// AssetReady returns the read side of the asset-ready channel.
func (q *Queue) AssetReady() <-chan AssetReadyEvent { return q.assetReadyCh }

// emit delivers an event without blocking the caller; a full buffer drops
// the event rather than stalling a worker (spec.md §4.6: events are a
// notification convenience, the catalog remains authoritative).
func (q *Queue) emitProgress(e ProgressEvent) {
	select {
	case q.progressCh <- e:
	default:
	}
}

func (q *Queue) emitAssetReady(e AssetReadyEvent) {
	select {
	case q.assetReadyCh <- e:
	default:
	}
}

// Enqueue appends payload to the named queue's FIFO, returning the new
// job's id. bbolt's per-bucket NextSequence guarantees monotonically
// increasing ids, which this package also uses as the FIFO enqueue-order
// key (spec.md §5: "the job queue enforces FIFO enqueue order per queue").
func (q *Queue) Enqueue(queue string, payload any) (uint64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, errs.Internal(err, "marshal job payload for %s", queue)
	}

	var id uint64
	err = q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucketName(queue))
		if b == nil {
			return errs.Validation(nil, "unknown queue %q", queue)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		job := Job{
			ID:            id,
			Queue:         queue,
			Payload:       body,
			MaxAttempts:   q.maxAttempts,
			State:         StatePending,
			NextAttemptAt: time.Now(),
			CreatedAt:     time.Now(),
		}
		enc, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put(seqKey(id), enc)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func seqKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// Claim scans queue in FIFO order for the first job that is pending (or
// due for retry) and atomically transitions it to processing, recording
// claimedBy for stalled-job attribution. Returns ok=false if nothing is
// claimable right now.
func (q *Queue) Claim(queue, claimedBy string) (job Job, ok bool, err error) {
	now := time.Now()
	err = q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucketName(queue))
		if b == nil {
			return errs.Validation(nil, "unknown queue %q", queue)
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var j Job
			if err := json.Unmarshal(v, &j); err != nil {
				continue
			}
			if j.State != StatePending || j.NextAttemptAt.After(now) {
				continue
			}
			j.State = StateProcessing
			j.ClaimedBy = claimedBy
			j.ClaimedAt = now
			j.HeartbeatAt = now
			enc, merr := json.Marshal(j)
			if merr != nil {
				return merr
			}
			if perr := b.Put(k, enc); perr != nil {
				return perr
			}
			job = j
			ok = true
			return nil
		}
		return nil
	})
	return job, ok, err
}

// Heartbeat refreshes a processing job's liveness timestamp so the stalled
// sweep leaves it alone.
func (q *Queue) Heartbeat(queue string, id uint64) error {
	return q.mutate(queue, id, func(j *Job) error {
		if j.State != StateProcessing {
			return errs.Conflict(nil, "job %d is not processing", id)
		}
		j.HeartbeatAt = time.Now()
		return nil
	})
}

// ReportProgress publishes a job_progress event without mutating stored state;
// percent/message are ephemeral UX data, not durable job fields.
func (q *Queue) ReportProgress(queue string, id uint64, percent int, message string) {
	q.emitProgress(ProgressEvent{Queue: queue, JobID: id, Percent: percent, Message: message})
}

// ReportAssetReady publishes an asset_ready event.
func (q *Queue) ReportAssetReady(kind, hash string) {
	q.emitAssetReady(AssetReadyEvent{Kind: kind, Hash: hash})
}

// Complete marks a job completed. The caller is responsible for purging
// completed jobs older than a TTL via PurgeCompleted.
func (q *Queue) Complete(queue string, id uint64) error {
	return q.mutate(queue, id, func(j *Job) error {
		j.State = StateCompleted
		return nil
	})
}

// Fail records a failed attempt. If attempts remain, the job is
// rescheduled with exponential backoff (base 2s, cap 5min, full jitter);
// otherwise it is moved to the dead letter (spec.md §4.6).
func (q *Queue) Fail(queue string, id uint64, cause error) error {
	var deadLettered bool
	var dlEntry DeadLetterEntry

	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucketName(queue))
		if b == nil {
			return errs.Validation(nil, "unknown queue %q", queue)
		}
		k := seqKey(id)
		v := b.Get(k)
		if v == nil {
			return errs.NotFound(nil, "job %d/%s not found", id, queue)
		}
		var j Job
		if err := json.Unmarshal(v, &j); err != nil {
			return err
		}
		j.Attempts++
		if cause != nil {
			j.LastError = cause.Error()
		}
		if j.Attempts < j.MaxAttempts {
			j.State = StatePending
			j.NextAttemptAt = time.Now().Add(backoffDelay(j.Attempts))
			enc, err := json.Marshal(j)
			if err != nil {
				return err
			}
			return b.Put(k, enc)
		}

		j.State = StateFailed
		if err := b.Delete(k); err != nil {
			return err
		}
		dlb := tx.Bucket(deadLetterBucket)
		dlSeq, err := dlb.NextSequence()
		if err != nil {
			return err
		}
		dlEntry = DeadLetterEntry{
			ID:            dlSeq,
			OriginalJobID: j.ID,
			Queue:         j.Queue,
			Payload:       j.Payload,
			FailedAt:      time.Now(),
			LastError:     j.LastError,
		}
		enc, err := json.Marshal(dlEntry)
		if err != nil {
			return err
		}
		deadLettered = true
		return dlb.Put(seqKey(dlSeq), enc)
	})
	if err != nil {
		return err
	}
	_ = deadLettered
	return nil
}

// backoffDelay computes the retry delay for the given attempt count:
// exponential with base 2s, capped at 5 minutes, full jitter (spec.md
// §4.6: "exponential backoff (base 2s, cap 5 min, full jitter)").
func backoffDelay(attempts int) time.Duration {
	d := backoffBase
	for i := 1; i < attempts && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// CancelRequest flags a job for cooperative cancellation (spec.md §4.6).
func (q *Queue) CancelRequest(queue string, id uint64) error {
	return q.mutate(queue, id, func(j *Job) error {
		j.CancelRequest = true
		return nil
	})
}

// CancelRequested reports whether a job's cancel flag is set; workers
// check this at safe points (spec.md §5 Cancellation semantics).
func (q *Queue) CancelRequested(queue string, id uint64) (bool, error) {
	var requested bool
	err := q.view(queue, id, func(j Job) { requested = j.CancelRequest })
	return requested, err
}

// SweepStalled scans queue for processing jobs whose heartbeat is older
// than stalledAfter and returns them to pending with attempts++ (spec.md
// §4.6: "a stalled processing row ... is returned to pending").
func (q *Queue) SweepStalled(queue string) (int, error) {
	cutoff := time.Now().Add(-q.stalledAfter)
	var swept int
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucketName(queue))
		if b == nil {
			return errs.Validation(nil, "unknown queue %q", queue)
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var j Job
			if err := json.Unmarshal(v, &j); err != nil {
				continue
			}
			if j.State != StateProcessing || j.HeartbeatAt.After(cutoff) {
				continue
			}
			j.State = StatePending
			j.Attempts++
			j.ClaimedBy = ""
			j.NextAttemptAt = time.Now()
			enc, err := json.Marshal(j)
			if err != nil {
				return err
			}
			if err := b.Put(k, enc); err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	return swept, err
}

// PurgeCompleted removes completed jobs older than olderThan from queue
// (spec.md §3.1: "Success -> purged after TTL").
func (q *Queue) PurgeCompleted(queue string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	var purged int
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucketName(queue))
		if b == nil {
			return errs.Validation(nil, "unknown queue %q", queue)
		}
		var toDelete [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var j Job
			if err := json.Unmarshal(v, &j); err != nil {
				continue
			}
			if j.State == StateCompleted && j.CreatedAt.Before(cutoff) {
				key := append([]byte(nil), k...)
				toDelete = append(toDelete, key)
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	return purged, err
}

// Status reports per-queue counts by state (spec.md §6.4 Jobs: status()).
type Status struct {
	Queue      string
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Status summarizes queue's current job counts.
func (q *Queue) Status(queue string) (Status, error) {
	st := Status{Queue: queue}
	err := q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucketName(queue))
		if b == nil {
			return errs.Validation(nil, "unknown queue %q", queue)
		}
		return b.ForEach(func(_, v []byte) error {
			var j Job
			if err := json.Unmarshal(v, &j); err != nil {
				return nil
			}
			switch j.State {
			case StatePending:
				st.Pending++
			case StateProcessing:
				st.Processing++
			case StateCompleted:
				st.Completed++
			case StateFailed:
				st.Failed++
			}
			return nil
		})
	})
	return st, err
}

// DeadLetter lists dead-letter entries, optionally filtered to one queue.
func (q *Queue) DeadLetter(queue string) ([]DeadLetterEntry, error) {
	var entries []DeadLetterEntry
	err := q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(deadLetterBucket)
		return b.ForEach(func(_, v []byte) error {
			var e DeadLetterEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil
			}
			if queue == "" || e.Queue == queue {
				entries = append(entries, e)
			}
			return nil
		})
	})
	return entries, err
}

// RetryDeadLetter re-enqueues a dead-letter entry's payload onto its
// original queue with a fresh attempt counter, then removes the entry.
func (q *Queue) RetryDeadLetter(deadLetterID uint64) (uint64, error) {
	var entry DeadLetterEntry
	var found bool
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(deadLetterBucket)
		k := seqKey(deadLetterID)
		v := b.Get(k)
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &entry); err != nil {
			return err
		}
		found = true
		return b.Delete(k)
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errs.NotFound(nil, "dead letter entry %d not found", deadLetterID)
	}
	var payload json.RawMessage = entry.Payload
	return q.Enqueue(entry.Queue, payload)
}

// AcknowledgeDeadLetter marks dead-letter entries as acknowledged without
// removing them, so operators can audit what failed permanently.
func (q *Queue) AcknowledgeDeadLetter(ids []uint64) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(deadLetterBucket)
		for _, id := range ids {
			k := seqKey(id)
			v := b.Get(k)
			if v == nil {
				continue
			}
			var e DeadLetterEntry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			e.Acknowledged = true
			enc, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := b.Put(k, enc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (q *Queue) mutate(queue string, id uint64, fn func(*Job) error) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucketName(queue))
		if b == nil {
			return errs.Validation(nil, "unknown queue %q", queue)
		}
		k := seqKey(id)
		v := b.Get(k)
		if v == nil {
			return errs.NotFound(nil, "job %d/%s not found", id, queue)
		}
		var j Job
		if err := json.Unmarshal(v, &j); err != nil {
			return err
		}
		if err := fn(&j); err != nil {
			return err
		}
		enc, err := json.Marshal(j)
		if err != nil {
			return err
		}
		return b.Put(k, enc)
	})
}

func (q *Queue) view(queue string, id uint64, fn func(Job)) error {
	return q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucketName(queue))
		if b == nil {
			return errs.Validation(nil, "unknown queue %q", queue)
		}
		v := b.Get(seqKey(id))
		if v == nil {
			return errs.NotFound(nil, "job %d/%s not found", id, queue)
		}
		var j Job
		if err := json.Unmarshal(v, &j); err != nil {
			return err
		}
		fn(j)
		return nil
	})
}

// waitForContext blocks until ctx is cancelled or d elapses, whichever
// comes first, returning ctx.Err() in the former case. Used by worker
// loops polling an empty queue (spec.md §5 Suspension points).
func waitForContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
