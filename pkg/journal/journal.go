// Package journal persists the operations of each sync run in a bbolt file.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mscno/glsync/pkg/model"
	"go.etcd.io/bbolt"
)

// Layout:
//
//	"runs" -> key: run id, value: JSON RunInfo
//	"ops"  -> bucket per run id -> key: big-endian sequence, value: JSON model.Operation
const (
	runsBucket = "runs"
	opsBucket  = "ops"
)

// ErrRunNotFound is returned for run ids the journal does not hold.
var ErrRunNotFound = errors.New("run not found")

// RunInfo describes one run.
type RunInfo struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	DryRun     bool      `json:"dry_run"`
	Filter     string    `json:"filter,omitempty"`
	Totals     Totals    `json:"totals"`
	Error      string    `json:"error,omitempty"`
}

// Totals are the final counts of a run.
type Totals struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Applied   int `json:"applied"`
	Planned   int `json:"planned"`
	Failed    int `json:"failed"`
}

// Journal is an open journal file.
type Journal struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// Open opens or creates the journal at path. It fails after one second when
// another process holds the file.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(opsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, logger: logger}, nil
}

// Close releases the journal file.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin registers a new run.
func (j *Journal) Begin(dryRun bool, filter string) (*Run, error) {
	info := RunInfo{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		DryRun:    dryRun,
		Filter:    filter,
	}
	err := j.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.Bucket([]byte(opsBucket)).CreateBucket([]byte(info.ID)); err != nil {
			return err
		}
		return putRun(tx, info)
	})
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}
	return &Run{journal: j, info: info}, nil
}

// Runs returns all runs, most recent first.
func (j *Journal) Runs() ([]RunInfo, error) {
	var runs []RunInfo
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(_, v []byte) error {
			var info RunInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			runs = append(runs, info)
			return nil
		})
	})
	sort.Slice(runs, func(a, b int) bool { return runs[a].StartedAt.After(runs[b].StartedAt) })
	return runs, err
}

// Operations returns the operations of a run in the order they were recorded.
func (j *Journal) Operations(runID string) ([]model.Operation, error) {
	var ops []model.Operation
	err := j.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(opsBucket)).Bucket([]byte(runID))
		if bucket == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return bucket.ForEach(func(_, v []byte) error {
			var op model.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	})
	return ops, err
}

func putRun(tx *bbolt.Tx, info RunInfo) error {
	val, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(runsBucket)).Put([]byte(info.ID), val)
}

// Run records the operations of a single run. It is safe for concurrent use.
type Run struct {
	journal *Journal
	mu      sync.Mutex
	info    RunInfo
}

// ID returns the run id.
func (r *Run) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info.ID
}

// Record stores op. Storage errors are logged and do not interrupt the run.
func (r *Run) Record(op model.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.journal.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(opsBucket)).Bucket([]byte(r.info.ID))
		if bucket == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, r.info.ID)
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		val, err := json.Marshal(op)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, val)
	})
	if err != nil {
		r.journal.logger.Error("failed to journal operation", "run", r.info.ID, "kind", op.Kind, "error", err)
	}
}

// Finish stores the totals of the run and the error that ended it, if any.
func (r *Run) Finish(totals Totals, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.FinishedAt = time.Now().UTC()
	r.info.Totals = totals
	if runErr != nil {
		r.info.Error = runErr.Error()
	}
	return r.journal.db.Update(func(tx *bbolt.Tx) error {
		return putRun(tx, r.info)
	})
}

var _ model.Recorder = (*Run)(nil)
