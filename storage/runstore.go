package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/cloudfu/cloudfu/applier"
)

var (
	bucketRuns = []byte("runs")
	bucketMeta = []byte("meta")

	keyCurrentRevision = []byte("current_revision")
)

// Run is one recorded expansion pass and its per-file outcome
type Run struct {
	Revision  int64                `json:"revision"`
	StartedAt time.Time            `json:"started_at"`
	Command   string               `json:"command"`
	DryRun    bool                 `json:"dry_run"`
	Created   int                  `json:"created"`
	Updated   int                  `json:"updated"`
	Unchanged int                  `json:"unchanged"`
	Warnings  int                  `json:"warnings"`
	Errors    int                  `json:"errors"`
	Changes   []applier.FileChange `json:"changes"`
}

// FileState tracks a rendered file's latest known state in the index
type FileState struct {
	Path           string
	Digest         string
	Status         applier.FileStatus
	FirstSeenRev   int64
	LastChangedRev int64
	LastSeenRev    int64
}

// RunStore keeps the revision history of rendered config trees
type RunStore struct {
	mu sync.RWMutex

	// index holds the latest known state per rendered file, keyed by path
	index *btree.BTreeG[*FileState]

	db         *bbolt.DB
	currentRev int64
	dir        string
}

// NewRunStore opens the run store in the given directory
func NewRunStore(dir string) (*RunStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(dir, "cloudfu.db")
	// A held file lock means another cloudfu process owns the state dir;
	// fail fast instead of blocking forever
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRuns); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &RunStore{
		index: btree.NewG[*FileState](32, func(a, b *FileState) bool {
			return a.Path < b.Path
		}),
		db:  db,
		dir: dir,
	}

	store.loadRevision()
	if err := store.rebuildIndex(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to rebuild file index: %w", err)
	}

	return store, nil
}

// Close closes the store
func (s *RunStore) Close() error {
	return s.db.Close()
}

// RecordRun persists a run under the next revision number. Dry runs land in
// the history but do not touch the file index, which tracks what is actually
// on disk.
func (s *RunStore) RecordRun(run Run) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentRev++
	rev := s.currentRev

	run.Revision = rev
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(run)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketRuns).Put(revisionKey(rev), value); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyCurrentRevision, revisionKey(rev))
	})
	if err != nil {
		s.currentRev--
		return 0, err
	}

	if !run.DryRun {
		for _, change := range run.Changes {
			s.updateIndex(change, rev)
		}
	}

	return rev, nil
}

// GetRun fetches a single run by revision
func (s *RunStore) GetRun(rev int64) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run *Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketRuns).Get(revisionKey(rev))
		if value == nil {
			return nil
		}
		run = &Run{}
		return json.Unmarshal(value, run)
	})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("no run recorded at revision %d", rev)
	}
	return run, nil
}

// LastRun fetches the most recent run, nil when the store is empty
func (s *RunStore) LastRun() (*Run, error) {
	runs, err := s.History(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// History returns runs newest first, all of them when limit <= 0
func (s *RunStore) History(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run record %s: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// GetFileState gets the latest known state of a rendered file
func (s *RunStore) GetFileState(path string) (*FileState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.index.Get(&FileState{Path: path})
	if !ok {
		return nil, fmt.Errorf("no state recorded for %s", path)
	}
	return state, nil
}

// ChangedSince lists files whose content changed after the given revision
func (s *RunStore) ChangedSince(rev int64) []*FileState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*FileState
	s.index.Ascend(func(state *FileState) bool {
		if state.LastChangedRev > rev {
			results = append(results, state)
		}
		return true
	})
	return results
}

// CurrentRevision returns the latest committed revision
func (s *RunStore) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Compact drops runs older than the newest keepRuns revisions. Zero-padded
// keys walk oldest first, so the scan stops at the first survivor.
func (s *RunStore) Compact(keepRuns int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.currentRev - keepRuns
	if cutoff <= 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRuns)

		var expired [][]byte
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			rev, err := parseRevisionKey(k)
			if err != nil {
				continue
			}
			if rev > cutoff {
				break
			}
			expired = append(expired, k)
		}

		for _, key := range expired {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *RunStore) updateIndex(change applier.FileChange, rev int64) {
	state, ok := s.index.Get(&FileState{Path: change.Path})
	if !ok {
		state = &FileState{Path: change.Path, FirstSeenRev: rev, LastChangedRev: rev}
	}
	state.Digest = change.Digest
	state.Status = change.Status
	state.LastSeenRev = rev
	if ok && change.Status != applier.StatusUnchanged {
		state.LastChangedRev = rev
	}
	s.index.ReplaceOrInsert(state)
}

func (s *RunStore) loadRevision() {
	_ = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyCurrentRevision)
		if data == nil {
			return nil
		}
		if rev, err := parseRevisionKey(data); err == nil {
			s.currentRev = rev
		}
		return nil
	})
}

// rebuildIndex replays every recorded run in revision order so a reopened
// store sees the same per-file state as the process that wrote it
func (s *RunStore) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run record %s: %w", k, err)
			}
			if run.DryRun {
				continue
			}
			for _, change := range run.Changes {
				s.updateIndex(change, run.Revision)
			}
		}
		return nil
	})
}

// revisionKey zero-pads revisions so bbolt's lexical key order matches
// numeric order
func revisionKey(rev int64) []byte {
	return []byte(fmt.Sprintf("%016d", rev))
}

func parseRevisionKey(key []byte) (int64, error) {
	return strconv.ParseInt(string(key), 10, 64)
}
