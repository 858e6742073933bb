package delta

import (
	"fmt"

	"github.com/alitto/pond"

	"github.com/paulyc/cvs2svn/internal/kvstore"
	"github.com/paulyc/cvs2svn/internal/meta"
)

// Store is the on-disk "deltas" artifact from spec §4.6: one record per
// CVSRevision, keyed by revision id, holding either the full text (LOD
// roots, trunk heads after inversion) or a forward ed-script diff.
type Store struct {
	kv    *kvstore.Store
	trees map[meta.FileID]*FileTree
}

// OpenStore opens (or creates) the deltas artifact at path.
func OpenStore(path string) (*Store, error) {
	kv, err := kvstore.Open(path, "deltas", false)
	if err != nil {
		return nil, err
	}
	return &Store{kv: kv, trees: make(map[meta.FileID]*FileTree)}, nil
}

// Close releases the underlying kvstore handle.
func (s *Store) Close() error { return s.kv.Close() }

// RegisterTree associates a built FileTree with a file id so the checkout
// engine can look it up via TreeFor.
func (s *Store) RegisterTree(fileID meta.FileID, tree *FileTree) {
	s.trees[fileID] = tree
}

// TreeFor implements DeltaStoreWithTrees.
func (s *Store) TreeFor(fileID meta.FileID) *FileTree { return s.trees[fileID] }

const fullTextFlag byte = 1
const diffFlag byte = 0

// Load implements DeltaSource: the first byte distinguishes a full-text
// record from a diff record.
func (s *Store) Load(id meta.RevisionID) ([]byte, bool, error) {
	raw, ok, err := s.kv.Get(int64(id))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("delta: no stored record for revision %d", id)
	}
	if len(raw) == 0 {
		return nil, false, fmt.Errorf("delta: empty stored record for revision %d", id)
	}
	return raw[1:], raw[0] == fullTextFlag, nil
}

// RecordJob is one revision's material to record: either its full text
// (isFullText) or the trunk-inverted/branch-forward diff against Prev.
type RecordJob struct {
	ID         meta.RevisionID
	Data       []byte
	IsFullText bool
}

// RecordAll writes every job to the store, fanning out the (potentially
// large) set of per-revision records across a bounded worker pool. This
// mirrors SaveBlob's pool.Submit pattern: recording is embarrassingly
// parallel across revisions (each write is independent), unlike the
// single-threaded checkout engine that later reads this store back during
// emission (spec §5 requires emission itself to stay a linear fold, but
// places no such constraint on how P1/P4 populate its inputs).
func (s *Store) RecordAll(jobs []RecordJob, workers int) error {
	pool := pond.New(workers, len(jobs))

	errCh := make(chan error, len(jobs))
	for _, job := range jobs {
		job := job
		pool.Submit(func() {
			errCh <- s.record(job)
		})
	}
	pool.StopAndWait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) record(job RecordJob) error {
	buf := make([]byte, 1+len(job.Data))
	if job.IsFullText {
		buf[0] = fullTextFlag
	} else {
		buf[0] = diffFlag
	}
	copy(buf[1:], job.Data)
	return s.kv.Put(int64(job.ID), buf)
}
