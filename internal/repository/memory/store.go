// Package memory is a process-local document store. It backs the "memory"
// backend and doubles as the fake store in tests, with hooks to inject
// failures and to interleave writes with an in-flight commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/mamadbah2/baleledger/internal/repository/docstore"
)

type record struct {
	fields   map[string]interface{}
	revision string
}

// Store keeps every collection in a map keyed by collection path.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]record
	revision    int64

	faultMu      sync.Mutex
	commitFaults []commitFault
	getFaults    map[string]error
	queryFaults  map[string]error
	beforeCommit func(b *docstore.Batch)
	commits      int
}

type commitFault struct {
	atOp int
	err  error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]record),
		getFaults:   make(map[string]error),
		queryFaults: make(map[string]error),
	}
}

var _ docstore.Store = (*Store)(nil)

// FailNextCommit makes the next commit fail before applying any write.
func (s *Store) FailNextCommit(err error) {
	s.FailCommitAt(0, err)
}

// FailCommitAt makes the next commit fail while applying the op at index
// atOp. Writes staged before that op are discarded with the rest.
func (s *Store) FailCommitAt(atOp int, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.commitFaults = append(s.commitFaults, commitFault{atOp: atOp, err: err})
}

// FailGet makes every read of the document at path fail.
func (s *Store) FailGet(path string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.getFaults[path] = err
}

// FailQuery makes every query on the collection at path fail.
func (s *Store) FailQuery(path string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.queryFaults[path] = err
}

// BeforeCommit registers a hook run at the start of every commit, before the
// store lock is taken. Tests use it to race other writes against a commit.
func (s *Store) BeforeCommit(fn func(b *docstore.Batch)) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.beforeCommit = fn
}

// Commits returns how many commits were applied successfully.
func (s *Store) Commits() int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.commits
}

// Get implements docstore.Store.
func (s *Store) Get(_ context.Context, ref docstore.DocRef) (docstore.Document, error) {
	if err := s.fault(s.getFaults, ref.Path()); err != nil {
		return docstore.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[ref.Collection.Path()][ref.Key]
	if !ok {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref.Path(), docstore.ErrNotFound)
	}
	return toDocument(ref.Key, rec), nil
}

// Query implements docstore.Store. Documents are returned in key order.
func (s *Store) Query(_ context.Context, coll docstore.CollectionRef, r docstore.KeyRange) ([]docstore.Document, error) {
	if err := s.fault(s.queryFaults, coll.Path()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]docstore.Document, 0)
	for key, rec := range s.collections[coll.Path()] {
		if r.Contains(key) {
			docs = append(docs, toDocument(key, rec))
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// Commit implements docstore.Store. The batch is applied to a staged copy and
// swapped in only when every op succeeded.
func (s *Store) Commit(_ context.Context, b *docstore.Batch) error {
	s.faultMu.Lock()
	hook := s.beforeCommit
	var fault *commitFault
	if len(s.commitFaults) > 0 {
		fault = &s.commitFaults[0]
		s.commitFaults = s.commitFaults[1:]
	}
	s.faultMu.Unlock()

	if hook != nil {
		hook(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.clone()
	revision := s.revision
	for i, op := range b.Ops {
		if fault != nil && fault.atOp == i {
			return fault.err
		}
		revision++
		if err := apply(staged, op, strconv.FormatInt(revision, 10)); err != nil {
			return err
		}
	}
	if fault != nil && fault.atOp >= len(b.Ops) {
		return fault.err
	}

	s.collections = staged
	s.revision = revision

	s.faultMu.Lock()
	s.commits++
	s.faultMu.Unlock()
	return nil
}

func apply(colls map[string]map[string]record, op docstore.Op, revision string) error {
	path := op.Ref.Collection.Path()
	docs := colls[path]
	if docs == nil {
		docs = make(map[string]record)
		colls[path] = docs
	}

	switch op.Kind {
	case docstore.OpSet:
		fields := make(map[string]interface{}, len(op.Fields))
		for k, v := range op.Fields {
			fields[k] = normalize(v, nil)
		}
		docs[op.Ref.Key] = record{fields: fields, revision: revision}
	case docstore.OpMerge:
		current := docs[op.Ref.Key]
		fields := make(map[string]interface{}, len(current.fields)+len(op.Fields))
		for k, v := range current.fields {
			fields[k] = v
		}
		for k, v := range op.Fields {
			fields[k] = normalize(v, fields[k])
		}
		docs[op.Ref.Key] = record{fields: fields, revision: revision}
	case docstore.OpDelete:
		current, ok := docs[op.Ref.Key]
		if op.IfRevision != "" && (!ok || current.revision != op.IfRevision) {
			return fmt.Errorf("delete %s: %w", op.Ref.Path(), docstore.ErrPrecondition)
		}
		delete(docs, op.Ref.Key)
	default:
		return fmt.Errorf("unsupported op %s", op.Kind)
	}
	return nil
}

// normalize stores integers as int64 and resolves increments against the current value.
func normalize(v, current interface{}) interface{} {
	switch n := v.(type) {
	case docstore.Increment:
		return docstore.Document{Fields: map[string]interface{}{"v": current}}.Int("v") + int64(n)
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func (s *Store) clone() map[string]map[string]record {
	out := make(map[string]map[string]record, len(s.collections))
	for path, docs := range s.collections {
		copied := make(map[string]record, len(docs))
		for k, rec := range docs {
			copied[k] = rec
		}
		out[path] = copied
	}
	return out
}

func (s *Store) fault(faults map[string]error, path string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return faults[path]
}

func toDocument(key string, rec record) docstore.Document {
	fields := make(map[string]interface{}, len(rec.fields))
	for k, v := range rec.fields {
		fields[k] = v
	}
	return docstore.Document{Key: key, Fields: fields, Revision: rec.revision}
}
